package hub

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tailored-agentic-units/agentbus/observability"
	"github.com/tailored-agentic-units/agentbus/orchestrate/config"
	"github.com/tailored-agentic-units/agentbus/orchestrate/messaging"
)

// Bus routes envelopes between registered agents.
type Bus interface {
	Name() string

	RegisterAgent(agentID string, reg Registration) error
	UnregisterAgent(agentID string) bool
	Heartbeat(agentID string) bool

	SendMessage(ctx context.Context, env *messaging.Envelope) (int, error)
	Broadcast(ctx context.Context, sender string, msgType messaging.MessageType, payload map[string]any) (int, error)

	Agents() []AgentRecord
	Agent(agentID string) (AgentRecord, bool)
	History(limit int) []HistoryRecord
	Status() Status
	CheckHealth(ctx context.Context) []string

	Shutdown(timeout time.Duration) error
}

// Status is a point-in-time summary of the bus.
type Status struct {
	Name         string          `json:"name"`
	Running      bool            `json:"running"`
	Agents       int             `json:"agents"`
	ActiveAgents int             `json:"activeAgents"`
	StaleAgents  int             `json:"staleAgents"`
	Metrics      MetricsSnapshot `json:"metrics"`
	HistorySize  int             `json:"historySize"`
	StartedAt    time.Time       `json:"startedAt"`
	Uptime       time.Duration   `json:"uptime"`
}

type Option func(*bus)

// WithObserver sets the observer receiving bus events.
func WithObserver(observer observability.Observer) Option {
	return func(b *bus) {
		if observer != nil {
			b.observer = observer
		}
	}
}

type bus struct {
	name string

	agents      map[string]*registration
	agentsMutex sync.RWMutex

	systemSenders       map[string]bool
	staleAfter          time.Duration
	healthCheckInterval time.Duration

	history  *History
	metrics  *Metrics
	logger   *slog.Logger
	observer observability.Observer
	clock    func() time.Time

	startedAt time.Time
	closed    atomic.Bool
	pumps     sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a bus and starts its health monitor. Zero fields in busConfig
// fall back to config.DefaultBusConfig.
func New(ctx context.Context, busConfig config.BusConfig, opts ...Option) Bus {
	cfg := config.DefaultBusConfig()
	cfg.Merge(&busConfig)

	busCtx, cancel := context.WithCancel(ctx)

	b := &bus{
		name:                cfg.Name,
		agents:              make(map[string]*registration),
		systemSenders:       make(map[string]bool, len(cfg.SystemSenders)),
		staleAfter:          cfg.StaleAfter(),
		healthCheckInterval: cfg.HealthCheckInterval.Std(),
		history:             NewHistory(cfg.HistorySize),
		metrics:             NewMetrics(),
		logger:              cfg.Logger,
		observer:            observability.NoOpObserver{},
		clock:               cfg.Clock,
		ctx:                 busCtx,
		cancel:              cancel,
		done:                make(chan struct{}),
	}
	for _, sender := range cfg.SystemSenders {
		b.systemSenders[sender] = true
	}
	for _, opt := range opts {
		opt(b)
	}
	b.startedAt = b.clock()

	go b.healthLoop()

	return b
}

func (b *bus) Name() string {
	return b.name
}

func (b *bus) RegisterAgent(agentID string, reg Registration) error {
	if b.closed.Load() {
		return ErrBusClosed
	}
	if !messaging.ValidIdentifier(agentID) {
		return &messaging.ValidationError{Field: "agentId", Value: agentID, Reason: "must match name[.instance]"}
	}

	now := b.clock()

	b.agentsMutex.Lock()
	existing, exists := b.agents[agentID]
	if exists {
		existing.apply(reg)
		existing.record.LastHeartbeat = now
		existing.record.Status = AgentActive
		b.agentsMutex.Unlock()

		b.logger.DebugContext(
			b.ctx,
			"agent re-registered",
			slog.String("bus_name", b.name),
			slog.String("agent_id", agentID),
		)
		return nil
	}

	r := &registration{
		record: AgentRecord{
			ID:            agentID,
			RegisteredAt:  now,
			LastHeartbeat: now,
			Status:        AgentActive,
		},
		mailbox: NewMailbox[*messaging.Envelope](),
	}
	r.apply(reg)
	b.agents[agentID] = r
	record := r.record.clone()
	b.agentsMutex.Unlock()

	b.metrics.RecordAgent(1)
	b.pumps.Add(1)
	go b.pump(r)

	b.logger.DebugContext(
		b.ctx,
		"agent registered",
		slog.String("bus_name", b.name),
		slog.String("agent_id", agentID),
	)
	b.emit(EventAgentRegister, observability.LevelInfo, map[string]any{
		"agent_id":     agentID,
		"capabilities": record.Capabilities,
		"version":      record.Version,
	})

	b.announce(messaging.TypeAgentRegister, map[string]any{
		"agentId":      agentID,
		"capabilities": record.Capabilities,
		"version":      record.Version,
	}, agentID)

	return nil
}

func (b *bus) UnregisterAgent(agentID string) bool {
	if b.closed.Load() {
		return false
	}

	b.agentsMutex.Lock()
	r, exists := b.agents[agentID]
	if exists {
		delete(b.agents, agentID)
		r.mailbox.Close()
	}
	b.agentsMutex.Unlock()

	if !exists {
		return false
	}

	b.metrics.RecordAgent(-1)
	b.logger.DebugContext(
		b.ctx,
		"agent unregistered",
		slog.String("bus_name", b.name),
		slog.String("agent_id", agentID),
	)
	b.emit(EventAgentUnregister, observability.LevelInfo, map[string]any{"agent_id": agentID})

	b.announce(messaging.TypeAgentUnregister, map[string]any{"agentId": agentID}, agentID)

	return true
}

// Heartbeat refreshes an agent's liveness. A stale agent becomes active
// again immediately.
func (b *bus) Heartbeat(agentID string) bool {
	if b.closed.Load() {
		return false
	}

	b.agentsMutex.Lock()
	r, exists := b.agents[agentID]
	reactivated := false
	if exists {
		r.record.LastHeartbeat = b.clock()
		if r.record.Status == AgentStale {
			r.record.Status = AgentActive
			reactivated = true
		}
	}
	b.agentsMutex.Unlock()

	if reactivated {
		b.logger.InfoContext(
			b.ctx,
			"agent reactivated",
			slog.String("bus_name", b.name),
			slog.String("agent_id", agentID),
		)
		b.emit(EventAgentReactivated, observability.LevelInfo, map[string]any{"agent_id": agentID})
	}

	return exists
}

// SendMessage routes env and returns the number of recipients it was
// enqueued for. Invalid or already final envelopes are rejected before any
// counter moves. Nothing is delivered when an error is returned.
func (b *bus) SendMessage(ctx context.Context, env *messaging.Envelope) (int, error) {
	if b.closed.Load() {
		return 0, ErrBusClosed
	}
	if env == nil {
		return 0, &messaging.ValidationError{Field: "envelope", Reason: "must not be nil"}
	}
	if err := env.Validate(); err != nil {
		return 0, err
	}
	if env.Status != messaging.StatusPending {
		return 0, fmt.Errorf("%w: %s", messaging.ErrAlreadyFinal, env.Status)
	}

	b.agentsMutex.RLock()
	_, registered := b.agents[env.Sender]
	b.agentsMutex.RUnlock()

	if !registered && !b.systemSenders[env.Sender] {
		return 0, &NotRegisteredError{AgentID: env.Sender}
	}

	b.metrics.RecordSent(1)
	return b.route(ctx, env, env.Sender)
}

func (b *bus) Broadcast(ctx context.Context, sender string, msgType messaging.MessageType, payload map[string]any) (int, error) {
	env, err := messaging.NewBroadcast(sender, msgType, payload).CreatedAt(b.clock()).Build()
	if err != nil {
		return 0, err
	}
	return b.SendMessage(ctx, env)
}

func (b *bus) route(ctx context.Context, env *messaging.Envelope, exclude string) (int, error) {
	now := b.clock()

	if env.IsExpiredAt(now) {
		b.fail(ctx, env, "expired", now)
		return 0, fmt.Errorf("%w: %s", ErrEnvelopeExpired, env.ID)
	}

	var targets []*registration

	b.agentsMutex.RLock()
	if env.IsBroadcast() {
		ids := make([]string, 0, len(b.agents))
		for id, r := range b.agents {
			if id != exclude && r.record.Status == AgentActive {
				ids = append(ids, id)
			}
		}
		sort.Strings(ids)
		for _, id := range ids {
			targets = append(targets, b.agents[id])
		}
	} else if r, exists := b.agents[env.Recipient]; !exists {
		b.agentsMutex.RUnlock()
		b.fail(ctx, env, "recipient not registered", now)
		return 0, &RoutingError{Recipient: env.Recipient, Reason: "not registered"}
	} else if r.record.Status != AgentActive {
		b.agentsMutex.RUnlock()
		b.fail(ctx, env, "recipient "+string(r.record.Status), now)
		return 0, &RoutingError{Recipient: env.Recipient, Reason: string(r.record.Status)}
	} else {
		targets = append(targets, r)
	}
	b.agentsMutex.RUnlock()

	if err := env.MarkDelivered(); err != nil {
		return 0, err
	}
	b.history.Append(newHistoryRecord(env, len(targets), now))

	delivered := 0
	for _, r := range targets {
		item := env
		if env.IsBroadcast() {
			item = env.Clone()
		}
		if r.mailbox.Send(item) {
			delivered++
		}
	}

	b.metrics.RecordDelivered(delivered)

	b.logger.DebugContext(
		ctx,
		"message routed",
		slog.String("bus_name", b.name),
		slog.String("message_id", env.ID),
		slog.String("type", string(env.Type)),
		slog.String("sender", env.Sender),
		slog.String("recipient", env.Recipient),
		slog.Int("recipients", delivered),
	)
	b.emit(EventMessageDelivered, observability.LevelVerbose, map[string]any{
		"message_id": env.ID,
		"type":       string(env.Type),
		"sender":     env.Sender,
		"recipient":  env.Recipient,
		"recipients": delivered,
	})

	return delivered, nil
}

func (b *bus) fail(ctx context.Context, env *messaging.Envelope, reason string, now time.Time) {
	if err := env.MarkFailed(reason); err != nil {
		b.logger.WarnContext(
			ctx,
			"failed envelope already final",
			slog.String("bus_name", b.name),
			slog.String("message_id", env.ID),
			slog.String("error", err.Error()),
		)
	}

	b.metrics.RecordFailed(1)
	b.history.Append(newHistoryRecord(env, 0, now))

	b.logger.WarnContext(
		ctx,
		"message not routed",
		slog.String("bus_name", b.name),
		slog.String("message_id", env.ID),
		slog.String("sender", env.Sender),
		slog.String("recipient", env.Recipient),
		slog.String("reason", reason),
	)
	b.emit(EventMessageFailed, observability.LevelWarning, map[string]any{
		"message_id": env.ID,
		"type":       string(env.Type),
		"sender":     env.Sender,
		"recipient":  env.Recipient,
		"reason":     reason,
	})
}

// announce broadcasts a system envelope to every active agent except exclude.
func (b *bus) announce(msgType messaging.MessageType, payload map[string]any, exclude string) {
	env, err := messaging.NewBroadcast(config.SystemSender, msgType, payload).
		Priority(messaging.PriorityHigh).
		CreatedAt(b.clock()).
		Build()
	if err != nil {
		b.logger.ErrorContext(b.ctx, "failed to build system envelope", slog.String("error", err.Error()))
		return
	}

	if _, err := b.route(b.ctx, env, exclude); err != nil {
		b.logger.WarnContext(
			b.ctx,
			"system announcement failed",
			slog.String("bus_name", b.name),
			slog.String("type", string(msgType)),
			slog.String("error", err.Error()),
		)
	}
}

func (b *bus) Agents() []AgentRecord {
	b.agentsMutex.RLock()
	defer b.agentsMutex.RUnlock()

	records := make([]AgentRecord, 0, len(b.agents))
	for _, r := range b.agents {
		records = append(records, r.record.clone())
	}
	slices.SortFunc(records, func(a, c AgentRecord) int {
		return cmp.Compare(a.ID, c.ID)
	})
	return records
}

func (b *bus) Agent(agentID string) (AgentRecord, bool) {
	b.agentsMutex.RLock()
	defer b.agentsMutex.RUnlock()

	r, exists := b.agents[agentID]
	if !exists {
		return AgentRecord{}, false
	}
	return r.record.clone(), true
}

func (b *bus) History(limit int) []HistoryRecord {
	return b.history.Recent(limit)
}

func (b *bus) Status() Status {
	status := Status{
		Name:        b.name,
		Running:     !b.closed.Load(),
		Metrics:     b.metrics.Snapshot(),
		HistorySize: b.history.Len(),
		StartedAt:   b.startedAt,
		Uptime:      b.clock().Sub(b.startedAt),
	}

	b.agentsMutex.RLock()
	for _, r := range b.agents {
		status.Agents++
		switch r.record.Status {
		case AgentActive:
			status.ActiveAgents++
		case AgentStale:
			status.StaleAgents++
		}
	}
	b.agentsMutex.RUnlock()

	return status
}

// Shutdown announces the shutdown, stops the health monitor and closes every
// mailbox. It waits up to timeout for the mailbox pumps to drain.
func (b *bus) Shutdown(timeout time.Duration) error {
	if !b.closed.CompareAndSwap(false, true) {
		return ErrBusClosed
	}

	b.logger.DebugContext(
		b.ctx,
		"shutting down bus",
		slog.String("bus_name", b.name),
	)

	b.announce(messaging.TypeSystemAlert, map[string]any{
		"alertType": AlertSystemShutdown,
		"bus":       b.name,
	}, "")

	close(b.done)

	b.agentsMutex.Lock()
	agentCount := len(b.agents)
	for id, r := range b.agents {
		r.mailbox.Close()
		delete(b.agents, id)
	}
	b.agentsMutex.Unlock()

	b.metrics.RecordAgent(-agentCount)
	b.history.Clear()
	b.emit(EventShutdown, observability.LevelInfo, map[string]any{"agents": agentCount})

	drained := make(chan struct{})
	go func() {
		b.pumps.Wait()
		close(drained)
	}()

	defer b.cancel()

	select {
	case <-drained:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("bus shutdown timeout after %v", timeout)
	}
}

func (b *bus) pump(r *registration) {
	defer b.pumps.Done()

	for {
		env, err := r.mailbox.Receive(b.ctx)
		if err != nil {
			return
		}

		b.metrics.RecordReceived(1)

		b.agentsMutex.RLock()
		handler := r.handler
		b.agentsMutex.RUnlock()

		if handler != nil {
			handler(b.ctx, env)
		}
	}
}

func (b *bus) emit(eventType observability.EventType, level observability.Level, data map[string]any) {
	data["bus_name"] = b.name
	b.observer.OnEvent(b.ctx, observability.NewEvent(eventType, level, "hub."+b.name, data))
}
