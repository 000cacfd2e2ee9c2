package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tailored-agentic-units/agentbus/observability"
	"github.com/tailored-agentic-units/agentbus/orchestrate/config"
	"github.com/tailored-agentic-units/agentbus/orchestrate/hub"
	"github.com/tailored-agentic-units/agentbus/orchestrate/messaging"
)

// Option configures a Runtime.
type Option func(*Runtime)

// WithHooks sets the lifecycle and task hooks.
func WithHooks(h Hooks) Option {
	return func(r *Runtime) { r.hooks = h }
}

// WithObserver overrides the default NoOpObserver.
func WithObserver(o observability.Observer) Option {
	return func(r *Runtime) { r.observer = o }
}

// WithLogger overrides the logger from the runtime config.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runtime) { r.logger = l }
}

// WithAuthorizer overrides the default AllowAll authorizer.
func WithAuthorizer(a Authorizer) Option {
	return func(r *Runtime) { r.authorizer = a }
}

// WithPriceTable overrides DefaultPriceTable for external call accounting.
func WithPriceTable(t PriceTable) Option {
	return func(r *Runtime) { r.prices = t }
}

// WithMiddleware appends task middleware.
func WithMiddleware(mw ...Middleware) Option {
	return func(r *Runtime) { r.middleware = append(r.middleware, mw...) }
}

// Status is a read-only projection of a runtime.
type Status struct {
	ID           string            `json:"id"`
	State        State             `json:"state"`
	Capabilities []string          `json:"capabilities"`
	Version      string            `json:"version"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	Received     int64             `json:"received"`
	Sent         int64             `json:"sent"`
	Completed    int64             `json:"completed"`
	Failed       int64             `json:"failed"`
	Pending      int               `json:"pending"`
	Usage        Usage             `json:"usage"`
	StartedAt    time.Time         `json:"startedAt"`
	LastActivity time.Time         `json:"lastActivity"`
	UptimeMs     int64             `json:"uptimeMs"`
}

// RegistrationData is what a runtime announces to the bus.
type RegistrationData struct {
	ID           string         `json:"id"`
	Capabilities []string       `json:"capabilities"`
	Version      string         `json:"version"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// Runtime hosts one agent on a bus: it owns the agent's handler tables,
// pending requests, heartbeat and lifecycle state.
type Runtime struct {
	id  string
	cfg config.RuntimeConfig
	bus hub.Bus

	logger     *slog.Logger
	observer   observability.Observer
	hooks      Hooks
	authorizer Authorizer
	prices     PriceTable

	state   State
	stateMu sync.Mutex

	messageHandlers map[messaging.MessageType]MessageHandler
	taskHandlers    map[string]taskEntry
	middleware      []Middleware
	handlersMu      sync.RWMutex

	pending *pendingTable
	usage   usageMeter
	inbox   *hub.Mailbox[*messaging.Envelope]

	received     atomic.Int64
	sent         atomic.Int64
	completed    atomic.Int64
	failed       atomic.Int64
	inflight     atomic.Int64
	lastActivity atomic.Int64

	startedAt   time.Time
	initialized atomic.Bool
	stopped     atomic.Bool

	cancel        context.CancelFunc
	heartbeatDone chan struct{}
}

// New creates a runtime for the agent described by cfg. Zero fields fall
// back to config.DefaultRuntimeConfig.
func New(bus hub.Bus, cfg config.RuntimeConfig, opts ...Option) *Runtime {
	c := config.DefaultRuntimeConfig(cfg.ID)
	c.Merge(&cfg)

	r := &Runtime{
		id:              c.ID,
		cfg:             c,
		bus:             bus,
		logger:          c.Logger,
		observer:        observability.NoOpObserver{},
		hooks:           BaseHooks{},
		authorizer:      AllowAll{},
		prices:          DefaultPriceTable(),
		state:           StateInitializing,
		messageHandlers: make(map[messaging.MessageType]MessageHandler),
		taskHandlers:    make(map[string]taskEntry),
		pending:         newPendingTable(),
		startedAt:       time.Now(),
	}
	r.lastActivity.Store(r.startedAt.UnixNano())

	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Runtime) ID() string {
	return r.id
}

func (r *Runtime) State() State {
	r.stateMu.Lock()
	defer r.stateMu.Unlock()
	return r.state
}

// Initialize registers the agent with the bus, installs the default
// handlers, starts the heartbeat and moves to IDLE.
func (r *Runtime) Initialize(ctx context.Context) error {
	if r.stopped.Load() {
		return ErrShutdown
	}
	if !r.initialized.CompareAndSwap(false, true) {
		return fmt.Errorf("runtime %s already initialized", r.id)
	}

	r.installDefaults()
	r.inbox = hub.NewMailbox[*messaging.Envelope]()

	data := r.RegistrationData()
	err := r.bus.RegisterAgent(r.id, hub.Registration{
		Capabilities: data.Capabilities,
		Version:      data.Version,
		Metadata:     data.Metadata,
		Handler:      r.deliver,
	})
	if err != nil {
		r.inbox.Close()
		r.initialized.Store(false)
		r.setState(ctx, StateError)
		return fmt.Errorf("failed to register agent %s: %w", r.id, err)
	}

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	r.cancel = cancel
	r.heartbeatDone = make(chan struct{})
	go r.heartbeatLoop(loopCtx)
	go r.dispatchLoop(loopCtx, r.inbox)

	if err := r.initHook(ctx); err != nil {
		r.stopLoops()
		r.bus.UnregisterAgent(r.id)
		r.initialized.Store(false)
		r.setState(ctx, StateError)
		return fmt.Errorf("initialize hook failed: %w", err)
	}

	r.setState(ctx, StateIdle)

	r.logger.DebugContext(
		ctx,
		"runtime initialized",
		slog.String("agent_id", r.id),
		slog.String("bus_name", r.bus.Name()),
	)
	return nil
}

func (r *Runtime) installDefaults() {
	defaults := map[messaging.MessageType]MessageHandler{
		messaging.TypeTaskRequest:     r.handleTaskRequest,
		messaging.TypeQuery:           r.handleQuery,
		messaging.TypeAgentRegister:   r.handlePeerChange,
		messaging.TypeAgentUnregister: r.handlePeerChange,
		messaging.TypeSystemAlert:     r.handleSystemAlert,
	}

	r.handlersMu.Lock()
	defer r.handlersMu.Unlock()

	for msgType, handler := range defaults {
		if _, exists := r.messageHandlers[msgType]; !exists {
			r.messageHandlers[msgType] = handler
		}
	}
}

// RegisterMessageHandler installs the handler for an envelope type,
// replacing any previous one, including the defaults.
func (r *Runtime) RegisterMessageHandler(msgType messaging.MessageType, handler MessageHandler) {
	r.handlersMu.Lock()
	defer r.handlersMu.Unlock()
	r.messageHandlers[msgType] = handler
}

// RegisterTaskHandler installs the handler for a task type, replacing any
// previous one. Senders must hold every listed permission.
func (r *Runtime) RegisterTaskHandler(taskType string, handler TaskHandler, permissions ...string) {
	r.handlersMu.Lock()
	defer r.handlersMu.Unlock()
	r.taskHandlers[taskType] = taskEntry{handler: handler, permissions: permissions}
}

// Use appends task middleware. User middleware runs inside the logging and
// state middleware.
func (r *Runtime) Use(mw Middleware) {
	r.handlersMu.Lock()
	defer r.handlersMu.Unlock()
	r.middleware = append(r.middleware, mw)
}

// deliver is the bus delivery handler and never blocks. Responses to pending
// requests resolve here, task requests and queries run on their own
// goroutine, and everything else is queued for dispatchLoop in arrival
// order.
func (r *Runtime) deliver(ctx context.Context, env *messaging.Envelope) {
	if r.resolvePending(env) {
		return
	}

	switch env.Type {
	case messaging.TypeTaskRequest, messaging.TypeQuery:
		go r.handleDelivered(ctx, env)
	default:
		if !r.inbox.Send(env) {
			r.logger.DebugContext(
				ctx,
				"message dropped after shutdown",
				slog.String("agent_id", r.id),
				slog.String("message_id", env.ID),
				slog.String("type", string(env.Type)),
			)
		}
	}
}

func (r *Runtime) dispatchLoop(ctx context.Context, inbox *hub.Mailbox[*messaging.Envelope]) {
	for {
		env, err := inbox.Receive(ctx)
		if err != nil {
			return
		}
		r.handleDelivered(ctx, env)
	}
}

func (r *Runtime) handleDelivered(ctx context.Context, env *messaging.Envelope) {
	defer r.recoverPanic(ctx, "message:"+string(env.Type))

	if err := r.HandleMessage(ctx, env); err != nil {
		r.logger.DebugContext(
			ctx,
			"message handling failed",
			slog.String("agent_id", r.id),
			slog.String("message_id", env.ID),
			slog.String("type", string(env.Type)),
			slog.String("error", err.Error()),
		)
	}
}

// HandleMessage dispatches one inbound envelope. Responses correlated with a
// pending request resolve it; everything else goes through the handler
// table. Unknown types are ignored, except TASK_REQUEST which is always
// answered.
func (r *Runtime) HandleMessage(ctx context.Context, env *messaging.Envelope) error {
	if err := r.ready(); err != nil {
		return err
	}

	if r.resolvePending(env) {
		return nil
	}

	r.received.Add(1)
	r.lastActivity.Store(time.Now().UnixNano())

	r.handlersMu.RLock()
	handler, exists := r.messageHandlers[env.Type]
	r.handlersMu.RUnlock()

	if !exists {
		if env.Type == messaging.TypeTaskRequest {
			return r.handleTaskRequest(ctx, env)
		}
		r.logger.DebugContext(
			ctx,
			"no handler for message type",
			slog.String("agent_id", r.id),
			slog.String("message_id", env.ID),
			slog.String("type", string(env.Type)),
		)
		return nil
	}

	if err := handler(ctx, env); err != nil {
		r.logger.WarnContext(
			ctx,
			"message handler failed",
			slog.String("agent_id", r.id),
			slog.String("message_id", env.ID),
			slog.String("type", string(env.Type)),
			slog.String("error", err.Error()),
		)
		return err
	}
	return nil
}

// resolvePending completes the pending request env answers, if any. A late
// response whose request already timed out falls through to the handlers.
func (r *Runtime) resolvePending(env *messaging.Envelope) bool {
	responseTo := env.Metadata.ResponseTo
	if responseTo == "" || r.ready() != nil {
		return false
	}
	p := r.pending.take(responseTo)
	if p == nil {
		return false
	}

	r.received.Add(1)
	r.lastActivity.Store(time.Now().UnixNano())
	r.resolve(p, env)
	return true
}

func (r *Runtime) resolve(p *pendingRequest, env *messaging.Envelope) {
	switch env.Type {
	case messaging.TypeTaskComplete:
		p.finish(outcome{result: env.Payload["result"]})
	case messaging.TypeTaskFail:
		message, _ := env.Payload["error"].(string)
		code, _ := env.Payload["code"].(string)
		if code == CodeNotSupported {
			p.finish(outcome{err: &TaskNotSupportedError{AgentID: env.Sender, TaskType: p.taskType}})
			return
		}
		p.finish(outcome{err: &TaskExecutionError{
			AgentID:  env.Sender,
			TaskType: p.taskType,
			Code:     code,
			Message:  message,
		}})
	default:
		p.finish(outcome{result: env.Payload})
	}
}

func (r *Runtime) handleTaskRequest(ctx context.Context, env *messaging.Envelope) error {
	r.inflight.Add(1)
	defer r.settle(ctx)

	task := newTask(env)

	r.handlersMu.RLock()
	entry, exists := r.taskHandlers[task.Type]
	middleware := slices.Clone(r.middleware)
	r.handlersMu.RUnlock()

	if !exists {
		return r.rejectTask(ctx, task, CodeNotSupported, fmt.Sprintf("task type not supported: %s", task.Type))
	}

	if len(entry.permissions) > 0 {
		if err := r.authorizer.Authorize(ctx, task.Sender, task.Type, entry.permissions); err != nil {
			return r.rejectTask(ctx, task, CodeForbidden, err.Error())
		}
	}

	r.callHook(ctx, "OnTaskStart", func() { r.hooks.OnTaskStart(ctx, task) })
	r.emit(ctx, EventTaskStart, observability.LevelVerbose, map[string]any{
		"task_type":  task.Type,
		"message_id": env.ID,
		"sender":     task.Sender,
	})

	chain := append([]Middleware{r.loggingMiddleware, r.stateMiddleware}, middleware...)
	result, err := Chain(entry.handler, chain...)(ctx, task)
	if err != nil {
		r.failed.Add(1)
		r.callHook(ctx, "OnTaskFailure", func() { r.hooks.OnTaskFailure(ctx, task, err) })
		r.emit(ctx, EventTaskFail, observability.LevelWarning, map[string]any{
			"task_type":  task.Type,
			"message_id": env.ID,
			"error":      err.Error(),
		})
		return r.SendResponse(ctx, env, messaging.TypeTaskFail, map[string]any{
			"error": err.Error(),
			"code":  CodeExecutionFailed,
		})
	}

	r.completed.Add(1)
	r.callHook(ctx, "OnTaskSuccess", func() { r.hooks.OnTaskSuccess(ctx, task, result) })
	r.emit(ctx, EventTaskComplete, observability.LevelInfo, map[string]any{
		"task_type":  task.Type,
		"message_id": env.ID,
	})
	return r.SendResponse(ctx, env, messaging.TypeTaskComplete, map[string]any{"result": result})
}

func (r *Runtime) rejectTask(ctx context.Context, task *Task, code, message string) error {
	r.logger.WarnContext(
		ctx,
		"task rejected",
		slog.String("agent_id", r.id),
		slog.String("task_type", task.Type),
		slog.String("message_id", task.Envelope.ID),
		slog.String("code", code),
	)
	r.emit(ctx, EventTaskFail, observability.LevelWarning, map[string]any{
		"task_type":  task.Type,
		"message_id": task.Envelope.ID,
		"code":       code,
		"error":      message,
	})
	return r.SendResponse(ctx, task.Envelope, messaging.TypeTaskFail, map[string]any{
		"error": message,
		"code":  code,
	})
}

// settle returns the runtime to IDLE once no task is in flight. The
// decrement and the transition share stateMu with the BUSY transition of a
// starting task.
func (r *Runtime) settle(ctx context.Context) {
	r.stateMu.Lock()
	if r.inflight.Add(-1) != 0 {
		r.stateMu.Unlock()
		return
	}
	prev, changed := r.transition(ctx, StateIdle)
	r.stateMu.Unlock()

	if changed {
		r.stateChanged(ctx, prev, StateIdle)
	}
}

func (r *Runtime) handleQuery(ctx context.Context, env *messaging.Envelope) error {
	payload, err := messaging.ToPayload(r.Status())
	if err != nil {
		return fmt.Errorf("failed to encode status: %w", err)
	}
	return r.SendResponse(ctx, env, messaging.TypeResponse, payload)
}

func (r *Runtime) handlePeerChange(ctx context.Context, env *messaging.Envelope) error {
	agentID, _ := env.Payload["agentId"].(string)
	r.logger.DebugContext(
		ctx,
		"peer changed",
		slog.String("agent_id", r.id),
		slog.String("type", string(env.Type)),
		slog.String("peer_id", agentID),
	)
	return nil
}

func (r *Runtime) handleSystemAlert(ctx context.Context, env *messaging.Envelope) error {
	alertType, _ := env.Payload["alertType"].(string)
	r.logger.InfoContext(
		ctx,
		"system alert",
		slog.String("agent_id", r.id),
		slog.String("alert_type", alertType),
	)
	r.callHook(ctx, "OnSystemAlert", func() { r.hooks.OnSystemAlert(ctx, env) })
	return nil
}

// Request sends a TASK_REQUEST for taskType and waits for the correlated
// TASK_COMPLETE, TASK_FAIL or RESPONSE. It fails with *TimeoutError after
// RequestTimeout; responses arriving later are ignored.
func (r *Runtime) Request(ctx context.Context, recipient, taskType string, payload map[string]any) (any, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}

	body := make(map[string]any, len(payload)+1)
	maps.Copy(body, payload)
	body["taskType"] = taskType

	env, err := messaging.NewTaskRequest(r.id, recipient, body).Build()
	if err != nil {
		return nil, err
	}

	timeout := r.cfg.RequestTimeout.Std()
	p := &pendingRequest{
		id:        env.ID,
		recipient: recipient,
		taskType:  taskType,
		createdAt: time.Now(),
		done:      make(chan outcome, 1),
	}
	r.pending.add(p, timeout, func(p *pendingRequest) {
		r.logger.WarnContext(
			ctx,
			"request timed out",
			slog.String("agent_id", r.id),
			slog.String("message_id", p.id),
			slog.String("recipient", p.recipient),
			slog.String("task_type", p.taskType),
		)
		r.emit(ctx, EventRequestTimeout, observability.LevelWarning, map[string]any{
			"message_id": p.id,
			"recipient":  p.recipient,
			"task_type":  p.taskType,
			"timeout_ms": timeout.Milliseconds(),
		})
		p.finish(outcome{err: &TimeoutError{
			RequestID: p.id,
			Recipient: p.recipient,
			TaskType:  p.taskType,
			Timeout:   timeout,
		}})
	})

	if _, err := r.bus.SendMessage(ctx, env); err != nil {
		r.pending.take(env.ID)
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	r.sent.Add(1)

	select {
	case o := <-p.done:
		return o.result, o.err
	case <-ctx.Done():
		if r.pending.take(env.ID) == nil {
			o := <-p.done
			return o.result, o.err
		}
		return nil, fmt.Errorf("request cancelled: %w", ctx.Err())
	}
}

// SendResponse replies to original, correlating the reply with it.
func (r *Runtime) SendResponse(ctx context.Context, original *messaging.Envelope, msgType messaging.MessageType, payload map[string]any) error {
	env, err := original.CreateResponse(r.id, payload, msgType)
	if err != nil {
		return err
	}

	if _, err := r.bus.SendMessage(ctx, env); err != nil {
		r.logger.WarnContext(
			ctx,
			"failed to send response",
			slog.String("agent_id", r.id),
			slog.String("message_id", env.ID),
			slog.String("response_to", original.ID),
			slog.String("recipient", original.Sender),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to send response: %w", err)
	}
	r.sent.Add(1)
	return nil
}

// Send delivers a one-way envelope to recipient.
func (r *Runtime) Send(ctx context.Context, recipient string, msgType messaging.MessageType, payload map[string]any) error {
	if err := r.ready(); err != nil {
		return err
	}

	env, err := messaging.New(msgType, r.id, recipient, payload)
	if err != nil {
		return err
	}
	if _, err := r.bus.SendMessage(ctx, env); err != nil {
		return err
	}
	r.sent.Add(1)
	return nil
}

// Broadcast sends an envelope to every other active agent and returns the
// recipient count.
func (r *Runtime) Broadcast(ctx context.Context, msgType messaging.MessageType, payload map[string]any) (int, error) {
	if err := r.ready(); err != nil {
		return 0, err
	}

	count, err := r.bus.Broadcast(ctx, r.id, msgType, payload)
	if err != nil {
		return 0, err
	}
	r.sent.Add(1)
	return count, nil
}

func (r *Runtime) heartbeatLoop(ctx context.Context) {
	defer close(r.heartbeatDone)

	ticker := time.NewTicker(r.cfg.HeartbeatInterval.Std())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !r.bus.Heartbeat(r.id) {
				r.logger.WarnContext(
					ctx,
					"heartbeat rejected",
					slog.String("agent_id", r.id),
					slog.String("bus_name", r.bus.Name()),
				)
			}
		}
	}
}

// Status returns a snapshot of identity, state and counters.
func (r *Runtime) Status() Status {
	return Status{
		ID:           r.id,
		State:        r.State(),
		Capabilities: slices.Clone(r.cfg.Capabilities),
		Version:      r.cfg.Version,
		Metadata:     maps.Clone(r.cfg.Metadata),
		Received:     r.received.Load(),
		Sent:         r.sent.Load(),
		Completed:    r.completed.Load(),
		Failed:       r.failed.Load(),
		Pending:      r.pending.len(),
		Usage:        r.usage.snapshot(),
		StartedAt:    r.startedAt,
		LastActivity: time.Unix(0, r.lastActivity.Load()),
		UptimeMs:     time.Since(r.startedAt).Milliseconds(),
	}
}

func (r *Runtime) RegistrationData() RegistrationData {
	metadata := make(map[string]any, len(r.cfg.Metadata))
	for k, v := range r.cfg.Metadata {
		metadata[k] = v
	}
	return RegistrationData{
		ID:           r.id,
		Capabilities: slices.Clone(r.cfg.Capabilities),
		Version:      r.cfg.Version,
		Metadata:     metadata,
	}
}

// Shutdown stops the heartbeat, fails pending requests with ErrShutdown,
// runs the shutdown hook and leaves the bus. Later calls are no-ops.
func (r *Runtime) Shutdown(ctx context.Context) error {
	if !r.stopped.CompareAndSwap(false, true) {
		return nil
	}

	r.stopLoops()

	for _, p := range r.pending.drain() {
		p.finish(outcome{err: ErrShutdown})
	}

	var errs []error
	if err := r.hooks.OnShutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown hook failed: %w", err))
	}

	r.setState(ctx, StateShutdown)

	if r.initialized.Load() {
		r.bus.UnregisterAgent(r.id)
	}

	r.logger.DebugContext(ctx, "runtime shut down", slog.String("agent_id", r.id))
	return errors.Join(errs...)
}

// stopLoops cancels the heartbeat and dispatch loops and waits for the
// heartbeat to exit. A dispatch handler still running finishes on its own.
func (r *Runtime) stopLoops() {
	if r.inbox != nil {
		r.inbox.Close()
	}
	if r.cancel != nil {
		r.cancel()
		<-r.heartbeatDone
		r.cancel = nil
	}
}

func (r *Runtime) ready() error {
	if r.stopped.Load() {
		return ErrShutdown
	}
	if !r.initialized.Load() {
		return ErrNotInitialized
	}
	return nil
}

// setState applies a transition and reports whether it took effect. Nothing
// leaves SHUTDOWN.
func (r *Runtime) setState(ctx context.Context, next State) bool {
	r.stateMu.Lock()
	prev, changed := r.transition(ctx, next)
	r.stateMu.Unlock()

	if changed {
		r.stateChanged(ctx, prev, next)
	}
	return changed
}

// transition applies next with stateMu held.
func (r *Runtime) transition(ctx context.Context, next State) (State, bool) {
	prev := r.state
	if prev == next || prev.Terminal() {
		return prev, false
	}
	r.state = next
	r.emit(ctx, EventStateChanged, observability.LevelVerbose, map[string]any{
		"from": string(prev),
		"to":   string(next),
	})
	return prev, true
}

func (r *Runtime) stateChanged(ctx context.Context, prev, next State) {
	r.logger.DebugContext(
		ctx,
		"state changed",
		slog.String("agent_id", r.id),
		slog.String("from", string(prev)),
		slog.String("to", string(next)),
	)

	if r.cfg.AnnounceState {
		_, err := r.bus.Broadcast(ctx, r.id, messaging.TypeAgentStateChanged, map[string]any{
			"agentId": r.id,
			"from":    string(prev),
			"to":      string(next),
		})
		if err != nil {
			r.logger.DebugContext(
				ctx,
				"state announcement failed",
				slog.String("agent_id", r.id),
				slog.String("error", err.Error()),
			)
		}
	}
}

func (r *Runtime) emit(ctx context.Context, eventType observability.EventType, level observability.Level, data map[string]any) {
	data["agent_id"] = r.id
	r.observer.OnEvent(ctx, observability.NewEvent(eventType, level, "runtime."+r.id, data))
}

func (r *Runtime) initHook(ctx context.Context) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = &panicError{value: p}
		}
	}()
	return r.hooks.OnInitialize(ctx)
}

// callHook runs a collaborator hook, containing any panic it raises.
func (r *Runtime) callHook(ctx context.Context, name string, fn func()) {
	defer r.recoverPanic(ctx, "hook:"+name)
	fn()
}

func (r *Runtime) recoverPanic(ctx context.Context, where string) {
	p := recover()
	if p == nil {
		return
	}
	err := &panicError{value: p}
	r.logger.ErrorContext(
		ctx,
		"panic recovered",
		slog.String("agent_id", r.id),
		slog.String("where", where),
		slog.String("error", err.Error()),
	)
	r.emit(ctx, EventPanicRecovered, observability.LevelError, map[string]any{
		"where": where,
		"error": err.Error(),
	})
}
