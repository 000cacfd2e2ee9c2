package hub_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tailored-agentic-units/agentbus/observability"
	"github.com/tailored-agentic-units/agentbus/orchestrate/config"
	"github.com/tailored-agentic-units/agentbus/orchestrate/hub"
	"github.com/tailored-agentic-units/agentbus/orchestrate/messaging"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Now()}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type inbox struct {
	mu        sync.Mutex
	envelopes []*messaging.Envelope
}

func (i *inbox) handle(ctx context.Context, env *messaging.Envelope) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.envelopes = append(i.envelopes, env)
}

func (i *inbox) all() []*messaging.Envelope {
	i.mu.Lock()
	defer i.mu.Unlock()
	return append([]*messaging.Envelope(nil), i.envelopes...)
}

func (i *inbox) ofType(msgType messaging.MessageType) []*messaging.Envelope {
	var result []*messaging.Envelope
	for _, env := range i.all() {
		if env.Type == msgType {
			result = append(result, env)
		}
	}
	return result
}

func newTestBus(t *testing.T, clock *fakeClock, opts ...hub.Option) hub.Bus {
	t.Helper()

	cfg := config.BusConfig{
		Name:   "test",
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	if clock != nil {
		cfg.Clock = clock.Now
	}

	b := hub.New(context.Background(), cfg, opts...)
	t.Cleanup(func() { _ = b.Shutdown(time.Second) })
	return b
}

func register(t *testing.T, b hub.Bus, id string) *inbox {
	t.Helper()
	in := &inbox{}
	require.NoError(t, b.RegisterAgent(id, hub.Registration{
		Capabilities: []string{"test"},
		Handler:      in.handle,
	}))
	return in
}

func envelope(t *testing.T, clock *fakeClock, msgType messaging.MessageType, sender, recipient string) *messaging.Envelope {
	t.Helper()
	builder := messaging.NewEnvelope(msgType, sender, recipient, map[string]any{"n": 1})
	if clock != nil {
		builder.CreatedAt(clock.Now())
	}
	env, err := builder.Build()
	require.NoError(t, err)
	return env
}

func TestRegisterAgent_AnnouncesToOtherAgents(t *testing.T) {
	b := newTestBus(t, nil)

	first := register(t, b, "Scheduler.main")
	second := register(t, b, "Worker.1")

	assert.Eventually(t, func() bool {
		return len(first.ofType(messaging.TypeAgentRegister)) == 1
	}, time.Second, 5*time.Millisecond)

	announcement := first.ofType(messaging.TypeAgentRegister)[0]
	assert.Equal(t, "system", announcement.Sender)
	assert.Equal(t, "Worker.1", announcement.Payload["agentId"])
	assert.Equal(t, []string{"test"}, announcement.Payload["capabilities"])

	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, second.ofType(messaging.TypeAgentRegister))
}

func TestRegisterAgent_Idempotent(t *testing.T) {
	b := newTestBus(t, nil)

	observer := register(t, b, "Observer.1")
	require.NoError(t, b.RegisterAgent("Worker.1", hub.Registration{
		Version:  "1.0.0",
		Metadata: map[string]any{"region": "eu", "tier": "gold"},
	}))
	require.NoError(t, b.RegisterAgent("Worker.1", hub.Registration{
		Version:  "1.1.0",
		Metadata: map[string]any{"tier": "silver"},
	}))

	record, ok := b.Agent("Worker.1")
	require.True(t, ok)
	assert.Equal(t, "1.1.0", record.Version)
	assert.Equal(t, map[string]any{"region": "eu", "tier": "silver"}, record.Metadata)
	assert.Equal(t, hub.AgentActive, record.Status)
	assert.Len(t, b.Agents(), 2)

	time.Sleep(20 * time.Millisecond)
	assert.Len(t, observer.ofType(messaging.TypeAgentRegister), 1)
}

func TestRegisterAgent_InvalidID(t *testing.T) {
	b := newTestBus(t, nil)

	err := b.RegisterAgent("1worker", hub.Registration{})

	var validationErr *messaging.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "agentId", validationErr.Field)
	assert.Empty(t, b.Agents())
}

func TestSendMessage_UnregisteredSender(t *testing.T) {
	b := newTestBus(t, nil)
	worker := register(t, b, "Worker.1")

	env := envelope(t, nil, messaging.TypeTaskRequest, "Ghost.1", "Worker.1")
	count, err := b.SendMessage(context.Background(), env)

	var notRegistered *hub.NotRegisteredError
	require.ErrorAs(t, err, &notRegistered)
	assert.Equal(t, "Ghost.1", notRegistered.AgentID)
	assert.Zero(t, count)
	assert.Equal(t, messaging.StatusPending, env.Status)
	assert.Zero(t, b.Status().Metrics.Failed)

	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, worker.all())
}

func TestSendMessage_UnknownRecipient(t *testing.T) {
	b := newTestBus(t, nil)
	register(t, b, "Scheduler.main")

	env := envelope(t, nil, messaging.TypeTaskRequest, "Scheduler.main", "Worker.9")
	_, err := b.SendMessage(context.Background(), env)

	var routingErr *hub.RoutingError
	require.ErrorAs(t, err, &routingErr)
	assert.Equal(t, "Worker.9", routingErr.Recipient)
	assert.Equal(t, messaging.StatusFailed, env.Status)
	assert.EqualValues(t, 1, b.Status().Metrics.Failed)
}

func TestSendMessage_DirectPreservesOrder(t *testing.T) {
	b := newTestBus(t, nil)
	register(t, b, "Scheduler.main")
	worker := register(t, b, "Worker.1")

	const total = 50
	for i := range total {
		env, err := messaging.NewTaskRequest("Scheduler.main", "Worker.1", map[string]any{"seq": i}).Build()
		require.NoError(t, err)

		count, err := b.SendMessage(context.Background(), env)
		require.NoError(t, err)
		assert.Equal(t, 1, count)
		assert.Equal(t, messaging.StatusDelivered, env.Status)
	}

	assert.Eventually(t, func() bool {
		return len(worker.ofType(messaging.TypeTaskRequest)) == total
	}, time.Second, 5*time.Millisecond)

	for i, env := range worker.ofType(messaging.TypeTaskRequest) {
		assert.Equal(t, i, env.Payload["seq"])
	}

	metrics := b.Status().Metrics
	assert.EqualValues(t, total, metrics.Sent)
	assert.GreaterOrEqual(t, metrics.Delivered, int64(total))
}

func TestBroadcast_ExcludesSender(t *testing.T) {
	b := newTestBus(t, nil)
	scheduler := register(t, b, "Scheduler.main")
	workerOne := register(t, b, "Worker.1")
	workerTwo := register(t, b, "Worker.2")

	count, err := b.Broadcast(context.Background(), "Scheduler.main", messaging.TypeBroadcast, map[string]any{"note": "hello"})
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	assert.Eventually(t, func() bool {
		return len(workerOne.ofType(messaging.TypeBroadcast)) == 1 &&
			len(workerTwo.ofType(messaging.TypeBroadcast)) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Empty(t, scheduler.ofType(messaging.TypeBroadcast))

	workerOne.ofType(messaging.TypeBroadcast)[0].Payload["note"] = "changed"
	assert.Equal(t, "hello", workerTwo.ofType(messaging.TypeBroadcast)[0].Payload["note"])
}

func TestBroadcast_NoRecipients(t *testing.T) {
	b := newTestBus(t, nil)
	register(t, b, "Solo.1")

	count, err := b.Broadcast(context.Background(), "Solo.1", messaging.TypeBroadcast, nil)
	require.NoError(t, err)
	assert.Zero(t, count)

	history := b.History(1)
	require.Len(t, history, 1)
	assert.Equal(t, messaging.StatusDelivered, history[0].Status)
	assert.Zero(t, history[0].Recipients)
}

func TestSendMessage_SystemSender(t *testing.T) {
	b := newTestBus(t, nil)
	worker := register(t, b, "Worker.1")

	env := envelope(t, nil, messaging.TypeSystemAlert, "system", "Worker.1")
	count, err := b.SendMessage(context.Background(), env)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	assert.Eventually(t, func() bool {
		return len(worker.ofType(messaging.TypeSystemAlert)) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestSendMessage_Expired(t *testing.T) {
	clock := newFakeClock()
	b := newTestBus(t, clock)
	register(t, b, "Scheduler.main")
	worker := register(t, b, "Worker.1")

	env, err := messaging.NewTaskRequest("Scheduler.main", "Worker.1", nil).
		CreatedAt(clock.Now()).
		TTL(time.Second).
		Build()
	require.NoError(t, err)

	clock.Advance(2 * time.Second)

	_, err = b.SendMessage(context.Background(), env)
	require.ErrorIs(t, err, hub.ErrEnvelopeExpired)
	assert.Equal(t, messaging.StatusFailed, env.Status)
	assert.Equal(t, "expired", env.FailureReason)
	assert.EqualValues(t, 1, b.Status().Metrics.Failed)

	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, worker.ofType(messaging.TypeTaskRequest))
}

func TestSendMessage_RejectsInvalidOrFinalEnvelopes(t *testing.T) {
	b := newTestBus(t, nil)
	register(t, b, "Scheduler.main")
	worker := register(t, b, "Worker.1")

	delivered := envelope(t, nil, messaging.TypeTaskRequest, "Scheduler.main", "Worker.1")
	_, err := b.SendMessage(context.Background(), delivered)
	require.NoError(t, err)

	before := b.Status()

	badType := envelope(t, nil, messaging.TypeTaskRequest, "Scheduler.main", "Worker.1")
	badType.Type = "GOSSIP"

	badSender := envelope(t, nil, messaging.TypeTaskRequest, "Scheduler.main", "Worker.1")
	badSender.Sender = "9lives"

	tests := []struct {
		name  string
		env   *messaging.Envelope
		check func(t *testing.T, err error)
	}{
		{
			name: "unknown type",
			env:  badType,
			check: func(t *testing.T, err error) {
				var validation *messaging.ValidationError
				require.ErrorAs(t, err, &validation)
				assert.Equal(t, "type", validation.Field)
			},
		},
		{
			name: "bad sender",
			env:  badSender,
			check: func(t *testing.T, err error) {
				var validation *messaging.ValidationError
				require.ErrorAs(t, err, &validation)
				assert.Equal(t, "sender", validation.Field)
			},
		},
		{
			name: "already delivered",
			env:  delivered,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, messaging.ErrAlreadyFinal)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			count, err := b.SendMessage(context.Background(), tt.env)
			tt.check(t, err)
			assert.Zero(t, count)
		})
	}

	after := b.Status()
	assert.Equal(t, before.Metrics.Sent, after.Metrics.Sent)
	assert.Equal(t, before.Metrics.Failed, after.Metrics.Failed)
	assert.Equal(t, before.HistorySize, after.HistorySize)
	assert.Equal(t, messaging.StatusPending, badType.Status)

	assert.Eventually(t, func() bool {
		return len(worker.ofType(messaging.TypeTaskRequest)) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestHistory_Bounded(t *testing.T) {
	b := hub.New(context.Background(), config.BusConfig{
		HistorySize: 3,
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	t.Cleanup(func() { _ = b.Shutdown(time.Second) })

	register(t, b, "Scheduler.main")
	register(t, b, "Worker.1")

	var ids []string
	for i := range 5 {
		env := envelope(t, nil, messaging.TypeQuery, "Scheduler.main", "Worker.1")
		env.Payload["seq"] = i
		_, err := b.SendMessage(context.Background(), env)
		require.NoError(t, err)
		ids = append(ids, env.ID)
	}

	history := b.History(0)
	require.Len(t, history, 3)
	for i, record := range history {
		assert.Equal(t, ids[2+i], record.ID)
	}

	recent := b.History(1)
	require.Len(t, recent, 1)
	assert.Equal(t, ids[4], recent[0].ID)
}

func TestCheckHealth_StaleAgent(t *testing.T) {
	clock := newFakeClock()
	recorder := observability.NewRecorder()
	b := newTestBus(t, clock, hub.WithObserver(recorder))

	scheduler := register(t, b, "Scheduler.main")
	register(t, b, "Worker.1")

	clock.Advance(61 * time.Second)
	require.True(t, b.Heartbeat("Scheduler.main"))

	assert.Equal(t, []string{"Worker.1"}, b.CheckHealth(context.Background()))
	assert.Empty(t, b.CheckHealth(context.Background()))

	assert.Eventually(t, func() bool {
		return len(scheduler.ofType(messaging.TypeSystemAlert)) == 1
	}, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	alerts := scheduler.ofType(messaging.TypeSystemAlert)
	require.Len(t, alerts, 1)
	assert.Equal(t, hub.AlertAgentStale, alerts[0].Payload["alertType"])
	assert.Equal(t, "Worker.1", alerts[0].Payload["agentId"])
	assert.EqualValues(t, 61000, alerts[0].Payload["ageMs"])
	assert.Len(t, recorder.Events(hub.EventAgentStale), 1)

	record, _ := b.Agent("Worker.1")
	assert.Equal(t, hub.AgentStale, record.Status)
	assert.Equal(t, 1, b.Status().StaleAgents)

	_, err := b.SendMessage(context.Background(), envelope(t, clock, messaging.TypeTaskRequest, "Scheduler.main", "Worker.1"))
	var routingErr *hub.RoutingError
	require.ErrorAs(t, err, &routingErr)

	count, err := b.Broadcast(context.Background(), "Scheduler.main", messaging.TypeBroadcast, nil)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestHeartbeat_ReactivatesStaleAgent(t *testing.T) {
	clock := newFakeClock()
	recorder := observability.NewRecorder()
	b := newTestBus(t, clock, hub.WithObserver(recorder))

	register(t, b, "Scheduler.main")
	worker := register(t, b, "Worker.1")

	clock.Advance(61 * time.Second)
	b.Heartbeat("Scheduler.main")
	b.CheckHealth(context.Background())

	require.True(t, b.Heartbeat("Worker.1"))
	assert.False(t, b.Heartbeat("Ghost.1"))

	record, _ := b.Agent("Worker.1")
	assert.Equal(t, hub.AgentActive, record.Status)
	assert.Len(t, recorder.Events(hub.EventAgentReactivated), 1)

	count, err := b.SendMessage(context.Background(), envelope(t, clock, messaging.TypeTaskRequest, "Scheduler.main", "Worker.1"))
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	assert.Eventually(t, func() bool {
		return len(worker.ofType(messaging.TypeTaskRequest)) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestUnregisterAgent(t *testing.T) {
	b := newTestBus(t, nil)
	scheduler := register(t, b, "Scheduler.main")
	register(t, b, "Worker.1")

	assert.True(t, b.UnregisterAgent("Worker.1"))
	assert.False(t, b.UnregisterAgent("Worker.1"))

	_, ok := b.Agent("Worker.1")
	assert.False(t, ok)

	assert.Eventually(t, func() bool {
		return len(scheduler.ofType(messaging.TypeAgentUnregister)) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, "Worker.1", scheduler.ofType(messaging.TypeAgentUnregister)[0].Payload["agentId"])

	assert.False(t, b.UnregisterAgent("Ghost.1"))
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, scheduler.ofType(messaging.TypeAgentUnregister), 1)
}

func TestShutdown(t *testing.T) {
	recorder := observability.NewRecorder()
	b := hub.New(context.Background(), config.BusConfig{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}, hub.WithObserver(recorder))

	workers := make([]*inbox, 3)
	for i := range workers {
		workers[i] = register(t, b, fmt.Sprintf("Worker.%d", i+1))
	}

	require.NoError(t, b.Shutdown(time.Second))

	for _, w := range workers {
		alerts := w.ofType(messaging.TypeSystemAlert)
		require.Len(t, alerts, 1)
		assert.Equal(t, hub.AlertSystemShutdown, alerts[0].Payload["alertType"])
	}

	status := b.Status()
	assert.False(t, status.Running)
	assert.Zero(t, status.Agents)
	assert.Zero(t, status.HistorySize)
	assert.Len(t, recorder.Events(hub.EventShutdown), 1)

	assert.ErrorIs(t, b.RegisterAgent("Worker.4", hub.Registration{}), hub.ErrBusClosed)
	_, err := b.Broadcast(context.Background(), "system", messaging.TypeBroadcast, nil)
	assert.True(t, errors.Is(err, hub.ErrBusClosed))
	assert.False(t, b.Heartbeat("Worker.1"))
	assert.Nil(t, b.CheckHealth(context.Background()))
	assert.ErrorIs(t, b.Shutdown(time.Second), hub.ErrBusClosed)
}

func TestMultipleBusesAreIndependent(t *testing.T) {
	first := newTestBus(t, nil)
	second := newTestBus(t, nil)

	register(t, first, "Worker.1")

	assert.Len(t, first.Agents(), 1)
	assert.Empty(t, second.Agents())
}
