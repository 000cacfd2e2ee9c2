// Package hub implements the message bus that routes envelopes between
// agents registered in the same process.
//
// A bus is an owned value; several may coexist:
//
//	b := hub.New(ctx, config.DefaultBusConfig(), hub.WithObserver(obs))
//	defer b.Shutdown(5 * time.Second)
//
//	err := b.RegisterAgent("Worker.1", hub.Registration{
//	    Capabilities: []string{"sum"},
//	    Handler: func(ctx context.Context, env *messaging.Envelope) {
//	        // runs on the agent's mailbox pump, one envelope at a time
//	    },
//	})
//
// # Routing
//
// SendMessage checks the sender is registered (or a configured system
// sender), rejects expired envelopes, then enqueues the envelope in the
// recipient's mailbox. An envelope without a recipient is a broadcast and is
// enqueued for every active agent except the sender; each recipient gets its
// own copy. Every routing decision is appended to a bounded history.
//
// Mailboxes are unbounded, so sending never blocks. Each agent has one pump
// goroutine that drains its mailbox in FIFO order and invokes the agent's
// DeliveryHandler.
//
// # Liveness
//
// Agents call Heartbeat periodically. The health monitor runs CheckHealth on
// every HealthCheckInterval tick; an active agent whose heartbeat is older
// than twice HeartbeatInterval becomes stale, stops receiving envelopes and
// is announced with a SYSTEM_ALERT whose alertType is "agent-stale". The
// next heartbeat makes it active again.
//
// # Lifecycle
//
// Registration and removal are announced to the other agents with
// AGENT_REGISTER and AGENT_UNREGISTER from the "system" sender. Shutdown
// broadcasts a "system-shutdown" alert, closes every mailbox and leaves the
// bus inert: later mutating calls return ErrBusClosed.
package hub
