// Package messaging defines the envelope exchanged between agents on the bus.
//
// An Envelope is immutable by convention: routing fields are fixed at
// construction, and only MarkDelivered, MarkFailed and IncrementRetry change
// its delivery state. Construction validates the closed message type set, the
// name[.instance] identifier grammar and the priority level:
//
//	env, err := messaging.NewTaskRequest("Scheduler.main", "Worker.1", payload).
//	    Priority(messaging.PriorityHigh).
//	    TTL(10 * time.Second).
//	    Build()
//
// Replies are derived from the request so correlation ids carry over:
//
//	reply, err := env.CreateResponse("Worker.1", result, messaging.TypeTaskComplete)
//	// reply.Metadata.ResponseTo == env.ID
//	// reply.Metadata.ConversationID == env.ID (or env's own conversation id)
//
// # Identifiers
//
// Envelope ids are UUIDv7 strings, unique and time-sortable. Agent ids follow
// the grammar name[.instance], for example "Worker" or "Worker.1".
//
// # Expiry and retries
//
// Each envelope carries a TTL (default 30s) and a retry budget (default 3).
// IsExpired compares the age against the TTL; CanRetry requires both remaining
// budget and an unexpired envelope.
package messaging
