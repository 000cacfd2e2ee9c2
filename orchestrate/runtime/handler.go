package runtime

import (
	"context"
	"log/slog"
	"time"

	"github.com/tailored-agentic-units/agentbus/orchestrate/messaging"
)

// Task is an inbound TASK_REQUEST as seen by a task handler.
type Task struct {
	Type     string
	Prompt   string
	Sender   string
	Payload  map[string]any
	Envelope *messaging.Envelope
}

func newTask(env *messaging.Envelope) *Task {
	taskType, _ := env.Payload["taskType"].(string)
	prompt, _ := env.Payload["prompt"].(string)
	return &Task{
		Type:     taskType,
		Prompt:   prompt,
		Sender:   env.Sender,
		Payload:  env.Payload,
		Envelope: env,
	}
}

// TaskHandler executes a task and returns its result. The result is sent back
// in the TASK_COMPLETE payload under "result".
type TaskHandler func(ctx context.Context, task *Task) (any, error)

// MessageHandler handles one envelope type.
type MessageHandler func(ctx context.Context, env *messaging.Envelope) error

// Middleware wraps a task handler. Middleware registered first runs
// outermost.
type Middleware func(next TaskHandler) TaskHandler

// Chain composes middleware around handler.
func Chain(handler TaskHandler, middleware ...Middleware) TaskHandler {
	for i := len(middleware) - 1; i >= 0; i-- {
		handler = middleware[i](handler)
	}
	return handler
}

type taskEntry struct {
	handler     TaskHandler
	permissions []string
}

func (r *Runtime) loggingMiddleware(next TaskHandler) TaskHandler {
	return func(ctx context.Context, task *Task) (any, error) {
		start := time.Now()
		r.logger.DebugContext(
			ctx,
			"task started",
			slog.String("agent_id", r.id),
			slog.String("task_type", task.Type),
			slog.String("message_id", task.Envelope.ID),
			slog.String("sender", task.Sender),
		)

		result, err := next(ctx, task)
		if err != nil {
			r.logger.WarnContext(
				ctx,
				"task failed",
				slog.String("agent_id", r.id),
				slog.String("task_type", task.Type),
				slog.String("message_id", task.Envelope.ID),
				slog.Duration("duration", time.Since(start)),
				slog.String("error", err.Error()),
			)
			return nil, err
		}

		r.logger.DebugContext(
			ctx,
			"task completed",
			slog.String("agent_id", r.id),
			slog.String("task_type", task.Type),
			slog.String("message_id", task.Envelope.ID),
			slog.Duration("duration", time.Since(start)),
		)
		return result, nil
	}
}

// stateMiddleware marks the runtime BUSY around the handler and forces
// ERROR when it fails or panics. The panic becomes the returned error.
func (r *Runtime) stateMiddleware(next TaskHandler) TaskHandler {
	return func(ctx context.Context, task *Task) (result any, err error) {
		r.setState(ctx, StateBusy)
		defer func() {
			if p := recover(); p != nil {
				result = nil
				err = &panicError{value: p}
			}
			if err != nil {
				r.setState(ctx, StateError)
			}
		}()
		return next(ctx, task)
	}
}
