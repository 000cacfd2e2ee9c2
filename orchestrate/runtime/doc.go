// Package runtime hosts an agent on a hub.Bus.
//
// A Runtime registers its agent with the bus, dispatches inbound envelopes
// through a per-type handler table and runs task requests through a
// middleware chain:
//
//	rt := runtime.New(bus, config.RuntimeConfig{
//	    ID:           "Worker.1",
//	    Capabilities: []string{"execute"},
//	})
//	rt.RegisterTaskHandler("sum", func(ctx context.Context, task *runtime.Task) (any, error) {
//	    return task.Payload["a"].(int) + task.Payload["b"].(int), nil
//	})
//	if err := rt.Initialize(ctx); err != nil {
//	    return err
//	}
//	defer rt.Shutdown(ctx)
//
// Another runtime on the same bus calls it with Request, which waits for the
// correlated TASK_COMPLETE or TASK_FAIL:
//
//	result, err := scheduler.Request(ctx, "Worker.1", "sum", map[string]any{"a": 2, "b": 3})
//
// # State
//
// A runtime starts in INITIALIZING and moves to IDLE once registered. A task
// moves it to BUSY, a failing task to ERROR, and an external call to
// PROCESSING_EXTERNAL_CALL. When the last in-flight task finishes the
// runtime always returns to IDLE, whatever the outcome. SHUTDOWN is terminal.
//
// # Concurrency
//
// Task requests and queries are handled on their own goroutines, so a task
// handler may itself call Request without blocking delivery of the response.
// Two invocations of the same handler can therefore run at once; handlers
// that share state must synchronize it.
package runtime
