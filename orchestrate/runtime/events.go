package runtime

import "github.com/tailored-agentic-units/agentbus/observability"

// Runtime event types.
const (
	EventStateChanged   observability.EventType = "runtime.state.changed"
	EventTaskStart      observability.EventType = "runtime.task.start"
	EventTaskComplete   observability.EventType = "runtime.task.complete"
	EventTaskFail       observability.EventType = "runtime.task.fail"
	EventRequestTimeout observability.EventType = "runtime.request.timeout"
	EventExternalCall   observability.EventType = "runtime.external.call"
	EventPanicRecovered observability.EventType = "runtime.panic.recovered"
)
