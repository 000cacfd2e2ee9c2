package hub

import "github.com/tailored-agentic-units/agentbus/observability"

// Bus event types.
const (
	EventAgentRegister    observability.EventType = "bus.agent.register"
	EventAgentUnregister  observability.EventType = "bus.agent.unregister"
	EventAgentStale       observability.EventType = "bus.agent.stale"
	EventAgentReactivated observability.EventType = "bus.agent.reactivated"
	EventMessageDelivered observability.EventType = "bus.message.delivered"
	EventMessageFailed    observability.EventType = "bus.message.failed"
	EventShutdown         observability.EventType = "bus.shutdown"
)

// Alert subtypes carried in SYSTEM_ALERT payloads under "alertType".
const (
	AlertAgentStale     = "agent-stale"
	AlertSystemShutdown = "system-shutdown"
)
