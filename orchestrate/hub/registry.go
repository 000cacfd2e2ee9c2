package hub

import (
	"context"
	"maps"
	"slices"
	"time"

	"github.com/tailored-agentic-units/agentbus/orchestrate/messaging"
)

type AgentStatus string

const (
	AgentActive AgentStatus = "active"
	AgentStale  AgentStatus = "stale"
)

// DeliveryHandler is invoked by an agent's mailbox pump for every envelope
// addressed to it, in arrival order.
type DeliveryHandler func(ctx context.Context, env *messaging.Envelope)

// Registration describes an agent joining the bus. On re-registration empty
// fields leave the existing values alone.
type Registration struct {
	Capabilities []string
	Version      string
	Metadata     map[string]any
	Handler      DeliveryHandler
}

// AgentRecord is the bus-side view of a registered agent.
type AgentRecord struct {
	ID            string         `json:"id"`
	RegisteredAt  time.Time      `json:"registeredAt"`
	LastHeartbeat time.Time      `json:"lastHeartbeat"`
	Status        AgentStatus    `json:"status"`
	Capabilities  []string       `json:"capabilities"`
	Version       string         `json:"version"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

func (r AgentRecord) clone() AgentRecord {
	r.Capabilities = slices.Clone(r.Capabilities)
	r.Metadata = maps.Clone(r.Metadata)
	return r
}

type registration struct {
	record  AgentRecord
	handler DeliveryHandler
	mailbox *Mailbox[*messaging.Envelope]
}

func (r *registration) apply(reg Registration) {
	if len(reg.Capabilities) > 0 {
		r.record.Capabilities = slices.Clone(reg.Capabilities)
	}
	if reg.Version != "" {
		r.record.Version = reg.Version
	}
	if len(reg.Metadata) > 0 {
		if r.record.Metadata == nil {
			r.record.Metadata = make(map[string]any, len(reg.Metadata))
		}
		maps.Copy(r.record.Metadata, reg.Metadata)
	}
	if reg.Handler != nil {
		r.handler = reg.Handler
	}
}
