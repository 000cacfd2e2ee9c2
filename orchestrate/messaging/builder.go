package messaging

import "time"

// EnvelopeBuilder assembles an envelope; Build validates it.
type EnvelopeBuilder struct {
	envelope *Envelope
}

func NewEnvelope(msgType MessageType, sender, recipient string, payload map[string]any) *EnvelopeBuilder {
	return &EnvelopeBuilder{
		envelope: &Envelope{
			ID:              generateID(),
			CreatedAt:       time.Now(),
			Type:            msgType,
			Sender:          sender,
			Recipient:       recipient,
			Payload:         payload,
			Priority:        PriorityNormal,
			ProtocolVersion: ProtocolVersion,
			Metadata: Metadata{
				TTLMs:      DefaultTTL.Milliseconds(),
				MaxRetries: DefaultMaxRetries,
			},
			Status: StatusPending,
		},
	}
}

func NewTaskRequest(sender, recipient string, payload map[string]any) *EnvelopeBuilder {
	return NewEnvelope(TypeTaskRequest, sender, recipient, payload)
}

func NewBroadcast(sender string, msgType MessageType, payload map[string]any) *EnvelopeBuilder {
	return NewEnvelope(msgType, sender, "", payload)
}

// Priority sets the priority; an empty value keeps the normal default.
func (b *EnvelopeBuilder) Priority(priority Priority) *EnvelopeBuilder {
	if priority != "" {
		b.envelope.Priority = priority
	}
	return b
}

func (b *EnvelopeBuilder) TTL(ttl time.Duration) *EnvelopeBuilder {
	b.envelope.Metadata.TTLMs = ttl.Milliseconds()
	return b
}

func (b *EnvelopeBuilder) MaxRetries(maxRetries int) *EnvelopeBuilder {
	b.envelope.Metadata.MaxRetries = maxRetries
	return b
}

func (b *EnvelopeBuilder) ResponseTo(id string) *EnvelopeBuilder {
	b.envelope.Metadata.ResponseTo = id
	return b
}

func (b *EnvelopeBuilder) ConversationID(id string) *EnvelopeBuilder {
	b.envelope.Metadata.ConversationID = id
	return b
}

// CreatedAt overrides the creation timestamp, mainly for replay and tests.
func (b *EnvelopeBuilder) CreatedAt(t time.Time) *EnvelopeBuilder {
	b.envelope.CreatedAt = t
	return b
}

func (b *EnvelopeBuilder) Build() (*Envelope, error) {
	if err := b.envelope.Validate(); err != nil {
		return nil, err
	}
	return b.envelope, nil
}
