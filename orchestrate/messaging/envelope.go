package messaging

import (
	"errors"
	"fmt"
	"maps"
	"regexp"
	"time"

	"github.com/google/uuid"
)

// ProtocolVersion is stamped on every envelope built by this package.
const ProtocolVersion = "1.0"

const (
	DefaultTTL        = 30 * time.Second
	DefaultMaxRetries = 3
)

var (
	ErrAlreadyFinal     = errors.New("envelope status already final")
	ErrRetriesExhausted = errors.New("envelope retries exhausted")
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]*(\.[A-Za-z0-9_-]+)?$`)

// ValidIdentifier reports whether id matches the name[.instance] grammar used
// for senders, recipients and agent registrations.
func ValidIdentifier(id string) bool {
	return identifierPattern.MatchString(id)
}

type MessageType string

const (
	TypeTaskRequest       MessageType = "TASK_REQUEST"
	TypeTaskComplete      MessageType = "TASK_COMPLETE"
	TypeTaskFail          MessageType = "TASK_FAIL"
	TypeQuery             MessageType = "QUERY"
	TypeResponse          MessageType = "RESPONSE"
	TypeAgentRegister     MessageType = "AGENT_REGISTER"
	TypeAgentUnregister   MessageType = "AGENT_UNREGISTER"
	TypeHeartbeat         MessageType = "HEARTBEAT"
	TypeSystemAlert       MessageType = "SYSTEM_ALERT"
	TypeAgentStateChanged MessageType = "AGENT_STATE_CHANGED"
	TypeBroadcast         MessageType = "BROADCAST"
)

var messageTypes = map[MessageType]bool{
	TypeTaskRequest:       true,
	TypeTaskComplete:      true,
	TypeTaskFail:          true,
	TypeQuery:             true,
	TypeResponse:          true,
	TypeAgentRegister:     true,
	TypeAgentUnregister:   true,
	TypeHeartbeat:         true,
	TypeSystemAlert:       true,
	TypeAgentStateChanged: true,
	TypeBroadcast:         true,
}

func (t MessageType) Valid() bool {
	return messageTypes[t]
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

type Status string

const (
	StatusPending   Status = "pending"
	StatusDelivered Status = "delivered"
	StatusFailed    Status = "failed"
)

// Metadata carries delivery rules and correlation ids.
type Metadata struct {
	TTLMs          int64  `json:"ttlMs"`
	ConversationID string `json:"conversationId,omitempty"`
	ResponseTo     string `json:"responseTo,omitempty"`
	MaxRetries     int    `json:"maxRetries"`
}

// TTL returns the time-to-live as a duration.
func (m Metadata) TTL() time.Duration {
	return time.Duration(m.TTLMs) * time.Millisecond
}

// Envelope is a single routable message. Fields are exported for
// serialization; state changes go through MarkDelivered, MarkFailed and
// IncrementRetry.
type Envelope struct {
	ID              string         `json:"id"`
	CreatedAt       time.Time      `json:"createdAt"`
	Type            MessageType    `json:"type"`
	Sender          string         `json:"sender"`
	Recipient       string         `json:"recipient,omitempty"`
	Payload         map[string]any `json:"payload,omitempty"`
	Priority        Priority       `json:"priority"`
	ProtocolVersion string         `json:"protocolVersion"`
	Metadata        Metadata       `json:"metadata"`
	Status          Status         `json:"status"`
	FailureReason   string         `json:"failureReason,omitempty"`
	Retries         int            `json:"retries"`
}

// New builds and validates an envelope. An empty recipient addresses a
// broadcast.
func New(msgType MessageType, sender, recipient string, payload map[string]any) (*Envelope, error) {
	return NewEnvelope(msgType, sender, recipient, payload).Build()
}

// Validate checks the protocol fields of the envelope.
func (e *Envelope) Validate() error {
	if !e.Type.Valid() {
		return &ValidationError{Field: "type", Value: string(e.Type), Reason: "unknown message type"}
	}
	if !ValidIdentifier(e.Sender) {
		return &ValidationError{Field: "sender", Value: e.Sender, Reason: "must match name[.instance]"}
	}
	if e.Recipient != "" && !ValidIdentifier(e.Recipient) {
		return &ValidationError{Field: "recipient", Value: e.Recipient, Reason: "must match name[.instance]"}
	}
	if !e.Priority.Valid() {
		return &ValidationError{Field: "priority", Value: string(e.Priority), Reason: "must be low, normal, high or urgent"}
	}
	if e.Metadata.TTLMs <= 0 {
		return &ValidationError{Field: "metadata.ttlMs", Value: fmt.Sprint(e.Metadata.TTLMs), Reason: "must be positive"}
	}
	if e.Metadata.MaxRetries < 0 {
		return &ValidationError{Field: "metadata.maxRetries", Value: fmt.Sprint(e.Metadata.MaxRetries), Reason: "must not be negative"}
	}
	return nil
}

func (e *Envelope) IsBroadcast() bool {
	return e.Recipient == ""
}

// IsExpired reports whether the envelope has outlived its TTL.
func (e *Envelope) IsExpired() bool {
	return e.IsExpiredAt(time.Now())
}

func (e *Envelope) IsExpiredAt(now time.Time) bool {
	return now.Sub(e.CreatedAt) > e.Metadata.TTL()
}

// CanRetry reports whether another delivery attempt is allowed.
func (e *Envelope) CanRetry() bool {
	return e.Retries < e.Metadata.MaxRetries && !e.IsExpired()
}

func (e *Envelope) MarkDelivered() error {
	if e.Status != StatusPending {
		return fmt.Errorf("%w: %s", ErrAlreadyFinal, e.Status)
	}
	e.Status = StatusDelivered
	return nil
}

func (e *Envelope) MarkFailed(reason string) error {
	if e.Status != StatusPending {
		return fmt.Errorf("%w: %s", ErrAlreadyFinal, e.Status)
	}
	e.Status = StatusFailed
	e.FailureReason = reason
	return nil
}

func (e *Envelope) IncrementRetry() error {
	if e.Retries >= e.Metadata.MaxRetries {
		return fmt.Errorf("%w: %d/%d", ErrRetriesExhausted, e.Retries, e.Metadata.MaxRetries)
	}
	e.Retries++
	return nil
}

// CreateResponse derives a reply addressed to the original sender. The
// conversation id is inherited, or seeded with the original id.
func (e *Envelope) CreateResponse(senderID string, payload map[string]any, msgType MessageType) (*Envelope, error) {
	conversationID := e.Metadata.ConversationID
	if conversationID == "" {
		conversationID = e.ID
	}

	return NewEnvelope(msgType, senderID, e.Sender, payload).
		Priority(e.Priority).
		ResponseTo(e.ID).
		ConversationID(conversationID).
		Build()
}

// Clone returns a copy whose payload map can be modified independently.
func (e *Envelope) Clone() *Envelope {
	clone := *e
	clone.Payload = clonePayload(e.Payload)
	return &clone
}

func (e *Envelope) String() string {
	recipient := e.Recipient
	if recipient == "" {
		recipient = "*"
	}
	return fmt.Sprintf(
		"Envelope{ID: %s, Type: %s, Sender: %s, Recipient: %s, Status: %s}",
		e.ID,
		e.Type,
		e.Sender,
		recipient,
		e.Status,
	)
}

func clonePayload(payload map[string]any) map[string]any {
	if payload == nil {
		return nil
	}
	clone := maps.Clone(payload)
	for k, v := range clone {
		if nested, ok := v.(map[string]any); ok {
			clone[k] = clonePayload(nested)
		}
	}
	return clone
}

func generateID() string {
	return uuid.Must(uuid.NewV7()).String()
}
