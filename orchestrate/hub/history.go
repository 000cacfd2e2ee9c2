package hub

import (
	"sync"
	"time"

	"github.com/tailored-agentic-units/agentbus/orchestrate/messaging"
)

// HistoryRecord is the compact trace kept for each routed envelope.
type HistoryRecord struct {
	ID         string                `json:"id"`
	Type       messaging.MessageType `json:"type"`
	Sender     string                `json:"sender"`
	Recipient  string                `json:"recipient,omitempty"`
	Priority   messaging.Priority    `json:"priority"`
	Status     messaging.Status      `json:"status"`
	Recipients int                   `json:"recipients"`
	ResponseTo string                `json:"responseTo,omitempty"`
	Timestamp  time.Time             `json:"timestamp"`
}

func newHistoryRecord(env *messaging.Envelope, recipients int, at time.Time) HistoryRecord {
	return HistoryRecord{
		ID:         env.ID,
		Type:       env.Type,
		Sender:     env.Sender,
		Recipient:  env.Recipient,
		Priority:   env.Priority,
		Status:     env.Status,
		Recipients: recipients,
		ResponseTo: env.Metadata.ResponseTo,
		Timestamp:  at,
	}
}

// History is a fixed-capacity ring buffer; the oldest record is overwritten
// once it is full.
type History struct {
	mu      sync.RWMutex
	records []HistoryRecord
	start   int
	size    int
}

func NewHistory(capacity int) *History {
	if capacity < 1 {
		capacity = 1
	}
	return &History{records: make([]HistoryRecord, capacity)}
}

func (h *History) Append(record HistoryRecord) {
	h.mu.Lock()
	defer h.mu.Unlock()

	capacity := len(h.records)
	if h.size < capacity {
		h.records[(h.start+h.size)%capacity] = record
		h.size++
		return
	}

	h.records[h.start] = record
	h.start = (h.start + 1) % capacity
}

// Recent returns the newest limit records in chronological order. A
// non-positive limit returns everything.
func (h *History) Recent(limit int) []HistoryRecord {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if limit <= 0 || limit > h.size {
		limit = h.size
	}

	capacity := len(h.records)
	result := make([]HistoryRecord, 0, limit)
	for i := h.size - limit; i < h.size; i++ {
		result = append(result, h.records[(h.start+i)%capacity])
	}
	return result
}

func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.size
}

func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()

	clear(h.records)
	h.start = 0
	h.size = 0
}
