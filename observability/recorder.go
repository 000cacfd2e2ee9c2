package observability

import (
	"context"
	"slices"
	"sync"
)

// Recorder keeps every event it receives in memory. It backs diagnostics
// snapshots and is convenient for asserting event sequences in tests.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) OnEvent(ctx context.Context, event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

// Events returns a copy of the recorded events, optionally filtered by type.
func (r *Recorder) Events(types ...EventType) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(types) == 0 {
		return slices.Clone(r.events)
	}

	var filtered []Event
	for _, e := range r.events {
		if slices.Contains(types, e.Type) {
			filtered = append(filtered, e)
		}
	}
	return filtered
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

// Recent returns up to limit of the newest events of eventType in
// chronological order. An empty eventType matches every event.
func (r *Recorder) Recent(ctx context.Context, eventType EventType, limit int) ([]Event, error) {
	var events []Event
	if eventType == "" {
		events = r.Events()
	} else {
		events = r.Events(eventType)
	}

	if limit > 0 && len(events) > limit {
		events = events[len(events)-limit:]
	}
	return events, nil
}
