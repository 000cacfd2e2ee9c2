package runtime

import (
	"sync"
	"time"
)

type outcome struct {
	result any
	err    error
}

type pendingRequest struct {
	id        string
	recipient string
	taskType  string
	createdAt time.Time
	timer     *time.Timer
	done      chan outcome
}

// pendingTable holds in-flight requests keyed by outgoing envelope id. An
// entry is removed exactly once, by whichever of response, timeout,
// cancellation or shutdown takes it first.
type pendingTable struct {
	mu      sync.Mutex
	entries map[string]*pendingRequest
}

func newPendingTable() *pendingTable {
	return &pendingTable{entries: make(map[string]*pendingRequest)}
}

// add registers p and arms its timeout under the table lock, so the timer
// cannot fire before the entry exists.
func (t *pendingTable) add(p *pendingRequest, timeout time.Duration, onTimeout func(*pendingRequest)) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.entries[p.id] = p
	p.timer = time.AfterFunc(timeout, func() {
		if taken := t.take(p.id); taken != nil {
			onTimeout(taken)
		}
	})
}

// take removes and returns the entry, or nil if another path already took it.
func (t *pendingTable) take(id string) *pendingRequest {
	t.mu.Lock()
	defer t.mu.Unlock()

	p, exists := t.entries[id]
	if !exists {
		return nil
	}
	delete(t.entries, id)
	p.timer.Stop()
	return p
}

func (t *pendingTable) drain() []*pendingRequest {
	t.mu.Lock()
	defer t.mu.Unlock()

	drained := make([]*pendingRequest, 0, len(t.entries))
	for id, p := range t.entries {
		delete(t.entries, id)
		p.timer.Stop()
		drained = append(drained, p)
	}
	return drained
}

func (t *pendingTable) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

func (p *pendingRequest) finish(o outcome) {
	p.done <- o
}
