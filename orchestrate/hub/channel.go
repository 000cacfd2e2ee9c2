package hub

import (
	"context"
	"errors"
	"sync"
)

var ErrMailboxClosed = errors.New("mailbox closed")

// Mailbox is an unbounded FIFO queue. Send never blocks; Receive waits for
// the next item. After Close, queued items can still be drained and Receive
// reports ErrMailboxClosed once the queue is empty.
type Mailbox[T any] struct {
	mu     sync.Mutex
	queue  []T
	signal chan struct{}
	done   chan struct{}
	closed bool
}

func NewMailbox[T any]() *Mailbox[T] {
	return &Mailbox[T]{
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Send enqueues an item. It returns false if the mailbox is closed.
func (m *Mailbox[T]) Send(item T) bool {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return false
	}
	m.queue = append(m.queue, item)
	m.mu.Unlock()

	select {
	case m.signal <- struct{}{}:
	default:
	}
	return true
}

func (m *Mailbox[T]) Receive(ctx context.Context) (T, error) {
	for {
		if item, ok := m.TryReceive(); ok {
			return item, nil
		}

		m.mu.Lock()
		closed := m.closed
		m.mu.Unlock()
		if closed {
			var zero T
			return zero, ErrMailboxClosed
		}

		select {
		case <-m.signal:
		case <-m.done:
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		}
	}
}

func (m *Mailbox[T]) TryReceive() (T, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.queue) == 0 {
		var zero T
		return zero, false
	}

	item := m.queue[0]
	var zero T
	m.queue[0] = zero
	m.queue = m.queue[1:]
	return item, true
}

func (m *Mailbox[T]) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.closed {
		m.closed = true
		close(m.done)
	}
}

func (m *Mailbox[T]) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *Mailbox[T]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}
