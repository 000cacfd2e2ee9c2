package hub_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/tailored-agentic-units/agentbus/orchestrate/hub"
)

func TestMailbox_FIFO(t *testing.T) {
	mb := hub.NewMailbox[int]()

	for i := range 100 {
		if !mb.Send(i) {
			t.Fatalf("Send(%d) returned false", i)
		}
	}

	if mb.Len() != 100 {
		t.Errorf("got Len %d, want 100", mb.Len())
	}

	for i := range 100 {
		got, err := mb.Receive(context.Background())
		if err != nil {
			t.Fatalf("Receive failed: %v", err)
		}
		if got != i {
			t.Errorf("got %d, want %d", got, i)
		}
	}
}

func TestMailbox_ReceiveWaitsForSend(t *testing.T) {
	mb := hub.NewMailbox[string]()

	var wg sync.WaitGroup
	wg.Add(1)

	var got string
	go func() {
		defer wg.Done()
		got, _ = mb.Receive(context.Background())
	}()

	time.Sleep(10 * time.Millisecond)
	mb.Send("hello")
	wg.Wait()

	if got != "hello" {
		t.Errorf("got %q, want %q", got, "hello")
	}
}

func TestMailbox_CloseDrainsQueue(t *testing.T) {
	mb := hub.NewMailbox[int]()
	mb.Send(1)
	mb.Send(2)
	mb.Close()

	if mb.Send(3) {
		t.Error("Send after Close should return false")
	}
	if !mb.IsClosed() {
		t.Error("IsClosed should be true")
	}

	for _, want := range []int{1, 2} {
		got, err := mb.Receive(context.Background())
		if err != nil || got != want {
			t.Errorf("got (%d, %v), want (%d, nil)", got, err, want)
		}
	}

	if _, err := mb.Receive(context.Background()); !errors.Is(err, hub.ErrMailboxClosed) {
		t.Errorf("got %v, want ErrMailboxClosed", err)
	}
}

func TestMailbox_CloseWakesReceiver(t *testing.T) {
	mb := hub.NewMailbox[int]()

	errs := make(chan error, 1)
	go func() {
		_, err := mb.Receive(context.Background())
		errs <- err
	}()

	time.Sleep(10 * time.Millisecond)
	mb.Close()

	select {
	case err := <-errs:
		if !errors.Is(err, hub.ErrMailboxClosed) {
			t.Errorf("got %v, want ErrMailboxClosed", err)
		}
	case <-time.After(time.Second):
		t.Fatal("receiver was not woken by Close")
	}
}

func TestMailbox_ContextCancelled(t *testing.T) {
	mb := hub.NewMailbox[int]()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if _, err := mb.Receive(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("got %v, want context.DeadlineExceeded", err)
	}
}

func TestMailbox_TryReceive(t *testing.T) {
	mb := hub.NewMailbox[int]()

	if _, ok := mb.TryReceive(); ok {
		t.Error("TryReceive on empty mailbox should return false")
	}

	mb.Send(7)
	if got, ok := mb.TryReceive(); !ok || got != 7 {
		t.Errorf("got (%d, %v), want (7, true)", got, ok)
	}
}

func TestMailbox_ConcurrentSenders(t *testing.T) {
	mb := hub.NewMailbox[int]()

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 100 {
				mb.Send(i)
			}
		}()
	}
	wg.Wait()

	if mb.Len() != 1000 {
		t.Errorf("got Len %d, want 1000", mb.Len())
	}
}
