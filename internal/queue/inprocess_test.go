package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"messagehub/internal/types"
)

func TestInProcessTransport_PublishAndRun(t *testing.T) {
	transport := NewInProcessTransport(4)

	var mu sync.Mutex
	var received []string

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = transport.Run(ctx, func(ctx context.Context, event types.MessageQueuedEvent) error {
			mu.Lock()
			received = append(received, event.MessageID)
			mu.Unlock()
			return nil
		})
	}()

	if err := transport.Publish(context.Background(), types.MessageQueuedEvent{MessageID: "m1"}); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if err := transport.Publish(context.Background(), types.MessageQueuedEvent{MessageID: "m2"}); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for {
		mu.Lock()
		n := len(received)
		mu.Unlock()
		if n == 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected 2 events, got %d", n)
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	<-done
}

func TestInProcessTransport_PublishAfterClose(t *testing.T) {
	transport := NewInProcessTransport(1)
	if err := transport.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := transport.Publish(context.Background(), types.MessageQueuedEvent{MessageID: "m1"}); err != ErrClosed {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}
