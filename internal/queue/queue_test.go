package queue

import (
	"context"
	"testing"
	"time"
)

func TestInMemoryPublishConsume(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := NewInMemory(4)
	if err := q.Publish(ctx, Message{Type: "attendance", Body: "evt-1"}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	messages, err := q.Consume(ctx)
	if err != nil {
		t.Fatalf("consume: %v", err)
	}

	select {
	case msg := <-messages:
		if msg.Type != "attendance" || msg.Body != "evt-1" {
			t.Fatalf("unexpected message: %+v", msg)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for message")
	}
}

func TestInMemoryPublishHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	q := NewInMemory(1)

	if err := q.Publish(ctx, Message{Type: "attendance", Body: "evt-1"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	cancel()
	// Queue is full and the context is done, publish must not block.
	if err := q.Publish(ctx, Message{Type: "attendance", Body: "evt-2"}); err == nil {
		t.Fatalf("expected context error on full queue")
	}
}
