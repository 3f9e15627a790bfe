package queue

import (
	"context"
	"testing"
	"time"
)

// TestInMemoryPublishConsume round-trips a message through the channel queue.
func TestInMemoryPublishConsume(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	q := NewInMemory(4)
	if err := q.Publish(ctx, Message{Type: "recorded", Body: []byte(`{"session_token":"s1"}`)}); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	messages, err := q.Consume(ctx)
	if err != nil {
		t.Fatalf("Consume: %v", err)
	}
	select {
	case msg := <-messages:
		if msg.Type != "recorded" {
			t.Fatalf("type = %q, want recorded", msg.Type)
		}
	case <-ctx.Done():
		t.Fatal("no message before timeout")
	}
}

// TestSerializeRoundtrip checks the Type|Body wire form, including bodies
// containing the separator.
func TestSerializeRoundtrip(t *testing.T) {
	msg := Message{Type: "recorded", Body: []byte(`{"a":"b|c"}`)}
	got, err := deserialize(serialize(msg))
	if err != nil {
		t.Fatalf("deserialize: %v", err)
	}
	if got.Type != msg.Type || string(got.Body) != string(msg.Body) {
		t.Fatalf("roundtrip = %+v, want %+v", got, msg)
	}
}
