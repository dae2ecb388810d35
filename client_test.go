package resque

import (
	"context"
	"testing"

	"github.com/resquego/resque/internal/redisgw"
)

func TestClientEnqueuePushesPayloadAndRegistersQueue(t *testing.T) {
	gw := redisgw.NewFake()
	client := NewClient(gw, DefaultStatusTTL)
	ctx := context.Background()

	id, err := client.Enqueue(ctx, "default", "Log", "hello", float64(1))
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if id == "" {
		t.Fatal("expected a non-empty job id")
	}

	isMember, err := gw.SIsMember(ctx, "queues", "default")
	if err != nil {
		t.Fatalf("SIsMember: %v", err)
	}
	if !isMember {
		t.Fatal("expected the queue to be registered in the \"queues\" set")
	}

	raw, found, err := gw.RPop(ctx, queueKey("default"))
	if err != nil {
		t.Fatalf("RPop: %v", err)
	}
	if !found {
		t.Fatal("expected the enqueued payload to be poppable")
	}
	payload, err := DecodePayload(raw)
	if err != nil {
		t.Fatalf("DecodePayload: %v", err)
	}
	if payload.ID != id || payload.Class != "Log" {
		t.Fatalf("payload = %+v, want ID=%q Class=Log", payload, id)
	}

	status, _, err := NewStatusStore(gw, DefaultStatusTTL).Get(ctx, id)
	if err != nil {
		t.Fatalf("status Get: %v", err)
	}
	if status != StatusWaiting {
		t.Fatalf("status = %q, want %q", status, StatusWaiting)
	}
}

func TestClientEnqueueGeneratesUniqueIDs(t *testing.T) {
	client := NewClient(redisgw.NewFake(), DefaultStatusTTL)
	ctx := context.Background()

	id1, err := client.Enqueue(ctx, "default", "Log")
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	id2, err := client.Enqueue(ctx, "default", "Log")
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if id1 == id2 {
		t.Fatalf("expected distinct job ids, got %q twice", id1)
	}
}
