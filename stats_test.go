package resque

import (
	"context"
	"testing"

	"github.com/resquego/resque/internal/redisgw"
)

func TestStatsIncrAndRead(t *testing.T) {
	gw := redisgw.NewFake()
	stats := NewStats(gw)
	ctx := context.Background()

	if err := stats.IncrProcessed(ctx, "worker-1"); err != nil {
		t.Fatalf("IncrProcessed: %v", err)
	}
	if err := stats.IncrProcessed(ctx, "worker-1"); err != nil {
		t.Fatalf("IncrProcessed: %v", err)
	}
	if err := stats.IncrFailed(ctx, "worker-1"); err != nil {
		t.Fatalf("IncrFailed: %v", err)
	}

	processed, err := stats.Processed(ctx, "worker-1")
	if err != nil {
		t.Fatalf("Processed: %v", err)
	}
	if processed != 2 {
		t.Fatalf("Processed = %d, want 2", processed)
	}

	failed, err := stats.Failed(ctx, "worker-1")
	if err != nil {
		t.Fatalf("Failed: %v", err)
	}
	if failed != 1 {
		t.Fatalf("Failed = %d, want 1", failed)
	}

	globalProcessed, err := stats.GlobalProcessed(ctx)
	if err != nil {
		t.Fatalf("GlobalProcessed: %v", err)
	}
	if globalProcessed != 2 {
		t.Fatalf("GlobalProcessed = %d, want 2", globalProcessed)
	}
}

func TestStatsReadAbsentCounterIsZero(t *testing.T) {
	stats := NewStats(redisgw.NewFake())
	n, err := stats.Processed(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("Processed: %v", err)
	}
	if n != 0 {
		t.Fatalf("Processed = %d, want 0", n)
	}
}

func TestStatsClearRemovesPerWorkerCounters(t *testing.T) {
	gw := redisgw.NewFake()
	stats := NewStats(gw)
	ctx := context.Background()
	_ = stats.IncrProcessed(ctx, "worker-2")

	if err := stats.Clear(ctx, "worker-2"); err != nil {
		t.Fatalf("Clear: %v", err)
	}

	n, err := stats.Processed(ctx, "worker-2")
	if err != nil {
		t.Fatalf("Processed: %v", err)
	}
	if n != 0 {
		t.Fatalf("Processed after Clear = %d, want 0", n)
	}

	globalProcessed, err := stats.GlobalProcessed(ctx)
	if err != nil {
		t.Fatalf("GlobalProcessed: %v", err)
	}
	if globalProcessed != 1 {
		t.Fatalf("GlobalProcessed after Clear = %d, want 1 (global counter is untouched)", globalProcessed)
	}
}
