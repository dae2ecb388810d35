package resque

import (
	"context"
	"testing"
	"time"

	"github.com/resquego/resque/internal/redisgw"
)

func TestStatusStoreGetMissingIsUnknown(t *testing.T) {
	store := NewStatusStore(redisgw.NewFake(), 0)
	status, rec, err := store.Get(context.Background(), "nope")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if status != StatusUnknown || rec != nil {
		t.Fatalf("got status=%v rec=%v, want StatusUnknown/nil", status, rec)
	}
}

func TestStatusStoreSetAndGet(t *testing.T) {
	store := NewStatusStore(redisgw.NewFake(), time.Minute)
	ctx := context.Background()

	if err := store.Set(ctx, "job-1", StatusRunning, nil, nil, time.Now()); err != nil {
		t.Fatalf("Set: %v", err)
	}

	status, rec, err := store.Get(ctx, "job-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if status != StatusRunning {
		t.Fatalf("status = %v, want %v", status, StatusRunning)
	}
	if rec.Started == 0 {
		t.Fatal("expected Started to be stamped")
	}
}

func TestStatusStoreSetFailedWithCause(t *testing.T) {
	store := NewStatusStore(redisgw.NewFake(), 0)
	ctx := context.Background()
	cause := &FailCause{Class: "boom", Message: "went wrong"}

	if err := store.Set(ctx, "job-2", StatusFailed, nil, cause, time.Time{}); err != nil {
		t.Fatalf("Set: %v", err)
	}

	status, rec, err := store.Get(ctx, "job-2")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if status != StatusFailed {
		t.Fatalf("status = %v, want %v", status, StatusFailed)
	}
	if rec.Cause == nil || rec.Cause.Message != "went wrong" {
		t.Fatalf("cause = %+v, want message %q", rec.Cause, "went wrong")
	}
}

func TestStatusStoreClear(t *testing.T) {
	store := NewStatusStore(redisgw.NewFake(), 0)
	ctx := context.Background()
	_ = store.Set(ctx, "job-3", StatusComplete, nil, nil, time.Now())

	if err := store.Clear(ctx, "job-3"); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	status, _, err := store.Get(ctx, "job-3")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if status != StatusUnknown {
		t.Fatalf("status = %v after Clear, want StatusUnknown", status)
	}
}
