package resque

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/resquego/resque/internal/redisgw"
)

func TestRegistryRegisterExistsUnregister(t *testing.T) {
	gw := redisgw.NewFake()
	reg := NewRegistry(gw, NewStats(gw), nil)
	ctx := context.Background()
	id := Identity{Host: "host1", PID: 111, Queues: []string{"default"}}

	if err := reg.Register(ctx, id); err != nil {
		t.Fatalf("Register: %v", err)
	}

	exists, err := reg.Exists(ctx, id)
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if !exists {
		t.Fatal("expected worker to exist after Register")
	}

	if err := reg.Unregister(ctx, id, nil); err != nil {
		t.Fatalf("Unregister: %v", err)
	}
	exists, err = reg.Exists(ctx, id)
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if exists {
		t.Fatal("expected worker to be gone after Unregister")
	}
}

func TestRegistryAllSkipsUnparseableEntries(t *testing.T) {
	gw := redisgw.NewFake()
	reg := NewRegistry(gw, NewStats(gw), nopLogger{})
	ctx := context.Background()

	if err := gw.SAdd(ctx, "workers", "not-a-valid-id"); err != nil {
		t.Fatalf("SAdd: %v", err)
	}
	good := Identity{Host: "host1", PID: 222, Queues: []string{"default"}}
	if err := reg.Register(ctx, good); err != nil {
		t.Fatalf("Register: %v", err)
	}

	all, err := reg.All(ctx)
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(all) != 1 || all[0].PID != 222 {
		t.Fatalf("All() = %+v, want only the valid entry", all)
	}
}

func TestRegistryUnregisterMarksInFlightJobDirty(t *testing.T) {
	gw := redisgw.NewFake()
	status := NewStatusStore(gw, 0)
	reg := NewRegistry(gw, NewStats(gw), nil)
	ctx := context.Background()
	id := Identity{Host: "host1", PID: 333, Queues: []string{"default"}}

	if err := reg.Register(ctx, id); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := status.Set(ctx, "job-9", StatusRunning, nil, nil, time.Now()); err != nil {
		t.Fatalf("Set: %v", err)
	}
	workingRecord := `{"queue":"default","run_at":"now","payload":{"class":"Log","id":"job-9"}}`
	if err := gw.Set(ctx, "worker:"+id.String(), workingRecord, 0); err != nil {
		t.Fatalf("Set working record: %v", err)
	}

	if err := reg.Unregister(ctx, id, status); err != nil {
		t.Fatalf("Unregister: %v", err)
	}

	got, _, err := status.Get(ctx, "job-9")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != StatusFailed {
		t.Fatalf("status after dirty unregister = %v, want %v", got, StatusFailed)
	}
}

func TestRegistryPruneDeadWorkersKeepsLiveAndSelf(t *testing.T) {
	gw := redisgw.NewFake()
	reg := NewRegistry(gw, NewStats(gw), nil)
	ctx := context.Background()

	self := Identity{Host: "hostX", PID: os.Getpid(), Queues: []string{"default"}}
	dead := Identity{Host: "hostX", PID: 999999, Queues: []string{"default"}}
	otherHost := Identity{Host: "hostY", PID: 999999, Queues: []string{"default"}}

	for _, id := range []Identity{self, dead, otherHost} {
		if err := reg.Register(ctx, id); err != nil {
			t.Fatalf("Register(%v): %v", id, err)
		}
	}

	if err := reg.PruneDeadWorkers(ctx, self, nil); err != nil {
		t.Fatalf("PruneDeadWorkers: %v", err)
	}

	all, err := reg.All(ctx)
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("All() after prune = %+v, want self and otherHost to remain", all)
	}
	for _, id := range all {
		if id.PID == dead.PID && id.Host == dead.Host {
			t.Fatalf("dead worker %v was not pruned", dead)
		}
	}
}
