package resque

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/resquego/resque/internal/procfind"
	"github.com/resquego/resque/internal/redisgw"
)

// Registry implements spec.md §4.E: registration, unregistration,
// enumeration, and dead-worker pruning against the "workers" Redis set.
type Registry struct {
	gw     redisgw.Gateway
	stats  *Stats
	logger Logger
}

// NewRegistry creates a Registry.
func NewRegistry(gw redisgw.Gateway, stats *Stats, logger Logger) *Registry {
	if logger == nil {
		logger = nopLogger{}
	}
	return &Registry{gw: gw, stats: stats, logger: logger}
}

// Register adds id to the workers set and stamps its start time.
func (r *Registry) Register(ctx context.Context, id Identity) error {
	if err := r.gw.SAdd(ctx, "workers", id.String()); err != nil {
		return err
	}
	startedKey := fmt.Sprintf("worker:%s:started", id.String())
	return r.gw.Set(ctx, startedKey, time.Now().Format(time.RFC3339), 0)
}

// Unregister removes id from the registry. If the worker was holding a
// job (its worker:{id} key exists), that job is first marked FAILED with
// a dirty-exit cause, per spec.md §4.E/§3 invariant 4.
func (r *Registry) Unregister(ctx context.Context, id Identity, status *StatusStore) error {
	workerKey := fmt.Sprintf("worker:%s", id.String())
	if raw, found, err := r.gw.Get(ctx, workerKey); err != nil {
		return err
	} else if found {
		if jobID := jobIDFromWorkingRecord(raw); jobID != "" && status != nil {
			cause := &FailCause{Message: "dirty exit (no message)"}
			if err := status.Set(ctx, jobID, StatusFailed, nil, cause, time.Time{}); err != nil {
				r.logger.Error("failed to mark job %s dirty on unregister: %v", jobID, err)
			}
		}
	}

	if err := r.gw.SRem(ctx, "workers", id.String()); err != nil {
		return err
	}

	keys := []string{
		workerKey,
		fmt.Sprintf("worker:%s:started", id.String()),
	}
	if err := r.gw.Del(ctx, keys...); err != nil {
		return err
	}
	if r.stats != nil {
		return r.stats.Clear(ctx, id.String())
	}
	return nil
}

// All materializes every worker identity currently in the registry. Ids
// that fail to parse as host:pid:queues are skipped, not errored.
func (r *Registry) All(ctx context.Context) ([]Identity, error) {
	raw, err := r.gw.SMembers(ctx, "workers")
	if err != nil {
		return nil, err
	}
	out := make([]Identity, 0, len(raw))
	for _, s := range raw {
		id, err := ParseIdentity(s)
		if err != nil {
			r.logger.Warn("skipping unparseable worker id %q: %v", s, err)
			continue
		}
		out = append(out, id)
	}
	return out, nil
}

// Exists reports whether id is currently registered.
func (r *Registry) Exists(ctx context.Context, id Identity) (bool, error) {
	return r.gw.SIsMember(ctx, "workers", id.String())
}

// PruneDeadWorkers removes registry entries on this host whose pid is not
// alive, excluding self's own pid. Workers on other hosts are never
// touched — the host-local restriction is essential (spec.md §4.E).
func (r *Registry) PruneDeadWorkers(ctx context.Context, self Identity, status *StatusStore) error {
	all, err := r.All(ctx)
	if err != nil {
		return err
	}

	live, err := procfind.LivePIDs()
	if err != nil {
		return fmt.Errorf("resque: cannot enumerate live pids: %w", err)
	}

	for _, candidate := range all {
		if candidate.Host != self.Host {
			continue
		}
		if candidate.PID == self.PID {
			continue
		}
		if _, alive := live[candidate.PID]; alive {
			continue
		}
		r.logger.Info("pruning dead worker %s", candidate.String())
		if err := r.Unregister(ctx, candidate, status); err != nil {
			r.logger.Error("failed to prune dead worker %s: %v", candidate.String(), err)
		}
	}
	return nil
}

// jobIDFromWorkingRecord extracts the job id from a worker:{id} JSON blob.
// The record only carries the payload, so the id is nested at payload.id.
func jobIDFromWorkingRecord(raw string) string {
	var rec struct {
		Payload struct {
			ID string `json:"id"`
		} `json:"payload"`
	}
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return ""
	}
	return rec.Payload.ID
}
