package resque

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/resquego/resque/internal/redisgw"
)

// Status is a job's position in its lifecycle DAG:
// WAITING -> RUNNING -> (COMPLETE | FAILED). There is no backward
// transition (spec.md §3 invariant 3).
type Status string

const (
	StatusUnknown  Status = "" // key absent — never persisted
	StatusWaiting  Status = "waiting"
	StatusRunning  Status = "running"
	StatusFailed   Status = "failed"
	StatusComplete Status = "complete"
)

// statusRecord is the JSON shape stored at job:{id}:status.
type statusRecord struct {
	Status  Status      `json:"status"`
	Updated int64       `json:"updated"`
	Started int64       `json:"started,omitempty"`
	Result  interface{} `json:"result,omitempty"`
	Cause   *FailCause  `json:"cause,omitempty"`
}

// FailCause is the structured failure metadata attached to a FAILED
// status and to the entry appended to the "failed" Redis list.
type FailCause struct {
	Class   string `json:"class,omitempty"`
	Message string `json:"message,omitempty"`
	Stack   string `json:"stack,omitempty"`
	Queue   string `json:"queue,omitempty"`
}

// StatusStore persists per-job status records with a bounded TTL.
type StatusStore struct {
	gw  redisgw.Gateway
	ttl time.Duration
}

// NewStatusStore creates a store with the given default TTL (0 means
// DefaultStatusTTL).
func NewStatusStore(gw redisgw.Gateway, ttl time.Duration) *StatusStore {
	if ttl <= 0 {
		ttl = DefaultStatusTTL
	}
	return &StatusStore{gw: gw, ttl: ttl}
}

func statusKey(jobID string) string {
	return fmt.Sprintf("job:%s:status", jobID)
}

// Set unconditionally overwrites the status record for jobID. Monotonicity
// (WAITING -> RUNNING -> terminal) is a convention the worker upholds by
// only ever calling Set with a forward transition — the store itself does
// not enforce it (spec.md §4.D).
func (s *StatusStore) Set(ctx context.Context, jobID string, status Status, result interface{}, cause *FailCause, started time.Time) error {
	rec := statusRecord{
		Status:  status,
		Updated: time.Now().Unix(),
		Result:  result,
		Cause:   cause,
	}
	if !started.IsZero() {
		rec.Started = started.Unix()
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("resque: encode status: %w", err)
	}
	return s.gw.Set(ctx, statusKey(jobID), string(b), s.ttl)
}

// Get reads the status for jobID. A missing key is not an error — it
// returns StatusUnknown.
func (s *StatusStore) Get(ctx context.Context, jobID string) (Status, *statusRecord, error) {
	raw, found, err := s.gw.Get(ctx, statusKey(jobID))
	if err != nil {
		return StatusUnknown, nil, err
	}
	if !found {
		return StatusUnknown, nil, nil
	}
	var rec statusRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return StatusUnknown, nil, fmt.Errorf("resque: decode status for %s: %w", jobID, err)
	}
	return rec.Status, &rec, nil
}

// Clear removes the status record, used by tests and by operators
// cleaning up ahead of the TTL.
func (s *StatusStore) Clear(ctx context.Context, jobID string) error {
	return s.gw.Del(ctx, statusKey(jobID))
}
