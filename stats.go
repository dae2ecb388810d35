package resque

import (
	"context"
	"fmt"

	"github.com/resquego/resque/internal/redisgw"
)

// Stats tracks the global and per-worker processed/failed counters
// described in spec.md §4.H, §6.
type Stats struct {
	gw redisgw.Gateway
}

// NewStats creates a Stats backed by gw.
func NewStats(gw redisgw.Gateway) *Stats {
	return &Stats{gw: gw}
}

func (s *Stats) IncrProcessed(ctx context.Context, workerID string) error {
	if _, err := s.gw.Incr(ctx, "stat:processed"); err != nil {
		return err
	}
	_, err := s.gw.Incr(ctx, fmt.Sprintf("stat:processed:%s", workerID))
	return err
}

func (s *Stats) IncrFailed(ctx context.Context, workerID string) error {
	if _, err := s.gw.Incr(ctx, "stat:failed"); err != nil {
		return err
	}
	_, err := s.gw.Incr(ctx, fmt.Sprintf("stat:failed:%s", workerID))
	return err
}

// Processed returns the per-worker processed count, 0 if absent.
func (s *Stats) Processed(ctx context.Context, workerID string) (int64, error) {
	return s.readInt(ctx, fmt.Sprintf("stat:processed:%s", workerID))
}

// Failed returns the per-worker failed count, 0 if absent.
func (s *Stats) Failed(ctx context.Context, workerID string) (int64, error) {
	return s.readInt(ctx, fmt.Sprintf("stat:failed:%s", workerID))
}

// GlobalProcessed returns the all-workers processed count.
func (s *Stats) GlobalProcessed(ctx context.Context) (int64, error) {
	return s.readInt(ctx, "stat:processed")
}

// GlobalFailed returns the all-workers failed count.
func (s *Stats) GlobalFailed(ctx context.Context) (int64, error) {
	return s.readInt(ctx, "stat:failed")
}

func (s *Stats) readInt(ctx context.Context, key string) (int64, error) {
	raw, found, err := s.gw.Get(ctx, key)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, nil
	}
	var n int64
	if _, err := fmt.Sscanf(raw, "%d", &n); err != nil {
		return 0, fmt.Errorf("resque: parse counter %s: %w", key, err)
	}
	return n, nil
}

// Clear deletes the per-worker counters, called from Registry.Unregister.
func (s *Stats) Clear(ctx context.Context, workerID string) error {
	return s.gw.Del(ctx,
		fmt.Sprintf("stat:processed:%s", workerID),
		fmt.Sprintf("stat:failed:%s", workerID),
	)
}
