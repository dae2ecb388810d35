package resque

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/resquego/resque/internal/redisgw"
)

// Reserver implements spec.md §4.C's Queue Reservation: given an ordered
// list of queue names, pop the next job — either by polling each queue in
// order (starving lower-priority queues on purpose) or with a single
// blocking multi-key pop.
type Reserver struct {
	gw     redisgw.Gateway
	logger Logger
}

// NewReserver creates a Reserver.
func NewReserver(gw redisgw.Gateway, logger Logger) *Reserver {
	if logger == nil {
		logger = nopLogger{}
	}
	return &Reserver{gw: gw, logger: logger}
}

func queueKey(name string) string { return fmt.Sprintf("queue:%s", name) }

// resolveQueues expands the "*" wildcard to the lexically sorted set of
// currently known queues, re-evaluated on every call, per spec.md §4.C.
func (r *Reserver) resolveQueues(ctx context.Context, declared []string) ([]string, error) {
	for _, q := range declared {
		if q == "*" {
			known, err := r.gw.SMembers(ctx, "queues")
			if err != nil {
				return nil, err
			}
			sort.Strings(known)
			return known, nil
		}
	}
	return declared, nil
}

// ReservePolled iterates queues in priority order, non-blocking-popping
// each in turn, and returns the first job found. Returns a nil payload and
// a nil error if no queue has a job. A malformed payload is logged and
// discarded, and the scan moves on to the next queue.
func (r *Reserver) ReservePolled(ctx context.Context, declared []string) (queue string, payload *Payload, err error) {
	queues, err := r.resolveQueues(ctx, declared)
	if err != nil {
		return "", nil, err
	}

	for _, q := range queues {
		raw, found, err := r.gw.RPop(ctx, queueKey(q))
		if err != nil {
			return "", nil, err
		}
		if !found {
			continue
		}
		p, decErr := DecodePayload(raw)
		if decErr != nil {
			r.logger.Warn("discarding malformed payload on queue %q: %v", q, decErr)
			continue
		}
		return q, p, nil
	}
	return "", nil, nil
}

// ReserveBlocking performs a single atomic BRPOP across all declared
// queues, bounded by timeout. Redis resolves priority ties by first-key-
// nonempty-wins, so the caller's queue order still determines priority.
// An empty queue list sleeps for timeout and returns no job, matching
// spec.md §4.C.
func (r *Reserver) ReserveBlocking(ctx context.Context, declared []string, timeout time.Duration) (queue string, payload *Payload, err error) {
	queues, err := r.resolveQueues(ctx, declared)
	if err != nil {
		return "", nil, err
	}

	if len(queues) == 0 {
		select {
		case <-ctx.Done():
			return "", nil, ctx.Err()
		case <-time.After(timeout):
		}
		return "", nil, nil
	}

	keys := make([]string, len(queues))
	for i, q := range queues {
		keys[i] = queueKey(q)
	}

	key, raw, found, err := r.gw.BRPop(ctx, timeout, keys...)
	if err != nil {
		return "", nil, err
	}
	if !found {
		return "", nil, nil
	}

	q := queueNameFromKey(key)
	p, decErr := DecodePayload(raw)
	if decErr != nil {
		r.logger.Warn("discarding malformed payload on queue %q: %v", q, decErr)
		return "", nil, nil
	}
	return q, p, nil
}

func queueNameFromKey(key string) string {
	const prefix = "queue:"
	if len(key) > len(prefix) && key[:len(prefix)] == prefix {
		return key[len(prefix):]
	}
	return key
}
