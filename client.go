package resque

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/resquego/resque/internal/redisgw"
)

// Client is the enqueue-side counterpart to Worker: it has no knowledge
// of job classes or how they run, only how to push a Payload onto a
// queue, register the queue name, and record the job's initial status
// (spec.md §4.K).
type Client struct {
	gw     redisgw.Gateway
	status *StatusStore
}

// NewClient builds a Client against an already-configured Gateway. Most
// callers enqueueing from the same process as a Worker can reuse its
// gateway; callers enqueueing from elsewhere build their own with
// redisgw.New. ttl controls how long the WAITING status record Enqueue
// writes will live before expiring; 0 means DefaultStatusTTL.
func NewClient(gw redisgw.Gateway, ttl time.Duration) *Client {
	return &Client{gw: gw, status: NewStatusStore(gw, ttl)}
}

// Enqueue pushes a new job of the given class and arguments onto queue,
// generating a fresh job id, writes an initial WAITING status for it, and
// returns the id so the caller can poll its status later.
func (c *Client) Enqueue(ctx context.Context, queue, class string, args ...interface{}) (string, error) {
	id := uuid.New().String()
	payload := &Payload{
		Class: class,
		Args:  args,
		ID:    id,
		Queue: queue,
	}

	raw, err := EncodePayload(payload)
	if err != nil {
		return "", err
	}

	if err := c.gw.SAdd(ctx, "queues", queue); err != nil {
		return "", err
	}
	if err := c.gw.LPush(ctx, queueKey(queue), raw); err != nil {
		return "", err
	}
	if err := c.status.Set(ctx, id, StatusWaiting, nil, nil, time.Time{}); err != nil {
		return "", err
	}
	return id, nil
}
