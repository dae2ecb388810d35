package resque

import (
	"crypto/tls"
	"time"
)

// Config holds the configuration for a Worker.
type Config struct {
	// Redis connection settings.
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisTLS      *tls.Config // not passed to the Redis connection: connections are plaintext

	// Queues lists the queue names to reserve from, in priority order
	// (index 0 = highest priority). The literal entry "*" means "every
	// queue currently known to Redis, lexically sorted, re-evaluated on
	// every reservation".
	Queues []string

	// Blocking selects blocking multi-key BRPOP reservation instead of
	// polling each queue in turn.
	Blocking bool

	// Interval is the poll sleep between reservation attempts in polled
	// mode, and the BRPOP timeout in blocking mode. An Interval of 0
	// means "single pass": the worker loop exits immediately after one
	// reservation attempt finds nothing, which is useful for tests and
	// one-shot invocations.
	Interval time.Duration

	// StatusTTL is how long a job status record lives in Redis before it
	// expires. Zero means DefaultStatusTTL.
	StatusTTL time.Duration

	// Hostname overrides os.Hostname() for worker identity and for the
	// host-local pruning check. Only needed in environments that report
	// hostnames inconsistently (FQDN vs short name) across the fleet.
	Hostname string

	// Logger is optional; it defaults to a StdLogger.
	Logger Logger

	// Hooks are optional lifecycle callbacks.
	Hooks Hooks
}

// DefaultStatusTTL is the default lifetime of a job status record.
const DefaultStatusTTL = 24 * time.Hour

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		RedisAddr: "localhost:6379",
		RedisDB:   0,
		Queues:    []string{"default"},
		Interval:  5 * time.Second,
		StatusTTL: DefaultStatusTTL,
		Logger:    NewStdLogger(),
	}
}
