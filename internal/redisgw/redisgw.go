// Package redisgw is the single point of access to Redis used by the
// worker core. It exposes only the narrow set of commands the core needs
// (list push/pop, blocking pop, set membership, scalar get/set/del, incr,
// keys-by-pattern) and classifies every error as either a connection
// fault (ErrDisconnected) or an application error, so callers never have
// to sniff go-redis error strings themselves.
//
// The gateway never retries. Reconnection policy belongs to the caller
// (the worker loop) — see spec.md §4.A.
package redisgw

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Logger is the minimal logging surface the gateway needs.
type Logger interface {
	Debug(format string, args ...interface{})
	Warn(format string, args ...interface{})
	Error(format string, args ...interface{})
}

// ErrDisconnected is returned when a command fails due to a broken
// connection rather than an application-level condition.
var ErrDisconnected = errors.New("redisgw: disconnected")

// Gateway is the facade every other component talks to.
type Gateway interface {
	Ping(ctx context.Context) error

	LPush(ctx context.Context, key string, value string) error
	RPop(ctx context.Context, key string) (string, bool, error)
	BRPop(ctx context.Context, timeout time.Duration, keys ...string) (key, value string, found bool, err error)

	SAdd(ctx context.Context, key string, member string) error
	SRem(ctx context.Context, key string, member string) error
	SIsMember(ctx context.Context, key string, member string) (bool, error)
	SMembers(ctx context.Context, key string) ([]string, error)

	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	Incr(ctx context.Context, key string) (int64, error)

	Keys(ctx context.Context, pattern string) ([]string, error)

	Close() error
}

// RealGateway is a Gateway backed by a live go-redis client.
type RealGateway struct {
	rdb    *redis.Client
	logger Logger
}

// Options mirrors the subset of redis.Options the worker cares about.
type Options struct {
	Addr     string
	Password string
	DB       int
}

// New creates a RealGateway. The connection is established lazily by
// go-redis on first use. go-redis's own command retries are disabled so
// that a failed command reaches the caller on the first attempt.
func New(opts Options, logger Logger) *RealGateway {
	if logger == nil {
		logger = discardLogger{}
	}
	return &RealGateway{
		rdb: redis.NewClient(&redis.Options{
			Addr:       opts.Addr,
			Password:   opts.Password,
			DB:         opts.DB,
			MaxRetries: -1,
		}),
		logger: logger,
	}
}

// classify turns a go-redis error into either ErrDisconnected or the
// original error. redis.Nil ("key/value not found") is not an error at
// this layer — callers use the bool "found" return instead.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, redis.Nil) {
		return nil
	}

	msg := strings.ToLower(err.Error())
	for _, pattern := range connectionErrorPatterns {
		if strings.Contains(msg, pattern) {
			return fmt.Errorf("%w: %v", ErrDisconnected, err)
		}
	}
	return err
}

// connectionErrorPatterns are substrings of go-redis error messages that
// indicate the underlying TCP connection is gone rather than the command
// itself being invalid.
var connectionErrorPatterns = []string{
	"i/o timeout",
	"connection reset",
	"connection refused",
	"broken pipe",
	"use of closed network connection",
	"no route to host",
	"network is unreachable",
	"eof",
}

func (g *RealGateway) Ping(ctx context.Context) error {
	return classify(g.rdb.Ping(ctx).Err())
}

func (g *RealGateway) LPush(ctx context.Context, key, value string) error {
	return classify(g.rdb.LPush(ctx, key, value).Err())
}

func (g *RealGateway) RPop(ctx context.Context, key string) (string, bool, error) {
	v, err := g.rdb.RPop(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err := classify(err); err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (g *RealGateway) BRPop(ctx context.Context, timeout time.Duration, keys ...string) (string, string, bool, error) {
	if len(keys) == 0 {
		return "", "", false, nil
	}
	res, err := g.rdb.BRPop(ctx, timeout, keys...).Result()
	if errors.Is(err, redis.Nil) {
		return "", "", false, nil
	}
	if err := classify(err); err != nil {
		return "", "", false, err
	}
	if len(res) != 2 {
		return "", "", false, nil
	}
	return res[0], res[1], true, nil
}

func (g *RealGateway) SAdd(ctx context.Context, key, member string) error {
	return classify(g.rdb.SAdd(ctx, key, member).Err())
}

func (g *RealGateway) SRem(ctx context.Context, key, member string) error {
	return classify(g.rdb.SRem(ctx, key, member).Err())
}

func (g *RealGateway) SIsMember(ctx context.Context, key, member string) (bool, error) {
	v, err := g.rdb.SIsMember(ctx, key, member).Result()
	if err := classify(err); err != nil {
		return false, err
	}
	return v, nil
}

func (g *RealGateway) SMembers(ctx context.Context, key string) ([]string, error) {
	v, err := g.rdb.SMembers(ctx, key).Result()
	if err := classify(err); err != nil {
		return nil, err
	}
	return v, nil
}

func (g *RealGateway) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := g.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err := classify(err); err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (g *RealGateway) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return classify(g.rdb.Set(ctx, key, value, ttl).Err())
}

func (g *RealGateway) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return classify(g.rdb.Del(ctx, keys...).Err())
}

func (g *RealGateway) Incr(ctx context.Context, key string) (int64, error) {
	v, err := g.rdb.Incr(ctx, key).Result()
	if err := classify(err); err != nil {
		return 0, err
	}
	return v, nil
}

func (g *RealGateway) Keys(ctx context.Context, pattern string) ([]string, error) {
	v, err := g.rdb.Keys(ctx, pattern).Result()
	if err := classify(err); err != nil {
		return nil, err
	}
	return v, nil
}

func (g *RealGateway) Close() error {
	return g.rdb.Close()
}

type discardLogger struct{}

func (discardLogger) Debug(string, ...interface{}) {}
func (discardLogger) Warn(string, ...interface{})  {}
func (discardLogger) Error(string, ...interface{}) {}
