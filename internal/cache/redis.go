// Package cache holds short-lived state: response caches, rate-limit counters
// and one-time codes. Redis backs it in production; Memory is an expiring map
// for tests and single-process development.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"

	"bigbag/internal/resilience"
	"bigbag/internal/telemetry"
)

// ErrMiss is returned when a key is absent or expired.
var ErrMiss = errors.New("cache: miss")

type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	// GetDel returns the value and removes it in one step.
	GetDel(ctx context.Context, key string) ([]byte, error)
	// IsRateLimited counts a hit against key and reports whether more than
	// limit hits landed within window.
	IsRateLimited(ctx context.Context, key string, limit int, window time.Duration) bool
}

type Client struct {
	rdb     *redis.Client
	breaker *resilience.CircuitBreaker
}

var _ Cache = (*Client)(nil)

func NewClient(ctx context.Context, addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	err := resilience.Retry(ctx, 3, time.Second, func() error {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return rdb.Ping(pingCtx).Err()
	})
	if err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	return &Client{
		rdb:     rdb,
		breaker: resilience.NewCircuitBreaker("redis", 5, 10*time.Second),
	}, nil
}

// do runs fn behind the breaker so a dead redis fails fast. Misses are not
// failures.
func (c *Client) do(fn func() error) error {
	var miss bool
	err := c.breaker.Do(func() error {
		err := fn()
		if errors.Is(err, redis.Nil) {
			miss = true
			return nil
		}
		return err
	})
	if miss {
		return ErrMiss
	}
	return err
}

// IsRateLimited counts hits in a fixed window that starts at the first hit.
// INCR and EXPIRE NX run in one MULTI/EXEC. EXPIRE NX needs Redis 7.
func (c *Client) IsRateLimited(ctx context.Context, key string, limit int, window time.Duration) bool {
	key = fmt.Sprintf("ratelimit:%s", key)

	var incr *redis.IntCmd
	err := c.do(func() error {
		_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			incr = pipe.Incr(ctx, key)
			pipe.ExpireNX(ctx, key, window)
			return nil
		})
		return err
	})
	if err != nil {
		// fail open: losing the limiter must not take the API down
		slog.Warn("Rate limit check failed", "key", key, "error", err)
		return false
	}

	return incr.Val() > int64(limit)
}

func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := c.do(func() error {
		var err error
		data, err = c.rdb.Get(ctx, key).Bytes()
		return err
	})
	telemetry.ObserveCache(err == nil)
	return data, err
}

func (c *Client) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	return c.do(func() error {
		return c.rdb.Set(ctx, key, data, ttl).Err()
	})
}

func (c *Client) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.do(func() error {
		return c.rdb.Del(ctx, keys...).Err()
	})
}

func (c *Client) GetDel(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := c.do(func() error {
		var err error
		data, err = c.rdb.GetDel(ctx, key).Bytes()
		return err
	})
	return data, err
}

func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func (c *Client) Close() error {
	return c.rdb.Close()
}
