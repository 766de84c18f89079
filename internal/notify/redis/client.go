// Package redis implements two notify-sink concerns on top of go-redis/v9:
// a Pub/Sub broadcaster (publisher.go) that mirrors every delivered
// domain.OrderState as JSON to external listeners, and a distributed lock
// (lock.go) that keeps the S3 snapshot archiver single-flighted across
// more than one watcher instance.
package redis

import (
	"context"
	"crypto/tls"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// ClientConfig holds connection parameters for the shared Redis client
// this package's sinks are built on.
type ClientConfig struct {
	Addr       string
	Password   string
	DB         int
	PoolSize   int
	MaxRetries int
	TLSEnabled bool
}

func (cfg ClientConfig) toOptions() *redis.Options {
	opts := &redis.Options{
		Addr:       cfg.Addr,
		Password:   cfg.Password,
		DB:         cfg.DB,
		PoolSize:   cfg.PoolSize,
		MaxRetries: cfg.MaxRetries,
	}
	if cfg.TLSEnabled {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return opts
}

// Client owns the go-redis connection shared by the Publisher and
// LockManager built on top of it.
type Client struct {
	rdb *redis.Client
}

// New dials Redis per cfg and confirms the connection with a Ping before
// returning, so wiring fails fast instead of on the first publish/lock
// attempt.
func New(ctx context.Context, cfg ClientConfig) (*Client, error) {
	rdb := redis.NewClient(cfg.toOptions())

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// PoolStats exposes the underlying connection pool's counters, useful for
// a health endpoint or periodic diagnostic log line.
func (c *Client) PoolStats() *redis.PoolStats {
	return c.rdb.PoolStats()
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Underlying returns the raw *redis.Client for this package's own
// Publisher and LockManager constructors.
func (c *Client) Underlying() *redis.Client {
	return c.rdb
}
