// Package cache wraps a Redis client for read-through caching of
// collaborator lookups. A nil *Client is a valid, always-missing cache.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/JaimeStill/civic/pkg/lifecycle"
)

type Client struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *slog.Logger
	ready  atomic.Bool
}

// New returns nil, nil when cfg.URL is empty.
func New(cfg *Config, logger *slog.Logger) (*Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opts.PoolSize = cfg.PoolSize
	opts.DialTimeout = cfg.DialTimeoutDuration()

	return &Client{
		rdb:    redis.NewClient(opts),
		ttl:    cfg.TTLDuration(),
		logger: logger.With("system", "cache"),
	}, nil
}

// NewFromRedis wraps an existing client.
func NewFromRedis(rdb *redis.Client, ttl time.Duration, logger *slog.Logger) *Client {
	c := &Client{rdb: rdb, ttl: ttl, logger: logger.With("system", "cache")}
	c.ready.Store(true)
	return c
}

func (c *Client) Ready() bool {
	return c != nil && c.ready.Load()
}

func (c *Client) Start(lc *lifecycle.Coordinator) error {
	if c == nil {
		return nil
	}
	c.logger.Info("starting cache")

	lc.OnStartup(func() {
		if err := c.rdb.Ping(lc.Context()).Err(); err != nil {
			c.logger.Warn("redis ping failed, cache disabled until reachable", "error", err)
			return
		}
		c.ready.Store(true)
		c.logger.Info("cache connection established")
	})

	lc.OnShutdown(func() {
		<-lc.Context().Done()
		c.ready.Store(false)
		if err := c.rdb.Close(); err != nil {
			c.logger.Error("cache close failed", "error", err)
		}
	})

	return nil
}

// GetJSON decodes the cached value at key into dst and reports whether it was found.
// Redis errors are logged and treated as a miss.
func (c *Client) GetJSON(ctx context.Context, key string, dst any) bool {
	if c == nil {
		return false
	}

	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("cache get failed", "key", key, "error", err)
		}
		return false
	}

	if err := json.Unmarshal(raw, dst); err != nil {
		c.logger.Warn("cache decode failed", "key", key, "error", err)
		return false
	}
	return true
}

// SetJSON stores v at key with the configured TTL. Failures are logged only.
func (c *Client) SetJSON(ctx context.Context, key string, v any) {
	if c == nil {
		return
	}

	raw, err := json.Marshal(v)
	if err != nil {
		c.logger.Warn("cache encode failed", "key", key, "error", err)
		return
	}

	if err := c.rdb.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		c.logger.Warn("cache set failed", "key", key, "error", err)
	}
}
