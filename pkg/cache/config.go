package cache

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds Redis connection parameters. An empty URL disables caching.
type Config struct {
	URL         string `toml:"url"`
	PoolSize    int    `toml:"pool_size"`
	DialTimeout string `toml:"dial_timeout"`
	TTL         string `toml:"ttl"`
}

type Env struct {
	URL         string
	PoolSize    string
	DialTimeout string
	TTL         string
}

func (c *Config) DialTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.DialTimeout)
	return d
}

func (c *Config) TTLDuration() time.Duration {
	d, _ := time.ParseDuration(c.TTL)
	return d
}

func (c *Config) Finalize(env *Env) error {
	c.loadDefaults()
	if env != nil {
		c.loadEnv(env)
	}
	return c.validate()
}

func (c *Config) Merge(overlay *Config) {
	if overlay.URL != "" {
		c.URL = overlay.URL
	}
	if overlay.PoolSize != 0 {
		c.PoolSize = overlay.PoolSize
	}
	if overlay.DialTimeout != "" {
		c.DialTimeout = overlay.DialTimeout
	}
	if overlay.TTL != "" {
		c.TTL = overlay.TTL
	}
}

func (c *Config) loadDefaults() {
	if c.PoolSize == 0 {
		c.PoolSize = 10
	}
	if c.DialTimeout == "" {
		c.DialTimeout = "2s"
	}
	if c.TTL == "" {
		c.TTL = "24h"
	}
}

func (c *Config) loadEnv(env *Env) {
	if env.URL != "" {
		if v := os.Getenv(env.URL); v != "" {
			c.URL = v
		}
	}
	if env.PoolSize != "" {
		if v := os.Getenv(env.PoolSize); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				c.PoolSize = n
			}
		}
	}
	if env.DialTimeout != "" {
		if v := os.Getenv(env.DialTimeout); v != "" {
			c.DialTimeout = v
		}
	}
	if env.TTL != "" {
		if v := os.Getenv(env.TTL); v != "" {
			c.TTL = v
		}
	}
}

func (c *Config) validate() error {
	if _, err := time.ParseDuration(c.DialTimeout); err != nil {
		return fmt.Errorf("invalid dial_timeout: %w", err)
	}
	if d, err := time.ParseDuration(c.TTL); err != nil || d <= 0 {
		return fmt.Errorf("invalid ttl: %q", c.TTL)
	}
	return nil
}
