package backlog

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config schedules the stale backlog sweep. Penalties are magnitudes for
// the first, second, and every later elapsed month.
type Config struct {
	Enabled  *bool  `toml:"enabled"`
	Interval string `toml:"interval"`
	First    int64  `toml:"first_month_penalty"`
	Second   int64  `toml:"second_month_penalty"`
	Later    int64  `toml:"later_month_penalty"`
}

type ConfigEnv struct {
	Enabled  string
	Interval string
	First    string
	Second   string
	Later    string
}

func (c *Config) Finalize(env *ConfigEnv) error {
	c.loadDefaults()
	if env != nil {
		if err := c.loadEnv(env); err != nil {
			return err
		}
	}
	return c.validate()
}

func (c *Config) Merge(overlay *Config) {
	if overlay.Enabled != nil {
		c.Enabled = overlay.Enabled
	}
	if overlay.Interval != "" {
		c.Interval = overlay.Interval
	}
	if overlay.First != 0 {
		c.First = overlay.First
	}
	if overlay.Second != 0 {
		c.Second = overlay.Second
	}
	if overlay.Later != 0 {
		c.Later = overlay.Later
	}
}

func (c *Config) IsEnabled() bool {
	return c.Enabled != nil && *c.Enabled
}

func (c *Config) IntervalDuration() time.Duration {
	d, _ := time.ParseDuration(c.Interval)
	return d
}

// Penalty is the magnitude charged for elapsed month n, starting at 1.
func (c *Config) Penalty(month int) int64 {
	switch month {
	case 1:
		return c.First
	case 2:
		return c.Second
	default:
		return c.Later
	}
}

func (c *Config) loadDefaults() {
	if c.Enabled == nil {
		enabled := true
		c.Enabled = &enabled
	}
	if c.Interval == "" {
		c.Interval = "1h"
	}
	if c.First == 0 {
		c.First = 200
	}
	if c.Second == 0 {
		c.Second = 300
	}
	if c.Later == 0 {
		c.Later = 500
	}
}

func (c *Config) loadEnv(env *ConfigEnv) error {
	if env.Enabled != "" {
		if v := os.Getenv(env.Enabled); v != "" {
			enabled, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("%s: %w", env.Enabled, err)
			}
			c.Enabled = &enabled
		}
	}
	if env.Interval != "" {
		if v := os.Getenv(env.Interval); v != "" {
			c.Interval = v
		}
	}
	for _, f := range []struct {
		name string
		dst  *int64
	}{
		{env.First, &c.First},
		{env.Second, &c.Second},
		{env.Later, &c.Later},
	} {
		if f.name == "" {
			continue
		}
		if v := os.Getenv(f.name); v != "" {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return fmt.Errorf("%s: %w", f.name, err)
			}
			*f.dst = n
		}
	}
	return nil
}

func (c *Config) validate() error {
	d, err := time.ParseDuration(c.Interval)
	if err != nil {
		return fmt.Errorf("invalid interval: %w", err)
	}
	if d <= 0 {
		return fmt.Errorf("interval must be positive")
	}
	if c.First < 0 || c.Second < 0 || c.Later < 0 {
		return fmt.Errorf("penalties are magnitudes and must not be negative")
	}
	return nil
}
