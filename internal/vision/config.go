package vision

import (
	"fmt"
	"os"
	"time"
)

type Config struct {
	BaseURL string `toml:"base_url"`
	Timeout string `toml:"timeout"`
}

type ConfigEnv struct {
	BaseURL string
	Timeout string
}

func (c *Config) Finalize(env *ConfigEnv) error {
	c.loadDefaults()
	if env != nil {
		c.loadEnv(env)
	}
	return c.validate()
}

func (c *Config) Merge(overlay *Config) {
	if overlay.BaseURL != "" {
		c.BaseURL = overlay.BaseURL
	}
	if overlay.Timeout != "" {
		c.Timeout = overlay.Timeout
	}
}

func (c *Config) TimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.Timeout)
	return d
}

func (c *Config) loadDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = "http://localhost:8000"
	}
	if c.Timeout == "" {
		c.Timeout = "15s"
	}
}

func (c *Config) loadEnv(env *ConfigEnv) {
	if env.BaseURL != "" {
		if v := os.Getenv(env.BaseURL); v != "" {
			c.BaseURL = v
		}
	}
	if env.Timeout != "" {
		if v := os.Getenv(env.Timeout); v != "" {
			c.Timeout = v
		}
	}
}

func (c *Config) validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base_url required")
	}
	if _, err := time.ParseDuration(c.Timeout); err != nil {
		return fmt.Errorf("invalid timeout: %w", err)
	}
	return nil
}
