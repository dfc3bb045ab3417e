package geocoding

import (
	"fmt"
	"os"
	"time"
)

type Config struct {
	BaseURL string `toml:"base_url"`
	APIKey  string `toml:"api_key"`
	Timeout string `toml:"timeout"`
}

type ConfigEnv struct {
	BaseURL string
	APIKey  string
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
	if overlay.APIKey != "" {
		c.APIKey = overlay.APIKey
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
		c.BaseURL = "https://maps.googleapis.com"
	}
	if c.Timeout == "" {
		c.Timeout = "5s"
	}
}

func (c *Config) loadEnv(env *ConfigEnv) {
	if env.BaseURL != "" {
		if v := os.Getenv(env.BaseURL); v != "" {
			c.BaseURL = v
		}
	}
	if env.APIKey != "" {
		if v := os.Getenv(env.APIKey); v != "" {
			c.APIKey = v
		}
	}
	if env.Timeout != "" {
		if v := os.Getenv(env.Timeout); v != "" {
			c.Timeout = v
		}
	}
}

func (c *Config) validate() error {
	if _, err := time.ParseDuration(c.Timeout); err != nil {
		return fmt.Errorf("invalid timeout: %w", err)
	}
	return nil
}
