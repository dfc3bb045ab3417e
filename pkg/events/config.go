package events

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Config holds Kafka publishing parameters. No brokers disables publishing.
type Config struct {
	Brokers      []string `toml:"brokers"`
	Topic        string   `toml:"topic"`
	WriteTimeout string   `toml:"write_timeout"`
}

type Env struct {
	Brokers      string
	Topic        string
	WriteTimeout string
}

func (c *Config) Enabled() bool {
	return len(c.Brokers) > 0
}

func (c *Config) WriteTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.WriteTimeout)
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
	if len(overlay.Brokers) > 0 {
		c.Brokers = overlay.Brokers
	}
	if overlay.Topic != "" {
		c.Topic = overlay.Topic
	}
	if overlay.WriteTimeout != "" {
		c.WriteTimeout = overlay.WriteTimeout
	}
}

func (c *Config) loadDefaults() {
	if c.Topic == "" {
		c.Topic = "civic.events"
	}
	if c.WriteTimeout == "" {
		c.WriteTimeout = "5s"
	}
}

func (c *Config) loadEnv(env *Env) {
	if env.Brokers != "" {
		if v := os.Getenv(env.Brokers); v != "" {
			c.Brokers = splitBrokers(v)
		}
	}
	if env.Topic != "" {
		if v := os.Getenv(env.Topic); v != "" {
			c.Topic = v
		}
	}
	if env.WriteTimeout != "" {
		if v := os.Getenv(env.WriteTimeout); v != "" {
			c.WriteTimeout = v
		}
	}
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.Topic) == "" {
		return fmt.Errorf("topic required")
	}
	if _, err := time.ParseDuration(c.WriteTimeout); err != nil {
		return fmt.Errorf("invalid write_timeout: %w", err)
	}
	return nil
}

func splitBrokers(s string) []string {
	var brokers []string
	for b := range strings.SplitSeq(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}
