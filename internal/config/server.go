package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	EnvServerHost              = "CIVIC_SERVER_HOST"
	EnvServerPort              = "CIVIC_SERVER_PORT"
	EnvServerReadTimeout       = "CIVIC_SERVER_READ_TIMEOUT"
	EnvServerReadHeaderTimeout = "CIVIC_SERVER_READ_HEADER_TIMEOUT"
	EnvServerWriteTimeout      = "CIVIC_SERVER_WRITE_TIMEOUT"
	EnvServerIdleTimeout       = "CIVIC_SERVER_IDLE_TIMEOUT"
	EnvServerShutdownTimeout   = "CIVIC_SERVER_SHUTDOWN_TIMEOUT"
)

// ServerConfig holds HTTP listener parameters. Read and write timeouts
// bound multipart evidence uploads, so they default well above the
// header timeout.
type ServerConfig struct {
	Host              string `toml:"host"`
	Port              int    `toml:"port"`
	ReadTimeout       string `toml:"read_timeout"`
	ReadHeaderTimeout string `toml:"read_header_timeout"`
	WriteTimeout      string `toml:"write_timeout"`
	IdleTimeout       string `toml:"idle_timeout"`
	ShutdownTimeout   string `toml:"shutdown_timeout"`
}

func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func (c *ServerConfig) ReadTimeoutDuration() time.Duration       { return mustDuration(c.ReadTimeout) }
func (c *ServerConfig) ReadHeaderTimeoutDuration() time.Duration { return mustDuration(c.ReadHeaderTimeout) }
func (c *ServerConfig) WriteTimeoutDuration() time.Duration      { return mustDuration(c.WriteTimeout) }
func (c *ServerConfig) IdleTimeoutDuration() time.Duration       { return mustDuration(c.IdleTimeout) }
func (c *ServerConfig) ShutdownTimeoutDuration() time.Duration   { return mustDuration(c.ShutdownTimeout) }

func (c *ServerConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *ServerConfig) Merge(overlay *ServerConfig) {
	if overlay.Host != "" {
		c.Host = overlay.Host
	}
	if overlay.Port != 0 {
		c.Port = overlay.Port
	}
	for _, d := range c.durations(overlay) {
		if *d.src != "" {
			*d.dst = *d.src
		}
	}
}

type durationField struct {
	name     string
	env      string
	fallback string
	dst      *string
	src      *string
}

// durations pairs each duration field with its overlay counterpart.
// overlay may be nil when only names and defaults are needed.
func (c *ServerConfig) durations(overlay *ServerConfig) []durationField {
	if overlay == nil {
		overlay = &ServerConfig{}
	}
	return []durationField{
		{"read_timeout", EnvServerReadTimeout, "2m", &c.ReadTimeout, &overlay.ReadTimeout},
		{"read_header_timeout", EnvServerReadHeaderTimeout, "10s", &c.ReadHeaderTimeout, &overlay.ReadHeaderTimeout},
		{"write_timeout", EnvServerWriteTimeout, "2m", &c.WriteTimeout, &overlay.WriteTimeout},
		{"idle_timeout", EnvServerIdleTimeout, "2m", &c.IdleTimeout, &overlay.IdleTimeout},
		{"shutdown_timeout", EnvServerShutdownTimeout, "30s", &c.ShutdownTimeout, &overlay.ShutdownTimeout},
	}
}

func (c *ServerConfig) loadDefaults() {
	if c.Host == "" {
		c.Host = "0.0.0.0"
	}
	if c.Port == 0 {
		c.Port = 8080
	}
	for _, d := range c.durations(nil) {
		if *d.dst == "" {
			*d.dst = d.fallback
		}
	}
}

func (c *ServerConfig) loadEnv() {
	if v := os.Getenv(EnvServerHost); v != "" {
		c.Host = v
	}
	if v := os.Getenv(EnvServerPort); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Port = port
		}
	}
	for _, d := range c.durations(nil) {
		if v := os.Getenv(d.env); v != "" {
			*d.dst = v
		}
	}
}

func (c *ServerConfig) validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	for _, d := range c.durations(nil) {
		v, err := time.ParseDuration(*d.dst)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", d.name, err)
		}
		if v <= 0 {
			return fmt.Errorf("invalid %s: must be positive", d.name)
		}
	}
	return nil
}

func mustDuration(s string) time.Duration {
	d, _ := time.ParseDuration(s)
	return d
}
