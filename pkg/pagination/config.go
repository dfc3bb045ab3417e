// Package pagination carries page requests from the query string to the
// stores and page results back to the client.
package pagination

import (
	"errors"
	"os"
	"strconv"
)

// Config bounds the page sizes a client may request.
type Config struct {
	DefaultPageSize int `toml:"default_page_size"`
	MaxPageSize     int `toml:"max_page_size"`
}

// ConfigEnv names the environment variables that override Config.
type ConfigEnv struct {
	DefaultPageSize string
	MaxPageSize     string
}

func (c *Config) Finalize(env *ConfigEnv) error {
	if c.DefaultPageSize <= 0 {
		c.DefaultPageSize = 20
	}
	if c.MaxPageSize <= 0 {
		c.MaxPageSize = 100
	}
	if env != nil {
		envInt(&c.DefaultPageSize, env.DefaultPageSize)
		envInt(&c.MaxPageSize, env.MaxPageSize)
	}
	return c.validate()
}

func (c *Config) Merge(overlay *Config) {
	if overlay.DefaultPageSize != 0 {
		c.DefaultPageSize = overlay.DefaultPageSize
	}
	if overlay.MaxPageSize != 0 {
		c.MaxPageSize = overlay.MaxPageSize
	}
}

func (c *Config) validate() error {
	switch {
	case c.DefaultPageSize < 1:
		return errors.New("default_page_size must be positive")
	case c.MaxPageSize < 1:
		return errors.New("max_page_size must be positive")
	case c.DefaultPageSize > c.MaxPageSize:
		return errors.New("default_page_size cannot exceed max_page_size")
	}
	return nil
}

func envInt(dst *int, name string) {
	if name == "" {
		return
	}
	if n, err := strconv.Atoi(os.Getenv(name)); err == nil {
		*dst = n
	}
}
