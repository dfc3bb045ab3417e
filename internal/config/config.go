// Package config loads the service configuration from config.toml, an
// optional environment overlay, and CIVIC_* environment variables.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/JaimeStill/civic/internal/geocoding"
	"github.com/JaimeStill/civic/internal/vision"
	"github.com/JaimeStill/civic/pkg/auth"
	"github.com/JaimeStill/civic/pkg/cache"
	"github.com/JaimeStill/civic/pkg/database"
	"github.com/JaimeStill/civic/pkg/events"
	"github.com/JaimeStill/civic/pkg/storage"
)

const (
	BaseConfigFile       = "config.toml"
	OverlayConfigPattern = "config.%s.toml"

	EnvCivicEnv             = "CIVIC_ENV"
	EnvCivicShutdownTimeout = "CIVIC_SHUTDOWN_TIMEOUT"
	EnvCivicVersion         = "CIVIC_VERSION"
)

var databaseEnv = &database.Env{
	URL:             "CIVIC_DB_URL",
	Host:            "CIVIC_DB_HOST",
	Port:            "CIVIC_DB_PORT",
	Name:            "CIVIC_DB_NAME",
	User:            "CIVIC_DB_USER",
	Password:        "CIVIC_DB_PASSWORD",
	SSLMode:         "CIVIC_DB_SSL_MODE",
	MaxOpenConns:    "CIVIC_DB_MAX_OPEN_CONNS",
	MaxIdleConns:    "CIVIC_DB_MAX_IDLE_CONNS",
	ConnMaxLifetime: "CIVIC_DB_CONN_MAX_LIFETIME",
	ConnTimeout:     "CIVIC_DB_CONN_TIMEOUT",
}

var storageEnv = &storage.Env{
	Backend:          "CIVIC_STORAGE_BACKEND",
	ContainerName:    "CIVIC_STORAGE_CONTAINER_NAME",
	ConnectionString: "CIVIC_STORAGE_CONNECTION_STRING",
	AccountURL:       "CIVIC_STORAGE_ACCOUNT_URL",
}

var geocoderEnv = &geocoding.ConfigEnv{
	BaseURL: "CIVIC_GEOCODER_BASE_URL",
	APIKey:  "CIVIC_GEOCODER_API_KEY",
	Timeout: "CIVIC_GEOCODER_TIMEOUT",
}

var visionEnv = &vision.ConfigEnv{
	BaseURL: "CIVIC_VISION_BASE_URL",
	Timeout: "CIVIC_VISION_TIMEOUT",
}

var cacheEnv = &cache.Env{
	URL:         "CIVIC_CACHE_URL",
	PoolSize:    "CIVIC_CACHE_POOL_SIZE",
	DialTimeout: "CIVIC_CACHE_DIAL_TIMEOUT",
	TTL:         "CIVIC_CACHE_TTL",
}

var eventsEnv = &events.Env{
	Brokers:      "CIVIC_EVENTS_BROKERS",
	Topic:        "CIVIC_EVENTS_TOPIC",
	WriteTimeout: "CIVIC_EVENTS_WRITE_TIMEOUT",
}

var authEnv = &auth.Env{
	Issuer:   "CIVIC_AUTH_ISSUER",
	Audience: "CIVIC_AUTH_AUDIENCE",
}

// Config is the root configuration for the civic service.
type Config struct {
	Server          ServerConfig     `toml:"server"`
	Database        database.Config  `toml:"database"`
	Storage         storage.Config   `toml:"storage"`
	API             APIConfig        `toml:"api"`
	Pipeline        PipelineConfig   `toml:"pipeline"`
	Geocoder        geocoding.Config `toml:"geocoder"`
	Vision          vision.Config    `toml:"vision"`
	Cache           cache.Config     `toml:"cache"`
	Events          events.Config    `toml:"events"`
	Auth            auth.Config      `toml:"auth"`
	ShutdownTimeout string           `toml:"shutdown_timeout"`
	Version         string           `toml:"version"`
}

// Env returns the CIVIC_ENV value, defaulting to "local".
func (c *Config) Env() string {
	if env := os.Getenv(EnvCivicEnv); env != "" {
		return env
	}
	return "local"
}

func (c *Config) ShutdownTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.ShutdownTimeout)
	return d
}

// Load reads the base config (if present), applies any environment overlay,
// and finalizes all values. Without a config.toml, defaults and environment
// variables provide everything.
func Load() (*Config, error) {
	cfg := &Config{}

	if _, err := os.Stat(BaseConfigFile); err == nil {
		loaded, err := load(BaseConfigFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if path := overlayPath(); path != "" {
		overlay, err := load(path)
		if err != nil {
			return nil, fmt.Errorf("load overlay %s: %w", path, err)
		}
		cfg.Merge(overlay)
	}

	if err := cfg.Finalize(); err != nil {
		return nil, fmt.Errorf("finalize config: %w", err)
	}

	return cfg, nil
}

// Merge overwrites non-zero fields from overlay across all sections.
func (c *Config) Merge(overlay *Config) {
	if overlay.ShutdownTimeout != "" {
		c.ShutdownTimeout = overlay.ShutdownTimeout
	}
	if overlay.Version != "" {
		c.Version = overlay.Version
	}
	c.Server.Merge(&overlay.Server)
	c.Database.Merge(&overlay.Database)
	c.Storage.Merge(&overlay.Storage)
	c.API.Merge(&overlay.API)
	c.Pipeline.Merge(&overlay.Pipeline)
	c.Geocoder.Merge(&overlay.Geocoder)
	c.Vision.Merge(&overlay.Vision)
	c.Cache.Merge(&overlay.Cache)
	c.Events.Merge(&overlay.Events)
	c.Auth.Merge(&overlay.Auth)
}

// Finalize applies defaults, environment overrides, and validation to
// every section.
func (c *Config) Finalize() error {
	c.loadDefaults()
	c.loadEnv()

	if err := c.validate(); err != nil {
		return err
	}

	sections := []struct {
		name     string
		finalize func() error
	}{
		{"server", c.Server.Finalize},
		{"database", func() error { return c.Database.Finalize(databaseEnv) }},
		{"storage", func() error { return c.Storage.Finalize(storageEnv) }},
		{"api", c.API.Finalize},
		{"pipeline", c.Pipeline.Finalize},
		{"geocoder", func() error { return c.Geocoder.Finalize(geocoderEnv) }},
		{"vision", func() error { return c.Vision.Finalize(visionEnv) }},
		{"cache", func() error { return c.Cache.Finalize(cacheEnv) }},
		{"events", func() error { return c.Events.Finalize(eventsEnv) }},
		{"auth", func() error { return c.Auth.Finalize(authEnv) }},
	}
	for _, s := range sections {
		if err := s.finalize(); err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
	}
	return nil
}

func (c *Config) loadDefaults() {
	if c.ShutdownTimeout == "" {
		c.ShutdownTimeout = "30s"
	}
	if c.Version == "" {
		c.Version = "0.1.0"
	}
}

func (c *Config) loadEnv() {
	if v := os.Getenv(EnvCivicShutdownTimeout); v != "" {
		c.ShutdownTimeout = v
	}
	if v := os.Getenv(EnvCivicVersion); v != "" {
		c.Version = v
	}
}

func (c *Config) validate() error {
	if _, err := time.ParseDuration(c.ShutdownTimeout); err != nil {
		return fmt.Errorf("invalid shutdown_timeout: %w", err)
	}
	return nil
}

func load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return &cfg, nil
}

func overlayPath() string {
	if env := os.Getenv(EnvCivicEnv); env != "" {
		path := fmt.Sprintf(OverlayConfigPattern, env)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
