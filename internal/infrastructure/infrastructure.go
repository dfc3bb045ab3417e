// Package infrastructure assembles the shared systems every domain module
// depends on: lifecycle, logging, database, storage, cache, events,
// metrics, and authentication.
package infrastructure

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/JaimeStill/civic/internal/config"
	"github.com/JaimeStill/civic/internal/metrics"
	"github.com/JaimeStill/civic/pkg/auth"
	"github.com/JaimeStill/civic/pkg/cache"
	"github.com/JaimeStill/civic/pkg/database"
	"github.com/JaimeStill/civic/pkg/events"
	"github.com/JaimeStill/civic/pkg/lifecycle"
	"github.com/JaimeStill/civic/pkg/storage"
)

const discoveryTimeout = 10 * time.Second

type Infrastructure struct {
	Lifecycle *lifecycle.Coordinator
	Logger    *slog.Logger
	Database  database.System
	Storage   storage.System
	Cache     *cache.Client
	Events    events.Publisher
	Registry  *prometheus.Registry
	Metrics   *metrics.Metrics
	Auth      *auth.Authenticator
}

// New creates every system but starts none of them; call Start separately.
// Cache and OIDC are optional and stay nil or disabled when unconfigured.
func New(cfg *config.Config) (*Infrastructure, error) {
	lc := lifecycle.New()
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	db, err := database.New(&cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("database init failed: %w", err)
	}

	store, err := storage.New(&cfg.Storage, logger)
	if err != nil {
		return nil, fmt.Errorf("storage init failed: %w", err)
	}

	c, err := cache.New(&cfg.Cache, logger)
	if err != nil {
		return nil, fmt.Errorf("cache init failed: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewDBStatsCollector(db.Connection(), "civic"),
	)

	authenticator, err := newAuthenticator(&cfg.Auth, logger)
	if err != nil {
		return nil, fmt.Errorf("auth init failed: %w", err)
	}

	return &Infrastructure{
		Lifecycle: lc,
		Logger:    logger,
		Database:  db,
		Storage:   store,
		Cache:     c,
		Events:    events.New(&cfg.Events, logger),
		Registry:  registry,
		Metrics:   metrics.New(registry),
		Auth:      authenticator,
	}, nil
}

func newAuthenticator(cfg *auth.Config, logger *slog.Logger) (*auth.Authenticator, error) {
	if !cfg.Enabled() {
		logger.Warn("authentication disabled, requests run unrestricted")
		return auth.New(nil, logger), nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), discoveryTimeout)
	defer cancel()

	verifier, err := auth.NewOIDCVerifier(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return auth.New(verifier, logger), nil
}

// Start registers every system with the lifecycle coordinator.
func (i *Infrastructure) Start() error {
	if err := i.Database.Start(i.Lifecycle); err != nil {
		return fmt.Errorf("database start failed: %w", err)
	}
	if err := i.Storage.Start(i.Lifecycle); err != nil {
		return fmt.Errorf("storage start failed: %w", err)
	}
	if err := i.Cache.Start(i.Lifecycle); err != nil {
		return fmt.Errorf("cache start failed: %w", err)
	}
	events.Start(i.Events, i.Lifecycle)
	return nil
}
