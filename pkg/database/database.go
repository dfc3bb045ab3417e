// Package database owns the PostgreSQL pool and reports its readiness to
// the lifecycle coordinator.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/JaimeStill/civic/pkg/lifecycle"
)

// ErrNotReady wraps every Ping failure.
var ErrNotReady = errors.New("database not ready")

const (
	startupAttempts = 5
	startupBackoff  = 500 * time.Millisecond
)

type System interface {
	Connection() *sql.DB
	// Start registers a readiness check and the startup and shutdown hooks.
	Start(lc *lifecycle.Coordinator) error
	// Ping verifies connectivity and records the result for Ready.
	Ping(ctx context.Context) error
	Ready() bool
}

type database struct {
	conn        *sql.DB
	logger      *slog.Logger
	connTimeout time.Duration
	ready       atomic.Bool
}

// New configures the pool without dialing; the first connection is made
// by the startup hook.
func New(cfg *Config, logger *slog.Logger) (System, error) {
	db, err := sql.Open("pgx", cfg.Dsn())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetimeDuration())

	logger = logger.With("system", "database")
	logger.Info("database configured", "dsn", cfg.Redacted(), "max_open", cfg.MaxOpenConns)

	return &database{
		conn:        db,
		logger:      logger,
		connTimeout: cfg.ConnTimeoutDuration(),
	}, nil
}

func (d *database) Connection() *sql.DB { return d.conn }

func (d *database) Ready() bool { return d.ready.Load() }

func (d *database) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, d.connTimeout)
	defer cancel()

	err := d.conn.PingContext(ctx)
	d.ready.Store(err == nil)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrNotReady, err)
	}
	return nil
}

func (d *database) Start(lc *lifecycle.Coordinator) error {
	lc.RegisterCheck("database", d)

	lc.OnStartup(func() {
		if err := d.connect(lc.Context()); err != nil {
			d.logger.Error("database unreachable", "attempts", startupAttempts, "error", err)
			return
		}
		d.logger.Info("database connection established")
	})

	lc.OnShutdown(func() {
		<-lc.Context().Done()
		d.ready.Store(false)
		if err := d.conn.Close(); err != nil {
			d.logger.Error("database close failed", "error", err)
			return
		}
		d.logger.Info("database connection closed")
	})

	return nil
}

// connect pings with doubling backoff, giving up after startupAttempts
// or when ctx ends.
func (d *database) connect(ctx context.Context) error {
	wait := startupBackoff
	var err error
	for attempt := 1; attempt <= startupAttempts; attempt++ {
		if err = d.Ping(ctx); err == nil {
			return nil
		}
		d.logger.Warn("database ping failed", "attempt", attempt, "retry_in", wait, "error", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		wait *= 2
	}
	return err
}
