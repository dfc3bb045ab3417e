package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/golang-migrate/migrate/v4"
	"github.com/joho/godotenv"

	"github.com/JaimeStill/civic/internal/config"
	"github.com/JaimeStill/civic/internal/migrations"
)

func main() {
	var (
		dsn     = flag.String("dsn", "", "Database connection string (default: from config)")
		up      = flag.Bool("up", false, "Apply all pending migrations")
		down    = flag.Bool("down", false, "Revert all migrations")
		steps   = flag.Int("steps", 0, "Migrate N steps (positive up, negative down)")
		version = flag.Bool("version", false, "Print the current schema version")
		force   = flag.Int("force", -1, "Force the schema version without migrating")
	)
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logger.Error("load .env failed", "error", err)
		os.Exit(1)
	}

	if *dsn == "" {
		cfg, err := config.Load()
		if err != nil {
			logger.Error("config load failed", "error", err)
			os.Exit(1)
		}
		*dsn = cfg.Database.Dsn()
	}

	m, err := migrations.New(*dsn)
	if err != nil {
		logger.Error("migrator init failed", "error", err)
		os.Exit(1)
	}
	defer m.Close()

	forced := false
	flag.Visit(func(f *flag.Flag) { forced = forced || f.Name == "force" })

	if err := run(m, logger, *up, *down, *steps, *version, forced, *force); err != nil {
		logger.Error("migrate failed", "error", err)
		m.Close()
		os.Exit(1)
	}
}

func run(m *migrate.Migrate, logger *slog.Logger, up, down bool, steps int, version, forced bool, force int) error {
	switch {
	case version:
		v, dirty, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			logger.Info("schema not initialized")
			return nil
		}
		if err != nil {
			return err
		}
		logger.Info("schema version", "version", v, "dirty", dirty)
	case forced:
		if err := m.Force(force); err != nil {
			return err
		}
		logger.Warn("schema version forced", "version", force)
	case up:
		return report(logger, "migrations applied", m.Up())
	case down:
		return report(logger, "migrations reverted", m.Down())
	case steps != 0:
		return report(logger, "migration steps applied", m.Steps(steps), "steps", steps)
	default:
		fmt.Fprintln(os.Stderr, "usage: migrate [-dsn <connection-string>] [-up|-down|-steps N|-version|-force N]")
		flag.PrintDefaults()
	}
	return nil
}

func report(logger *slog.Logger, msg string, err error, args ...any) error {
	if errors.Is(err, migrate.ErrNoChange) {
		logger.Info("schema already current")
		return nil
	}
	if err != nil {
		return err
	}
	logger.Info(msg, args...)
	return nil
}
