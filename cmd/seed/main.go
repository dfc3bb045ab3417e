package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/JaimeStill/civic/internal/config"
	"github.com/JaimeStill/civic/internal/jurisdictions"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	var (
		file    = flag.String("file", "catalog.yaml", "Jurisdiction catalog YAML")
		timeout = flag.Duration("timeout", time.Minute, "Overall seed timeout")
	)
	flag.Parse()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Fatalf("failed to load .env: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	f, err := os.Open(*file)
	if err != nil {
		log.Fatalf("open catalog: %v", err)
	}
	defer f.Close()

	cmds, err := parseCatalog(f)
	if err != nil {
		log.Fatal(err)
	}

	db, err := sql.Open("pgx", cfg.Database.Dsn())
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	store := jurisdictions.NewPostgresStore(db)
	sys := jurisdictions.New(store, store, logger, cfg.API.Pagination, cfg.Pipeline.BaseScore)

	res, err := seed(ctx, sys, cmds, logger)
	if err != nil {
		log.Fatalf("seed failed after %d created: %v", res.Created, err)
	}
	logger.Info("seed complete", "created", res.Created, "skipped", res.Skipped)
}
