package api

import (
	"github.com/JaimeStill/civic/internal/backlog"
	"github.com/JaimeStill/civic/internal/geocoding"
	"github.com/JaimeStill/civic/internal/issues"
	"github.com/JaimeStill/civic/internal/jurisdictions"
	"github.com/JaimeStill/civic/internal/ledger"
	"github.com/JaimeStill/civic/internal/vision"
	"github.com/JaimeStill/civic/pkg/repository"
)

// Domain holds all domain systems that comprise the API.
type Domain struct {
	Jurisdictions jurisdictions.System
	Issues        issues.System
	Ledger        ledger.System
	Backlog       *backlog.Job
}

// NewDomain creates all domain systems from the API runtime. The
// jurisdiction store owns scores and counters; issues and the ledger
// write through it inside a shared transaction.
func NewDomain(runtime *Runtime) *Domain {
	cfg := runtime.Config
	db := runtime.Database.Connection()
	tx := repository.NewTransactor(db)

	catalogStore := jurisdictions.NewPostgresStore(db)
	issueStore := issues.NewPostgresStore(db)

	catalog := jurisdictions.New(
		catalogStore,
		catalogStore,
		runtime.Logger,
		runtime.Pagination,
		cfg.Pipeline.BaseScore,
	)

	scoring := ledger.New(ledger.Deps{
		Store:         ledger.NewPostgresStore(db),
		Jurisdictions: catalogStore,
		Tx:            tx,
		Publisher:     runtime.Events,
		Metrics:       runtime.Metrics,
		Logger:        runtime.Logger,
		Pagination:    runtime.Pagination,
		BaseScore:     cfg.Pipeline.BaseScore,
	})

	visionClient := vision.New(&cfg.Vision, nil, runtime.Metrics, runtime.Logger)

	pipeline := issues.New(issues.Deps{
		Store:      issueStore,
		Catalog:    catalogStore,
		Counters:   catalogStore,
		Ledger:     scoring,
		Geocoder:   geocoding.New(&cfg.Geocoder, nil, runtime.Cache, runtime.Metrics, runtime.Logger),
		Classifier: visionClient,
		Verifier:   visionClient,
		Storage:    runtime.Storage,
		Tx:         tx,
		Publisher:  runtime.Events,
		Metrics:    runtime.Metrics,
		Logger:     runtime.Logger,
		Pagination: runtime.Pagination,
		Options:    cfg.Pipeline.Options(cfg.API.ImageURL),
	})

	return &Domain{
		Jurisdictions: catalog,
		Issues:        pipeline,
		Ledger:        scoring,
		Backlog:       backlog.New(issueStore, scoring, cfg.Pipeline.Backlog, runtime.Metrics, runtime.Logger),
	}
}
