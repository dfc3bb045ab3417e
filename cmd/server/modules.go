package main

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/JaimeStill/civic/internal/api"
	"github.com/JaimeStill/civic/internal/config"
	"github.com/JaimeStill/civic/internal/infrastructure"
	"github.com/JaimeStill/civic/pkg/handlers"
	"github.com/JaimeStill/civic/pkg/middleware"
	"github.com/JaimeStill/civic/pkg/module"
	"github.com/JaimeStill/civic/web/scalar"
)

// Modules are the prefix-mounted route trees: the API under its base
// path and the reference docs under /scalar.
type Modules struct {
	API  *module.Module
	Docs *module.Module
}

func NewModules(infra *infrastructure.Infrastructure, cfg *config.Config) (*Modules, error) {
	apiModule, err := api.NewModule(cfg, infra)
	if err != nil {
		return nil, err
	}

	docs := scalar.NewModule("/scalar", cfg.API.BasePath+"/openapi.json")
	docs.Use(middleware.Logger(infra.Logger))

	return &Modules{API: apiModule, Docs: docs}, nil
}

func (m *Modules) Mount(router *module.Router) {
	for _, mod := range []*module.Module{m.API, m.Docs} {
		router.Mount(mod)
	}
}

type probeStatus struct {
	Status  string   `json:"status"`
	Pending []string `json:"pending,omitempty"`
}

// buildRouter wires the process-wide middleware and the unprefixed
// probe and metrics endpoints.
func buildRouter(infra *infrastructure.Infrastructure) *module.Router {
	router := module.NewRouter()
	router.Use(middleware.RequestID())
	router.Use(middleware.Recover(infra.Logger))
	router.Use(middleware.Instrument(infra.Metrics))

	router.HandleNative("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		handlers.RespondJSON(w, http.StatusOK, probeStatus{Status: "ok"})
	})

	router.HandleNative("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		// Ping refreshes the database check before it is read.
		_ = infra.Database.Ping(r.Context())
		pending := infra.Lifecycle.Pending()
		if !infra.Lifecycle.Ready() || len(pending) > 0 {
			handlers.RespondJSON(w, http.StatusServiceUnavailable, probeStatus{Status: "not ready", Pending: pending})
			return
		}
		handlers.RespondJSON(w, http.StatusOK, probeStatus{Status: "ready"})
	})

	router.Handle("GET /metrics", promhttp.HandlerFor(infra.Registry, promhttp.HandlerOpts{
		ErrorLog: slog.NewLogLogger(infra.Logger.Handler(), slog.LevelError),
	}))

	return router
}
