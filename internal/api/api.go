// Package api assembles the API module with all domain systems and route registration.
package api

import (
	"net/http"

	"github.com/JaimeStill/civic/internal/config"
	"github.com/JaimeStill/civic/internal/infrastructure"
	"github.com/JaimeStill/civic/pkg/middleware"
	"github.com/JaimeStill/civic/pkg/module"
)

// NewModule creates the API module with all domain handlers and middleware
// and schedules the backlog sweep.
func NewModule(cfg *config.Config, infra *infrastructure.Infrastructure) (*module.Module, error) {
	runtime := NewRuntime(cfg, infra)
	domain := NewDomain(runtime)

	mux := http.NewServeMux()
	if err := registerRoutes(mux, domain, cfg, runtime); err != nil {
		return nil, err
	}

	domain.Backlog.Start(runtime.Lifecycle)

	m := module.New(cfg.API.BasePath, mux)
	m.Use(middleware.Logger(runtime.Logger))
	m.Use(middleware.CORS(&cfg.API.CORS))
	m.Use(runtime.Auth.Middleware())

	return m, nil
}
