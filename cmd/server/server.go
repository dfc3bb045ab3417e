package main

import (
	"fmt"
	"time"

	"github.com/JaimeStill/civic/internal/config"
	"github.com/JaimeStill/civic/internal/infrastructure"
)

// Server ties the infrastructure, the mounted modules, and the listener
// to one lifecycle.
type Server struct {
	infra *infrastructure.Infrastructure
	http  *httpServer
}

func NewServer(cfg *config.Config) (*Server, error) {
	infra, err := infrastructure.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("infrastructure: %w", err)
	}

	modules, err := NewModules(infra, cfg)
	if err != nil {
		return nil, fmt.Errorf("modules: %w", err)
	}
	router := buildRouter(infra)
	modules.Mount(router)

	infra.Logger.Info("server initialized",
		"addr", cfg.Server.Addr(),
		"version", cfg.Version,
		"env", cfg.Env(),
		"storage", cfg.Storage.Backend,
		"auth", cfg.Auth.Enabled(),
		"cache", cfg.Cache.URL != "",
		"events", cfg.Events.Enabled(),
		"backlog", cfg.Pipeline.Backlog.IsEnabled(),
	)

	return &Server{
		infra: infra,
		http:  newHTTPServer(&cfg.Server, router, infra.Logger),
	}, nil
}

// Start returns once the listener is bound. Startup hooks keep running in
// the background; their outcome is logged when the last one returns.
func (s *Server) Start() error {
	if err := s.infra.Start(); err != nil {
		return err
	}
	if err := s.http.Start(s.infra.Lifecycle); err != nil {
		return err
	}

	go s.reportReadiness()
	return nil
}

func (s *Server) reportReadiness() {
	lc := s.infra.Lifecycle
	lc.WaitForStartup()
	if pending := lc.Pending(); len(pending) > 0 {
		s.infra.Logger.Warn("started with subsystems not ready", "pending", pending)
		return
	}
	s.infra.Logger.Info("all subsystems ready")
}

func (s *Server) Shutdown(timeout time.Duration) error {
	s.infra.Logger.Info("initiating shutdown", "timeout", timeout)
	if err := s.infra.Lifecycle.Shutdown(timeout); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
