package api

import (
	"fmt"
	"net/http"

	"github.com/JaimeStill/civic/internal/config"
	"github.com/JaimeStill/civic/pkg/openapi"
	"github.com/JaimeStill/civic/pkg/routes"
)

func groups(domain *Domain, cfg *config.Config, runtime *Runtime) []routes.Group {
	issueHandler := domain.Issues.Handler(cfg.API.MaxUploadSizeBytes())
	ledgerHandler := domain.Ledger.Handler()

	return []routes.Group{
		domain.Jurisdictions.Handler().Routes(),
		issueHandler.Routes(),
		issueHandler.ResponseRoutes(),
		ledgerHandler.Routes(),
		ledgerHandler.LeaderboardRoutes(),
		newImageHandler(runtime.Storage, runtime.Logger).routes(),
	}
}

// registerRoutes mounts every group and serves the generated OpenAPI
// document at /openapi.json.
func registerRoutes(
	mux *http.ServeMux,
	domain *Domain,
	cfg *config.Config,
	runtime *Runtime,
) error {
	all := groups(domain, cfg, runtime)
	routes.Register(mux, all...)

	spec, err := buildSpec(cfg, all)
	if err != nil {
		return err
	}
	mux.HandleFunc("GET /openapi.json", openapi.ServeSpec(spec))
	return nil
}

func buildSpec(cfg *config.Config, all []routes.Group) ([]byte, error) {
	spec := openapi.NewSpec(cfg.API.OpenAPI.Title, cfg.Version)
	cfg.API.OpenAPI.Apply(spec)
	if cfg.Auth.Enabled() {
		spec.RequireBearer()
	}
	spec.AddServer(cfg.API.PublicURL)

	routes.Describe(spec, cfg.API.BasePath, all...)

	data, err := openapi.MarshalJSON(spec)
	if err != nil {
		return nil, fmt.Errorf("marshal openapi spec: %w", err)
	}
	return data, nil
}
