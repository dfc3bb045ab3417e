package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JaimeStill/civic/internal/api"
	"github.com/JaimeStill/civic/internal/backlog"
	"github.com/JaimeStill/civic/internal/config"
	"github.com/JaimeStill/civic/internal/infrastructure"
	"github.com/JaimeStill/civic/pkg/database"
	"github.com/JaimeStill/civic/pkg/module"
	"github.com/JaimeStill/civic/pkg/storage"
)

func validConfig(t *testing.T) *config.Config {
	t.Helper()
	disabled := false
	cfg := &config.Config{
		Database: database.Config{Name: "civic", User: "civic"},
		Storage:  storage.Config{Backend: storage.BackendMemory},
		API:      config.APIConfig{PublicURL: "https://civic.example.org"},
		Pipeline: config.PipelineConfig{
			Backlog: backlog.Config{Enabled: &disabled},
		},
	}
	require.NoError(t, cfg.Finalize())
	return cfg
}

func setup(t *testing.T) (*config.Config, *infrastructure.Infrastructure, http.Handler) {
	t.Helper()
	cfg := validConfig(t)

	infra, err := infrastructure.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { infra.Database.Connection().Close() })

	m, err := api.NewModule(cfg, infra)
	require.NoError(t, err)

	router := module.NewRouter()
	router.Mount(m)
	return cfg, infra, router
}

func TestNewModule(t *testing.T) {
	cfg := validConfig(t)
	infra, err := infrastructure.New(cfg)
	require.NoError(t, err)

	m, err := api.NewModule(cfg, infra)
	require.NoError(t, err)
	assert.Equal(t, "/api", m.Prefix())
}

func TestNewRuntime(t *testing.T) {
	cfg := validConfig(t)
	infra, err := infrastructure.New(cfg)
	require.NoError(t, err)

	runtime := api.NewRuntime(cfg, infra)

	assert.Equal(t, 20, runtime.Pagination.DefaultPageSize)
	assert.Equal(t, 100, runtime.Pagination.MaxPageSize)
	assert.NotNil(t, runtime.Logger)
	assert.NotSame(t, infra.Logger, runtime.Logger)
	assert.Same(t, infra.Database, runtime.Database)
	assert.Same(t, infra.Metrics, runtime.Metrics)
	assert.Same(t, cfg, runtime.Config)
}

func TestNewDomain(t *testing.T) {
	cfg := validConfig(t)
	infra, err := infrastructure.New(cfg)
	require.NoError(t, err)

	domain := api.NewDomain(api.NewRuntime(cfg, infra))

	assert.NotNil(t, domain.Jurisdictions)
	assert.NotNil(t, domain.Issues)
	assert.NotNil(t, domain.Ledger)
	assert.NotNil(t, domain.Backlog)
}

func TestOpenAPIDocument(t *testing.T) {
	_, _, router := setup(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/openapi.json", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var doc struct {
		OpenAPI string                    `json:"openapi"`
		Paths   map[string]map[string]any `json:"paths"`
		Servers []struct {
			URL string `json:"url"`
		} `json:"servers"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))

	assert.Equal(t, "3.1.0", doc.OpenAPI)
	require.Len(t, doc.Servers, 1)
	assert.Equal(t, "https://civic.example.org", doc.Servers[0].URL)

	for path, method := range map[string]string{
		"/api/issues":                              "post",
		"/api/issues/{id}/responses":               "post",
		"/api/issues/{id}/dispute":                 "post",
		"/api/responses/{id}/outcome":              "post",
		"/api/leaderboard":                         "get",
		"/api/jurisdictions/{id}/stats":            "get",
		"/api/ledger/jurisdictions/{id}/reconcile": "post",
		"/api/images/{key}":                        "get",
	} {
		ops, ok := doc.Paths[path]
		if assert.True(t, ok, "missing path %s", path) {
			assert.Contains(t, ops, method, "path %s", path)
		}
	}
}

func TestImageDownload(t *testing.T) {
	_, infra, router := setup(t)

	data := []byte("\x89PNG\r\n\x1a\nfake")
	require.NoError(t, infra.Storage.Upload(context.Background(), "issues/abc/photo.png", bytes.NewReader(data), "image/png"))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/images/issues/abc/photo.png", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, data, rec.Body.Bytes())
}

func TestImageDownloadMissing(t *testing.T) {
	_, _, router := setup(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/images/issues/none.png", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestImageHead(t *testing.T) {
	_, infra, router := setup(t)
	require.NoError(t, infra.Storage.Upload(context.Background(), "issues/abc/after.jpg", bytes.NewReader([]byte("jpeg")), "image/jpeg"))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodHead, "/api/images/issues/abc/after.jpg", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.Bytes())

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodHead, "/api/images/issues/abc/none.jpg", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
