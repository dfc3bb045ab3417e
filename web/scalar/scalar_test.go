package scalar_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/JaimeStill/civic/pkg/module"
	"github.com/JaimeStill/civic/web/scalar"
)

func TestIndexReferencesSpec(t *testing.T) {
	router := module.NewRouter()
	router.Mount(scalar.NewModule("/scalar", "/api/openapi.json"))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/scalar/", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `data-url="/api/openapi.json"`) {
		t.Errorf("index does not reference the openapi url: %s", rec.Body.String())
	}
}
