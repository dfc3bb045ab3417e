package routes_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/JaimeStill/civic/pkg/openapi"
	"github.com/JaimeStill/civic/pkg/routes"
)

func TestRegisterHandlers(t *testing.T) {
	mux := http.NewServeMux()

	routes.Register(mux, routes.Group{
		Prefix: "/issues",
		Routes: []routes.Route{
			{
				Method:  "GET",
				Pattern: "",
				Handler: func(w http.ResponseWriter, r *http.Request) {
					w.WriteHeader(http.StatusOK)
				},
			},
			{
				Method:  "GET",
				Pattern: "/{id}",
				Handler: func(w http.ResponseWriter, r *http.Request) {
					w.WriteHeader(http.StatusOK)
				},
			},
		},
	})

	tests := []struct {
		name   string
		method string
		path   string
		wantOK bool
	}{
		{"list issues", "GET", "/issues", true},
		{"get issue", "GET", "/issues/123", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(tt.method, tt.path, nil)
			mux.ServeHTTP(rec, req)

			if tt.wantOK && rec.Code != http.StatusOK {
				t.Errorf("status: got %d, want 200", rec.Code)
			}
		})
	}
}

func TestNestedGroups(t *testing.T) {
	mux := http.NewServeMux()

	routes.Register(mux, routes.Group{
		Prefix: "/api",
		Children: []routes.Group{
			{
				Prefix: "/v1",
				Routes: []routes.Route{
					{
						Method:  "GET",
						Pattern: "/issues",
						Handler: func(w http.ResponseWriter, r *http.Request) {
							w.WriteHeader(http.StatusOK)
						},
					},
				},
			},
		},
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/v1/issues", nil)
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("nested route: got %d, want 200", rec.Code)
	}
}

func TestDescribe(t *testing.T) {
	noop := func(w http.ResponseWriter, r *http.Request) {}
	spec := openapi.NewSpec("Civic", "0.1.0")

	routes.Describe(spec, "/api", routes.Group{
		Prefix: "/issues",
		Tags:   []string{"Issues"},
		Schemas: map[string]*openapi.Schema{
			"Issue": {Type: "object"},
		},
		Routes: []routes.Route{
			{Method: "GET", Pattern: "", Handler: noop, OpenAPI: &openapi.Operation{Summary: "List issues"}},
			{Method: "POST", Pattern: "/{id}/dispute", Handler: noop, OpenAPI: &openapi.Operation{Summary: "Dispute", Tags: []string{"Admin"}}},
			{Method: "DELETE", Pattern: "/{id}", Handler: noop},
		},
		Children: []routes.Group{
			{
				Prefix: "/files",
				Routes: []routes.Route{
					{Method: "GET", Pattern: "/{key...}", Handler: noop, OpenAPI: &openapi.Operation{Summary: "Get file"}},
				},
			},
		},
	})

	list := spec.Paths["/api/issues"]
	if list == nil || list.Get == nil {
		t.Fatal("GET /api/issues not documented")
	}
	if len(list.Get.Tags) != 1 || list.Get.Tags[0] != "Issues" {
		t.Errorf("tags: got %v, want [Issues]", list.Get.Tags)
	}

	dispute := spec.Paths["/api/issues/{id}/dispute"]
	if dispute == nil || dispute.Post == nil {
		t.Fatal("POST dispute not documented")
	}
	if dispute.Post.Tags[0] != "Admin" {
		t.Errorf("explicit tags should win, got %v", dispute.Post.Tags)
	}

	if item := spec.Paths["/api/issues/{id}"]; item != nil {
		t.Error("undocumented route should not appear")
	}

	file := spec.Paths["/api/issues/files/{key}"]
	if file == nil || file.Get == nil {
		t.Fatal("child route not documented with normalized wildcard")
	}
	if file.Get.Tags[0] != "Issues" {
		t.Errorf("child should inherit tags, got %v", file.Get.Tags)
	}

	if _, ok := spec.Components.Schemas["Issue"]; !ok {
		t.Error("group schema not added to components")
	}
}
