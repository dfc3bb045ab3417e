// Package openapi builds the OpenAPI 3.1 document served at
// /api/openapi.json from the route groups each domain handler exposes.
package openapi

import (
	"encoding/json"
	"net/http"
	"strconv"
)

const bearerScheme = "bearerAuth"

type Spec struct {
	OpenAPI    string                `json:"openapi"`
	Info       *Info                 `json:"info"`
	Servers    []*Server             `json:"servers,omitempty"`
	Security   []map[string][]string `json:"security,omitempty"`
	Paths      map[string]*PathItem  `json:"paths"`
	Components *Components           `json:"components,omitempty"`
}

type Info struct {
	Title       string   `json:"title"`
	Version     string   `json:"version"`
	Description string   `json:"description,omitempty"`
	Contact     *Contact `json:"contact,omitempty"`
}

type Contact struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

type Server struct {
	URL         string `json:"url"`
	Description string `json:"description,omitempty"`
}

// PathItem holds the operations on one path, keyed by lowercase method.
type PathItem struct {
	Get    *Operation `json:"get,omitempty"`
	Post   *Operation `json:"post,omitempty"`
	Put    *Operation `json:"put,omitempty"`
	Patch  *Operation `json:"patch,omitempty"`
	Delete *Operation `json:"delete,omitempty"`
}

func (p *PathItem) slot(method string) **Operation {
	switch method {
	case http.MethodGet:
		return &p.Get
	case http.MethodPost:
		return &p.Post
	case http.MethodPut:
		return &p.Put
	case http.MethodPatch:
		return &p.Patch
	case http.MethodDelete:
		return &p.Delete
	}
	return nil
}

func NewSpec(title, version string) *Spec {
	return &Spec{
		OpenAPI:    "3.1.0",
		Info:       &Info{Title: title, Version: version},
		Paths:      make(map[string]*PathItem),
		Components: NewComponents(),
	}
}

// AddServer is a no-op for an empty url.
func (s *Spec) AddServer(url string) {
	if url == "" {
		return
	}
	s.Servers = append(s.Servers, &Server{URL: url})
}

// AddOperation attaches op to path. Methods a PathItem cannot hold are
// dropped.
func (s *Spec) AddOperation(path, method string, op *Operation) {
	item := s.Paths[path]
	if item == nil {
		item = &PathItem{}
	}
	slot := item.slot(method)
	if slot == nil {
		return
	}
	*slot = op
	s.Paths[path] = item
}

// RequireBearer declares a JWT bearer scheme and applies it to every
// operation.
func (s *Spec) RequireBearer() {
	s.Components.SecuritySchemes = map[string]*SecurityScheme{
		bearerScheme: {Type: "http", Scheme: "bearer", BearerFormat: "JWT"},
	}
	s.Security = []map[string][]string{{bearerScheme: {}}}
}

func MarshalJSON(spec *Spec) ([]byte, error) {
	return json.MarshalIndent(spec, "", "  ")
}

// ServeSpec serves a document serialized once at startup.
func ServeSpec(doc []byte) http.HandlerFunc {
	length := strconv.Itoa(len(doc))
	return func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Content-Type", "application/json; charset=utf-8")
		h.Set("Content-Length", length)
		h.Set("Cache-Control", "no-cache")
		w.WriteHeader(http.StatusOK)
		w.Write(doc)
	}
}
