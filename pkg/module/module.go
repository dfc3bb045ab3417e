// Package module mounts self-contained route trees under single-segment
// prefixes and dispatches between them.
package module

import (
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/JaimeStill/civic/pkg/middleware"
)

// Module serves one top-level path segment such as "/api". Inner routes
// are registered relative to the prefix, which is stripped before
// dispatch.
type Module struct {
	prefix     string
	router     http.Handler
	middleware middleware.System

	once    sync.Once
	handler http.Handler
}

// New panics on an invalid prefix; prefixes are fixed at wiring time.
func New(prefix string, router http.Handler) *Module {
	if err := validatePrefix(prefix); err != nil {
		panic(err)
	}
	return &Module{
		prefix:     prefix,
		router:     router,
		middleware: middleware.New(),
	}
}

func (m *Module) Prefix() string {
	return m.prefix
}

// Use appends middleware; the first added runs outermost. The chain is
// frozen on the first request.
func (m *Module) Use(mw func(http.Handler) http.Handler) {
	m.middleware.Use(mw)
}

func (m *Module) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	m.once.Do(func() {
		m.handler = m.middleware.Apply(m.router)
	})
	m.handler.ServeHTTP(w, strip(req, m.prefix))
}

// strip returns a shallow clone of req addressed relative to prefix.
func strip(req *http.Request, prefix string) *http.Request {
	inner := req.Clone(req.Context())
	inner.URL.Path = strings.TrimPrefix(req.URL.Path, prefix)
	if inner.URL.Path == "" {
		inner.URL.Path = "/"
	}
	if req.URL.RawPath != "" {
		inner.URL.RawPath = strings.TrimPrefix(req.URL.RawPath, prefix)
		if inner.URL.RawPath == "" {
			inner.URL.RawPath = "/"
		}
	}
	return inner
}

func validatePrefix(prefix string) error {
	switch {
	case prefix == "":
		return fmt.Errorf("module prefix cannot be empty")
	case prefix[0] != '/':
		return fmt.Errorf("module prefix must start with /: %s", prefix)
	case strings.Count(prefix, "/") != 1 || strings.ContainsAny(prefix, "{}"):
		return fmt.Errorf("module prefix must be a single literal segment: %s", prefix)
	}
	return nil
}
