package module

import (
	"net/http"
	"strings"
	"sync"

	"github.com/JaimeStill/civic/pkg/middleware"
)

// Router sends each request to the module owning its first path segment.
// Anything unclaimed falls through to a plain ServeMux, which hosts the
// probes and /metrics. Router middleware wraps both.
type Router struct {
	modules    map[string]*Module
	native     *http.ServeMux
	middleware middleware.System

	once    sync.Once
	handler http.Handler
}

func NewRouter() *Router {
	return &Router{
		modules:    make(map[string]*Module),
		native:     http.NewServeMux(),
		middleware: middleware.New(),
	}
}

func (r *Router) Handle(pattern string, handler http.Handler) {
	r.native.Handle(pattern, handler)
}

func (r *Router) HandleNative(pattern string, handler http.HandlerFunc) {
	r.native.HandleFunc(pattern, handler)
}

// Mount claims m's prefix. A later module with the same prefix wins.
func (r *Router) Mount(m *Module) {
	r.modules[m.prefix] = m
}

// Use adds middleware ahead of every module and native route. Register
// everything before the first request.
func (r *Router) Use(mw func(http.Handler) http.Handler) {
	r.middleware.Use(mw)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.once.Do(func() {
		r.handler = r.middleware.Apply(http.HandlerFunc(r.dispatch))
	})
	r.handler.ServeHTTP(w, req)
}

func (r *Router) dispatch(w http.ResponseWriter, req *http.Request) {
	trimTrailingSlash(req)

	if m, ok := r.modules[firstSegment(req.URL.Path)]; ok {
		m.ServeHTTP(w, req)
		return
	}
	r.native.ServeHTTP(w, req)
}

// firstSegment returns "/api" for "/api/issues/1" and "/" for "/".
func firstSegment(path string) string {
	rest := strings.TrimPrefix(path, "/")
	seg, _, _ := strings.Cut(rest, "/")
	return "/" + seg
}

func trimTrailingSlash(req *http.Request) {
	if p := req.URL.Path; len(p) > 1 && strings.HasSuffix(p, "/") {
		req.URL.Path = strings.TrimSuffix(p, "/")
		req.URL.RawPath = strings.TrimSuffix(req.URL.RawPath, "/")
	}
}
