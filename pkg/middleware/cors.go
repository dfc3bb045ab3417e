package middleware

import (
	"net/http"
	"slices"
	"strconv"
	"strings"
)

// CORS applies cfg to cross-origin requests. It is a no-op when disabled or
// when no origins are configured. Preflights from allowed origins are
// answered here with 204; the rest fall through to the handler.
func CORS(cfg *CORSConfig) func(http.Handler) http.Handler {
	if !cfg.Enabled || len(cfg.Origins) == 0 {
		return func(next http.Handler) http.Handler { return next }
	}

	methods := strings.Join(cfg.AllowedMethods, ", ")
	headers := strings.Join(cfg.AllowedHeaders, ", ")
	anyOrigin := slices.Contains(cfg.Origins, "*")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Add("Vary", "Origin")

			if !anyOrigin && !slices.Contains(cfg.Origins, origin) {
				next.ServeHTTP(w, r)
				return
			}

			h.Set("Access-Control-Allow-Origin", origin)
			if cfg.AllowCredentials {
				h.Set("Access-Control-Allow-Credentials", "true")
			}

			if r.Method != http.MethodOptions || r.Header.Get("Access-Control-Request-Method") == "" {
				next.ServeHTTP(w, r)
				return
			}

			h.Set("Access-Control-Allow-Methods", methods)
			h.Set("Access-Control-Allow-Headers", headers)
			if cfg.MaxAge > 0 {
				h.Set("Access-Control-Max-Age", strconv.Itoa(cfg.MaxAge))
			}
			w.WriteHeader(http.StatusNoContent)
		})
	}
}
