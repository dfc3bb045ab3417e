// Package middleware holds the HTTP middleware shared by every module:
// request ids, access logging, panic recovery, metrics, and CORS.
package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/JaimeStill/civic/pkg/handlers"
)

// System is an ordered middleware stack. The first Use wraps outermost.
type System interface {
	Use(mw func(http.Handler) http.Handler)
	Apply(handler http.Handler) http.Handler
}

type stack []func(http.Handler) http.Handler

func New() System {
	return &stack{}
}

func (s *stack) Use(fn func(http.Handler) http.Handler) {
	*s = append(*s, fn)
}

func (s *stack) Apply(handler http.Handler) http.Handler {
	for i := len(*s) - 1; i >= 0; i-- {
		handler = (*s)[i](handler)
	}
	return handler
}

// Recover answers a handler panic with a 500 and logs the stack.
func Recover(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				v := recover()
				if v == nil {
					return
				}
				if v == http.ErrAbortHandler {
					panic(v)
				}
				err := fmt.Errorf("panic: %v", v)
				logger.Error("panic recovered",
					"method", r.Method,
					"uri", r.URL.RequestURI(),
					"request_id", r.Header.Get(RequestIDHeader),
					"stack", string(debug.Stack()),
				)
				handlers.RespondError(w, logger, http.StatusInternalServerError, err)
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// Observer receives one call per completed request.
type Observer interface {
	ObserveRequest(method string, status int, elapsed time.Duration)
}

// Instrument reports every request's method, status, and latency to o.
func Instrument(o Observer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			o.ObserveRequest(r.Method, rec.status, time.Since(start))
		})
	}
}
