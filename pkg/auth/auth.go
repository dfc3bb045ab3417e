// Package auth verifies OIDC bearer tokens and carries the caller's
// identity through the request context.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"

	"github.com/JaimeStill/civic/pkg/handlers"
	"github.com/JaimeStill/civic/pkg/middleware"
)

const (
	RoleAdmin        = "admin"
	RoleJurisdiction = "jurisdiction"
	RoleVerifier     = "verifier"
)

var (
	ErrUnauthenticated = errors.New("authentication required")
	ErrForbidden       = errors.New("insufficient role")
)

// Principal is the authenticated caller. A jurisdiction actor carries the
// jurisdiction it acts for.
type Principal struct {
	Subject        string   `json:"subject"`
	JurisdictionID string   `json:"jurisdiction_id,omitempty"`
	Roles          []string `json:"roles,omitempty"`
	unrestricted   bool
}

func (p *Principal) HasRole(role string) bool {
	if p == nil {
		return false
	}
	return p.unrestricted || slices.Contains(p.Roles, role)
}

// Unrestricted reports whether the principal was issued by a disabled authenticator.
func (p *Principal) Unrestricted() bool {
	return p != nil && p.unrestricted
}

type principalKey struct{}

func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// FromContext returns nil for anonymous requests.
func FromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalKey{}).(*Principal)
	return p
}

// TokenVerifier turns a raw bearer token into a Principal.
type TokenVerifier interface {
	Verify(ctx context.Context, raw string) (*Principal, error)
}

type VerifierFunc func(ctx context.Context, raw string) (*Principal, error)

func (f VerifierFunc) Verify(ctx context.Context, raw string) (*Principal, error) {
	return f(ctx, raw)
}

type oidcVerifier struct {
	verifier          *oidc.IDTokenVerifier
	jurisdictionClaim string
	rolesClaim        string
}

// NewOIDCVerifier performs provider discovery against cfg.Issuer.
func NewOIDCVerifier(ctx context.Context, cfg *Config) (TokenVerifier, error) {
	provider, err := oidc.NewProvider(ctx, cfg.Issuer)
	if err != nil {
		return nil, fmt.Errorf("oidc discovery %s: %w", cfg.Issuer, err)
	}

	return &oidcVerifier{
		verifier:          provider.Verifier(&oidc.Config{ClientID: cfg.Audience}),
		jurisdictionClaim: cfg.JurisdictionClaim,
		rolesClaim:        cfg.RolesClaim,
	}, nil
}

func (v *oidcVerifier) Verify(ctx context.Context, raw string) (*Principal, error) {
	token, err := v.verifier.Verify(ctx, raw)
	if err != nil {
		return nil, err
	}

	var claims map[string]any
	if err := token.Claims(&claims); err != nil {
		return nil, fmt.Errorf("decode claims: %w", err)
	}

	return principalFromClaims(token.Subject, claims, v.jurisdictionClaim, v.rolesClaim), nil
}

func principalFromClaims(subject string, claims map[string]any, jurisdictionClaim, rolesClaim string) *Principal {
	p := &Principal{Subject: subject}
	if j, ok := claims[jurisdictionClaim].(string); ok {
		p.JurisdictionID = j
	}
	switch roles := claims[rolesClaim].(type) {
	case []any:
		for _, r := range roles {
			if s, ok := r.(string); ok {
				p.Roles = append(p.Roles, s)
			}
		}
	case string:
		p.Roles = strings.Fields(roles)
	}
	return p
}

// Authenticator resolves the principal for each request. With no verifier
// every request runs as an unrestricted local principal.
type Authenticator struct {
	verifier TokenVerifier
	logger   *slog.Logger
}

func New(verifier TokenVerifier, logger *slog.Logger) *Authenticator {
	return &Authenticator{verifier: verifier, logger: logger.With("system", "auth")}
}

func (a *Authenticator) Enabled() bool {
	return a != nil && a.verifier != nil
}

// Middleware attaches the principal. Requests without a bearer token pass
// through anonymously; an invalid token is rejected.
func (a *Authenticator) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !a.Enabled() {
				local := &Principal{Subject: "local", unrestricted: true}
				next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), local)))
				return
			}

			raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || raw == "" {
				next.ServeHTTP(w, r)
				return
			}

			p, err := a.verifier.Verify(r.Context(), raw)
			if err != nil {
				a.logger.Warn("invalid bearer token",
					"error", err,
					"request_id", r.Header.Get(middleware.RequestIDHeader),
				)
				handlers.RespondError(w, a.logger, http.StatusUnauthorized, ErrUnauthenticated)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

// Require returns nil when the context principal holds any of roles.
func Require(ctx context.Context, roles ...string) error {
	p := FromContext(ctx)
	if p == nil {
		return ErrUnauthenticated
	}
	for _, role := range roles {
		if p.HasRole(role) {
			return nil
		}
	}
	return fmt.Errorf("%w: need one of %s", ErrForbidden, strings.Join(roles, ", "))
}

// RequireRole wraps a handler with Require.
func (a *Authenticator) RequireRole(next http.HandlerFunc, roles ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := Require(r.Context(), roles...); err != nil {
			handlers.RespondError(w, a.logger, MapHTTPStatus(err), err)
			return
		}
		next(w, r)
	}
}

func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
