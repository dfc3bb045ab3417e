package auth

import (
	"slices"
	"testing"
)

func TestPrincipalFromClaims(t *testing.T) {
	tests := []struct {
		name      string
		claims    map[string]any
		wantJuris string
		wantRoles []string
	}{
		{"array roles", map[string]any{"jurisdiction_id": "j1", "roles": []any{"jurisdiction", 7, "verifier"}}, "j1", []string{"jurisdiction", "verifier"}},
		{"space separated roles", map[string]any{"roles": "admin verifier"}, "", []string{"admin", "verifier"}},
		{"no claims", map[string]any{}, "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := principalFromClaims("sub", tt.claims, "jurisdiction_id", "roles")
			if p.Subject != "sub" || p.JurisdictionID != tt.wantJuris {
				t.Errorf("principal: %+v", p)
			}
			if !slices.Equal(p.Roles, tt.wantRoles) {
				t.Errorf("roles: got %v, want %v", p.Roles, tt.wantRoles)
			}
		})
	}
}
