package auth

import (
	"fmt"
	"os"
)

// Config enables OIDC bearer verification when Issuer is set.
type Config struct {
	Issuer            string `toml:"issuer"`
	Audience          string `toml:"audience"`
	JurisdictionClaim string `toml:"jurisdiction_claim"`
	RolesClaim        string `toml:"roles_claim"`
}

type Env struct {
	Issuer   string
	Audience string
}

func (c *Config) Enabled() bool {
	return c.Issuer != ""
}

func (c *Config) Finalize(env *Env) error {
	c.loadDefaults()
	if env != nil {
		c.loadEnv(env)
	}
	return c.validate()
}

func (c *Config) Merge(overlay *Config) {
	if overlay.Issuer != "" {
		c.Issuer = overlay.Issuer
	}
	if overlay.Audience != "" {
		c.Audience = overlay.Audience
	}
	if overlay.JurisdictionClaim != "" {
		c.JurisdictionClaim = overlay.JurisdictionClaim
	}
	if overlay.RolesClaim != "" {
		c.RolesClaim = overlay.RolesClaim
	}
}

func (c *Config) loadDefaults() {
	if c.JurisdictionClaim == "" {
		c.JurisdictionClaim = "jurisdiction_id"
	}
	if c.RolesClaim == "" {
		c.RolesClaim = "roles"
	}
}

func (c *Config) loadEnv(env *Env) {
	if env.Issuer != "" {
		if v := os.Getenv(env.Issuer); v != "" {
			c.Issuer = v
		}
	}
	if env.Audience != "" {
		if v := os.Getenv(env.Audience); v != "" {
			c.Audience = v
		}
	}
}

func (c *Config) validate() error {
	if c.Issuer != "" && c.Audience == "" {
		return fmt.Errorf("audience required when issuer is set")
	}
	return nil
}
