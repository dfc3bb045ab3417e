package openapi

import "os"

// Config carries the document metadata that operators may rebrand.
type Config struct {
	Title        string `toml:"title"`
	Description  string `toml:"description"`
	ContactName  string `toml:"contact_name"`
	ContactEmail string `toml:"contact_email"`
}

// ConfigEnv names the environment variables that override Config.
type ConfigEnv struct {
	Title        string
	Description  string
	ContactName  string
	ContactEmail string
}

// Finalize applies defaults and then environment overrides. It never
// fails; the error return keeps it in step with the other sections.
func (c *Config) Finalize(env *ConfigEnv) error {
	if c.Title == "" {
		c.Title = "Civic Accountability API"
	}
	if c.Description == "" {
		c.Description = "Civic issue intake, jurisdiction routing, resolution verification, and accountability scoring."
	}
	if env == nil {
		return nil
	}
	for dst, name := range c.fields(env) {
		if v := os.Getenv(name); name != "" && v != "" {
			*dst = v
		}
	}
	return nil
}

func (c *Config) Merge(overlay *Config) {
	for dst, v := range c.fields(&ConfigEnv{
		Title:        overlay.Title,
		Description:  overlay.Description,
		ContactName:  overlay.ContactName,
		ContactEmail: overlay.ContactEmail,
	}) {
		if v != "" {
			*dst = v
		}
	}
}

// Apply writes the configured metadata into spec's info object.
func (c *Config) Apply(spec *Spec) {
	spec.Info.Title = c.Title
	spec.Info.Description = c.Description
	if c.ContactName != "" || c.ContactEmail != "" {
		spec.Info.Contact = &Contact{Name: c.ContactName, Email: c.ContactEmail}
	}
}

// fields pairs each Config field with the matching ConfigEnv entry.
func (c *Config) fields(env *ConfigEnv) map[*string]string {
	return map[*string]string{
		&c.Title:        env.Title,
		&c.Description:  env.Description,
		&c.ContactName:  env.ContactName,
		&c.ContactEmail: env.ContactEmail,
	}
}
