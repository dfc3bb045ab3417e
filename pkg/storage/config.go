package storage

import (
	"fmt"
	"os"
)

const (
	BackendAzure  = "azure"
	BackendMemory = "memory"
)

// Config selects the blob backend. Azure authenticates with the connection
// string when present, otherwise with DefaultAzureCredential against AccountURL.
type Config struct {
	Backend          string `toml:"backend"`
	ContainerName    string `toml:"container_name"`
	ConnectionString string `toml:"connection_string"`
	AccountURL       string `toml:"account_url"`
}

type Env struct {
	Backend          string
	ContainerName    string
	ConnectionString string
	AccountURL       string
}

func (c *Config) Finalize(env *Env) error {
	if c.Backend == "" {
		c.Backend = BackendAzure
	}
	if c.ContainerName == "" {
		c.ContainerName = "images"
	}
	if env != nil {
		for _, f := range c.fields() {
			if v := os.Getenv(f.env(env)); v != "" {
				*f.ptr = v
			}
		}
	}
	return c.validate()
}

func (c *Config) Merge(overlay *Config) {
	theirs := overlay.fields()
	for i, f := range c.fields() {
		if v := *theirs[i].ptr; v != "" {
			*f.ptr = v
		}
	}
}

type field struct {
	ptr *string
	env func(*Env) string
}

func (c *Config) fields() []field {
	return []field{
		{&c.Backend, func(e *Env) string { return e.Backend }},
		{&c.ContainerName, func(e *Env) string { return e.ContainerName }},
		{&c.ConnectionString, func(e *Env) string { return e.ConnectionString }},
		{&c.AccountURL, func(e *Env) string { return e.AccountURL }},
	}
}

func (c *Config) validate() error {
	switch c.Backend {
	case BackendMemory:
		return nil
	case BackendAzure:
	default:
		return fmt.Errorf("unsupported storage backend: %s", c.Backend)
	}
	if c.ContainerName == "" {
		return fmt.Errorf("container_name required")
	}
	if c.ConnectionString == "" && c.AccountURL == "" {
		return fmt.Errorf("connection_string or account_url required")
	}
	return nil
}
