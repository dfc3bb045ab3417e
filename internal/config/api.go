package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/JaimeStill/civic/pkg/formatting"
	"github.com/JaimeStill/civic/pkg/middleware"
	"github.com/JaimeStill/civic/pkg/openapi"
	"github.com/JaimeStill/civic/pkg/pagination"
)

var corsEnv = &middleware.CORSEnv{
	Enabled:          "CIVIC_CORS_ENABLED",
	Origins:          "CIVIC_CORS_ORIGINS",
	AllowedMethods:   "CIVIC_CORS_ALLOWED_METHODS",
	AllowedHeaders:   "CIVIC_CORS_ALLOWED_HEADERS",
	AllowCredentials: "CIVIC_CORS_ALLOW_CREDENTIALS",
	MaxAge:           "CIVIC_CORS_MAX_AGE",
}

var paginationEnv = &pagination.ConfigEnv{
	DefaultPageSize: "CIVIC_PAGINATION_DEFAULT_PAGE_SIZE",
	MaxPageSize:     "CIVIC_PAGINATION_MAX_PAGE_SIZE",
}

var openAPIEnv = &openapi.ConfigEnv{
	Title:        "CIVIC_OPENAPI_TITLE",
	Description:  "CIVIC_OPENAPI_DESCRIPTION",
	ContactName:  "CIVIC_OPENAPI_CONTACT_NAME",
	ContactEmail: "CIVIC_OPENAPI_CONTACT_EMAIL",
}

// APIConfig holds API routing, CORS, pagination, and OpenAPI settings.
// PublicURL is the externally reachable origin, used to build image links
// handed to the vision service.
type APIConfig struct {
	BasePath      string                `toml:"base_path"`
	PublicURL     string                `toml:"public_url"`
	MaxUploadSize string                `toml:"max_upload_size"`
	CORS          middleware.CORSConfig `toml:"cors"`
	Pagination    pagination.Config     `toml:"pagination"`
	OpenAPI       openapi.Config        `toml:"openapi"`
}

// ImageURL returns the public link for a stored image key.
func (c *APIConfig) ImageURL(key string) string {
	return strings.TrimRight(c.PublicURL, "/") + c.BasePath + "/images/" + key
}

func (c *APIConfig) MaxUploadSizeBytes() int64 {
	size, err := formatting.ParseBytes(c.MaxUploadSize)
	if err != nil {
		return 10 * 1024 * 1024 // 10MB fallback
	}
	return size
}

// Finalize applies defaults, environment variable overrides, and validation
// for the API config and its nested configs.
func (c *APIConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()

	if err := c.CORS.Finalize(corsEnv); err != nil {
		return fmt.Errorf("cors: %w", err)
	}
	if err := c.Pagination.Finalize(paginationEnv); err != nil {
		return fmt.Errorf("pagination: %w", err)
	}
	if err := c.OpenAPI.Finalize(openAPIEnv); err != nil {
		return fmt.Errorf("openapi: %w", err)
	}
	if _, err := formatting.ParseBytes(c.MaxUploadSize); err != nil {
		return fmt.Errorf("invalid max_upload_size: %w", err)
	}
	return nil
}

// Merge overwrites non-zero fields from overlay across nested configs.
func (c *APIConfig) Merge(overlay *APIConfig) {
	if overlay.BasePath != "" {
		c.BasePath = overlay.BasePath
	}
	if overlay.PublicURL != "" {
		c.PublicURL = overlay.PublicURL
	}
	if overlay.MaxUploadSize != "" {
		c.MaxUploadSize = overlay.MaxUploadSize
	}

	c.CORS.Merge(&overlay.CORS)
	c.Pagination.Merge(&overlay.Pagination)
	c.OpenAPI.Merge(&overlay.OpenAPI)
}

func (c *APIConfig) loadDefaults() {
	if c.BasePath == "" {
		c.BasePath = "/api"
	}
	if c.PublicURL == "" {
		c.PublicURL = "http://localhost:8080"
	}
	if c.MaxUploadSize == "" {
		c.MaxUploadSize = "10MB"
	}
}

func (c *APIConfig) loadEnv() {
	if v := os.Getenv("CIVIC_API_BASE_PATH"); v != "" {
		c.BasePath = v
	}
	if v := os.Getenv("CIVIC_API_PUBLIC_URL"); v != "" {
		c.PublicURL = v
	}
	if v := os.Getenv("CIVIC_API_MAX_UPLOAD_SIZE"); v != "" {
		c.MaxUploadSize = v
	}
}
