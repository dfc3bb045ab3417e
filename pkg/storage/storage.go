// Package storage persists evidence images in Azure Blob Storage,
// with an in-process backend for development and tests.
package storage

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"github.com/JaimeStill/civic/pkg/lifecycle"
)

// Object is a downloaded blob. The caller closes Body.
type Object struct {
	Body        io.ReadCloser
	ContentType string
	// Size is -1 when the backend does not report it.
	Size int64
}

type System interface {
	// Start registers a startup hook that ensures the container exists.
	Start(lc *lifecycle.Coordinator) error
	Upload(ctx context.Context, key string, reader io.Reader, contentType string) error
	Download(ctx context.Context, key string) (*Object, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// New builds the configured backend. No network call happens until Start.
func New(cfg *Config, logger *slog.Logger) (System, error) {
	if cfg.Backend == BackendMemory {
		return NewMemory(), nil
	}
	return newAzure(cfg, logger.With("system", "storage"))
}

// validateKey rejects keys that could escape the container's namespace.
func validateKey(key string) error {
	switch {
	case key == "":
		return ErrEmptyKey
	case strings.HasPrefix(key, "/"), strings.Contains(key, ".."):
		return ErrInvalidKey
	}
	return nil
}
