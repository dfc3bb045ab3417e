package infrastructure_test

import (
	"testing"

	"github.com/JaimeStill/civic/internal/config"
	"github.com/JaimeStill/civic/internal/infrastructure"
	"github.com/JaimeStill/civic/pkg/cache"
	"github.com/JaimeStill/civic/pkg/database"
	"github.com/JaimeStill/civic/pkg/events"
	"github.com/JaimeStill/civic/pkg/storage"
)

const azuriteConnString = "DefaultEndpointsProtocol=http;AccountName=civicstore;AccountKey=Eby8vdM02xNOcqFlqUwJPLlmEtlCDXJ1OUzFT50uSRZ6IFsuFq2UVErCz4I6tq/K1SZFPTOtr/KBHBeksoGMGw==;BlobEndpoint=http://127.0.0.1:10000/civicstore;"

func validConfig() *config.Config {
	return &config.Config{
		Database: database.Config{
			Host:            "localhost",
			Port:            5432,
			Name:            "civic",
			User:            "civic",
			Password:        "civic",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: "15m",
			ConnTimeout:     "5s",
		},
		Storage: storage.Config{
			Backend:          storage.BackendAzure,
			ContainerName:    "images",
			ConnectionString: azuriteConnString,
		},
		Cache: cache.Config{
			PoolSize:    10,
			DialTimeout: "2s",
			TTL:         "24h",
		},
		Events: events.Config{
			Topic:        "civic.events",
			WriteTimeout: "5s",
		},
		Version: "0.1.0",
	}
}

func TestNew(t *testing.T) {
	infra, err := infrastructure.New(validConfig())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if infra.Lifecycle == nil {
		t.Error("Lifecycle is nil")
	}
	if infra.Logger == nil {
		t.Error("Logger is nil")
	}
	if infra.Database == nil {
		t.Error("Database is nil")
	}
	if infra.Storage == nil {
		t.Error("Storage is nil")
	}
	if infra.Metrics == nil || infra.Registry == nil {
		t.Error("Metrics not registered")
	}
	if infra.Cache != nil {
		t.Error("Cache should be nil without a url")
	}
	if _, ok := infra.Events.(events.Noop); !ok {
		t.Errorf("Events: got %T, want events.Noop without brokers", infra.Events)
	}
	if infra.Auth.Enabled() {
		t.Error("Auth should be disabled without an issuer")
	}
}

func TestNewMemoryStorage(t *testing.T) {
	cfg := validConfig()
	cfg.Storage = storage.Config{Backend: storage.BackendMemory}

	infra, err := infrastructure.New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, ok := infra.Storage.(*storage.Memory); !ok {
		t.Errorf("Storage: got %T, want *storage.Memory", infra.Storage)
	}
}

func TestNewWithCache(t *testing.T) {
	cfg := validConfig()
	cfg.Cache.URL = "redis://localhost:6379/0"

	infra, err := infrastructure.New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if infra.Cache == nil {
		t.Fatal("Cache is nil with a url")
	}
	if infra.Cache.Ready() {
		t.Error("Cache should not be ready before Start")
	}
}

func TestNewDatabaseConnection(t *testing.T) {
	infra, err := infrastructure.New(validConfig())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	conn := infra.Database.Connection()
	if conn == nil {
		t.Fatal("Database.Connection() returned nil")
	}
	conn.Close()
}

func TestNewInvalidStorageConfig(t *testing.T) {
	cfg := validConfig()
	cfg.Storage.ConnectionString = "not-a-connection-string"

	if _, err := infrastructure.New(cfg); err == nil {
		t.Fatal("expected error for invalid storage connection string")
	}
}

func TestNewInvalidCacheURL(t *testing.T) {
	cfg := validConfig()
	cfg.Cache.URL = "://nope"

	if _, err := infrastructure.New(cfg); err == nil {
		t.Fatal("expected error for invalid cache url")
	}
}
