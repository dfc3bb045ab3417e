package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/container"

	"github.com/JaimeStill/civic/pkg/lifecycle"
)

const defaultContentType = "application/octet-stream"

type azure struct {
	container *container.Client
	name      string
	logger    *slog.Logger
	ready     atomic.Bool
}

func newAzure(cfg *Config, logger *slog.Logger) (*azure, error) {
	client, err := azureClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &azure{
		container: client.ServiceClient().NewContainerClient(cfg.ContainerName),
		name:      cfg.ContainerName,
		logger:    logger,
	}, nil
}

var clientOptions = &azblob.ClientOptions{
	ClientOptions: azcore.ClientOptions{
		Telemetry: policy.TelemetryOptions{ApplicationID: "civic"},
		Retry: policy.RetryOptions{
			MaxRetries: 3,
			TryTimeout: 30 * time.Second,
		},
	},
}

// azureClient prefers the connection string and otherwise authenticates
// against AccountURL with the default credential chain.
func azureClient(cfg *Config) (*azblob.Client, error) {
	if cfg.ConnectionString != "" {
		return azblob.NewClientFromConnectionString(cfg.ConnectionString, clientOptions)
	}
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, err
	}
	return azblob.NewClient(cfg.AccountURL, cred, clientOptions)
}

func (a *azure) Start(lc *lifecycle.Coordinator) error {
	lc.RegisterCheck("storage", lifecycle.ReadinessFunc(a.ready.Load))

	lc.OnStartup(func() {
		_, err := a.container.Create(lc.Context(), nil)
		if err != nil && !bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
			a.logger.Error("storage container initialization failed", "container", a.name, "error", err)
			return
		}
		a.ready.Store(true)
		a.logger.Info("storage container ready", "container", a.name)
	})
	return nil
}

func (a *azure) Upload(ctx context.Context, key string, reader io.Reader, contentType string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if !a.ready.Load() {
		return fmt.Errorf("%w: container %s not initialized", ErrUnavailable, a.name)
	}

	_, err := a.container.NewBlockBlobClient(key).UploadStream(ctx, reader, &azblob.UploadStreamOptions{
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: &contentType},
	})
	if err != nil {
		return fmt.Errorf("upload blob %s: %w", key, err)
	}
	return nil
}

func (a *azure) Download(ctx context.Context, key string) (*Object, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}

	resp, err := a.container.NewBlobClient(key).DownloadStream(ctx, nil)
	if err != nil {
		return nil, a.translate("download", key, err)
	}

	obj := &Object{Body: resp.Body, ContentType: defaultContentType, Size: -1}
	if resp.ContentType != nil {
		obj.ContentType = *resp.ContentType
	}
	if resp.ContentLength != nil {
		obj.Size = *resp.ContentLength
	}
	return obj, nil
}

func (a *azure) Delete(ctx context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if _, err := a.container.NewBlobClient(key).Delete(ctx, nil); err != nil {
		return a.translate("delete", key, err)
	}
	return nil
}

func (a *azure) Exists(ctx context.Context, key string) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}
	_, err := a.container.NewBlobClient(key).GetProperties(ctx, nil)
	switch {
	case err == nil:
		return true, nil
	case bloberror.HasCode(err, bloberror.BlobNotFound):
		return false, nil
	}
	return false, a.translate("stat", key, err)
}

func (a *azure) translate(op, key string, err error) error {
	if bloberror.HasCode(err, bloberror.BlobNotFound) {
		return ErrNotFound
	}
	return fmt.Errorf("%s blob %s: %w", op, key, err)
}
