// Package adapter abstracts the physical blob store behind a uniform
// interface. Exactly one backend is constructed at startup; the engine never
// sees which one.
package adapter

import (
	"context"
	"fmt"
	"time"

	"github.com/lk2023060901/filevault/internal/conf"
	"github.com/lk2023060901/filevault/internal/pkg/logger"
)

// StorageAdapter is the contract every storage backend implements. Object
// names are backend-agnostic slash-separated paths; adapters map them onto
// their own namespace (bucket keys, public IDs).
type StorageAdapter interface {
	// UploadFile stores the buffer under objectName, overwriting any
	// existing object with the same name
	UploadFile(ctx context.Context, objectName string, buffer []byte, contentType string) error

	// GetUploadURL returns a URL a client can use to upload directly to the
	// backend, valid for the given duration. A non-empty contentType is
	// bound into the URL so the client cannot upload under a different
	// declared type.
	GetUploadURL(ctx context.Context, objectName, contentType string, expires time.Duration) (string, error)

	// GetAccessURL returns a URL the stored object can be fetched from.
	// Backends with expiring URLs honor expires; others ignore it.
	GetAccessURL(ctx context.Context, objectName string, expires time.Duration) (string, error)

	// DeleteFile removes a single object. Deleting an absent object is not
	// an error.
	DeleteFile(ctx context.Context, objectName string) error

	// DeleteFiles removes a batch of objects, attempting every entry even
	// when some fail; the returned error aggregates the failures
	DeleteFiles(ctx context.Context, objectNames []string) error

	// FileExists reports whether the object is present in the backend
	FileExists(ctx context.Context, objectName string) (bool, error)

	// EnsureBucketExists prepares the backend namespace, creating it when
	// missing. Idempotent.
	EnsureBucketExists(ctx context.Context) error
}

// New constructs the backend selected by cfg.Backend
func New(cfg *conf.StorageConfig, log *logger.Logger) (StorageAdapter, error) {
	switch cfg.Backend {
	case "minio":
		return NewMinIOAdapter(&cfg.MinIO, log)
	case "cloudinary":
		return NewCloudinaryAdapter(&cfg.Cloudinary, log)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
