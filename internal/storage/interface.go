package storage

import (
	"context"
	"io"
)

// ObjectStorage defines the interface for poster image storage. The search
// and recommendation paths only resolve URLs; uploads happen on the catalog
// seeding side.
type ObjectStorage interface {
	// EnsureBucket verifies the bucket exists, creating it when the
	// backend allows it
	EnsureBucket(ctx context.Context) error

	// Upload uploads an object to storage
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error

	// GetURL returns the URL for accessing an object
	GetURL(key string) string

	// Exists checks if an object exists
	Exists(ctx context.Context, key string) (bool, error)
}
