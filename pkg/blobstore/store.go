package blobstore

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("object not found")

// Store is the remote blob storage backend for audio data.
// Implementations: real S3 (pkg/blobstore/s3), simulated (pkg/blobstore/sim),
// plus the redis existence-cache decorator (pkg/blobstore/cache).
type Store interface {
	// Put stores data under key and returns the locator of the stored object.
	Put(ctx context.Context, data []byte, key, contentType string) (string, error)

	// Download fetches the object referenced by locator into the local
	// file at dest, creating parent directories as needed.
	Download(ctx context.Context, locator, dest string) error

	// Delete removes the object stored under key.
	Delete(ctx context.Context, key string) error

	// Exists reports whether an object is stored under key.
	Exists(ctx context.Context, key string) (bool, error)

	// Bucket returns the bucket this store writes into.
	Bucket() string
}
