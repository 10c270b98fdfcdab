// Package filestore defines the provider-neutral contract for flat object
// storage backends.
//
// All providers (MinIO, S3, in-memory) implement the Store interface.
// Callers depend only on this package, never on a specific provider package.
// A Store knows nothing about folders: folder semantics are layered on top
// by the storage and vfs packages.
//
// Usage:
//
//	cfg := filestore.DefaultConfig("localhost:9000", "minioadmin", "minioadmin")
//	store, err := minio.New(ctx, cfg)
//	if err != nil { ... }
//	defer store.Close()
//
//	info, err := store.StatObject(ctx, cfg.Bucket, "user-1-files/report.pdf")
package filestore

import (
	"context"
	"io"
	"time"
)

// Store is the single interface all object storage providers implement.
//
// Drivers translate their native faults into *errs.Error values: a missing
// object is errs.ErrKindNotFound, a violated precondition is
// errs.ErrKindAlreadyExists, and anything else is errs.ErrKindStorageFailed.
type Store interface {
	// Ping verifies the storage backend is reachable.
	Ping(ctx context.Context) error

	// Close releases any held resources.
	Close() error

	// EnsureBucket creates bucket if it does not exist yet.
	EnsureBucket(ctx context.Context, bucket string) error

	// ListObjects returns the objects in bucket that match opts, in the
	// backend's key order. With opts.Recursive false, common prefixes are
	// returned as IsDir entries whose Key ends in "/".
	ListObjects(ctx context.Context, bucket string, opts ListOptions) ([]ObjectInfo, error)

	// GetObject opens a streaming handle to the object at key.
	// The caller MUST call Object.Close() after reading.
	GetObject(ctx context.Context, bucket, key string) (Object, error)

	// StatObject returns metadata for the object at key without its content.
	StatObject(ctx context.Context, bucket, key string) (*ObjectInfo, error)

	// PutObject writes size bytes from r at key, replacing any existing
	// object. size may be -1 when unknown.
	PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, opts PutOptions) (*ObjectInfo, error)

	// RemoveObject deletes the object at key. Removing a missing key is not
	// an error on S3-compatible backends.
	RemoveObject(ctx context.Context, bucket, key string) error

	// CopyObject copies srcKey to dstKey inside bucket, server side.
	CopyObject(ctx context.Context, bucket, srcKey, dstKey string) error

	// PresignGetURL returns a time-limited URL that allows anyone to download
	// the object at key without credentials.
	PresignGetURL(ctx context.Context, bucket, key string, ttl time.Duration) (string, error)
}
