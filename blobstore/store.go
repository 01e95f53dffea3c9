// Package blobstore abstracts where event files live: local filesystem,
// memory, or S3-compatible object storage. Backends write and read whole
// immutable files through it and never care about the medium.
package blobstore

import (
	"context"
	"io"
	"os"
)

// ErrNotFound is returned when a blob does not exist.
//
// Implementations should return an error that satisfies
// `errors.Is(err, ErrNotFound)`. The default maps to `os.ErrNotExist`.
var ErrNotFound = os.ErrNotExist

// BlobStore is an abstraction for storing immutable event files.
type BlobStore interface {
	// Open opens a blob for reading.
	Open(ctx context.Context, name string) (Blob, error)
	// Create creates a new blob for streaming writes.
	Create(ctx context.Context, name string) (WritableBlob, error)
	// Put writes a blob in one call.
	Put(ctx context.Context, name string, data []byte) error
	// Delete removes a blob.
	Delete(ctx context.Context, name string) error
	// List returns all blob names with the given prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)
}

// Blob is a read-only handle to a stored file.
type Blob interface {
	io.ReaderAt
	io.Closer
	// Size returns the size of the blob in bytes.
	Size() int64
}

// WritableBlob is a streaming write handle. The blob becomes visible under
// its name when Close returns nil.
type WritableBlob interface {
	io.Writer
	io.Closer
	// Sync flushes buffered data to the medium where that is meaningful.
	Sync() error
}

// Mappable is an optional interface for Blobs that support zero-copy
// access to the underlying bytes.
type Mappable interface {
	// Bytes returns the underlying byte slice, valid until Close.
	Bytes() ([]byte, error)
}
