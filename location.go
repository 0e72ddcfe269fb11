package datafile

import (
	"context"
	"io"
)

// ============================================================================
// Core Interface
// ============================================================================

// Location performs byte-level I/O against one storage medium. Every method
// takes the full URI of the object, scheme included.
type Location interface {
	// Open returns a stream for reading the object. The error wraps
	// ErrNotExist when the object is missing.
	Open(ctx context.Context, uri string) (io.ReadCloser, error)

	// Create returns a stream writing the object. Existing content is
	// replaced; the write is committed when the stream is closed.
	Create(ctx context.Context, uri string, opts ...Option) (io.WriteCloser, error)

	// Exists reports whether the object exists. A missing object is
	// (false, nil); errors are reserved for backend failures.
	Exists(ctx context.Context, uri string) (bool, error)

	// List returns the URIs of the objects matching a glob pattern, in
	// backend order. Directories are never returned.
	List(ctx context.Context, pattern string) ([]string, error)
}

// ============================================================================
// Optional Capability Interfaces
// ============================================================================
// Use type assertion to check if a location supports a capability:
//
//	if mover, ok := loc.(CanMove); ok {
//	    mover.Move(ctx, src, dst)
//	}
//
// Locations that also implement io.Closer are closed once the operation
// that resolved them finishes.

// CanDelete indicates the location can remove objects.
type CanDelete interface {
	Delete(ctx context.Context, uri string) error
}

// CanMove indicates the location supports moving an object within the same
// backend. Atomic writes rely on it.
type CanMove interface {
	Move(ctx context.Context, src, dst string) error
}
