package datafile

import (
	"context"
	"errors"
	"io"
)

// ErrReadOnly is returned when a write is attempted on a read-only location.
var ErrReadOnly = errors.New("location is read-only")

// ReadOnly wraps a location so that Create fails with ErrReadOnly.
// Optional write capabilities of the wrapped location are hidden; Close
// is passed through.
//
// Example:
//
//	loc := datafile.ReadOnly(inner)
//	_, err := loc.Create(ctx, "https://example.com/out.csv")
//	// errors.Is(err, datafile.ErrReadOnly) == true
func ReadOnly(loc Location) Location {
	return &readOnlyLocation{loc: loc}
}

type readOnlyLocation struct {
	loc Location
}

func (r *readOnlyLocation) Open(ctx context.Context, uri string) (io.ReadCloser, error) {
	return r.loc.Open(ctx, uri)
}

func (r *readOnlyLocation) Create(_ context.Context, uri string, _ ...Option) (io.WriteCloser, error) {
	return nil, &PathError{Op: "create", Scheme: Scheme(uri), Path: uri, Err: errors.Join(ErrReadOnly, ErrNotSupported)}
}

func (r *readOnlyLocation) Exists(ctx context.Context, uri string) (bool, error) {
	return r.loc.Exists(ctx, uri)
}

func (r *readOnlyLocation) List(ctx context.Context, pattern string) ([]string, error) {
	return r.loc.List(ctx, pattern)
}

func (r *readOnlyLocation) Close() error {
	if c, ok := r.loc.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

var (
	_ Location  = (*readOnlyLocation)(nil)
	_ io.Closer = (*readOnlyLocation)(nil)
)
