// Package http provides a read-only datafile.Location for "http://" and
// "https://" URIs. Lists are not supported by web servers, so a pattern
// lists only itself when it exists.
package http

import (
	"context"
	"errors"
	"io"

	"github.com/viant/afs"

	"github.com/gobeaver/datafile"
)

// Adapter reads remote files through an afs service.
type Adapter struct {
	fs afs.Service
}

// New creates a read-only HTTP location. A nil service uses afs.New().
func New(service afs.Service) datafile.Location {
	if service == nil {
		service = afs.New()
	}
	return datafile.ReadOnly(&Adapter{fs: service})
}

// Open implements datafile.Location
func (a *Adapter) Open(ctx context.Context, uri string) (io.ReadCloser, error) {
	ok, err := a.fs.Exists(ctx, uri)
	if err != nil {
		return nil, datafile.NewPathError("open", datafile.Scheme(uri), uri, err)
	}
	if !ok {
		return nil, datafile.NewPathError("open", datafile.Scheme(uri), uri, datafile.ErrNotExist)
	}

	rc, err := a.fs.OpenURL(ctx, uri)
	if err != nil {
		return nil, datafile.NewPathError("open", datafile.Scheme(uri), uri, err)
	}
	return rc, nil
}

// Create implements datafile.Location
func (a *Adapter) Create(_ context.Context, uri string, _ ...datafile.Option) (io.WriteCloser, error) {
	return nil, datafile.NewPathError("create", datafile.Scheme(uri), uri, errors.Join(datafile.ErrReadOnly, datafile.ErrNotSupported))
}

// Exists implements datafile.Location
func (a *Adapter) Exists(ctx context.Context, uri string) (bool, error) {
	ok, err := a.fs.Exists(ctx, uri)
	if err != nil {
		return false, datafile.NewPathError("exists", datafile.Scheme(uri), uri, err)
	}
	return ok, nil
}

// List implements datafile.Location. The pattern is taken literally: "?"
// starts a query string in a URL.
func (a *Adapter) List(ctx context.Context, pattern string) ([]string, error) {
	ok, err := a.Exists(ctx, pattern)
	if err != nil || !ok {
		return []string{}, err
	}
	return []string{pattern}, nil
}

var _ datafile.Location = (*Adapter)(nil)
