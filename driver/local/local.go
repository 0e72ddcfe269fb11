// Package local exposes the local filesystem datafile.Location. It serves
// plain paths (absolute or relative) and "file://" URIs.
//
// The location is registered by the datafile package itself, so plain paths
// work without importing this package. Import it to build adapters with
// options, for example one confined to a root directory:
//
//	loc, err := local.New(local.WithRoot("/data"))
//	r := datafile.NewResolver(datafile.WithLocation(loc, "", "file"))
package local

import (
	"github.com/gobeaver/datafile"
)

// Adapter provides a local filesystem implementation of datafile.Location
type Adapter = datafile.LocalAdapter

// AdapterOption configures an Adapter
type AdapterOption = datafile.LocalOption

// WithRoot confines the adapter to root: relative paths resolve under it
// and paths leaving it fail with ErrPermission.
func WithRoot(root string) AdapterOption {
	return datafile.WithLocalRoot(root)
}

// New creates a new local filesystem adapter
func New(opts ...AdapterOption) (*Adapter, error) {
	return datafile.NewLocal(opts...)
}
