package datafile

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// LocationFactory creates a Location for one operation. conn is nil when no
// connection applies, in which case the backend falls back to its SDK's
// ambient credentials.
type LocationFactory func(ctx context.Context, conn *Connection, cfg *Config) (Location, error)

// Backend describes a registered location implementation.
type Backend struct {
	// Name identifies the backend in logs, e.g. "s3".
	Name string

	// Schemes handled by the backend. The empty scheme means plain paths.
	Schemes []string

	// ConnType is the connection type the backend consumes, or "" when it
	// needs none.
	ConnType string

	Factory LocationFactory
}

var (
	backends     = make(map[string]Backend)
	backendMutex sync.RWMutex
)

// RegisterLocation registers a backend for its schemes. Drivers call it
// from init; a later registration for a scheme replaces the earlier one.
func RegisterLocation(b Backend) {
	if b.Factory == nil {
		panic("datafile: RegisterLocation with nil factory for " + b.Name)
	}
	backendMutex.Lock()
	defer backendMutex.Unlock()
	for _, s := range b.Schemes {
		backends[strings.ToLower(s)] = b
	}
}

// RegisteredSchemes returns the schemes with a registered backend, sorted.
func RegisteredSchemes() []string {
	backendMutex.RLock()
	defer backendMutex.RUnlock()
	out := make([]string, 0, len(backends))
	for s := range backends {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func snapshotBackends() map[string]Backend {
	backendMutex.RLock()
	defer backendMutex.RUnlock()
	out := make(map[string]Backend, len(backends))
	for s, b := range backends {
		out[s] = b
	}
	return out
}

func lookupBackend(m map[string]Backend, scheme string) (Backend, error) {
	b, ok := m[scheme]
	if !ok {
		return Backend{}, fmt.Errorf("%w: scheme %q", ErrUnsupportedBackend, scheme)
	}
	return b, nil
}
