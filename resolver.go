package datafile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/viant/afs/url"
	"golang.org/x/sync/singleflight"
)

// ReleaseFunc releases a resolved location. It is safe to call more than
// once.
type ReleaseFunc func() error

// Resolver selects the location for a URI and resolves the connection it
// needs. A Resolver is safe for concurrent use; resolved connections are
// cached per id.
type Resolver struct {
	cfg      *Config
	conns    ConnectionResolver
	logger   *slog.Logger
	backends map[string]Backend
	fixed    map[string]Location

	mu    sync.RWMutex
	cache map[string]*Connection
	group singleflight.Group
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithConfig sets the configuration handed to location factories.
func WithConfig(cfg *Config) ResolverOption {
	return func(r *Resolver) {
		if cfg != nil {
			r.cfg = cfg
		}
	}
}

// WithConnections sets the connection store. Without one every explicit
// connection id fails with ErrConnectionNotFound.
func WithConnections(c ConnectionResolver) ResolverOption {
	return func(r *Resolver) {
		r.conns = c
	}
}

// WithResolverLogger sets the logger. Nil means slog.Default().
func WithResolverLogger(l *slog.Logger) ResolverOption {
	return func(r *Resolver) {
		r.logger = l
	}
}

// WithBackend registers b on this resolver only.
func WithBackend(b Backend) ResolverOption {
	return func(r *Resolver) {
		for _, s := range b.Schemes {
			r.backends[strings.ToLower(s)] = b
		}
	}
}

// WithLocation serves schemes from loc, whatever the connection. loc is
// shared between operations and never closed by the resolver.
func WithLocation(loc Location, schemes ...string) ResolverOption {
	return func(r *Resolver) {
		for _, s := range schemes {
			r.fixed[strings.ToLower(s)] = loc
		}
	}
}

// NewResolver returns a resolver over the backends registered so far.
func NewResolver(opts ...ResolverOption) *Resolver {
	r := &Resolver{
		cfg:      DefaultConfig(),
		backends: snapshotBackends(),
		fixed:    make(map[string]Location),
		cache:    make(map[string]*Connection),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

// Config returns the resolver configuration.
func (r *Resolver) Config() *Config {
	return r.cfg
}

// Logger returns the resolver logger.
func (r *Resolver) Logger() *slog.Logger {
	return r.logger
}

// Scheme returns the lower-cased scheme of uri, or "" for a plain path.
func Scheme(uri string) string {
	if !strings.Contains(uri, "://") {
		return ""
	}
	return strings.ToLower(url.Scheme(uri, ""))
}

// Backend returns the backend serving uri without resolving any
// connection. Selection depends on the scheme alone.
func (r *Resolver) Backend(uri string) (Backend, error) {
	scheme := Scheme(uri)
	if _, ok := r.fixed[scheme]; ok {
		return Backend{Name: "fixed", Schemes: []string{scheme}}, nil
	}
	return lookupBackend(r.backends, scheme)
}

// Resolve returns the location for uri. connID names the connection to
// use; empty means the default connection of the backend's type. The
// caller must call release once the operation ends.
func (r *Resolver) Resolve(ctx context.Context, uri, connID string) (Location, ReleaseFunc, error) {
	scheme := Scheme(uri)
	if loc, ok := r.fixed[scheme]; ok {
		return loc, func() error { return nil }, nil
	}

	b, err := lookupBackend(r.backends, scheme)
	if err != nil {
		return nil, nil, err
	}

	var conn *Connection
	if b.ConnType != "" {
		conn, err = r.Connection(ctx, b.ConnType, connID)
		if err != nil {
			return nil, nil, err
		}
	}

	loc, err := b.Factory(ctx, conn, r.cfg)
	if err != nil {
		return nil, nil, NewPathError("connect", scheme, uri, err)
	}

	r.logger.Debug("resolved location",
		slog.String("path", uri),
		slog.String("scheme", scheme),
		slog.String("backend", b.Name),
		slog.String("conn_id", connIDOf(conn)))

	var once sync.Once
	release := func() error {
		var err error
		once.Do(func() {
			if c, ok := loc.(io.Closer); ok {
				err = c.Close()
			}
		})
		return err
	}
	return loc, release, nil
}

// Connection resolves the connection a backend of connType uses. With an
// empty connID the configured default id is tried, and a missing default
// yields (nil, nil) so the backend uses ambient credentials. A missing
// explicit id is an error.
func (r *Resolver) Connection(ctx context.Context, connType, connID string) (*Connection, error) {
	explicit := connID != ""
	if !explicit {
		connID = r.cfg.DefaultConnID(connType)
		if connID == "" {
			return nil, nil
		}
	}

	conn, err := r.lookup(ctx, connID)
	if err != nil {
		if !explicit && errors.Is(err, ErrConnectionNotFound) {
			r.logger.Debug("default connection not found, using ambient credentials",
				slog.String("conn_id", connID))
			return nil, nil
		}
		return nil, err
	}
	return conn, nil
}

func (r *Resolver) lookup(ctx context.Context, connID string) (*Connection, error) {
	r.mu.RLock()
	conn, ok := r.cache[connID]
	r.mu.RUnlock()
	if ok {
		return conn, nil
	}

	if r.conns == nil {
		return nil, fmt.Errorf("%w: %s", ErrConnectionNotFound, connID)
	}

	v, err, _ := r.group.Do(connID, func() (any, error) {
		conn, err := r.conns.ResolveConnection(ctx, connID)
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		r.cache[connID] = conn
		r.mu.Unlock()
		return conn, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Connection), nil
}

// Forget drops the cached connection for connID.
func (r *Resolver) Forget(connID string) {
	r.mu.Lock()
	delete(r.cache, connID)
	r.mu.Unlock()
}

func connIDOf(c *Connection) string {
	if c == nil {
		return ""
	}
	return c.ID
}
