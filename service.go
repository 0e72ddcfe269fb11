package datafile

import (
	"sync"

	"github.com/gobeaver/beaver-kit/config"
)

// Global instance
var (
	defaultResolver *Resolver
	defaultOnce     sync.Once
	defaultErr      error
	defaultMu       sync.RWMutex
)

// Builder creates resolvers from environment variables with a custom prefix
type Builder struct {
	prefix string
}

// WithPrefix creates a new Builder with the specified prefix
func WithPrefix(prefix string) *Builder {
	return &Builder{prefix: prefix}
}

// Init initializes the global resolver using the builder's prefix
func (b *Builder) Init(opts ...ResolverOption) error {
	cfg := &Config{}
	if err := config.Load(cfg, config.LoadOptions{Prefix: b.prefix}); err != nil {
		return err
	}
	return Init(cfg, opts...)
}

// New creates a new resolver using the builder's prefix
func (b *Builder) New(opts ...ResolverOption) (*Resolver, error) {
	cfg := &Config{}
	if err := config.Load(cfg, config.LoadOptions{Prefix: b.prefix}); err != nil {
		return nil, err
	}
	return NewFromConfig(cfg, opts...), nil
}

// NewFromConfig creates a resolver reading connections from environment
// variables named after cfg.ConnEnvPrefix. opts are applied afterwards and
// may replace the connection store.
func NewFromConfig(cfg *Config, opts ...ResolverOption) *Resolver {
	all := []ResolverOption{
		WithConfig(cfg),
		WithConnections(EnvConnections{Prefix: cfg.ConnEnvPrefix}),
	}
	return NewResolver(append(all, opts...)...)
}

// NewFromEnv creates a resolver from environment variables
func NewFromEnv(opts ...ResolverOption) (*Resolver, error) {
	cfg, err := GetConfig()
	if err != nil {
		return nil, err
	}
	return NewFromConfig(cfg, opts...), nil
}

// Init initializes the global resolver. A nil cfg loads it from the
// environment. Only the first call has an effect until Reset.
func Init(cfg *Config, opts ...ResolverOption) error {
	defaultOnce.Do(func() {
		if cfg == nil {
			cfg, defaultErr = GetConfig()
			if defaultErr != nil {
				return
			}
		}
		r := NewFromConfig(cfg, opts...)
		defaultMu.Lock()
		defaultResolver = r
		defaultMu.Unlock()
	})
	return defaultErr
}

// Default returns the global resolver, initializing it from the
// environment if needed.
func Default() (*Resolver, error) {
	defaultMu.RLock()
	r := defaultResolver
	defaultMu.RUnlock()
	if r != nil {
		return r, nil
	}
	if err := Init(nil); err != nil {
		return nil, err
	}
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultResolver, nil
}

// currentResolver returns the global resolver when Init was called and a
// resolver without connections otherwise. It never reads the environment.
func currentResolver() *Resolver {
	defaultMu.RLock()
	r := defaultResolver
	defaultMu.RUnlock()
	if r != nil {
		return r
	}
	return NewResolver()
}

// Reset clears the global instance (for testing)
func Reset() {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultResolver = nil
	defaultOnce = sync.Once{}
	defaultErr = nil
}
