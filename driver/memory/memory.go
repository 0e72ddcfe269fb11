// Package memory provides an in-memory datafile.Location. It backs the
// "mem" scheme and is the location injected in tests through
// datafile.WithLocation.
package memory

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gobeaver/datafile"
)

// ErrNoSpace is returned when a write would exceed Config.MaxSize.
var ErrNoSpace = errors.New("no space left in memory location")

// memoryObject represents an object stored in memory
type memoryObject struct {
	content     []byte
	contentType string
	metadata    map[string]string
	modTime     time.Time
}

// Adapter stores objects keyed by the part of their URI after the scheme.
// URIs of any scheme are accepted, so one Adapter can stand in for any
// backend.
type Adapter struct {
	mu      sync.RWMutex
	objects map[string]*memoryObject
	maxSize int64 // Maximum total storage size (0 = unlimited)
	size    int64 // Current total size

	open atomic.Int64
}

// Config holds configuration for the memory adapter
type Config struct {
	// MaxSize is the maximum total storage size in bytes (0 = unlimited)
	MaxSize int64
}

// New creates a new in-memory location
func New(cfg ...Config) *Adapter {
	var maxSize int64
	if len(cfg) > 0 {
		maxSize = cfg[0].MaxSize
	}
	return &Adapter{
		objects: make(map[string]*memoryObject),
		maxSize: maxSize,
	}
}

// splitURI returns the scheme and the object key of uri.
func splitURI(uri string) (scheme, key string) {
	if i := strings.Index(uri, "://"); i >= 0 {
		return uri[:i], uri[i+3:]
	}
	return "", uri
}

func joinURI(scheme, key string) string {
	if scheme == "" {
		return key
	}
	return scheme + "://" + key
}

// Open implements datafile.Location
func (a *Adapter) Open(ctx context.Context, uri string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	scheme, key := splitURI(uri)

	a.mu.RLock()
	obj, ok := a.objects[key]
	a.mu.RUnlock()
	if !ok {
		return nil, &datafile.PathError{Op: "open", Scheme: scheme, Path: uri, Err: datafile.ErrNotExist}
	}

	a.open.Add(1)
	return &reader{Reader: bytes.NewReader(obj.content), a: a}, nil
}

// Create implements datafile.Location. The object becomes visible when the
// stream is closed.
func (a *Adapter) Create(ctx context.Context, uri string, opts ...datafile.Option) (io.WriteCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	scheme, key := splitURI(uri)
	if key == "" || strings.HasSuffix(key, "/") {
		return nil, &datafile.PathError{Op: "create", Scheme: scheme, Path: uri, Err: datafile.ErrNotSupported}
	}
	o := datafile.ApplyOptions(opts...)

	a.open.Add(1)
	w := datafile.NewBufferedWriter(ctx, func(_ context.Context, data []byte) error {
		return a.store(scheme, uri, key, data, o)
	})
	return &writer{BufferedWriter: w, a: a}, nil
}

func (a *Adapter) store(scheme, uri, key string, data []byte, o *datafile.Options) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	newSize := a.size + int64(len(data))
	if existing, ok := a.objects[key]; ok {
		newSize -= int64(len(existing.content))
	}
	if a.maxSize > 0 && newSize > a.maxSize {
		return &datafile.PathError{Op: "create", Scheme: scheme, Path: uri, Err: ErrNoSpace}
	}

	a.objects[key] = &memoryObject{
		content:     bytes.Clone(data),
		contentType: o.ContentType,
		metadata:    o.Metadata,
		modTime:     time.Now(),
	}
	a.size = newSize
	return nil
}

// Exists implements datafile.Location
func (a *Adapter) Exists(ctx context.Context, uri string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	_, key := splitURI(uri)

	a.mu.RLock()
	defer a.mu.RUnlock()
	_, ok := a.objects[key]
	return ok, nil
}

// List implements datafile.Location. Matches are sorted by key.
func (a *Adapter) List(ctx context.Context, pattern string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	scheme, key := splitURI(pattern)

	if !datafile.HasWildcard(key) {
		ok, err := a.Exists(ctx, pattern)
		if err != nil || !ok {
			return []string{}, err
		}
		return []string{pattern}, nil
	}

	m, err := datafile.NewKeyMatcher(key)
	if err != nil {
		return nil, &datafile.PathError{Op: "list", Scheme: scheme, Path: pattern, Err: err}
	}

	a.mu.RLock()
	keys := make([]string, 0, len(a.objects))
	for k := range a.objects {
		if strings.HasPrefix(k, m.Prefix()) {
			keys = append(keys, k)
		}
	}
	a.mu.RUnlock()
	sort.Strings(keys)

	out := []string{}
	for _, k := range m.Filter(keys) {
		out = append(out, joinURI(scheme, k))
	}
	return out, nil
}

// Delete implements datafile.CanDelete
func (a *Adapter) Delete(ctx context.Context, uri string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	scheme, key := splitURI(uri)

	a.mu.Lock()
	defer a.mu.Unlock()
	obj, ok := a.objects[key]
	if !ok {
		return &datafile.PathError{Op: "delete", Scheme: scheme, Path: uri, Err: datafile.ErrNotExist}
	}
	a.size -= int64(len(obj.content))
	delete(a.objects, key)
	return nil
}

// Move implements datafile.CanMove
func (a *Adapter) Move(ctx context.Context, src, dst string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	scheme, srcKey := splitURI(src)
	_, dstKey := splitURI(dst)

	a.mu.Lock()
	defer a.mu.Unlock()
	obj, ok := a.objects[srcKey]
	if !ok {
		return &datafile.PathError{Op: "move", Scheme: scheme, Path: src, Err: datafile.ErrNotExist}
	}
	if existing, ok := a.objects[dstKey]; ok && dstKey != srcKey {
		a.size -= int64(len(existing.content))
	}
	delete(a.objects, srcKey)
	a.objects[dstKey] = obj
	return nil
}

// Put stores data at uri directly.
func (a *Adapter) Put(uri string, data []byte) error {
	scheme, key := splitURI(uri)
	return a.store(scheme, uri, key, data, &datafile.Options{})
}

// Get returns a copy of the object at uri.
func (a *Adapter) Get(uri string) ([]byte, bool) {
	_, key := splitURI(uri)
	a.mu.RLock()
	defer a.mu.RUnlock()
	obj, ok := a.objects[key]
	if !ok {
		return nil, false
	}
	return bytes.Clone(obj.content), true
}

// ContentType returns the content type the object was written with.
func (a *Adapter) ContentType(uri string) string {
	_, key := splitURI(uri)
	a.mu.RLock()
	defer a.mu.RUnlock()
	if obj, ok := a.objects[key]; ok {
		return obj.contentType
	}
	return ""
}

// Keys returns the stored keys, sorted.
func (a *Adapter) Keys() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	keys := make([]string, 0, len(a.objects))
	for k := range a.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Size returns the current total size of stored objects
func (a *Adapter) Size() int64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.size
}

// OpenStreams returns the number of streams opened and not yet closed.
func (a *Adapter) OpenStreams() int {
	return int(a.open.Load())
}

// Clear removes all objects
func (a *Adapter) Clear() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.objects = make(map[string]*memoryObject)
	a.size = 0
}

type reader struct {
	*bytes.Reader
	a    *Adapter
	once sync.Once
}

func (r *reader) Close() error {
	r.once.Do(func() { r.a.open.Add(-1) })
	return nil
}

type writer struct {
	*datafile.BufferedWriter
	a    *Adapter
	once sync.Once
}

func (w *writer) Close() error {
	defer w.release()
	return w.BufferedWriter.Close()
}

func (w *writer) Abort() error {
	defer w.release()
	return w.BufferedWriter.Abort()
}

func (w *writer) release() {
	w.once.Do(func() { w.a.open.Add(-1) })
}

// Ensure Adapter implements interfaces
var (
	_ datafile.Location  = (*Adapter)(nil)
	_ datafile.CanDelete = (*Adapter)(nil)
	_ datafile.CanMove   = (*Adapter)(nil)
	_ datafile.CanAbort  = (*writer)(nil)
)
