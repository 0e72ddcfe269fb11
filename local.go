package datafile

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

const fileScheme = "file"

func init() {
	RegisterLocation(Backend{
		Name:    "local",
		Schemes: []string{"", fileScheme},
		Factory: func(context.Context, *Connection, *Config) (Location, error) {
			return NewLocal()
		},
	})
}

// LocalAdapter is the Location for plain paths and "file://" URIs. It is
// registered under both schemes by this package.
type LocalAdapter struct {
	root string
}

// LocalOption configures an LocalAdapter
type LocalOption func(*LocalAdapter)

// WithLocalRoot confines the adapter to root: relative paths resolve under it
// and paths leaving it fail with ErrPermission.
func WithLocalRoot(root string) LocalOption {
	return func(a *LocalAdapter) {
		a.root = root
	}
}

// NewLocal creates a local filesystem adapter
func NewLocal(opts ...LocalOption) (*LocalAdapter, error) {
	a := &LocalAdapter{}
	for _, opt := range opts {
		opt(a)
	}
	if a.root != "" {
		absRoot, err := filepath.Abs(a.root)
		if err != nil {
			return nil, err
		}
		a.root = absRoot
	}
	return a, nil
}

// osPath maps a URI onto a filesystem path.
func (a *LocalAdapter) osPath(op, uri string) (string, error) {
	p := strings.TrimPrefix(uri, fileScheme+"://")
	p = filepath.FromSlash(p)
	if a.root == "" {
		return filepath.Clean(p), nil
	}

	if !filepath.IsAbs(p) {
		p = filepath.Join(a.root, p)
	}
	p = filepath.Clean(p)
	if !isPathUnderRoot(a.root, p) {
		return "", localPathErr(op, uri, ErrPermission)
	}
	return p, nil
}

// Open implements Location
func (a *LocalAdapter) Open(ctx context.Context, uri string) (io.ReadCloser, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	p, err := a.osPath("open", uri)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(p)
	if err != nil {
		return nil, localPathErr("open", uri, mapLocalErr(err))
	}
	if info.IsDir() {
		return nil, localPathErr("open", uri, ErrNotExist)
	}

	f, err := os.Open(p)
	if err != nil {
		return nil, localPathErr("open", uri, mapLocalErr(err))
	}
	return f, nil
}

// Create implements Location. Content goes to a temporary file in
// the target directory, renamed over the target on Close.
func (a *LocalAdapter) Create(ctx context.Context, uri string, _ ...Option) (io.WriteCloser, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	p, err := a.osPath("create", uri)
	if err != nil {
		return nil, err
	}

	dir := filepath.Dir(p)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, localPathErr("create", uri, mapLocalErr(err))
	}

	// An existing target keeps its permissions, new files get the usual 0644.
	mode := fs.FileMode(0644)
	if info, err := os.Stat(p); err == nil && info.Mode().IsRegular() {
		mode = info.Mode().Perm()
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(p)+".*.tmp")
	if err != nil {
		return nil, localPathErr("create", uri, mapLocalErr(err))
	}
	return &localWriter{File: tmp, target: p, uri: uri, mode: mode}, nil
}

// Exists implements Location. Directories do not count.
func (a *LocalAdapter) Exists(ctx context.Context, uri string) (bool, error) {
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	default:
	}

	p, err := a.osPath("exists", uri)
	if err != nil {
		return false, err
	}

	info, err := os.Stat(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, localPathErr("exists", uri, mapLocalErr(err))
	}
	return !info.IsDir(), nil
}

// List implements Location. Single-segment wildcards go through
// filepath.Glob; patterns with "**" or "{...}" walk the directory tree
// below the literal prefix. Results are in lexical order.
func (a *LocalAdapter) List(ctx context.Context, pattern string) ([]string, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	if !HasWildcard(pattern) {
		ok, err := a.Exists(ctx, pattern)
		if err != nil || !ok {
			return []string{}, err
		}
		return []string{pattern}, nil
	}

	p, err := a.osPath("list", pattern)
	if err != nil {
		return nil, err
	}

	var matches []string
	if strings.Contains(p, "**") || strings.ContainsAny(p, "{}") {
		matches, err = a.walk(ctx, p)
	} else {
		matches, err = filepath.Glob(p)
	}
	if err != nil {
		return nil, localPathErr("list", pattern, err)
	}

	withScheme := strings.HasPrefix(pattern, fileScheme+"://")
	out := []string{}
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil || info.IsDir() {
			continue
		}
		if withScheme {
			m = fileScheme + "://" + filepath.ToSlash(m)
		}
		out = append(out, m)
	}
	return out, nil
}

func (a *LocalAdapter) walk(ctx context.Context, pattern string) ([]string, error) {
	slashed := filepath.ToSlash(pattern)
	m, err := NewKeyMatcher(slashed)
	if err != nil {
		return nil, err
	}

	base := m.Prefix()
	if i := strings.LastIndex(base, "/"); i >= 0 {
		base = base[:i+1]
	} else {
		base = "."
	}

	var out []string
	err = filepath.WalkDir(filepath.FromSlash(base), func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			return nil
		}
		if m.Match(filepath.ToSlash(p)) {
			out = append(out, p)
		}
		return nil
	})
	sort.Strings(out)
	return out, err
}

// Delete implements CanDelete
func (a *LocalAdapter) Delete(ctx context.Context, uri string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	p, err := a.osPath("delete", uri)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		return localPathErr("delete", uri, mapLocalErr(err))
	}
	return nil
}

// Move implements CanMove
func (a *LocalAdapter) Move(ctx context.Context, src, dst string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	srcPath, err := a.osPath("move", src)
	if err != nil {
		return err
	}
	dstPath, err := a.osPath("move", dst)
	if err != nil {
		return err
	}

	if _, err := os.Stat(srcPath); err != nil {
		return localPathErr("move", src, mapLocalErr(err))
	}
	if err := os.MkdirAll(filepath.Dir(dstPath), 0755); err != nil {
		return localPathErr("move", dst, mapLocalErr(err))
	}
	if err := os.Rename(srcPath, dstPath); err != nil {
		return localPathErr("move", src, mapLocalErr(err))
	}
	return nil
}

// localWriter renames the temporary file over the target on Close.
type localWriter struct {
	*os.File
	target string
	uri    string
	mode   fs.FileMode

	once sync.Once
	err  error
}

func (w *localWriter) Close() error {
	w.once.Do(func() {
		if err := w.File.Chmod(w.mode); err != nil {
			w.File.Close()
			os.Remove(w.File.Name())
			w.err = localPathErr("create", w.uri, mapLocalErr(err))
			return
		}
		if err := w.File.Close(); err != nil {
			os.Remove(w.File.Name())
			w.err = localPathErr("create", w.uri, err)
			return
		}
		if err := os.Rename(w.File.Name(), w.target); err != nil {
			os.Remove(w.File.Name())
			w.err = localPathErr("create", w.uri, mapLocalErr(err))
		}
	})
	return w.err
}

// Abort implements CanAbort: the target is left untouched.
func (w *localWriter) Abort() error {
	w.once.Do(func() {
		w.File.Close()
		if err := os.Remove(w.File.Name()); err != nil && !errors.Is(err, fs.ErrNotExist) {
			w.err = localPathErr("create", w.uri, err)
		}
	})
	return w.err
}

// isPathUnderRoot checks if a path is under a given root directory
func isPathUnderRoot(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return !filepath.IsAbs(rel) && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func mapLocalErr(err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return errors.Join(ErrNotExist, err)
	case errors.Is(err, fs.ErrPermission):
		return errors.Join(ErrPermission, err)
	default:
		return err
	}
}

func localPathErr(op, uri string, err error) error {
	scheme := ""
	if strings.HasPrefix(uri, fileScheme+"://") {
		scheme = fileScheme
	}
	return &PathError{Op: op, Scheme: scheme, Path: uri, Err: err}
}

// Ensure LocalAdapter implements interfaces
var (
	_ Location  = (*LocalAdapter)(nil)
	_ CanDelete = (*LocalAdapter)(nil)
	_ CanMove   = (*LocalAdapter)(nil)
	_ CanAbort  = (*localWriter)(nil)
)
