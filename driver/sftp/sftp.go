// Package sftp provides the SFTP datafile.Location for
// "sftp://<host>/<absolute path>" URIs. The host of the URI is informational:
// the server is the one named by the connection.
package sftp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	"github.com/gobeaver/datafile"
)

const scheme = "sftp"

// Adapter provides an SFTP implementation of datafile.Location
type Adapter struct {
	client  *sftp.Client
	sshConn *ssh.Client

	closeOnce sync.Once
	closeErr  error
}

// AdapterOption is a function that configures SFTP Adapter
type AdapterOption func(*Adapter)

// WithSSHClient makes Close also close the SSH connection under the client.
func WithSSHClient(conn *ssh.Client) AdapterOption {
	return func(a *Adapter) {
		a.sshConn = conn
	}
}

// New creates a new SFTP location on an established client. Close closes
// the client.
func New(client *sftp.Client, options ...AdapterOption) *Adapter {
	a := &Adapter{client: client}
	for _, option := range options {
		option(a)
	}
	return a
}

// remotePath returns the server path of uri and the URI prefix before it.
func remotePath(op, uri string) (base, p string, err error) {
	i := strings.Index(uri, "://")
	if i < 0 {
		return "", "", datafile.NewPathError(op, scheme, uri, fmt.Errorf("%q is not an sftp URI", uri))
	}
	authority, rest, _ := strings.Cut(uri[i+3:], "/")
	if rest == "" {
		return "", "", datafile.NewPathError(op, scheme, uri, fmt.Errorf("%q has no path", uri))
	}
	return uri[:i+3] + authority, "/" + rest, nil
}

func checkCtx(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

// Open implements datafile.Location
func (a *Adapter) Open(ctx context.Context, uri string) (io.ReadCloser, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}
	_, p, err := remotePath("open", uri)
	if err != nil {
		return nil, err
	}

	f, err := a.client.Open(p)
	if err != nil {
		return nil, mapSFTPError("open", uri, err)
	}
	return f, nil
}

// Create implements datafile.Location. Content goes to a temporary file
// beside the target, renamed over it on Close.
func (a *Adapter) Create(ctx context.Context, uri string, _ ...datafile.Option) (io.WriteCloser, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}
	_, p, err := remotePath("create", uri)
	if err != nil {
		return nil, err
	}

	dir := path.Dir(p)
	if err := a.client.MkdirAll(dir); err != nil {
		return nil, mapSFTPError("create", uri, err)
	}

	tmp := path.Join(dir, "."+path.Base(p)+"."+uuid.NewString()+".tmp")
	f, err := a.client.Create(tmp)
	if err != nil {
		return nil, mapSFTPError("create", uri, err)
	}
	return &writer{File: f, a: a, tmp: tmp, target: p, uri: uri}, nil
}

// Exists implements datafile.Location. Directories do not count.
func (a *Adapter) Exists(ctx context.Context, uri string) (bool, error) {
	if err := checkCtx(ctx); err != nil {
		return false, err
	}
	_, p, err := remotePath("exists", uri)
	if err != nil {
		return false, err
	}

	info, err := a.client.Stat(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, mapSFTPError("exists", uri, err)
	}
	return !info.IsDir(), nil
}

// List implements datafile.Location
func (a *Adapter) List(ctx context.Context, pattern string) ([]string, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}
	base, p, err := remotePath("list", pattern)
	if err != nil {
		return nil, err
	}

	if !datafile.HasWildcard(p) {
		ok, err := a.Exists(ctx, pattern)
		if err != nil || !ok {
			return []string{}, err
		}
		return []string{pattern}, nil
	}

	var matches []string
	if strings.Contains(p, "**") || strings.ContainsAny(p, "{}") {
		matches, err = a.walk(ctx, p)
	} else {
		matches, err = a.client.Glob(p)
	}
	if err != nil {
		return nil, mapSFTPError("list", pattern, err)
	}

	out := []string{}
	for _, m := range matches {
		info, err := a.client.Stat(m)
		if err != nil || info.IsDir() {
			continue
		}
		out = append(out, base+m)
	}
	sort.Strings(out)
	return out, nil
}

func (a *Adapter) walk(ctx context.Context, pattern string) ([]string, error) {
	m, err := datafile.NewKeyMatcher(pattern)
	if err != nil {
		return nil, err
	}
	root := path.Dir(m.Prefix() + "x")

	var out []string
	w := a.client.Walk(root)
	for w.Step() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := w.Err(); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, err
		}
		if w.Stat().IsDir() {
			continue
		}
		if m.Match(w.Path()) {
			out = append(out, w.Path())
		}
	}
	return out, nil
}

// Delete implements datafile.CanDelete
func (a *Adapter) Delete(ctx context.Context, uri string) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	_, p, err := remotePath("delete", uri)
	if err != nil {
		return err
	}
	if err := a.client.Remove(p); err != nil {
		return mapSFTPError("delete", uri, err)
	}
	return nil
}

// Move implements datafile.CanMove
func (a *Adapter) Move(ctx context.Context, src, dst string) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	_, srcPath, err := remotePath("move", src)
	if err != nil {
		return err
	}
	_, dstPath, err := remotePath("move", dst)
	if err != nil {
		return err
	}
	if err := a.client.MkdirAll(path.Dir(dstPath)); err != nil {
		return mapSFTPError("move", dst, err)
	}
	if err := a.rename(srcPath, dstPath); err != nil {
		return mapSFTPError("move", src, err)
	}
	return nil
}

// rename replaces dst. Servers without the posix-rename extension refuse
// to rename over an existing file, so dst is removed first there.
func (a *Adapter) rename(src, dst string) error {
	if _, ok := a.client.HasExtension("posix-rename@openssh.com"); ok {
		return a.client.PosixRename(src, dst)
	}
	if err := a.client.Remove(dst); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return a.client.Rename(src, dst)
}

// Close closes the SFTP and SSH connections
func (a *Adapter) Close() error {
	a.closeOnce.Do(func() {
		var result *multierror.Error
		if a.client != nil {
			if err := a.client.Close(); err != nil {
				result = multierror.Append(result, err)
			}
		}
		if a.sshConn != nil {
			if err := a.sshConn.Close(); err != nil && !errors.Is(err, io.EOF) {
				result = multierror.Append(result, err)
			}
		}
		a.closeErr = result.ErrorOrNil()
	})
	return a.closeErr
}

type writer struct {
	*sftp.File
	a      *Adapter
	tmp    string
	target string
	uri    string

	once sync.Once
	err  error
}

func (w *writer) Close() error {
	w.once.Do(func() {
		if err := w.File.Close(); err != nil {
			w.a.client.Remove(w.tmp)
			w.err = mapSFTPError("create", w.uri, err)
			return
		}
		if err := w.a.rename(w.tmp, w.target); err != nil {
			w.a.client.Remove(w.tmp)
			w.err = mapSFTPError("create", w.uri, err)
		}
	})
	return w.err
}

// Abort implements datafile.CanAbort: the target is left untouched.
func (w *writer) Abort() error {
	w.once.Do(func() {
		w.File.Close()
		if err := w.a.client.Remove(w.tmp); err != nil && !errors.Is(err, fs.ErrNotExist) {
			w.err = mapSFTPError("create", w.uri, err)
		}
	})
	return w.err
}

// mapSFTPError maps SFTP errors to datafile errors
func mapSFTPError(op, uri string, err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		err = errors.Join(datafile.ErrNotExist, err)
	case errors.Is(err, fs.ErrPermission):
		err = errors.Join(datafile.ErrPermission, err)
	}
	return datafile.NewPathError(op, scheme, uri, err)
}

var (
	_ datafile.Location  = (*Adapter)(nil)
	_ datafile.CanDelete = (*Adapter)(nil)
	_ datafile.CanMove   = (*Adapter)(nil)
	_ datafile.CanAbort  = (*writer)(nil)
	_ io.Closer          = (*Adapter)(nil)
)
