// Package gcs provides the Google Cloud Storage datafile.Location for
// "gs://" and "gcs://" URIs.
package gcs

import (
	"context"
	"errors"
	"io"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"

	"github.com/gobeaver/datafile"
)

// Adapter provides a Google Cloud Storage implementation of
// datafile.Location. The bucket is taken from each URI.
type Adapter struct {
	client *storage.Client
	owned  bool
}

// AdapterOption is a function that configures GCS Adapter
type AdapterOption func(*Adapter)

// WithOwnedClient makes Close close the underlying client.
func WithOwnedClient() AdapterOption {
	return func(a *Adapter) {
		a.owned = true
	}
}

// New creates a new GCS location
func New(client *storage.Client, options ...AdapterOption) *Adapter {
	a := &Adapter{client: client}
	for _, opt := range options {
		opt(a)
	}
	return a
}

func parse(op, uri string) (scheme, bucket, key string, err error) {
	scheme = datafile.Scheme(uri)
	bucket, key, err = datafile.SplitObjectURI(uri)
	if err != nil {
		return "", "", "", datafile.NewPathError(op, scheme, uri, err)
	}
	return scheme, bucket, key, nil
}

func (a *Adapter) object(bucket, key string) *storage.ObjectHandle {
	return a.client.Bucket(bucket).Object(key)
}

// Open implements datafile.Location
func (a *Adapter) Open(ctx context.Context, uri string) (io.ReadCloser, error) {
	scheme, bucket, key, err := parse("open", uri)
	if err != nil {
		return nil, err
	}

	reader, err := a.object(bucket, key).NewReader(ctx)
	if err != nil {
		return nil, mapGCSError("open", scheme, uri, err)
	}
	return reader, nil
}

// Create implements datafile.Location. Content is streamed to GCS and the
// object becomes visible when the stream is closed.
func (a *Adapter) Create(ctx context.Context, uri string, opts ...datafile.Option) (io.WriteCloser, error) {
	scheme, bucket, key, err := parse("create", uri)
	if err != nil {
		return nil, err
	}
	o := datafile.ApplyOptions(opts...)

	wctx, cancel := context.WithCancel(ctx)
	w := a.object(bucket, key).NewWriter(wctx)
	w.ContentType = o.ContentType
	w.CacheControl = o.CacheControl
	if len(o.Metadata) > 0 {
		w.Metadata = o.Metadata
	}
	return &writer{w: w, cancel: cancel, scheme: scheme, uri: uri}, nil
}

// Exists implements datafile.Location
func (a *Adapter) Exists(ctx context.Context, uri string) (bool, error) {
	scheme, bucket, key, err := parse("exists", uri)
	if err != nil {
		return false, err
	}
	if key == "" || key[len(key)-1] == '/' {
		return false, nil
	}

	_, err = a.object(bucket, key).Attrs(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) || errors.Is(err, storage.ErrBucketNotExist) {
			return false, nil
		}
		return false, mapGCSError("exists", scheme, uri, err)
	}
	return true, nil
}

// List implements datafile.Location. Objects under the literal prefix of
// the pattern are listed and filtered with the glob.
func (a *Adapter) List(ctx context.Context, pattern string) ([]string, error) {
	scheme, bucket, key, err := parse("list", pattern)
	if err != nil {
		return nil, err
	}

	if !datafile.HasWildcard(key) {
		ok, err := a.Exists(ctx, pattern)
		if err != nil || !ok {
			return []string{}, err
		}
		return []string{pattern}, nil
	}

	m, err := datafile.NewKeyMatcher(key)
	if err != nil {
		return nil, datafile.NewPathError("list", scheme, pattern, err)
	}

	it := a.client.Bucket(bucket).Objects(ctx, &storage.Query{Prefix: m.Prefix()})
	out := []string{}
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, mapGCSError("list", scheme, pattern, err)
		}
		if m.Match(attrs.Name) {
			out = append(out, datafile.ObjectURI(scheme, bucket, attrs.Name))
		}
	}
	return out, nil
}

// Delete implements datafile.CanDelete
func (a *Adapter) Delete(ctx context.Context, uri string) error {
	scheme, bucket, key, err := parse("delete", uri)
	if err != nil {
		return err
	}
	if err := a.object(bucket, key).Delete(ctx); err != nil {
		return mapGCSError("delete", scheme, uri, err)
	}
	return nil
}

// Move implements datafile.CanMove using GCS's copy + delete.
func (a *Adapter) Move(ctx context.Context, src, dst string) error {
	scheme, srcBucket, srcKey, err := parse("move", src)
	if err != nil {
		return err
	}
	_, dstBucket, dstKey, err := parse("move", dst)
	if err != nil {
		return err
	}

	srcObj := a.object(srcBucket, srcKey)
	if _, err := a.object(dstBucket, dstKey).CopierFrom(srcObj).Run(ctx); err != nil {
		return mapGCSError("move", scheme, src, err)
	}
	if err := srcObj.Delete(ctx); err != nil {
		return mapGCSError("move", scheme, src, err)
	}
	return nil
}

// Close closes the client when the adapter owns it.
func (a *Adapter) Close() error {
	if a.owned && a.client != nil {
		return a.client.Close()
	}
	return nil
}

// writer commits the upload on Close. Abort cancels the upload context so
// no object is created.
type writer struct {
	w      *storage.Writer
	cancel context.CancelFunc
	scheme string
	uri    string
	done   bool
}

func (w *writer) Write(p []byte) (int, error) {
	if w.done {
		return 0, datafile.ErrClosed
	}
	n, err := w.w.Write(p)
	if err != nil {
		return n, mapGCSError("create", w.scheme, w.uri, err)
	}
	return n, nil
}

func (w *writer) Close() error {
	if w.done {
		return nil
	}
	w.done = true
	defer w.cancel()
	if err := w.w.Close(); err != nil {
		return mapGCSError("create", w.scheme, w.uri, err)
	}
	return nil
}

func (w *writer) Abort() error {
	if w.done {
		return nil
	}
	w.done = true
	w.cancel()
	w.w.Close()
	return nil
}

// mapGCSError maps GCS errors to datafile errors
func mapGCSError(op, scheme, uri string, err error) error {
	if errors.Is(err, storage.ErrObjectNotExist) || errors.Is(err, storage.ErrBucketNotExist) {
		return datafile.NewPathError(op, scheme, uri, errors.Join(datafile.ErrNotExist, err))
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
