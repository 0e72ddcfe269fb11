package datafile

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
)

// ErrClosed is returned by writes to a closed stream.
var ErrClosed = errors.New("stream already closed")

// CanAbort is implemented by write streams that can drop their content
// instead of committing it. File aborts streams whose encode failed.
type CanAbort interface {
	Abort() error
}

// UploadFunc stores the buffered content of an object.
type UploadFunc func(ctx context.Context, data []byte) error

// BufferedWriter collects an object in memory and uploads it on Close.
// Object stores without a native streaming writer use it to implement
// [Location.Create] without background goroutines.
type BufferedWriter struct {
	ctx    context.Context
	upload UploadFunc

	mu     sync.Mutex
	buf    bytes.Buffer
	closed bool
}

// NewBufferedWriter returns a writer that calls upload once, from Close.
func NewBufferedWriter(ctx context.Context, upload UploadFunc) *BufferedWriter {
	return &BufferedWriter{ctx: ctx, upload: upload}
}

func (w *BufferedWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return 0, ErrClosed
	}
	return w.buf.Write(p)
}

// Close uploads the buffered content. Later calls return nil.
func (w *BufferedWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	if err := w.ctx.Err(); err != nil {
		return err
	}
	return w.upload(w.ctx, w.buf.Bytes())
}

// Abort drops the buffered content without uploading it.
func (w *BufferedWriter) Abort() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	w.buf.Reset()
	return nil
}

var (
	_ io.WriteCloser = (*BufferedWriter)(nil)
	_ CanAbort       = (*BufferedWriter)(nil)
)
