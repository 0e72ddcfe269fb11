package datafile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"

	"github.com/gobeaver/datafile/filetype"
	"github.com/gobeaver/datafile/table"
)

// File is a data file identified by a URI. The storage backend comes from
// the URI scheme, the format from an explicit override or the extension.
//
// A File holds no open resources; every operation resolves its location,
// does its I/O and releases everything before returning.
type File struct {
	// Path is the URI of the file; a plain path means the local filesystem.
	Path string

	// ConnID names the connection used to reach the backend. Empty means
	// the backend's default connection.
	ConnID string

	fileType filetype.Type
	resolver *Resolver
	logger   *slog.Logger
}

// FileOption configures a File.
type FileOption func(*File)

// WithConnID sets the connection id.
func WithConnID(connID string) FileOption {
	return func(f *File) {
		f.ConnID = connID
	}
}

// WithFileType overrides extension inference.
func WithFileType(t filetype.Type) FileOption {
	return func(f *File) {
		f.fileType = t
	}
}

// WithResolver sets the resolver. Without one the global resolver is used
// when Init was called, otherwise a resolver without connections.
func WithResolver(r *Resolver) FileOption {
	return func(f *File) {
		f.resolver = r
	}
}

// WithLogger sets the logger. Nil means the resolver's logger.
func WithLogger(l *slog.Logger) FileOption {
	return func(f *File) {
		f.logger = l
	}
}

// New returns a File for path. Format problems surface from the
// operations, not from New.
func New(path string, opts ...FileOption) *File {
	f := &File{Path: path}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// FileType returns the resolved format: the override when given,
// otherwise the format named by the path extension.
func (f *File) FileType() (filetype.Type, error) {
	return filetype.Resolve(f.fileType, f.Path)
}

// IsBinary reports whether the file format is binary. It performs no I/O;
// an unresolvable format is reported as not binary.
func (f *File) IsBinary() bool {
	ft, err := f.FileType()
	return err == nil && ft.IsBinary()
}

// Equal reports whether f and o identify the same file.
func (f *File) Equal(o *File) bool {
	if f == nil || o == nil {
		return f == o
	}
	return f.Path == o.Path && f.ConnID == o.ConnID && f.fileType == o.fileType
}

func (f *File) String() string {
	ft, err := f.FileType()
	if err != nil {
		ft = f.fileType
	}
	return fmt.Sprintf("File(path=%q, conn_id=%q, filetype=%q)", f.Path, f.ConnID, ft)
}

func (f *File) res() *Resolver {
	if f.resolver != nil {
		return f.resolver
	}
	return currentResolver()
}

func (f *File) log(r *Resolver) *slog.Logger {
	if f.logger != nil {
		return f.logger
	}
	return r.Logger()
}

// codec resolves the format and its codec.
func (f *File) codec(r *Resolver) (filetype.Type, filetype.Codec, error) {
	ft, err := f.FileType()
	if err != nil {
		return "", nil, err
	}
	if ft == filetype.Parquet {
		return ft, filetype.ParquetCodec{MaxRowsPerRowGroup: r.Config().ParquetRowGroupSize}, nil
	}
	codec, err := filetype.CodecFor(ft)
	return ft, codec, err
}

// Exists reports whether the file exists. A missing file is (false, nil);
// errors mean the format is unresolvable or the backend failed.
func (f *File) Exists(ctx context.Context) (exists bool, err error) {
	if _, err := f.FileType(); err != nil {
		return false, err
	}

	r := f.res()
	loc, release, err := r.Resolve(ctx, f.Path, f.ConnID)
	if err != nil {
		return false, err
	}
	defer func() { err = combine(err, release()) }()

	return loc.Exists(ctx, f.Path)
}

// WriteOption configures CreateFromTable.
type WriteOption func(*writeOptions)

type writeOptions struct {
	atomic   bool
	metadata map[string]string
}

// Atomic writes to a temporary object next to the target and moves it into
// place once complete. It requires a location implementing CanMove.
func Atomic() WriteOption {
	return func(o *writeOptions) {
		o.atomic = true
	}
}

// WithWriteMetadata attaches user metadata to the written object.
func WithWriteMetadata(metadata map[string]string) WriteOption {
	return func(o *writeOptions) {
		o.metadata = metadata
	}
}

// CreateFromTable encodes t in the file format and writes it, replacing
// any existing content. The write stream and the location are released on
// every path.
func (f *File) CreateFromTable(ctx context.Context, t *table.Table, opts ...WriteOption) (err error) {
	o := &writeOptions{}
	for _, opt := range opts {
		opt(o)
	}

	r := f.res()
	ft, codec, err := f.codec(r)
	if err != nil {
		return err
	}

	loc, release, err := r.Resolve(ctx, f.Path, f.ConnID)
	if err != nil {
		return err
	}
	defer func() { err = combine(err, release()) }()

	target := f.Path
	var mover CanMove
	if o.atomic {
		var ok bool
		if mover, ok = loc.(CanMove); !ok {
			return NewPathError("create", Scheme(f.Path), f.Path,
				fmt.Errorf("%w: atomic write needs a location that can move", ErrNotSupported))
		}
		target = fmt.Sprintf("%s.%s.tmp", f.Path, uuid.NewString())
	}

	if err := f.write(ctx, loc, codec, target, t, WithContentType(ft.ContentType()), WithMetadata(o.metadata)); err != nil {
		if o.atomic {
			err = combine(err, discard(ctx, loc, target))
		}
		return err
	}

	if o.atomic {
		if err := mover.Move(ctx, target, f.Path); err != nil {
			return combine(err, discard(ctx, loc, target))
		}
	}

	f.log(r).Debug("wrote table",
		slog.String("path", f.Path),
		slog.String("format", ft.String()),
		slog.Int("rows", t.NumRows()))
	return nil
}

func (f *File) write(ctx context.Context, loc Location, codec filetype.Codec, uri string, t *table.Table, opts ...Option) error {
	w, err := loc.Create(ctx, uri, opts...)
	if err != nil {
		return err
	}

	if err := codec.Encode(w, t); err != nil {
		encErr := NewPathError("encode", Scheme(uri), uri, err)
		return combine(encErr, abort(w))
	}
	return w.Close()
}

// WriteTable writes t according to ifExists: IfExistsException fails with
// ErrExist when the file is present, IfExistsReplace overwrites it.
func (f *File) WriteTable(ctx context.Context, t *table.Table, ifExists IfExists, opts ...WriteOption) error {
	switch ifExists {
	case "", IfExistsException:
		exists, err := f.Exists(ctx)
		if err != nil {
			return err
		}
		if exists {
			return NewPathError("write", Scheme(f.Path), f.Path, ErrExist)
		}
	case IfExistsReplace:
	default:
		return fmt.Errorf("unknown if-exists policy %q", ifExists)
	}
	return f.CreateFromTable(ctx, t, opts...)
}

// IfExists selects what WriteTable does with an existing file.
type IfExists string

const (
	IfExistsException IfExists = "exception"
	IfExistsReplace   IfExists = "replace"
)

// ExportToTable reads and decodes the whole file, then applies cfg. A nil
// cfg decodes with defaults and keeps the table as read.
func (f *File) ExportToTable(ctx context.Context, cfg *NormalizeConfig) (tbl *table.Table, err error) {
	r := f.res()
	ft, codec, err := f.codec(r)
	if err != nil {
		return nil, err
	}

	loc, release, err := r.Resolve(ctx, f.Path, f.ConnID)
	if err != nil {
		return nil, err
	}
	defer func() { err = combine(err, release()) }()

	rc, err := loc.Open(ctx, f.Path)
	if err != nil {
		return nil, err
	}

	decoded, decErr := codec.Decode(rc, cfg.decodeOptions(ft))
	closeErr := rc.Close()
	if decErr != nil {
		return nil, combine(NewPathError("decode", Scheme(f.Path), f.Path, decErr), closeErr)
	}
	if closeErr != nil {
		return nil, closeErr
	}

	tbl, err = cfg.apply(decoded)
	if err != nil {
		return nil, NewPathError("normalize", Scheme(f.Path), f.Path, err)
	}

	f.log(r).Debug("read table",
		slog.String("path", f.Path),
		slog.String("format", ft.String()),
		slog.Int("rows", tbl.NumRows()))
	return tbl, nil
}

// Checksum hashes the raw bytes of the file.
func (f *File) Checksum(ctx context.Context, algorithm ChecksumAlgorithm) (sum string, err error) {
	if _, err := NewHasher(algorithm); err != nil {
		return "", err
	}

	loc, release, err := f.res().Resolve(ctx, f.Path, f.ConnID)
	if err != nil {
		return "", err
	}
	defer func() { err = combine(err, release()) }()

	rc, err := loc.Open(ctx, f.Path)
	if err != nil {
		return "", err
	}
	sum, err = CalculateChecksum(rc, algorithm)
	return sum, combine(err, rc.Close())
}

// Delete removes the file from a location implementing CanDelete.
func (f *File) Delete(ctx context.Context) (err error) {
	loc, release, err := f.res().Resolve(ctx, f.Path, f.ConnID)
	if err != nil {
		return err
	}
	defer func() { err = combine(err, release()) }()

	d, ok := loc.(CanDelete)
	if !ok {
		return NewPathError("delete", Scheme(f.Path), f.Path, ErrNotSupported)
	}
	return d.Delete(ctx, f.Path)
}

// abort discards a write stream when the location supports it, otherwise
// closes it.
func abort(w io.WriteCloser) error {
	if a, ok := w.(CanAbort); ok {
		return a.Abort()
	}
	return w.Close()
}

func discard(ctx context.Context, loc Location, uri string) error {
	d, ok := loc.(CanDelete)
	if !ok {
		return nil
	}
	if err := d.Delete(ctx, uri); err != nil && !errors.Is(err, ErrNotExist) {
		return err
	}
	return nil
}

// combine returns primary with secondary appended, or whichever is set.
func combine(primary, secondary error) error {
	switch {
	case secondary == nil:
		return primary
	case primary == nil:
		return secondary
	default:
		return multierror.Append(primary, secondary)
	}
}
