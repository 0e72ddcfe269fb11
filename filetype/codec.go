package filetype

import (
	"fmt"
	"io"

	"github.com/gobeaver/datafile/table"
)

// DecodeOptions tune decoding.
type DecodeOptions struct {
	// NestedSeparator flattens nested JSON objects into columns named
	// "<parent><sep><child>". Empty keeps nested objects as raw JSON text.
	NestedSeparator string

	// MaxRows stops decoding after that many rows (0 = all).
	MaxRows int
}

// Codec converts between file bytes and a table. Codecs are stateless.
type Codec interface {
	// Type returns the format handled by the codec.
	Type() Type

	// Decode reads the whole stream into a new table.
	Decode(r io.Reader, opts DecodeOptions) (*table.Table, error)

	// Encode writes t to w.
	Encode(w io.Writer, t *table.Table) error
}

// CodecFor returns the default codec of a format.
func CodecFor(t Type) (Codec, error) {
	switch t {
	case CSV:
		return CSVCodec{}, nil
	case JSON:
		return JSONCodec{}, nil
	case NDJSON:
		return NDJSONCodec{}, nil
	case Parquet:
		return ParquetCodec{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFileType, string(t))
	}
}

// CodecError records a decode or encode failure.
type CodecError struct {
	Format Type
	Op     string // "decode" or "encode"
	Err    error
}

func (e *CodecError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Format, e.Op, e.Err)
}

func (e *CodecError) Unwrap() error {
	return e.Err
}

func decodeErr(t Type, err error) error {
	return &CodecError{Format: t, Op: "decode", Err: err}
}

func encodeErr(t Type, err error) error {
	return &CodecError{Format: t, Op: "encode", Err: err}
}
