// Package filetype resolves data file formats and converts file bytes to and
// from [table.Table].
//
// The format set is closed: CSV, JSON, NDJSON and Parquet. Parquet is the only
// binary format.
package filetype

import (
	"errors"
	"fmt"
	"path"
	"strings"
)

// Type identifies a data file format.
type Type string

const (
	CSV     Type = "csv"
	JSON    Type = "json"
	NDJSON  Type = "ndjson"
	Parquet Type = "parquet"
)

// ErrUnsupportedFileType is returned when a format is neither given nor
// inferable, or is outside the supported set.
var ErrUnsupportedFileType = errors.New("unsupported file type")

var supported = []Type{CSV, JSON, NDJSON, Parquet}

var contentTypes = map[Type]string{
	CSV:     "text/csv",
	JSON:    "application/json",
	NDJSON:  "application/x-ndjson",
	Parquet: "application/vnd.apache.parquet",
}

// Supported returns the supported formats.
func Supported() []Type {
	out := make([]Type, len(supported))
	copy(out, supported)
	return out
}

// Valid reports whether t is a supported format.
func (t Type) Valid() bool {
	_, ok := contentTypes[t]
	return ok
}

// IsBinary reports whether t is a binary format.
func (t Type) IsBinary() bool {
	return t == Parquet
}

// ContentType returns the MIME type of the format, or "" when unsupported.
func (t Type) ContentType() string {
	return contentTypes[t]
}

// Extension returns the file extension of the format including the dot.
func (t Type) Extension() string {
	if !t.Valid() {
		return ""
	}
	return "." + string(t)
}

func (t Type) String() string {
	return string(t)
}

// Parse parses a format name, ignoring letter case and a leading dot.
func Parse(s string) (Type, error) {
	t := Type(strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")))
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFileType, s)
	}
	return t, nil
}

// FromPath infers the format from the extension of the final path segment.
// A query string or fragment (as in HTTP URLs) is ignored.
func FromPath(p string) (Type, error) {
	clean := p
	if i := strings.IndexAny(clean, "?#"); i >= 0 {
		clean = clean[:i]
	}
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(clean), "."))
	if ext == "" {
		return "", fmt.Errorf("%w: cannot infer file type of %q", ErrUnsupportedFileType, p)
	}
	t := Type(ext)
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q (extension %q)", ErrUnsupportedFileType, p, ext)
	}
	return t, nil
}

// Resolve returns explicit when it is set, otherwise the format inferred
// from p.
func Resolve(explicit Type, p string) (Type, error) {
	if explicit != "" {
		return Parse(string(explicit))
	}
	return FromPath(p)
}
