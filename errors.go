package datafile

import (
	"errors"
	"fmt"

	"github.com/gobeaver/datafile/filetype"
)

// Common errors
var (
	ErrNotExist     = errors.New("file does not exist")
	ErrExist        = errors.New("file already exists")
	ErrPermission   = errors.New("permission denied")
	ErrNotSupported = errors.New("operation not supported")

	// ErrUnsupportedBackend is returned for a URI scheme no location is
	// registered for.
	ErrUnsupportedBackend = errors.New("unsupported backend")

	// ErrUnsupportedFileType is returned when the format of a file is
	// neither given nor inferable from its path.
	ErrUnsupportedFileType = filetype.ErrUnsupportedFileType

	// ErrPatternNotFound is returned when a path pattern matches nothing.
	ErrPatternNotFound = errors.New("pattern not found")

	// ErrConnectionNotFound is returned by connection resolvers for an
	// unknown connection id.
	ErrConnectionNotFound = errors.New("connection not found")
)

// PathError records an error and the operation, scheme and path that
// caused it. Errors returned by locations are PathErrors.
type PathError struct {
	Op     string
	Scheme string
	Path   string
	Err    error
}

func (e *PathError) Error() string {
	if e.Scheme == "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("%s %s (%s): %v", e.Op, e.Path, e.Scheme, e.Err)
}

func (e *PathError) Unwrap() error {
	return e.Err
}

// NewPathError wraps err with the operation, scheme and path. A nil err
// stays nil.
func NewPathError(op, scheme, path string, err error) error {
	if err == nil {
		return nil
	}
	return &PathError{Op: op, Scheme: scheme, Path: path, Err: err}
}

// PatternNotFoundError is returned when a pattern resolves to no file.
type PatternNotFoundError struct {
	Pattern string
}

func (e *PatternNotFoundError) Error() string {
	return fmt.Sprintf("File(s) not found for path/pattern '%s'", e.Pattern)
}

// Is makes errors.Is(err, ErrPatternNotFound) hold.
func (e *PatternNotFoundError) Is(target error) bool {
	return target == ErrPatternNotFound
}

// CodecError is the error type of format decode and encode failures.
type CodecError = filetype.CodecError

// IsNotExist reports whether an error indicates that a file does not exist
func IsNotExist(err error) bool {
	return errors.Is(err, ErrNotExist)
}

// IsExist reports whether an error indicates that a file already exists
func IsExist(err error) bool {
	return errors.Is(err, ErrExist)
}

// IsPermission reports whether an error indicates that permission is denied
func IsPermission(err error) bool {
	return errors.Is(err, ErrPermission)
}

// IsPatternNotFound reports whether a pattern matched no file.
func IsPatternNotFound(err error) bool {
	return errors.Is(err, ErrPatternNotFound)
}

// IsCodecError reports whether err came from decoding or encoding file bytes.
func IsCodecError(err error) bool {
	var ce *CodecError
	return errors.As(err, &ce)
}

// IsBackendError reports whether err is a storage failure raised by a
// location, as opposed to a resolution or codec failure.
func IsBackendError(err error) bool {
	var pe *PathError
	return errors.As(err, &pe) && !IsCodecError(err)
}
