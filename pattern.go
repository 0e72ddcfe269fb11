package datafile

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gobeaver/datafile/filetype"
)

// MissingPolicy selects what ResolvePattern does when nothing matches.
type MissingPolicy int

const (
	// MissingRaise fails with a *PatternNotFoundError.
	MissingRaise MissingPolicy = iota
	// MissingIgnore logs a warning and returns no files.
	MissingIgnore
)

func (p MissingPolicy) String() string {
	switch p {
	case MissingRaise:
		return "raise"
	case MissingIgnore:
		return "ignore"
	default:
		return fmt.Sprintf("MissingPolicy(%d)", int(p))
	}
}

// PatternOption configures ResolvePattern.
type PatternOption func(*patternOptions)

type patternOptions struct {
	connID   string
	fileType filetype.Type
	missing  MissingPolicy
	resolver *Resolver
	logger   *slog.Logger
}

// WithPatternConnID sets the connection used for listing and carried by
// every resolved file.
func WithPatternConnID(connID string) PatternOption {
	return func(o *patternOptions) {
		o.connID = connID
	}
}

// WithPatternFileType sets the format override of every resolved file.
func WithPatternFileType(t filetype.Type) PatternOption {
	return func(o *patternOptions) {
		o.fileType = t
	}
}

// WithMissingPolicy sets the policy for patterns that match nothing.
func WithMissingPolicy(p MissingPolicy) PatternOption {
	return func(o *patternOptions) {
		o.missing = p
	}
}

// WithPatternResolver sets the resolver used for listing and by the
// resolved files.
func WithPatternResolver(r *Resolver) PatternOption {
	return func(o *patternOptions) {
		o.resolver = r
	}
}

// WithPatternLogger sets the logger.
func WithPatternLogger(l *slog.Logger) PatternOption {
	return func(o *patternOptions) {
		o.logger = l
	}
}

// ResolvePattern expands a path pattern into files, in the order the
// backend lists them. A pattern without wildcards yields the file itself
// when it exists. Directory entries are skipped.
func ResolvePattern(ctx context.Context, pattern string, opts ...PatternOption) (files []*File, err error) {
	o := &patternOptions{}
	for _, opt := range opts {
		opt(o)
	}
	r := o.resolver
	if r == nil {
		r = currentResolver()
	}
	logger := o.logger
	if logger == nil {
		logger = r.Logger()
	}

	loc, release, err := r.Resolve(ctx, pattern, o.connID)
	if err != nil {
		return nil, err
	}
	defer func() { err = combine(err, release()) }()

	uris, err := loc.List(ctx, pattern)
	if err != nil {
		return nil, err
	}

	for _, uri := range uris {
		if strings.HasSuffix(uri, "/") {
			continue
		}
		files = append(files, &File{
			Path:     uri,
			ConnID:   o.connID,
			fileType: o.fileType,
			resolver: o.resolver,
			logger:   o.logger,
		})
	}

	if len(files) == 0 {
		if o.missing == MissingIgnore {
			logger.Warn("no file matches pattern",
				slog.String("pattern", pattern),
				slog.String("conn_id", o.connID))
			return []*File{}, nil
		}
		return nil, &PatternNotFoundError{Pattern: pattern}
	}

	logger.Debug("resolved pattern",
		slog.String("pattern", pattern),
		slog.Int("files", len(files)))
	return files, nil
}
