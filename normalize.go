package datafile

import (
	"fmt"
	"strings"

	"github.com/gobeaver/datafile/filetype"
	"github.com/gobeaver/datafile/table"
)

// Capitalization controls how exported column names are cased.
type Capitalization string

const (
	CapitalizationOriginal Capitalization = "original"
	CapitalizationLower    Capitalization = "lower"
	CapitalizationUpper    Capitalization = "upper"
)

// DefaultNestedSeparator joins parent and child names of nested NDJSON
// objects.
const DefaultNestedSeparator = "_"

// NormalizeConfig describes the decode limits and the post-decode
// normalization applied by [File.ExportToTable]. A nil config is the
// zero value.
type NormalizeConfig struct {
	// ColumnCapitalization recases column names. Empty means original.
	ColumnCapitalization Capitalization

	// NestedSeparator flattens nested objects into "<parent><sep><child>"
	// columns. NDJSON uses DefaultNestedSeparator when it is empty; JSON
	// flattens only when it is set.
	NestedSeparator string

	// KeepNested disables flattening for every format.
	KeepNested bool

	// MaxRows limits the rows read (0 = all).
	MaxRows int

	// Coerce converts the named columns (after recasing) to a kind.
	Coerce map[string]table.Kind
}

func (c *NormalizeConfig) decodeOptions(ft filetype.Type) filetype.DecodeOptions {
	if c == nil {
		c = &NormalizeConfig{}
	}
	opts := filetype.DecodeOptions{MaxRows: c.MaxRows}
	if c.KeepNested {
		return opts
	}
	opts.NestedSeparator = c.NestedSeparator
	if opts.NestedSeparator == "" && ft == filetype.NDJSON {
		opts.NestedSeparator = DefaultNestedSeparator
	}
	return opts
}

func (c *NormalizeConfig) apply(t *table.Table) (*table.Table, error) {
	if c == nil {
		return t, nil
	}

	var err error
	switch c.ColumnCapitalization {
	case "", CapitalizationOriginal:
	case CapitalizationLower:
		t, err = t.Rename(strings.ToLower)
	case CapitalizationUpper:
		t, err = t.Rename(strings.ToUpper)
	default:
		return nil, fmt.Errorf("unknown column capitalization %q", c.ColumnCapitalization)
	}
	if err != nil {
		return nil, err
	}

	for _, name := range t.ColumnNames() {
		kind, ok := c.Coerce[name]
		if !ok {
			continue
		}
		if t, err = t.Convert(name, kind); err != nil {
			return nil, err
		}
	}
	return t, nil
}
