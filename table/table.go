// Package table holds the in-memory tabular representation exchanged between
// codecs and callers: an ordered list of named columns that all have the same
// number of rows.
//
// Values are normalized on the way in. A column only ever contains int64,
// float64, string, bool or nil values, and every non-nil value in a column has
// the column's Kind.
package table

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrRagged is returned when columns (or rows) have different lengths
	ErrRagged = errors.New("ragged table")
	// ErrDuplicateColumn is returned when two columns share a name
	ErrDuplicateColumn = errors.New("duplicate column name")
	// ErrMixedKinds is returned when a column holds values of incompatible kinds
	ErrMixedKinds = errors.New("mixed value kinds in column")
	// ErrUnsupportedValue is returned for values that have no tabular kind
	ErrUnsupportedValue = errors.New("unsupported value type")
	// ErrNoColumn is returned when a named column does not exist
	ErrNoColumn = errors.New("no such column")
)

// Column is a named, ordered sequence of values of one kind.
type Column struct {
	Name   string
	Kind   Kind
	Values []any
}

// Len returns the number of values in the column.
func (c Column) Len() int {
	return len(c.Values)
}

// Table is an ordered set of equal-length columns. A Table is immutable once
// built; transformations return a new Table.
type Table struct {
	columns []Column
	index   map[string]int
	rows    int
}

// New builds a Table from columns. Values are normalized and each column's
// Kind is inferred. A Kind set by the caller is kept for all-nil columns, and
// Float64 may be requested for an integer column to force promotion.
func New(columns ...Column) (*Table, error) {
	t := &Table{
		columns: make([]Column, 0, len(columns)),
		index:   make(map[string]int, len(columns)),
	}

	for i, c := range columns {
		if _, dup := t.index[c.Name]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateColumn, c.Name)
		}
		if i > 0 && len(c.Values) != t.rows {
			return nil, fmt.Errorf("%w: column %q has %d values, expected %d", ErrRagged, c.Name, len(c.Values), t.rows)
		}

		col, err := buildColumn(c)
		if err != nil {
			return nil, err
		}

		t.rows = len(col.Values)
		t.index[col.Name] = len(t.columns)
		t.columns = append(t.columns, col)
	}

	return t, nil
}

// MustNew is like New but panics on error. Intended for tests and literals.
func MustNew(columns ...Column) *Table {
	t, err := New(columns...)
	if err != nil {
		panic(err)
	}
	return t
}

// FromRows builds a Table from column names and row-major values.
func FromRows(names []string, rows [][]any) (*Table, error) {
	columns := make([]Column, len(names))
	for j, name := range names {
		columns[j] = Column{Name: name, Values: make([]any, len(rows))}
	}

	for i, row := range rows {
		if len(row) != len(names) {
			return nil, fmt.Errorf("%w: row %d has %d values, expected %d", ErrRagged, i, len(row), len(names))
		}
		for j, v := range row {
			columns[j].Values[i] = v
		}
	}

	return New(columns...)
}

func buildColumn(c Column) (Column, error) {
	values := make([]any, len(c.Values))
	for i, v := range c.Values {
		nv, err := Normalize(v)
		if err != nil {
			return Column{}, fmt.Errorf("column %q row %d: %w", c.Name, i, err)
		}
		values[i] = nv
	}

	kind, err := Infer(values)
	if err != nil {
		return Column{}, fmt.Errorf("column %q: %w", c.Name, err)
	}

	switch {
	case kind == Null:
		kind = c.Kind
	case c.Kind == Null || c.Kind == kind:
	case c.Kind == Float64 && kind == Int64:
		kind = Float64
	default:
		return Column{}, fmt.Errorf("%w: column %q declared %s but holds %s", ErrMixedKinds, c.Name, c.Kind, kind)
	}

	if kind == Float64 {
		for i, v := range values {
			if n, ok := v.(int64); ok {
				values[i] = float64(n)
			}
		}
	}

	return Column{Name: c.Name, Kind: kind, Values: values}, nil
}

// NumRows returns the number of rows.
func (t *Table) NumRows() int {
	return t.rows
}

// NumColumns returns the number of columns.
func (t *Table) NumColumns() int {
	return len(t.columns)
}

// ColumnNames returns the column names in order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.columns))
	for i, c := range t.columns {
		names[i] = c.Name
	}
	return names
}

// Columns returns a copy of the column headers. The value slices are shared
// and must not be modified.
func (t *Table) Columns() []Column {
	out := make([]Column, len(t.columns))
	copy(out, t.columns)
	return out
}

// ColumnAt returns the i-th column.
func (t *Table) ColumnAt(i int) Column {
	return t.columns[i]
}

// Column looks up a column by name.
func (t *Table) Column(name string) (Column, bool) {
	i, ok := t.index[name]
	if !ok {
		return Column{}, false
	}
	return t.columns[i], true
}

// Row returns the values of row i in column order.
func (t *Table) Row(i int) []any {
	row := make([]any, len(t.columns))
	for j, c := range t.columns {
		row[j] = c.Values[i]
	}
	return row
}

// Value returns the value at row i of column j.
func (t *Table) Value(i, j int) any {
	return t.columns[j].Values[i]
}

// Head returns a table with at most n rows.
func (t *Table) Head(n int) *Table {
	if n < 0 || n >= t.rows {
		return t
	}
	out := &Table{
		columns: make([]Column, len(t.columns)),
		index:   t.index,
		rows:    n,
	}
	for j, c := range t.columns {
		out.columns[j] = Column{Name: c.Name, Kind: c.Kind, Values: c.Values[:n:n]}
	}
	return out
}

// Rename returns a table whose column names are mapped through fn.
func (t *Table) Rename(fn func(string) string) (*Table, error) {
	columns := make([]Column, len(t.columns))
	for j, c := range t.columns {
		columns[j] = Column{Name: fn(c.Name), Kind: c.Kind, Values: c.Values}
	}
	return New(columns...)
}

// Convert returns a table where the named column is converted to kind.
func (t *Table) Convert(name string, kind Kind) (*Table, error) {
	j, ok := t.index[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNoColumn, name)
	}

	values, err := ConvertValues(t.columns[j].Values, kind)
	if err != nil {
		return nil, fmt.Errorf("column %q: %w", name, err)
	}

	columns := t.Columns()
	columns[j] = Column{Name: name, Kind: kind, Values: values}
	return New(columns...)
}

// Equal reports whether two tables have the same column names, kinds and
// values in the same order.
func (t *Table) Equal(o *Table) bool {
	if t == nil || o == nil {
		return t == o
	}
	if t.rows != o.rows || len(t.columns) != len(o.columns) {
		return false
	}
	for j, c := range t.columns {
		oc := o.columns[j]
		if c.Name != oc.Name || c.Kind != oc.Kind {
			return false
		}
		for i, v := range c.Values {
			if !valuesEqual(v, oc.Values[i]) {
				return false
			}
		}
	}
	return true
}

func valuesEqual(a, b any) bool {
	fa, aok := a.(float64)
	fb, bok := b.(float64)
	if aok && bok {
		return fa == fb || (math.IsNaN(fa) && math.IsNaN(fb))
	}
	return a == b
}

// String renders a short description of the table shape.
func (t *Table) String() string {
	return fmt.Sprintf("table(%d rows x %d columns %v)", t.rows, len(t.columns), t.ColumnNames())
}
