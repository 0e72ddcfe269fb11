package filetype

import (
	"errors"

	"github.com/gobeaver/datafile/table"
)

// recordBuilder accumulates records whose fields may vary between rows.
// Columns keep their order of first appearance; missing fields are nil.
type recordBuilder struct {
	names  []string
	index  map[string]int
	values [][]any
	rows   int
}

func newRecordBuilder() *recordBuilder {
	return &recordBuilder{index: make(map[string]int)}
}

// startRow opens a new row. Fields set afterwards belong to it.
func (b *recordBuilder) startRow() {
	b.rows++
	for j := range b.values {
		b.values[j] = append(b.values[j], nil)
	}
}

func (b *recordBuilder) set(name string, v any) {
	j, ok := b.index[name]
	if !ok {
		j = len(b.names)
		b.index[name] = j
		b.names = append(b.names, name)
		b.values = append(b.values, make([]any, b.rows))
	}
	b.values[j][b.rows-1] = v
}

// build infers column kinds. A column whose values mix kinds is kept as
// text rather than rejected.
func (b *recordBuilder) build() (*table.Table, error) {
	columns := make([]table.Column, len(b.names))
	for j, name := range b.names {
		values := b.values[j]
		if _, err := table.Infer(values); errors.Is(err, table.ErrMixedKinds) {
			values, _ = table.ConvertValues(values, table.String)
		}
		columns[j] = table.Column{Name: name, Values: values}
	}
	return table.New(columns...)
}
