package filetype

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/parquet-go/parquet-go"

	"github.com/gobeaver/datafile/table"
)

// columnsMetadataKey stores the table column order. Parquet groups sort
// their fields by name.
const columnsMetadataKey = "datafile.columns"

// kindsMetadataKey stores the table kind of each column. Parquet has no
// leaf for a column without values, so all-null columns are written as
// strings and read back with the recorded kind.
const kindsMetadataKey = "datafile.kinds"

// DefaultRowGroupSize is the row group size used when none is configured.
const DefaultRowGroupSize = 128 * 1024

// ParquetCodec reads and writes Apache Parquet files with one optional leaf
// column per table column.
type ParquetCodec struct {
	// MaxRowsPerRowGroup caps row groups. Zero means DefaultRowGroupSize.
	MaxRowsPerRowGroup int64
}

func (ParquetCodec) Type() Type { return Parquet }

func (ParquetCodec) Decode(r io.Reader, opts DecodeOptions) (*table.Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, decodeErr(Parquet, err)
	}

	f, err := parquet.OpenFile(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, decodeErr(Parquet, err)
	}

	schema := f.Schema()
	paths := schema.Columns()
	names := make([]string, len(paths))
	kinds := make([]table.Kind, len(paths))
	for i, p := range paths {
		names[i] = strings.Join(p, ".")
		leaf, ok := schema.Lookup(p...)
		if ok {
			kinds[i] = leafKind(leaf.Node.Type())
		}
	}
	values := make([][]any, len(paths))

	rows := 0
	buf := make([]parquet.Row, 256)
read:
	for _, rg := range f.RowGroups() {
		reader := rg.Rows()
		for {
			n, err := reader.ReadRows(buf)
			for _, row := range buf[:n] {
				if opts.MaxRows > 0 && rows >= opts.MaxRows {
					reader.Close()
					break read
				}
				if err := appendRow(values, row, rows); err != nil {
					reader.Close()
					return nil, decodeErr(Parquet, err)
				}
				rows++
			}
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				reader.Close()
				return nil, decodeErr(Parquet, err)
			}
		}
		if err := reader.Close(); err != nil {
			return nil, decodeErr(Parquet, err)
		}
	}

	columns := make([]table.Column, len(paths))
	for i := range paths {
		columns[i] = table.Column{Name: names[i], Kind: kinds[i], Values: values[i]}
	}
	columns = restoreKinds(f, columns)
	columns = orderColumns(f, columns)

	t, err := table.New(columns...)
	if err != nil {
		return nil, decodeErr(Parquet, err)
	}
	return t, nil
}

func appendRow(values [][]any, row parquet.Row, rows int) error {
	for j := range values {
		values[j] = append(values[j], nil)
	}
	seen := make([]bool, len(values))
	for _, v := range row {
		j := v.Column()
		if j < 0 || j >= len(values) {
			return fmt.Errorf("row %d: column index %d out of range", rows, j)
		}
		if seen[j] {
			return fmt.Errorf("row %d: repeated column %d is not supported", rows, j)
		}
		seen[j] = true
		values[j][rows] = parquetValue(v)
	}
	return nil
}

func parquetValue(v parquet.Value) any {
	if v.IsNull() {
		return nil
	}
	switch v.Kind() {
	case parquet.Boolean:
		return v.Boolean()
	case parquet.Int32:
		return int64(v.Int32())
	case parquet.Int64:
		return v.Int64()
	case parquet.Float:
		return float64(v.Float())
	case parquet.Double:
		return v.Double()
	case parquet.ByteArray, parquet.FixedLenByteArray:
		return string(v.ByteArray())
	default:
		return v.String()
	}
}

func leafKind(t parquet.Type) table.Kind {
	switch t.Kind() {
	case parquet.Boolean:
		return table.Bool
	case parquet.Int32, parquet.Int64:
		return table.Int64
	case parquet.Float, parquet.Double:
		return table.Float64
	default:
		return table.String
	}
}

// restoreKinds applies the recorded kind to columns holding only nulls.
func restoreKinds(f *parquet.File, columns []table.Column) []table.Column {
	raw, ok := f.Lookup(kindsMetadataKey)
	if !ok {
		return columns
	}
	var kinds map[string]string
	if err := json.Unmarshal([]byte(raw), &kinds); err != nil {
		return columns
	}
	for i, c := range columns {
		if !allNil(c.Values) {
			continue
		}
		if k, err := table.ParseKind(kinds[c.Name]); err == nil {
			columns[i].Kind = k
		}
	}
	return columns
}

func allNil(values []any) bool {
	for _, v := range values {
		if v != nil {
			return false
		}
	}
	return true
}

// orderColumns restores the column order recorded at write time. Files
// without the metadata keep their leaf order.
func orderColumns(f *parquet.File, columns []table.Column) []table.Column {
	raw, ok := f.Lookup(columnsMetadataKey)
	if !ok {
		return columns
	}
	var order []string
	if err := json.Unmarshal([]byte(raw), &order); err != nil || len(order) != len(columns) {
		return columns
	}
	byName := make(map[string]table.Column, len(columns))
	for _, c := range columns {
		byName[c.Name] = c
	}
	out := make([]table.Column, 0, len(columns))
	for _, name := range order {
		c, ok := byName[name]
		if !ok {
			return columns
		}
		out = append(out, c)
	}
	return out
}

func (c ParquetCodec) Encode(w io.Writer, t *table.Table) error {
	if t.NumColumns() == 0 {
		return encodeErr(Parquet, errors.New("a parquet file needs at least one column"))
	}

	group := parquet.Group{}
	for _, col := range t.Columns() {
		group[col.Name] = parquet.Optional(leafNode(col.Kind))
	}
	schema := parquet.NewSchema("table", group)

	leaf := make(map[string]int, t.NumColumns())
	for i, p := range schema.Columns() {
		leaf[p[0]] = i
	}
	index := make([]int, t.NumColumns())
	for j, name := range t.ColumnNames() {
		index[j] = leaf[name]
	}

	order, err := json.Marshal(t.ColumnNames())
	if err != nil {
		return encodeErr(Parquet, err)
	}
	kinds := make(map[string]string, t.NumColumns())
	for _, col := range t.Columns() {
		kinds[col.Name] = col.Kind.String()
	}
	kindsJSON, err := json.Marshal(kinds)
	if err != nil {
		return encodeErr(Parquet, err)
	}

	rowGroupSize := c.MaxRowsPerRowGroup
	if rowGroupSize <= 0 {
		rowGroupSize = DefaultRowGroupSize
	}

	writer := parquet.NewWriter(w, schema,
		parquet.KeyValueMetadata(columnsMetadataKey, string(order)),
		parquet.KeyValueMetadata(kindsMetadataKey, string(kindsJSON)),
		parquet.MaxRowsPerRowGroup(rowGroupSize),
	)

	row := make(parquet.Row, t.NumColumns())
	for i := 0; i < t.NumRows(); i++ {
		for j := range row {
			v, err := toParquetValue(t.Value(i, j))
			if err != nil {
				writer.Close()
				return encodeErr(Parquet, fmt.Errorf("row %d column %q: %w", i, t.ColumnAt(j).Name, err))
			}
			if v.IsNull() {
				row[index[j]] = v.Level(0, 0, index[j])
			} else {
				row[index[j]] = v.Level(0, 1, index[j])
			}
		}
		if _, err := writer.WriteRows([]parquet.Row{row}); err != nil {
			writer.Close()
			return encodeErr(Parquet, err)
		}
	}

	if err := writer.Close(); err != nil {
		return encodeErr(Parquet, err)
	}
	return nil
}

func leafNode(k table.Kind) parquet.Node {
	switch k {
	case table.Int64:
		return parquet.Int(64)
	case table.Float64:
		return parquet.Leaf(parquet.DoubleType)
	case table.Bool:
		return parquet.Leaf(parquet.BooleanType)
	default:
		return parquet.String()
	}
}

func toParquetValue(v any) (parquet.Value, error) {
	switch x := v.(type) {
	case nil:
		return parquet.NullValue(), nil
	case bool:
		return parquet.BooleanValue(x), nil
	case int64:
		return parquet.Int64Value(x), nil
	case float64:
		return parquet.DoubleValue(x), nil
	case string:
		return parquet.ByteArrayValue([]byte(x)), nil
	default:
		return parquet.Value{}, fmt.Errorf("%w: %T", table.ErrUnsupportedValue, v)
	}
}

var _ Codec = ParquetCodec{}
