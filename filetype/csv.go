package filetype

import (
	"encoding/csv"
	"errors"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/gobeaver/datafile/table"
)

// CSVCodec reads and writes comma separated values with a header row.
type CSVCodec struct {
	// Comma is the field delimiter. Zero means ','.
	Comma rune
}

func (CSVCodec) Type() Type { return CSV }

func (c CSVCodec) Decode(r io.Reader, opts DecodeOptions) (*table.Table, error) {
	reader := csv.NewReader(r)
	if c.Comma != 0 {
		reader.Comma = c.Comma
	}

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return table.New()
	}
	if err != nil {
		return nil, decodeErr(CSV, err)
	}
	header = append([]string(nil), header...)
	// strip a UTF-8 byte order mark left by spreadsheet exports
	header[0] = strings.TrimPrefix(header[0], "\uFEFF")

	cells := make([][]string, len(header))
	rows := 0
	for opts.MaxRows <= 0 || rows < opts.MaxRows {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, decodeErr(CSV, err)
		}
		for j, cell := range record {
			cells[j] = append(cells[j], cell)
		}
		rows++
	}

	columns := make([]table.Column, len(header))
	for j, name := range header {
		columns[j] = table.Column{Name: name, Values: inferCells(cells[j], rows)}
	}

	t, err := table.New(columns...)
	if err != nil {
		return nil, decodeErr(CSV, err)
	}
	return t, nil
}

func (c CSVCodec) Encode(w io.Writer, t *table.Table) error {
	writer := csv.NewWriter(w)
	if c.Comma != 0 {
		writer.Comma = c.Comma
	}

	if t.NumColumns() == 0 {
		return nil
	}

	if err := writer.Write(t.ColumnNames()); err != nil {
		return encodeErr(CSV, err)
	}

	record := make([]string, t.NumColumns())
	for i := 0; i < t.NumRows(); i++ {
		for j := range record {
			record[j] = table.FormatValue(t.Value(i, j))
		}
		// csv.Reader skips blank lines, so a lone empty cell is written quoted
		if len(record) == 1 && record[0] == "" {
			writer.Flush()
			if err := writer.Error(); err != nil {
				return encodeErr(CSV, err)
			}
			if _, err := io.WriteString(w, `""`+"\n"); err != nil {
				return encodeErr(CSV, err)
			}
			continue
		}
		if err := writer.Write(record); err != nil {
			return encodeErr(CSV, err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return encodeErr(CSV, err)
	}
	return nil
}

// inferCells picks the narrowest kind that parses every non-empty cell:
// int64, then float64, then bool, then string. Empty cells are nil.
func inferCells(cells []string, rows int) []any {
	values := make([]any, rows)

	if parsed, ok := parseCells(cells, func(s string) (any, error) {
		return strconv.ParseInt(s, 10, 64)
	}); ok {
		return parsed
	}
	if parsed, ok := parseCells(cells, func(s string) (any, error) {
		f, err := strconv.ParseFloat(s, 64)
		if err == nil && (math.IsNaN(f) || math.IsInf(f, 0)) {
			return nil, strconv.ErrSyntax
		}
		return f, err
	}); ok {
		return parsed
	}
	if parsed, ok := parseCells(cells, func(s string) (any, error) {
		return table.ParseBool(s)
	}); ok {
		return parsed
	}

	for i, cell := range cells {
		if cell != "" {
			values[i] = cell
		}
	}
	return values
}

func parseCells(cells []string, parse func(string) (any, error)) ([]any, bool) {
	values := make([]any, len(cells))
	seen := false
	for i, cell := range cells {
		if cell == "" {
			continue
		}
		v, err := parse(cell)
		if err != nil {
			return nil, false
		}
		values[i] = v
		seen = true
	}
	return values, seen
}

var _ Codec = CSVCodec{}
