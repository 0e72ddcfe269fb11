package filetype

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/tidwall/gjson"

	"github.com/gobeaver/datafile/table"
)

// JSONCodec reads and writes a JSON array of record objects.
//
// Decode also accepts column orientation, an object whose members are all
// arrays of equal length ({"id":[1,2],"name":["a","b"]}), and a bare
// object, read as a single record.
type JSONCodec struct{}

func (JSONCodec) Type() Type { return JSON }

func (JSONCodec) Decode(r io.Reader, opts DecodeOptions) (*table.Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, decodeErr(JSON, err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return table.New()
	}
	if !gjson.ValidBytes(data) {
		return nil, decodeErr(JSON, errors.New("invalid JSON document"))
	}

	doc := gjson.ParseBytes(data)
	var t *table.Table
	switch {
	case doc.IsArray():
		t, err = decodeRecords(doc, opts)
	case doc.IsObject() && isColumnar(doc):
		t, err = decodeColumns(doc, opts)
	case doc.IsObject():
		b := newRecordBuilder()
		b.startRow()
		addRecord(b, "", doc, opts.NestedSeparator)
		t, err = b.build()
	default:
		err = fmt.Errorf("expected array or object, got %s", doc.Type)
	}
	if err != nil {
		return nil, decodeErr(JSON, err)
	}
	return t, nil
}

func decodeRecords(doc gjson.Result, opts DecodeOptions) (*table.Table, error) {
	b := newRecordBuilder()
	var err error
	doc.ForEach(func(_, rec gjson.Result) bool {
		if opts.MaxRows > 0 && b.rows >= opts.MaxRows {
			return false
		}
		if !rec.IsObject() {
			err = fmt.Errorf("record %d: expected object, got %s", b.rows, rec.Type)
			return false
		}
		b.startRow()
		addRecord(b, "", rec, opts.NestedSeparator)
		return true
	})
	if err != nil {
		return nil, err
	}
	return b.build()
}

func isColumnar(doc gjson.Result) bool {
	columnar := true
	n := 0
	doc.ForEach(func(_, v gjson.Result) bool {
		n++
		columnar = v.IsArray()
		return columnar
	})
	return columnar && n > 0
}

func decodeColumns(doc gjson.Result, opts DecodeOptions) (*table.Table, error) {
	var columns []table.Column
	doc.ForEach(func(name, arr gjson.Result) bool {
		var values []any
		arr.ForEach(func(_, v gjson.Result) bool {
			if opts.MaxRows > 0 && len(values) >= opts.MaxRows {
				return false
			}
			values = append(values, jsonValue(v))
			return true
		})
		if _, err := table.Infer(values); errors.Is(err, table.ErrMixedKinds) {
			values, _ = table.ConvertValues(values, table.String)
		}
		columns = append(columns, table.Column{Name: name.String(), Values: values})
		return true
	})
	return table.New(columns...)
}

// addRecord copies the members of obj into the current row. Nested objects
// become "<parent><sep><child>" columns when sep is set.
func addRecord(b *recordBuilder, prefix string, obj gjson.Result, sep string) {
	obj.ForEach(func(key, v gjson.Result) bool {
		name := prefix + key.String()
		if sep != "" && v.IsObject() {
			addRecord(b, name+sep, v, sep)
			return true
		}
		b.set(name, jsonValue(v))
		return true
	})
}

// jsonValue maps a JSON scalar onto the table value set. Arrays and objects
// are kept as their raw JSON text.
func jsonValue(v gjson.Result) any {
	switch v.Type {
	case gjson.Null:
		return nil
	case gjson.True:
		return true
	case gjson.False:
		return false
	case gjson.String:
		return v.Str
	case gjson.Number:
		if !strings.ContainsAny(v.Raw, ".eE") {
			if n, err := strconv.ParseInt(v.Raw, 10, 64); err == nil {
				return n
			}
		}
		return v.Num
	default:
		return v.Raw
	}
}

func (JSONCodec) Encode(w io.Writer, t *table.Table) error {
	stream := jsoniter.NewStream(jsoniter.ConfigCompatibleWithStandardLibrary, w, 4096)
	stream.WriteArrayStart()
	for i := 0; i < t.NumRows(); i++ {
		if i > 0 {
			stream.WriteMore()
		}
		if err := writeRecord(stream, t, i); err != nil {
			return encodeErr(JSON, err)
		}
	}
	stream.WriteArrayEnd()
	if err := stream.Flush(); err != nil {
		return encodeErr(JSON, err)
	}
	return nil
}

func writeRecord(stream *jsoniter.Stream, t *table.Table, i int) error {
	names := t.ColumnNames()
	stream.WriteObjectStart()
	for j, name := range names {
		if j > 0 {
			stream.WriteMore()
		}
		stream.WriteObjectField(name)
		if err := writeValue(stream, t.Value(i, j)); err != nil {
			return fmt.Errorf("row %d column %q: %w", i, name, err)
		}
	}
	stream.WriteObjectEnd()
	return stream.Error
}

func writeValue(stream *jsoniter.Stream, v any) error {
	switch x := v.(type) {
	case nil:
		stream.WriteNil()
	case bool:
		stream.WriteBool(x)
	case int64:
		stream.WriteInt64(x)
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return fmt.Errorf("unsupported float value %v", x)
		}
		stream.WriteRaw(table.FormatFloat(x))
	case string:
		stream.WriteString(x)
	default:
		return fmt.Errorf("%w: %T", table.ErrUnsupportedValue, v)
	}
	return nil
}

var _ Codec = JSONCodec{}
