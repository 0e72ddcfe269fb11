package filetype

import (
	"bufio"
	"bytes"
	"fmt"
	"io"

	jsoniter "github.com/json-iterator/go"
	"github.com/tidwall/gjson"

	"github.com/gobeaver/datafile/table"
)

// maxLineSize bounds a single NDJSON record.
const maxLineSize = 64 << 20

// NDJSONCodec reads and writes newline delimited JSON, one object per line.
type NDJSONCodec struct{}

func (NDJSONCodec) Type() Type { return NDJSON }

func (NDJSONCodec) Decode(r io.Reader, opts DecodeOptions) (*table.Table, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	b := newRecordBuilder()
	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		if opts.MaxRows > 0 && b.rows >= opts.MaxRows {
			break
		}
		if !gjson.ValidBytes(raw) {
			return nil, decodeErr(NDJSON, fmt.Errorf("line %d: invalid JSON", line))
		}
		rec := gjson.ParseBytes(raw)
		if !rec.IsObject() {
			return nil, decodeErr(NDJSON, fmt.Errorf("line %d: expected object, got %s", line, rec.Type))
		}
		b.startRow()
		addRecord(b, "", rec, opts.NestedSeparator)
	}
	if err := scanner.Err(); err != nil {
		return nil, decodeErr(NDJSON, err)
	}

	t, err := b.build()
	if err != nil {
		return nil, decodeErr(NDJSON, err)
	}
	return t, nil
}

func (NDJSONCodec) Encode(w io.Writer, t *table.Table) error {
	stream := jsoniter.NewStream(jsoniter.ConfigCompatibleWithStandardLibrary, w, 4096)
	for i := 0; i < t.NumRows(); i++ {
		if err := writeRecord(stream, t, i); err != nil {
			return encodeErr(NDJSON, err)
		}
		stream.WriteRaw("\n")
	}
	if err := stream.Flush(); err != nil {
		return encodeErr(NDJSON, err)
	}
	return nil
}

var _ Codec = NDJSONCodec{}
