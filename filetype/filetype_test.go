package filetype

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFromPath(t *testing.T) {
	tests := []struct {
		path string
		want Type
		ok   bool
	}{
		{"/tmp/data.csv", CSV, true},
		{"s3://bucket/dir/data.JSON", JSON, true},
		{"gs://bucket/x.ndjson", NDJSON, true},
		{"file:///data/x.parquet", Parquet, true},
		{"https://example.com/data.csv?token=abc#top", CSV, true},
		{"/tmp/data.txt", "", false},
		{"/tmp/noext", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := FromPath(tt.path)
			if !tt.ok {
				require.ErrorIs(t, err, ErrUnsupportedFileType)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestResolveExplicitWins(t *testing.T) {
	got, err := Resolve(Parquet, "/tmp/data.csv")
	require.NoError(t, err)
	require.Equal(t, Parquet, got)

	got, err = Resolve("", "/tmp/data.csv")
	require.NoError(t, err)
	require.Equal(t, CSV, got)

	_, err = Resolve("xlsx", "/tmp/data.csv")
	require.ErrorIs(t, err, ErrUnsupportedFileType)
}

func TestParse(t *testing.T) {
	got, err := Parse(".NDJSON")
	require.NoError(t, err)
	require.Equal(t, NDJSON, got)

	_, err = Parse("avro")
	require.ErrorIs(t, err, ErrUnsupportedFileType)
}

func TestIsBinary(t *testing.T) {
	for _, typ := range Supported() {
		require.Equal(t, typ == Parquet, typ.IsBinary(), typ)
	}
}

func TestContentTypeAndExtension(t *testing.T) {
	require.Equal(t, "text/csv", CSV.ContentType())
	require.Equal(t, "application/x-ndjson", NDJSON.ContentType())
	require.Equal(t, ".parquet", Parquet.Extension())
	require.Equal(t, "", Type("xml").Extension())
}
