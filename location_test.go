package datafile_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"reflect"
	"strings"
	"testing"

	"github.com/gobeaver/datafile"
	"github.com/gobeaver/datafile/driver/memory"
)

func TestBufferedWriter(t *testing.T) {
	ctx := context.Background()
	var uploaded [][]byte
	upload := func(_ context.Context, data []byte) error {
		uploaded = append(uploaded, bytes.Clone(data))
		return nil
	}

	w := datafile.NewBufferedWriter(ctx, upload)
	for _, s := range []string{"hello ", "world"} {
		if _, err := io.WriteString(w, s); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if len(uploaded) != 0 {
		t.Fatalf("expected nothing uploaded before Close, got %d", len(uploaded))
	}

	if err := w.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("unexpected error on second close: %v", err)
	}
	if want := [][]byte{[]byte("hello world")}; !reflect.DeepEqual(uploaded, want) {
		t.Errorf("expected %q, got %q", want, uploaded)
	}

	if _, err := w.Write([]byte("late")); !errors.Is(err, datafile.ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}

	aborted := datafile.NewBufferedWriter(ctx, upload)
	io.WriteString(aborted, "discard me")
	if err := aborted.Abort(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := aborted.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(uploaded) != 1 {
		t.Errorf("expected aborted writer not to upload, got %d uploads", len(uploaded))
	}
}

func TestBufferedWriterUploadError(t *testing.T) {
	w := datafile.NewBufferedWriter(context.Background(), func(context.Context, []byte) error {
		return errors.New("quota exceeded")
	})
	io.WriteString(w, "x")
	if err := w.Close(); err == nil || !strings.Contains(err.Error(), "quota exceeded") {
		t.Errorf("expected upload error, got %v", err)
	}
}

func TestBufferedWriterCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	called := false
	w := datafile.NewBufferedWriter(ctx, func(context.Context, []byte) error {
		called = true
		return nil
	})
	cancel()
	if err := w.Close(); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if called {
		t.Error("upload should not run after cancellation")
	}
}

func TestReadOnly(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	mustPut(t, mem, "mem://b/a.csv", "x\n1\n")
	loc := datafile.ReadOnly(mem)

	_, err := loc.Create(ctx, "mem://b/out.csv")
	if !errors.Is(err, datafile.ErrReadOnly) || !errors.Is(err, datafile.ErrNotSupported) {
		t.Errorf("expected ErrReadOnly wrapping ErrNotSupported, got %v", err)
	}

	ok, err := loc.Exists(ctx, "mem://b/a.csv")
	if err != nil || !ok {
		t.Errorf("expected file to exist, got %v, %v", ok, err)
	}

	got, err := loc.List(ctx, "mem://b/*.csv")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := []string{"mem://b/a.csv"}; !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}

	rc, err := loc.Open(ctx, "mem://b/a.csv")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := rc.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, canMove := loc.(datafile.CanMove); canMove {
		t.Error("read-only location should not move")
	}
	if err := loc.(io.Closer).Close(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestOptions(t *testing.T) {
	o := datafile.ApplyOptions(
		datafile.WithContentType("text/csv"),
		datafile.WithCacheControl("no-cache"),
		datafile.WithMetadata(map[string]string{"k": "v"}),
	)
	if o.ContentType != "text/csv" || o.CacheControl != "no-cache" {
		t.Errorf("unexpected options %+v", o)
	}
	if !reflect.DeepEqual(o.Metadata, map[string]string{"k": "v"}) {
		t.Errorf("unexpected metadata %v", o.Metadata)
	}
}

func TestGlobHelpers(t *testing.T) {
	wildcards := map[string]bool{
		"data/*.csv":     true,
		"data/{a,b}.csv": true,
		"data/a.csv":     false,
	}
	for s, want := range wildcards {
		if got := datafile.HasWildcard(s); got != want {
			t.Errorf("HasWildcard(%q) = %v, want %v", s, got, want)
		}
	}

	prefixes := map[string]string{
		"data/20*/a.csv": "data/20",
		"data/a.csv":     "data/a.csv",
	}
	for s, want := range prefixes {
		if got := datafile.GlobPrefix(s); got != want {
			t.Errorf("GlobPrefix(%q) = %q, want %q", s, got, want)
		}
	}

	tests := []struct {
		pattern string
		key     string
		want    bool
	}{
		{"data/*.csv", "data/a.csv", true},
		{"data/*.csv", "data/sub/a.csv", false},
		{"data/**.csv", "data/sub/a.csv", true},
		{"data/?.csv", "data/a.csv", true},
		{"data/[ab].csv", "data/c.csv", false},
		{"data/{a,b}.csv", "data/b.csv", true},
		{"data/*", "data/sub/", false},
		{"data/**/*.csv", "data/a.csv", true},
		{"data/**/*.csv", "data/x/y/a.csv", true},
		{"data/**/*.csv", "other/a.csv", false},
		{"**/*.csv", "a.csv", true},
		{"**/*.csv", "x/a.csv", true},
		{"data/**/x/**/*.csv", "data/x/a.csv", true},
		{"data/a**/*.csv", "data/a.csv", false},
	}
	for _, tt := range tests {
		t.Run(tt.pattern+" "+tt.key, func(t *testing.T) {
			m, err := datafile.NewKeyMatcher(tt.pattern)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := m.Match(tt.key); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}

	m, err := datafile.NewKeyMatcher("data/*.csv")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Prefix() != "data/" {
		t.Errorf("expected prefix data/, got %q", m.Prefix())
	}
	got := m.Filter([]string{"data/a.csv", "data/x.txt", "data/b.csv"})
	if want := []string{"data/a.csv", "data/b.csv"}; !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}

	if _, err := datafile.NewKeyMatcher("data/[.csv"); err == nil {
		t.Error("expected error for an unterminated class")
	}
}

func TestObjectURIs(t *testing.T) {
	bucket, key, err := datafile.SplitObjectURI("s3://bucket/dir/a.csv")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bucket != "bucket" || key != "dir/a.csv" {
		t.Errorf("expected bucket/dir/a.csv, got %s/%s", bucket, key)
	}
	if got := datafile.ObjectURI("s3", bucket, key); got != "s3://bucket/dir/a.csv" {
		t.Errorf("unexpected uri %s", got)
	}

	bucket, key, err = datafile.SplitObjectURI("gs://bucket")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bucket != "bucket" || key != "" {
		t.Errorf("expected bare bucket, got %q %q", bucket, key)
	}

	for _, uri := range []string{"/local/a.csv", "s3:///a.csv"} {
		if _, _, err := datafile.SplitObjectURI(uri); err == nil {
			t.Errorf("expected error for %q", uri)
		}
	}
}

func TestChecksumAlgorithms(t *testing.T) {
	tests := []struct {
		algorithm datafile.ChecksumAlgorithm
		want      string
	}{
		{datafile.ChecksumMD5, "5d41402abc4b2a76b9719d911017c592"},
		{datafile.ChecksumSHA1, "aaf4c61ddcc5e8a2dabede0f3b482cd9aea9434d"},
		{datafile.ChecksumSHA256, "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"},
		{datafile.ChecksumCRC32, "3610a686"},
		{datafile.ChecksumXXHash, "26c7827d889f6da3"},
	}
	for _, tt := range tests {
		t.Run(string(tt.algorithm), func(t *testing.T) {
			sum, err := datafile.CalculateChecksum(strings.NewReader("hello"), tt.algorithm)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if sum != tt.want {
				t.Errorf("expected %s, got %s", tt.want, sum)
			}
		})
	}

	sum, err := datafile.CalculateChecksum(strings.NewReader("hello"), datafile.ChecksumSHA512)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sum) != 128 {
		t.Errorf("expected 128 hex digits, got %d", len(sum))
	}
}

func TestErrorPredicates(t *testing.T) {
	err := datafile.NewPathError("open", "s3", "s3://b/a.csv", datafile.ErrNotExist)
	if !datafile.IsNotExist(err) || !datafile.IsBackendError(err) || datafile.IsCodecError(err) {
		t.Errorf("unexpected predicates for %v", err)
	}
	if want := "open s3://b/a.csv (s3): file does not exist"; err.Error() != want {
		t.Errorf("expected %q, got %q", want, err.Error())
	}

	if err := datafile.NewPathError("open", "", "a.csv", nil); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
	perm := datafile.NewPathError("open", "", "a.csv", datafile.ErrPermission)
	if want := "open a.csv: permission denied"; perm.Error() != want {
		t.Errorf("expected %q, got %q", want, perm.Error())
	}
	if !datafile.IsPermission(perm) {
		t.Error("expected IsPermission")
	}
	if datafile.IsBackendError(errors.New("plain")) {
		t.Error("plain errors are not backend errors")
	}
}
