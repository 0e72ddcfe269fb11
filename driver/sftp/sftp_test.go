package sftp

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/pkg/sftp"

	"github.com/gobeaver/datafile"
)

// newTestAdapter serves the local filesystem through an in-process SFTP
// server.
func newTestAdapter(t *testing.T) *Adapter {
	t.Helper()
	clientRead, serverWrite := io.Pipe()
	serverRead, clientWrite := io.Pipe()

	server, err := sftp.NewServer(struct {
		io.Reader
		io.WriteCloser
	}{serverRead, serverWrite})
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}
	go server.Serve()

	client, err := sftp.NewClientPipe(clientRead, clientWrite)
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	a := New(client)
	t.Cleanup(func() {
		a.Close()
		server.Close()
	})
	return a
}

func uri(p string) string {
	return "sftp://test" + filepath.ToSlash(p)
}

func touch(t *testing.T, p string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestCreateAndOpen(t *testing.T) {
	ctx := context.Background()
	a := newTestAdapter(t)
	dir := t.TempDir()
	target := filepath.Join(dir, "out", "a.csv")

	w, err := a.Create(ctx, uri(target))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	io.WriteString(w, "id\n1\n")
	if ok, _ := a.Exists(ctx, uri(target)); ok {
		t.Error("target should not exist before close")
	}
	if err := w.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rc, err := a.Open(ctx, uri(target))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	if string(data) != "id\n1\n" {
		t.Errorf("unexpected content %q", data)
	}

	entries, _ := os.ReadDir(filepath.Dir(target))
	if len(entries) != 1 {
		t.Errorf("expected only the target in the directory, got %d entries", len(entries))
	}
}

func TestAbort(t *testing.T) {
	ctx := context.Background()
	a := newTestAdapter(t)
	dir := t.TempDir()

	w, err := a.Create(ctx, uri(filepath.Join(dir, "a.csv")))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	io.WriteString(w, "partial")
	if err := w.(datafile.CanAbort).Abort(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("expected empty directory, got %d entries", len(entries))
	}
}

func TestExistsAndOpenMissing(t *testing.T) {
	ctx := context.Background()
	a := newTestAdapter(t)
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "a.csv"))

	if ok, err := a.Exists(ctx, uri(filepath.Join(dir, "a.csv"))); err != nil || !ok {
		t.Errorf("expected file to exist, got %v %v", ok, err)
	}
	if ok, err := a.Exists(ctx, uri(dir)); err != nil || ok {
		t.Errorf("directories should not exist as files, got %v %v", ok, err)
	}
	if ok, err := a.Exists(ctx, uri(filepath.Join(dir, "missing.csv"))); err != nil || ok {
		t.Errorf("expected missing file, got %v %v", ok, err)
	}

	_, err := a.Open(ctx, uri(filepath.Join(dir, "missing.csv")))
	if !datafile.IsNotExist(err) {
		t.Errorf("expected not exist error, got %v", err)
	}
}

func TestList(t *testing.T) {
	ctx := context.Background()
	a := newTestAdapter(t)
	dir := t.TempDir()
	for _, p := range []string{"2024/01.csv", "2024/02.csv", "2024/notes.txt", "2025/01.csv"} {
		touch(t, filepath.Join(dir, filepath.FromSlash(p)))
	}
	join := func(p string) string { return uri(filepath.Join(dir, filepath.FromSlash(p))) }

	tests := []struct {
		pattern string
		want    []string
	}{
		{join("2024/*.csv"), []string{join("2024/01.csv"), join("2024/02.csv")}},
		{join("**.csv"), []string{join("2024/01.csv"), join("2024/02.csv"), join("2025/01.csv")}},
		{join("2025/01.csv"), []string{join("2025/01.csv")}},
		{join("2026/*.csv"), []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			got, err := a.List(ctx, tt.pattern)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestMoveAndDelete(t *testing.T) {
	ctx := context.Background()
	a := newTestAdapter(t)
	dir := t.TempDir()
	src := filepath.Join(dir, "src.csv")
	dst := filepath.Join(dir, "sub", "dst.csv")
	touch(t, src)
	touch(t, dst)

	if err := a.Move(ctx, uri(src), uri(dst)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Error("source should be gone")
	}
	if err := a.Delete(ctx, uri(dst)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := a.Delete(ctx, uri(dst)); !datafile.IsNotExist(err) {
		t.Errorf("expected not exist error, got %v", err)
	}
}

func TestRemotePath(t *testing.T) {
	base, p, err := remotePath("open", "sftp://host:2222/data/a.csv")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if base != "sftp://host:2222" || p != "/data/a.csv" {
		t.Errorf("unexpected split %q %q", base, p)
	}
	if _, _, err := remotePath("open", "sftp://host"); err == nil {
		t.Error("expected error for a URI without path")
	}
}

func TestSettingsFromConnection(t *testing.T) {
	cfg := datafile.DefaultConfig()

	s, err := settingsFor(&datafile.Connection{ID: "sftp_default", Host: "files", Login: "etl", Password: "pw"}, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Port != 22 || s.Username != "etl" {
		t.Errorf("unexpected settings %+v", s)
	}
	sshConfig, err := s.clientConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sshConfig.Auth) != 1 {
		t.Errorf("expected password auth, got %d methods", len(sshConfig.Auth))
	}

	if _, err := settingsFor(&datafile.Connection{ID: "x"}, cfg); err == nil {
		t.Error("expected error without host")
	}

	noAuth, _ := settingsFor(&datafile.Connection{ID: "x", Host: "files", Port: 2222}, cfg)
	if noAuth.Port != 2222 {
		t.Errorf("expected port 2222, got %d", noAuth.Port)
	}
	if _, err := noAuth.clientConfig(); err == nil {
		t.Error("expected error without authentication")
	}
}
