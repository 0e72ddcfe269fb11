package gcs

import (
	"errors"
	"testing"

	"cloud.google.com/go/storage"

	"github.com/gobeaver/datafile"
)

func TestSettingsFromConnection(t *testing.T) {
	cfg := datafile.DefaultConfig()

	tests := []struct {
		name     string
		conn     *datafile.Connection
		wantJSON string
		wantFile string
		project  string
		options  int
	}{
		{"ambient credentials", nil, "", "", "", 0},
		{
			"key file",
			&datafile.Connection{Extra: map[string]string{"key_path": "/etc/key.json", "project": "p1"}},
			"", "/etc/key.json", "p1", 2,
		},
		{
			"inline key wins",
			&datafile.Connection{Extra: map[string]string{"keyfile_dict": `{"type":"service_account"}`, "key_path": "/etc/key.json"}},
			`{"type":"service_account"}`, "/etc/key.json", "", 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := settingsFor(tt.conn, cfg)
			if s.keyJSON != tt.wantJSON || s.keyFile != tt.wantFile {
				t.Errorf("unexpected credentials %+v", s)
			}
			if s.projectID != tt.project {
				t.Errorf("expected project %q, got %q", tt.project, s.projectID)
			}
			if got := len(s.clientOptions()); got != tt.options {
				t.Errorf("expected %d client options, got %d", tt.options, got)
			}
		})
	}
}

func TestEmulatorEndpoint(t *testing.T) {
	cfg := datafile.DefaultConfig()
	cfg.GCSEndpoint = "http://localhost:4443/storage/v1/"

	s := settingsFor(nil, cfg)
	if s.endpoint != cfg.GCSEndpoint {
		t.Errorf("expected endpoint %q, got %q", cfg.GCSEndpoint, s.endpoint)
	}
	// endpoint plus unauthenticated access
	if got := len(s.clientOptions()); got != 2 {
		t.Errorf("expected 2 client options, got %d", got)
	}
}

func TestMapGCSError(t *testing.T) {
	err := mapGCSError("open", "gs", "gs://bucket/a.csv", storage.ErrObjectNotExist)
	if !datafile.IsNotExist(err) {
		t.Errorf("expected not exist error, got %v", err)
	}
	var pe *datafile.PathError
	if !errors.As(err, &pe) || pe.Scheme != "gs" || pe.Op != "open" {
		t.Errorf("unexpected path error %v", err)
	}

	other := mapGCSError("list", "gs", "gs://bucket/*", errors.New("boom"))
	if datafile.IsNotExist(other) || !datafile.IsBackendError(other) {
		t.Errorf("unexpected mapping %v", other)
	}
}

func TestParseRejectsMissingBucket(t *testing.T) {
	if _, _, _, err := parse("open", "gs:///a.csv"); err == nil {
		t.Error("expected error for missing bucket")
	}
	_, bucket, key, err := parse("open", "gs://bucket/dir/a.csv")
	if err != nil || bucket != "bucket" || key != "dir/a.csv" {
		t.Errorf("unexpected parse result %q %q %v", bucket, key, err)
	}
}
