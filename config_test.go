package datafile

import (
	"os"
	"testing"
)

func setEnv(t *testing.T, vars map[string]string) {
	t.Helper()
	for k, v := range vars {
		os.Setenv(k, v)
		t.Cleanup(func() { os.Unsetenv(k) })
	}
}

func TestGetConfig(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		want    Config
	}{
		{
			name:    "default values",
			envVars: map[string]string{},
			want:    *DefaultConfig(),
		},
		{
			name: "s3 configuration",
			envVars: map[string]string{
				"BEAVER_DATAFILE_AWS_CONN_ID":         "aws_prod",
				"BEAVER_DATAFILE_S3_REGION":           "us-west-2",
				"BEAVER_DATAFILE_S3_ENDPOINT":         "http://localhost:9000",
				"BEAVER_DATAFILE_S3_FORCE_PATH_STYLE": "true",
			},
			want: func() Config {
				c := *DefaultConfig()
				c.AWSConnID = "aws_prod"
				c.S3Region = "us-west-2"
				c.S3Endpoint = "http://localhost:9000"
				c.S3ForcePathStyle = true
				return c
			}(),
		},
		{
			name: "connections and parquet",
			envVars: map[string]string{
				"BEAVER_DATAFILE_CONN_ENV_PREFIX":        "PIPELINE_CONN_",
				"BEAVER_DATAFILE_SFTP_PORT":              "2222",
				"BEAVER_DATAFILE_SFTP_KNOWN_HOSTS_FILE":  "/etc/ssh/known_hosts",
				"BEAVER_DATAFILE_PARQUET_ROW_GROUP_SIZE": "1000",
				"BEAVER_DATAFILE_GCS_ENDPOINT":           "http://localhost:4443/storage/v1/",
				"BEAVER_DATAFILE_AZURE_ENDPOINT":         "http://127.0.0.1:10000/%s",
			},
			want: func() Config {
				c := *DefaultConfig()
				c.ConnEnvPrefix = "PIPELINE_CONN_"
				c.SFTPPort = 2222
				c.SFTPKnownHostsFile = "/etc/ssh/known_hosts"
				c.ParquetRowGroupSize = 1000
				c.GCSEndpoint = "http://localhost:4443/storage/v1/"
				c.AzureEndpoint = "http://127.0.0.1:10000/%s"
				return c
			}(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setEnv(t, tt.envVars)

			cfg, err := GetConfig()
			if err != nil {
				t.Fatalf("GetConfig() error = %v", err)
			}
			if *cfg != tt.want {
				t.Errorf("GetConfig() = %+v, want %+v", *cfg, tt.want)
			}
		})
	}
}

func TestDefaultConnID(t *testing.T) {
	cfg := DefaultConfig()
	tests := map[string]string{
		ConnTypeAWS:   "aws_default",
		ConnTypeGCP:   "google_cloud_default",
		ConnTypeAzure: "wasb_default",
		ConnTypeSFTP:  "sftp_default",
		"ftp":         "",
	}
	for connType, want := range tests {
		if got := cfg.DefaultConnID(connType); got != want {
			t.Errorf("DefaultConnID(%q) = %q, want %q", connType, got, want)
		}
	}
}

func TestBuilderPrefix(t *testing.T) {
	setEnv(t, map[string]string{
		"APP_DATAFILE_S3_REGION":       "eu-central-1",
		"APP_DATAFILE_CONN_ENV_PREFIX": "APP_CONN_",
		"APP_CONN_AWS_DEFAULT":         "aws://key:secret@",
	})

	r, err := WithPrefix("APP_").New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if r.Config().S3Region != "eu-central-1" {
		t.Errorf("S3Region = %v, want eu-central-1", r.Config().S3Region)
	}

	conn, err := r.Connection(t.Context(), ConnTypeAWS, "")
	if err != nil {
		t.Fatalf("Connection() error = %v", err)
	}
	if conn == nil || conn.Login != "key" {
		t.Errorf("Connection() = %+v, want login key", conn)
	}
}

func TestGlobalResolver(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	if r := currentResolver(); r == nil || r.conns != nil {
		t.Fatalf("currentResolver() before Init should have no connections")
	}

	cfg := DefaultConfig()
	cfg.S3Region = "ap-south-1"
	if err := Init(cfg); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	// later calls have no effect
	if err := Init(DefaultConfig()); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	r, err := Default()
	if err != nil {
		t.Fatalf("Default() error = %v", err)
	}
	if r.Config().S3Region != "ap-south-1" {
		t.Errorf("S3Region = %v, want ap-south-1", r.Config().S3Region)
	}
	if currentResolver() != r {
		t.Error("currentResolver() should return the global resolver")
	}
	if New("a.csv").res() != r {
		t.Error("files without a resolver should use the global resolver")
	}

	Reset()
	if currentResolver() == r {
		t.Error("Reset() should drop the global resolver")
	}
}
