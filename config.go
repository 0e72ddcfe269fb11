package datafile

import (
	"github.com/gobeaver/beaver-kit/config"
)

type Config struct {
	// Connection ids tried when a file names no connection
	AWSConnID   string `env:"DATAFILE_AWS_CONN_ID,default:aws_default"`
	GCPConnID   string `env:"DATAFILE_GCP_CONN_ID,default:google_cloud_default"`
	AzureConnID string `env:"DATAFILE_AZURE_CONN_ID,default:wasb_default"`
	SFTPConnID  string `env:"DATAFILE_SFTP_CONN_ID,default:sftp_default"`

	// Prefix of environment variables holding connection URIs
	ConnEnvPrefix string `env:"DATAFILE_CONN_ENV_PREFIX,default:DATAFILE_CONN_"`

	// S3 location configuration
	S3Region         string `env:"DATAFILE_S3_REGION,default:us-east-1"`
	S3Endpoint       string `env:"DATAFILE_S3_ENDPOINT"`
	S3ForcePathStyle bool   `env:"DATAFILE_S3_FORCE_PATH_STYLE,default:false"`

	// GCS location configuration
	GCSProjectID string `env:"DATAFILE_GCS_PROJECT_ID"`
	GCSEndpoint  string `env:"DATAFILE_GCS_ENDPOINT"` // Optional custom endpoint (emulators)

	// Azure Blob Storage location configuration
	AzureEndpoint string `env:"DATAFILE_AZURE_ENDPOINT"` // Optional custom endpoint, %s is the account name

	// SFTP location configuration
	SFTPPort           int    `env:"DATAFILE_SFTP_PORT,default:22"`
	SFTPKnownHostsFile string `env:"DATAFILE_SFTP_KNOWN_HOSTS_FILE"`

	// Parquet writer
	ParquetRowGroupSize int64 `env:"DATAFILE_PARQUET_ROW_GROUP_SIZE,default:131072"`
}

// GetConfig returns config loaded from environment
func GetConfig() (*Config, error) {
	cfg := &Config{}
	if err := config.Load(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DefaultConfig returns the configuration used when none is given,
// matching the env tag defaults.
func DefaultConfig() *Config {
	return &Config{
		AWSConnID:           "aws_default",
		GCPConnID:           "google_cloud_default",
		AzureConnID:         "wasb_default",
		SFTPConnID:          "sftp_default",
		ConnEnvPrefix:       "DATAFILE_CONN_",
		S3Region:            "us-east-1",
		SFTPPort:            22,
		ParquetRowGroupSize: 128 * 1024,
	}
}

// DefaultConnID returns the connection id tried for connType when a file
// names none.
func (c *Config) DefaultConnID(connType string) string {
	switch connType {
	case ConnTypeAWS:
		return c.AWSConnID
	case ConnTypeGCP:
		return c.GCPConnID
	case ConnTypeAzure:
		return c.AzureConnID
	case ConnTypeSFTP:
		return c.SFTPConnID
	default:
		return ""
	}
}
