package s3

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/gobeaver/datafile"
)

func init() {
	datafile.RegisterLocation(datafile.Backend{
		Name:     "s3",
		Schemes:  []string{"s3", "s3a"},
		ConnType: datafile.ConnTypeAWS,
		Factory:  createS3Location,
	})
}

func createS3Location(ctx context.Context, conn *datafile.Connection, cfg *datafile.Config) (datafile.Location, error) {
	client, err := createS3Client(ctx, conn, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}
	return New(client), nil
}

// clientSettings gathers what the S3 client needs from the connection,
// falling back to the config.
type clientSettings struct {
	region       string
	endpoint     string
	accessKey    string
	secretKey    string
	sessionToken string
	pathStyle    bool
}

func settingsFor(conn *datafile.Connection, cfg *datafile.Config) clientSettings {
	s := clientSettings{
		region:    cfg.S3Region,
		endpoint:  cfg.S3Endpoint,
		pathStyle: cfg.S3ForcePathStyle,
	}
	if conn == nil {
		return s
	}
	s.accessKey = conn.ExtraValue("aws_access_key_id")
	if s.accessKey == "" {
		s.accessKey = conn.Login
	}
	s.secretKey = conn.ExtraValue("aws_secret_access_key")
	if s.secretKey == "" {
		s.secretKey = conn.Password
	}
	s.sessionToken = conn.ExtraValue("aws_session_token")
	if r := conn.ExtraValue("region_name", "region"); r != "" {
		s.region = r
	}
	if e := conn.ExtraValue("endpoint_url", "host"); e != "" {
		s.endpoint = e
	}
	if conn.ExtraValue("force_path_style") == "true" {
		s.pathStyle = true
	}
	return s
}

// createS3Client creates an S3 client from the connection and config
func createS3Client(ctx context.Context, conn *datafile.Connection, cfg *datafile.Config) (*s3.Client, error) {
	s := settingsFor(conn, cfg)

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(s.region),
	)
	if err != nil {
		return nil, err
	}

	// Override with explicit credentials if provided
	if s.accessKey != "" && s.secretKey != "" {
		awsCfg.Credentials = credentials.NewStaticCredentialsProvider(
			s.accessKey,
			s.secretKey,
			s.sessionToken,
		)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if s.endpoint != "" {
			o.BaseEndpoint = aws.String(s.endpoint)
		}
		if s.pathStyle {
			o.UsePathStyle = true
		}
	}), nil
}
