package gcs

import (
	"context"
	"fmt"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/gobeaver/datafile"
)

func init() {
	datafile.RegisterLocation(datafile.Backend{
		Name:     "gcs",
		Schemes:  []string{"gs", "gcs"},
		ConnType: datafile.ConnTypeGCP,
		Factory:  createGCSLocation,
	})
}

func createGCSLocation(ctx context.Context, conn *datafile.Connection, cfg *datafile.Config) (datafile.Location, error) {
	// Without a connection the client uses GOOGLE_APPLICATION_CREDENTIALS
	// or the metadata server.
	client, err := storage.NewClient(ctx, settingsFor(conn, cfg).clientOptions()...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}
	return New(client, WithOwnedClient()), nil
}

type clientSettings struct {
	keyJSON   string
	keyFile   string
	endpoint  string
	projectID string
}

func settingsFor(conn *datafile.Connection, cfg *datafile.Config) clientSettings {
	s := clientSettings{
		endpoint:  cfg.GCSEndpoint,
		projectID: cfg.GCSProjectID,
	}
	if conn == nil {
		return s
	}
	s.keyJSON = conn.ExtraValue("keyfile_dict", "extra__google_cloud_platform__keyfile_dict")
	s.keyFile = conn.ExtraValue("key_path", "keyfile", "extra__google_cloud_platform__key_path")
	if p := conn.ExtraValue("project", "project_id", "extra__google_cloud_platform__project"); p != "" {
		s.projectID = p
	}
	if e := conn.ExtraValue("endpoint"); e != "" {
		s.endpoint = e
	}
	return s
}

func (s clientSettings) clientOptions() []option.ClientOption {
	var opts []option.ClientOption
	switch {
	case s.keyJSON != "":
		opts = append(opts, option.WithCredentialsJSON([]byte(s.keyJSON)))
	case s.keyFile != "":
		opts = append(opts, option.WithCredentialsFile(s.keyFile))
	}
	if s.endpoint != "" {
		opts = append(opts, option.WithEndpoint(s.endpoint))
		if s.keyJSON == "" && s.keyFile == "" {
			// emulators accept unauthenticated requests
			opts = append(opts, option.WithoutAuthentication())
		}
	}
	if s.projectID != "" {
		opts = append(opts, option.WithQuotaProject(s.projectID))
	}
	return opts
}
