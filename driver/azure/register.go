package azure

import (
	"context"
	"fmt"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"

	"github.com/gobeaver/datafile"
)

func init() {
	datafile.RegisterLocation(datafile.Backend{
		Name:     "azure",
		Schemes:  []string{"wasb", "wasbs", "az"},
		ConnType: datafile.ConnTypeAzure,
		Factory:  createAzureLocation,
	})
}

func createAzureLocation(_ context.Context, conn *datafile.Connection, cfg *datafile.Config) (datafile.Location, error) {
	s := settingsFor(conn, cfg)
	return New(s.account, s.newClient), nil
}

type clientSettings struct {
	account          string
	accountKey       string
	connectionString string
	sasToken         string
	endpoint         string
}

func settingsFor(conn *datafile.Connection, cfg *datafile.Config) clientSettings {
	s := clientSettings{endpoint: cfg.AzureEndpoint}
	if conn == nil {
		return s
	}
	s.account = conn.Login
	s.accountKey = conn.Password
	s.connectionString = conn.ExtraValue("connection_string", "extra__wasb__connection_string")
	s.sasToken = strings.TrimPrefix(conn.ExtraValue("sas_token", "extra__wasb__sas_token"), "?")
	if e := conn.ExtraValue("endpoint", "account_url"); e != "" {
		s.endpoint = e
	}
	return s
}

// serviceURL returns the blob endpoint of account. A custom endpoint may
// carry a %s for the account name.
func (s clientSettings) serviceURL(account string) string {
	if s.endpoint == "" {
		return fmt.Sprintf("https://%s%s/", account, blobHostSuffix)
	}
	if strings.Contains(s.endpoint, "%s") {
		return fmt.Sprintf(s.endpoint, account)
	}
	return s.endpoint
}

func (s clientSettings) newClient(account string) (*azblob.Client, error) {
	switch {
	case s.connectionString != "":
		return azblob.NewClientFromConnectionString(s.connectionString, nil)
	case s.sasToken != "":
		return azblob.NewClientWithNoCredential(s.serviceURL(account)+"?"+s.sasToken, nil)
	case s.accountKey != "":
		if account != s.account {
			return nil, fmt.Errorf("connection holds a key for storage account %q, not %q", s.account, account)
		}
		cred, err := azblob.NewSharedKeyCredential(account, s.accountKey)
		if err != nil {
			return nil, fmt.Errorf("failed to create azure credential: %w", err)
		}
		return azblob.NewClientWithSharedKeyCredential(s.serviceURL(account), cred, nil)
	default:
		// anonymous access to public containers
		return azblob.NewClientWithNoCredential(s.serviceURL(account), nil)
	}
}
