package azure

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"

	"github.com/gobeaver/datafile"
)

func TestParseBlobURI(t *testing.T) {
	tests := []struct {
		uri       string
		account   string
		container string
		name      string
		base      string
	}{
		{"wasb://data@acct.blob.core.windows.net/2024/a.csv", "acct", "data", "2024/a.csv", "wasb://data@acct.blob.core.windows.net/"},
		{"wasbs://data@acct.blob.core.windows.net/a.csv", "acct", "data", "a.csv", "wasbs://data@acct.blob.core.windows.net/"},
		{"az://data/a.csv", "", "data", "a.csv", "az://data/"},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			ref, err := parseBlobURI(tt.uri)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if ref.account != tt.account || ref.container != tt.container || ref.name != tt.name {
				t.Errorf("unexpected ref %+v", ref)
			}
			if ref.base != tt.base {
				t.Errorf("expected base %q, got %q", tt.base, ref.base)
			}
		})
	}

	for _, bad := range []string{"az:///a.csv", "wasb://data@/a.csv", "data/a.csv"} {
		if _, err := parseBlobURI(bad); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}

func TestServiceURL(t *testing.T) {
	tests := []struct {
		endpoint string
		want     string
	}{
		{"", "https://acct.blob.core.windows.net/"},
		{"https://%s.blob.core.chinacloudapi.cn/", "https://acct.blob.core.chinacloudapi.cn/"},
		{"http://127.0.0.1:10000/devstoreaccount1", "http://127.0.0.1:10000/devstoreaccount1"},
	}
	for _, tt := range tests {
		s := clientSettings{endpoint: tt.endpoint}
		if got := s.serviceURL("acct"); got != tt.want {
			t.Errorf("endpoint %q: expected %q, got %q", tt.endpoint, tt.want, got)
		}
	}
}

func TestSettingsFromConnection(t *testing.T) {
	key := base64.StdEncoding.EncodeToString([]byte("secret"))
	conn := &datafile.Connection{Login: "acct", Password: key}
	s := settingsFor(conn, datafile.DefaultConfig())

	if s.account != "acct" || s.accountKey != key {
		t.Errorf("unexpected settings %+v", s)
	}
	if _, err := s.newClient("acct"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if _, err := s.newClient("other"); err == nil {
		t.Error("expected error for a key of another account")
	}

	sas := settingsFor(&datafile.Connection{Extra: map[string]string{"sas_token": "?sv=2020&sig=x"}}, datafile.DefaultConfig())
	if sas.sasToken != "sv=2020&sig=x" {
		t.Errorf("unexpected sas token %q", sas.sasToken)
	}
}

func TestClientsAreCachedPerAccount(t *testing.T) {
	calls := 0
	a := New("acct", func(account string) (*azblob.Client, error) {
		calls++
		return azblob.NewClientWithNoCredential("https://"+account+".blob.core.windows.net/", nil)
	})

	for i := 0; i < 3; i++ {
		if _, err := a.clientFor("acct"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if _, err := a.clientFor("other"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 2 {
		t.Errorf("expected 2 clients, got %d", calls)
	}
}

func TestMissingAccount(t *testing.T) {
	a := New("", func(string) (*azblob.Client, error) {
		t.Fatal("client should not be created")
		return nil, nil
	})

	_, err := a.Open(context.Background(), "az://data/a.csv")
	var pe *datafile.PathError
	if !errors.As(err, &pe) || pe.Op != "open" || pe.Scheme != "az" {
		t.Errorf("expected open PathError, got %v", err)
	}
}
