// Package azure provides the Azure Blob Storage datafile.Location.
//
// Two URI forms are served:
//
//	wasb[s]://<container>@<account>.blob.core.windows.net/<blob>
//	az://<container>/<blob>
//
// The second form uses the account of the connection.
package azure

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"

	"github.com/gobeaver/datafile"
)

const blobHostSuffix = ".blob.core.windows.net"

// ClientFunc returns a client for the storage account.
type ClientFunc func(account string) (*azblob.Client, error)

// Adapter provides an Azure Blob Storage implementation of
// datafile.Location. Clients are created per storage account on first use.
type Adapter struct {
	account   string
	newClient ClientFunc

	mu      sync.Mutex
	clients map[string]*azblob.Client
}

// New creates a new Azure Blob Storage location. account is used for URIs
// that do not name one.
func New(account string, newClient ClientFunc) *Adapter {
	return &Adapter{
		account:   account,
		newClient: newClient,
		clients:   make(map[string]*azblob.Client),
	}
}

// WithClient creates a location bound to a single account and client.
func WithClient(account string, client *azblob.Client) *Adapter {
	return New(account, func(acct string) (*azblob.Client, error) {
		if acct != account {
			return nil, fmt.Errorf("no client for storage account %q", acct)
		}
		return client, nil
	})
}

// blobRef is a parsed blob URI. base is everything before the blob name, so
// base+name rebuilds the URI.
type blobRef struct {
	scheme    string
	account   string
	container string
	name      string
	base      string
}

func parseBlobURI(uri string) (blobRef, error) {
	scheme := datafile.Scheme(uri)
	i := strings.Index(uri, "://")
	if i < 0 {
		return blobRef{}, fmt.Errorf("%q is not a blob URI", uri)
	}
	authority, name, _ := strings.Cut(uri[i+3:], "/")

	ref := blobRef{scheme: scheme, name: name, base: uri[:i+3] + authority + "/"}
	if container, host, ok := strings.Cut(authority, "@"); ok {
		ref.container = container
		ref.account = strings.TrimSuffix(host, blobHostSuffix)
		if ref.account == "" {
			return blobRef{}, fmt.Errorf("%q has no storage account", uri)
		}
	} else {
		ref.container = authority
	}
	if ref.container == "" {
		return blobRef{}, fmt.Errorf("%q has no container", uri)
	}
	return ref, nil
}

func (a *Adapter) resolve(op, uri string) (blobRef, *azblob.Client, error) {
	ref, err := parseBlobURI(uri)
	if err != nil {
		return blobRef{}, nil, datafile.NewPathError(op, datafile.Scheme(uri), uri, err)
	}
	if ref.account == "" {
		ref.account = a.account
	}
	client, err := a.clientFor(ref.account)
	if err != nil {
		return blobRef{}, nil, datafile.NewPathError(op, ref.scheme, uri, err)
	}
	return ref, client, nil
}

func (a *Adapter) clientFor(account string) (*azblob.Client, error) {
	if account == "" {
		return nil, errors.New("no storage account in URI or connection")
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if c, ok := a.clients[account]; ok {
		return c, nil
	}
	c, err := a.newClient(account)
	if err != nil {
		return nil, err
	}
	a.clients[account] = c
	return c, nil
}

// Open implements datafile.Location
func (a *Adapter) Open(ctx context.Context, uri string) (io.ReadCloser, error) {
	ref, client, err := a.resolve("open", uri)
	if err != nil {
		return nil, err
	}

	resp, err := client.DownloadStream(ctx, ref.container, ref.name, nil)
	if err != nil {
		return nil, mapAzureError("open", ref.scheme, uri, err)
	}
	return resp.Body, nil
}

// Create implements datafile.Location. The blob is uploaded when the stream
// is closed.
func (a *Adapter) Create(ctx context.Context, uri string, opts ...datafile.Option) (io.WriteCloser, error) {
	ref, client, err := a.resolve("create", uri)
	if err != nil {
		return nil, err
	}
	o := datafile.ApplyOptions(opts...)

	uploadOpts := &azblob.UploadBufferOptions{HTTPHeaders: &blob.HTTPHeaders{}}
	if o.ContentType != "" {
		uploadOpts.HTTPHeaders.BlobContentType = &o.ContentType
	}
	if o.CacheControl != "" {
		uploadOpts.HTTPHeaders.BlobCacheControl = &o.CacheControl
	}
	if len(o.Metadata) > 0 {
		uploadOpts.Metadata = make(map[string]*string, len(o.Metadata))
		for k, v := range o.Metadata {
			uploadOpts.Metadata[k] = ptr(v)
		}
	}

	return datafile.NewBufferedWriter(ctx, func(ctx context.Context, data []byte) error {
		if _, err := client.UploadBuffer(ctx, ref.container, ref.name, data, uploadOpts); err != nil {
			return mapAzureError("create", ref.scheme, uri, err)
		}
		return nil
	}), nil
}

// Exists implements datafile.Location
func (a *Adapter) Exists(ctx context.Context, uri string) (bool, error) {
	ref, client, err := a.resolve("exists", uri)
	if err != nil {
		return false, err
	}
	if ref.name == "" || strings.HasSuffix(ref.name, "/") {
		return false, nil
	}

	blobClient := client.ServiceClient().NewContainerClient(ref.container).NewBlobClient(ref.name)
	if _, err := blobClient.GetProperties(ctx, nil); err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, mapAzureError("exists", ref.scheme, uri, err)
	}
	return true, nil
}

// List implements datafile.Location
func (a *Adapter) List(ctx context.Context, pattern string) ([]string, error) {
	ref, client, err := a.resolve("list", pattern)
	if err != nil {
		return nil, err
	}

	if !datafile.HasWildcard(ref.name) {
		ok, err := a.Exists(ctx, pattern)
		if err != nil || !ok {
			return []string{}, err
		}
		return []string{pattern}, nil
	}

	m, err := datafile.NewKeyMatcher(ref.name)
	if err != nil {
		return nil, datafile.NewPathError("list", ref.scheme, pattern, err)
	}

	prefix := m.Prefix()
	pager := client.NewListBlobsFlatPager(ref.container, &azblob.ListBlobsFlatOptions{Prefix: &prefix})

	out := []string{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, mapAzureError("list", ref.scheme, pattern, err)
		}
		for _, item := range resp.Segment.BlobItems {
			if item.Name == nil {
				continue
			}
			if m.Match(*item.Name) {
				out = append(out, ref.base+*item.Name)
			}
		}
	}
	return out, nil
}

// Delete implements datafile.CanDelete
func (a *Adapter) Delete(ctx context.Context, uri string) error {
	ref, client, err := a.resolve("delete", uri)
	if err != nil {
		return err
	}
	if _, err := client.DeleteBlob(ctx, ref.container, ref.name, nil); err != nil {
		return mapAzureError("delete", ref.scheme, uri, err)
	}
	return nil
}

// Move implements datafile.CanMove. The blob is streamed through the client
// so no SAS is needed on the source, then the source is deleted.
func (a *Adapter) Move(ctx context.Context, src, dst string) error {
	srcRef, srcClient, err := a.resolve("move", src)
	if err != nil {
		return err
	}
	dstRef, dstClient, err := a.resolve("move", dst)
	if err != nil {
		return err
	}

	resp, err := srcClient.DownloadStream(ctx, srcRef.container, srcRef.name, nil)
	if err != nil {
		return mapAzureError("move", srcRef.scheme, src, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return mapAzureError("move", srcRef.scheme, src, err)
	}

	uploadOpts := &azblob.UploadStreamOptions{}
	if resp.ContentType != nil {
		uploadOpts.HTTPHeaders = &blob.HTTPHeaders{BlobContentType: resp.ContentType}
	}
	if _, err := dstClient.UploadStream(ctx, dstRef.container, dstRef.name, bytes.NewReader(data), uploadOpts); err != nil {
		return mapAzureError("move", dstRef.scheme, dst, err)
	}
	return a.Delete(ctx, src)
}

func ptr[T any](v T) *T {
	return &v
}

func isNotFound(err error) bool {
	if bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound, bloberror.ResourceNotFound) {
		return true
	}
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) && respErr.StatusCode == http.StatusNotFound
}

// mapAzureError maps Azure errors to datafile errors
func mapAzureError(op, scheme, uri string, err error) error {
	if isNotFound(err) {
		return datafile.NewPathError(op, scheme, uri, errors.Join(datafile.ErrNotExist, err))
	}

	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) && respErr.StatusCode == http.StatusForbidden {
		return datafile.NewPathError(op, scheme, uri, errors.Join(datafile.ErrPermission, err))
	}
	if bloberror.HasCode(err, bloberror.AuthorizationFailure, bloberror.AuthenticationFailed) {
		return datafile.NewPathError(op, scheme, uri, errors.Join(datafile.ErrPermission, err))
	}

	return datafile.NewPathError(op, scheme, uri, err)
}

var (
	_ datafile.Location  = (*Adapter)(nil)
	_ datafile.CanDelete = (*Adapter)(nil)
	_ datafile.CanMove   = (*Adapter)(nil)
)
