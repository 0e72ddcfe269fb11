package datafile

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
)

// Connection types named by location registrations.
const (
	ConnTypeAWS   = "aws"
	ConnTypeGCP   = "google_cloud_platform"
	ConnTypeAzure = "wasb"
	ConnTypeSFTP  = "sftp"
)

// Connection is a connection record as kept by the orchestrator's
// connection store.
type Connection struct {
	ID       string
	Type     string
	Host     string
	Port     int
	Login    string
	Password string
	Schema   string
	Extra    map[string]string
}

// ExtraValue returns the first non-empty extra under any of keys.
func (c *Connection) ExtraValue(keys ...string) string {
	if c == nil {
		return ""
	}
	for _, k := range keys {
		if v := c.Extra[k]; v != "" {
			return v
		}
	}
	return ""
}

// ParseConnectionURI parses a connection encoded as a URI:
//
//	<type>://<login>:<password>@<host>:<port>/<schema>?<extra>=<value>
//
// Login and password must be URL-encoded.
func ParseConnectionURI(id, uri string) (*Connection, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("connection %s: %w", id, err)
	}
	if u.Scheme == "" {
		return nil, fmt.Errorf("connection %s: missing connection type", id)
	}

	conn := &Connection{
		ID:     id,
		Type:   strings.ReplaceAll(u.Scheme, "-", "_"),
		Host:   u.Hostname(),
		Schema: strings.TrimPrefix(u.Path, "/"),
		Extra:  make(map[string]string),
	}
	if p := u.Port(); p != "" {
		conn.Port, err = strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("connection %s: invalid port %q", id, p)
		}
	}
	if u.User != nil {
		conn.Login = u.User.Username()
		conn.Password, _ = u.User.Password()
	}
	for k, v := range u.Query() {
		if len(v) > 0 {
			conn.Extra[k] = v[0]
		}
	}
	return conn, nil
}

// ConnectionResolver looks up connections by id. Unknown ids return an
// error wrapping ErrConnectionNotFound.
type ConnectionResolver interface {
	ResolveConnection(ctx context.Context, connID string) (*Connection, error)
}

// ConnectionResolverFunc adapts a function to ConnectionResolver.
type ConnectionResolverFunc func(ctx context.Context, connID string) (*Connection, error)

func (f ConnectionResolverFunc) ResolveConnection(ctx context.Context, connID string) (*Connection, error) {
	return f(ctx, connID)
}

// StaticConnections resolves connections from a fixed map keyed by id.
type StaticConnections map[string]*Connection

func (s StaticConnections) ResolveConnection(_ context.Context, connID string) (*Connection, error) {
	conn, ok := s[connID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrConnectionNotFound, connID)
	}
	out := *conn
	out.ID = connID
	return &out, nil
}

// EnvConnections reads connection URIs from environment variables named
// Prefix followed by the upper-cased id, e.g. DATAFILE_CONN_AWS_DEFAULT.
type EnvConnections struct {
	Prefix string

	// Lookup replaces os.LookupEnv when set.
	Lookup func(key string) (string, bool)
}

func (e EnvConnections) ResolveConnection(_ context.Context, connID string) (*Connection, error) {
	lookup := e.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	key := e.Prefix + strings.ToUpper(connID)
	raw, ok := lookup(key)
	if !ok || raw == "" {
		return nil, fmt.Errorf("%w: %s (env %s)", ErrConnectionNotFound, connID, key)
	}
	return ParseConnectionURI(connID, raw)
}

// ChainConnections asks each resolver in turn and returns the first
// connection found.
type ChainConnections []ConnectionResolver

func (c ChainConnections) ResolveConnection(ctx context.Context, connID string) (*Connection, error) {
	for _, r := range c {
		conn, err := r.ResolveConnection(ctx, connID)
		if err == nil {
			return conn, nil
		}
		if !errors.Is(err, ErrConnectionNotFound) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrConnectionNotFound, connID)
}

var (
	_ ConnectionResolver = StaticConnections(nil)
	_ ConnectionResolver = EnvConnections{}
	_ ConnectionResolver = ChainConnections(nil)
	_ ConnectionResolver = ConnectionResolverFunc(nil)
)
