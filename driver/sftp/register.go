package sftp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/gobeaver/datafile"
)

func init() {
	datafile.RegisterLocation(datafile.Backend{
		Name:     "sftp",
		Schemes:  []string{scheme},
		ConnType: datafile.ConnTypeSFTP,
		Factory:  createSFTPLocation,
	})
}

func createSFTPLocation(ctx context.Context, conn *datafile.Connection, cfg *datafile.Config) (datafile.Location, error) {
	if conn == nil {
		return nil, fmt.Errorf("sftp requires a connection (default id %q)", cfg.SFTPConnID)
	}
	s, err := settingsFor(conn, cfg)
	if err != nil {
		return nil, err
	}
	return Dial(ctx, s)
}

// Settings holds SFTP connection configuration
type Settings struct {
	Host           string
	Port           int
	Username       string
	Password       string
	PrivateKey     []byte // PEM encoded private key
	KeyPassphrase  string
	KnownHostsFile string
	Timeout        time.Duration
}

func settingsFor(conn *datafile.Connection, cfg *datafile.Config) (Settings, error) {
	s := Settings{
		Host:           conn.Host,
		Port:           conn.Port,
		Username:       conn.Login,
		Password:       conn.Password,
		KnownHostsFile: cfg.SFTPKnownHostsFile,
		KeyPassphrase:  conn.ExtraValue("private_key_passphrase"),
		Timeout:        30 * time.Second,
	}
	if s.Host == "" {
		return Settings{}, fmt.Errorf("connection %s: SFTP host is required", conn.ID)
	}
	if s.Port == 0 {
		s.Port = cfg.SFTPPort
	}
	if kh := conn.ExtraValue("known_hosts_file"); kh != "" {
		s.KnownHostsFile = kh
	}
	if t := conn.ExtraValue("conn_timeout", "timeout"); t != "" {
		secs, err := strconv.Atoi(t)
		if err != nil {
			return Settings{}, fmt.Errorf("connection %s: invalid timeout %q", conn.ID, t)
		}
		s.Timeout = time.Duration(secs) * time.Second
	}

	switch {
	case conn.ExtraValue("private_key") != "":
		s.PrivateKey = []byte(conn.ExtraValue("private_key"))
	case conn.ExtraValue("key_file") != "":
		keyData, err := os.ReadFile(conn.ExtraValue("key_file"))
		if err != nil {
			return Settings{}, fmt.Errorf("failed to read private key: %w", err)
		}
		s.PrivateKey = keyData
	}
	return s, nil
}

// clientConfig builds the SSH client configuration. Host keys are checked
// against KnownHostsFile when set.
func (s Settings) clientConfig() (*ssh.ClientConfig, error) {
	sshConfig := &ssh.ClientConfig{
		User:            s.Username,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         s.Timeout,
	}

	if s.KnownHostsFile != "" {
		cb, err := knownhosts.New(s.KnownHostsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load known hosts: %w", err)
		}
		sshConfig.HostKeyCallback = cb
	}

	if len(s.PrivateKey) > 0 {
		var signer ssh.Signer
		var err error
		if s.KeyPassphrase != "" {
			signer, err = ssh.ParsePrivateKeyWithPassphrase(s.PrivateKey, []byte(s.KeyPassphrase))
		} else {
			signer, err = ssh.ParsePrivateKey(s.PrivateKey)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse private key: %w", err)
		}
		sshConfig.Auth = append(sshConfig.Auth, ssh.PublicKeys(signer))
	}

	if s.Password != "" {
		sshConfig.Auth = append(sshConfig.Auth, ssh.Password(s.Password))
	}

	if len(sshConfig.Auth) == 0 {
		return nil, errors.New("no authentication method provided")
	}
	return sshConfig, nil
}

// Dial connects to the server and returns a location owning the SSH and
// SFTP connections.
func Dial(ctx context.Context, s Settings) (*Adapter, error) {
	sshConfig, err := s.clientConfig()
	if err != nil {
		return nil, err
	}

	addr := net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
	d := net.Dialer{Timeout: s.Timeout}
	nc, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SSH: %w", err)
	}

	c, chans, reqs, err := ssh.NewClientConn(nc, addr, sshConfig)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to connect to SSH: %w", err)
	}
	sshConn := ssh.NewClient(c, chans, reqs)

	client, err := sftp.NewClient(sshConn)
	if err != nil {
		sshConn.Close()
		return nil, fmt.Errorf("failed to create SFTP client: %w", err)
	}
	return New(client, WithSSHClient(sshConn)), nil
}
