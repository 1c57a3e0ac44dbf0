package fs

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

// SFTPEndpoint describes the SSH server that backs the explorer storage.
type SFTPEndpoint struct {
	Host           string
	Port           int
	Username       string
	Password       string
	PrivateKeyPath string
	Passphrase     string
	Timeout        time.Duration
}

func (e SFTPEndpoint) addr() string {
	port := e.Port
	if port == 0 {
		port = 22
	}
	return net.JoinHostPort(e.Host, strconv.Itoa(port))
}

// SFTPPool keeps one SSH+SFTP connection per endpoint and redials it when
// the keepalive probe fails.
type SFTPPool struct {
	mu      sync.Mutex
	clients map[string]*sftpClient
}

type sftpClient struct {
	ssh      *ssh.Client
	sftp     *sftp.Client
	lastUsed time.Time
}

func NewSFTPPool() *SFTPPool {
	return &SFTPPool{clients: make(map[string]*sftpClient)}
}

func (p *SFTPPool) CloseAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for k, c := range p.clients {
		closeClient(c)
		delete(p.clients, k)
	}
}

func (p *SFTPPool) GetClient(ctx context.Context, ep SFTPEndpoint) (*sftp.Client, error) {
	key := ep.Username + "@" + ep.addr()

	p.mu.Lock()
	if cached, ok := p.clients[key]; ok {
		if isConnectionAlive(cached.ssh) {
			cached.lastUsed = time.Now()
			cli := cached.sftp
			p.mu.Unlock()
			return cli, nil
		}
		closeClient(cached)
		delete(p.clients, key)
	}
	p.mu.Unlock()

	sshClient, err := dialSSH(ctx, ep)
	if err != nil {
		return nil, err
	}

	sftpCli, err := sftp.NewClient(sshClient)
	if err != nil {
		_ = sshClient.Close()
		return nil, fmt.Errorf("create sftp client: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	// Another caller may have dialed concurrently; keep the first one.
	if cached, ok := p.clients[key]; ok {
		_ = sftpCli.Close()
		_ = sshClient.Close()
		return cached.sftp, nil
	}
	p.clients[key] = &sftpClient{ssh: sshClient, sftp: sftpCli, lastUsed: time.Now()}
	return sftpCli, nil
}

// isConnectionAlive checks if SSH connection is still alive using a keepalive request
func isConnectionAlive(client *ssh.Client) bool {
	if client == nil {
		return false
	}
	_, _, err := client.SendRequest("keepalive@openssh.com", true, nil)
	return err == nil
}

func closeClient(c *sftpClient) {
	if c.sftp != nil {
		_ = c.sftp.Close()
	}
	if c.ssh != nil {
		_ = c.ssh.Close()
	}
}

func dialSSH(ctx context.Context, ep SFTPEndpoint) (*ssh.Client, error) {
	if strings.TrimSpace(ep.Host) == "" {
		return nil, fmt.Errorf("ssh host not specified")
	}
	if strings.TrimSpace(ep.Username) == "" {
		return nil, fmt.Errorf("ssh username not specified")
	}

	sshConfig := &ssh.ClientConfig{
		User:            ep.Username,
		Auth:            []ssh.AuthMethod{},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         30 * time.Second,
	}
	if ep.Timeout > 0 {
		sshConfig.Timeout = ep.Timeout
	}

	if ep.Password != "" {
		sshConfig.Auth = append(sshConfig.Auth, ssh.Password(ep.Password))
	}
	if ep.PrivateKeyPath != "" {
		key, err := loadPrivateKeyFromFile(ep.PrivateKeyPath, ep.Passphrase)
		if err != nil {
			return nil, fmt.Errorf("load private key %s: %w", ep.PrivateKeyPath, err)
		}
		sshConfig.Auth = append(sshConfig.Auth, ssh.PublicKeys(key))
	}
	if len(sshConfig.Auth) == 0 {
		sshConfig.Auth = append(sshConfig.Auth, ssh.Password(""))
	}

	addr := ep.addr()
	dialer := &net.Dialer{Timeout: sshConfig.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial ssh tcp: %w", err)
	}

	c, chans, reqs, err := ssh.NewClientConn(conn, addr, sshConfig)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ssh handshake: %w", err)
	}
	return ssh.NewClient(c, chans, reqs), nil
}

func loadPrivateKeyFromFile(path string, passphrase string) (ssh.Signer, error) {
	key, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parsePrivateKeyString(string(key), passphrase)
}

func parsePrivateKeyString(keyData string, passphrase string) (ssh.Signer, error) {
	signer, err := ssh.ParsePrivateKey([]byte(keyData))
	if err == nil {
		return signer, nil
	}
	if passphrase == "" {
		return nil, err
	}
	return ssh.ParsePrivateKeyWithPassphrase([]byte(keyData), []byte(passphrase))
}

// normalizeRemotePath is shared between pool-backed SFTP filesystem calls.
func normalizeRemotePath(p string) (string, error) {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/", nil
	}
	p = filepath.ToSlash(p)
	if !strings.HasPrefix(p, "/") {
		return "", fmt.Errorf("path must be absolute")
	}
	return p, nil
}
