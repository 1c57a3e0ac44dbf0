package fs

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/pkg/sftp"
)

// SFTPFileSystem implements FileSystem using an existing *sftp.Client.
type SFTPFileSystem struct {
	client *sftp.Client
}

func NewSFTPFileSystem(client *sftp.Client) (*SFTPFileSystem, error) {
	if client == nil {
		return nil, fmt.Errorf("sftp client is nil")
	}
	return &SFTPFileSystem{client: client}, nil
}

func (s *SFTPFileSystem) ListDir(ctx context.Context, p string, opts ListDirOptions) (*ListDirResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pathToList, err := normalizeRemotePath(p)
	if err != nil {
		return nil, err
	}
	infos, err := s.client.ReadDir(pathToList)
	if err != nil {
		return nil, err
	}

	entries := make([]FileEntry, 0, len(infos))
	for _, fi := range infos {
		name := fi.Name()
		if name == "." || name == ".." {
			continue
		}
		if !opts.IncludeHidden && strings.HasPrefix(name, ".") {
			continue
		}
		entries = append(entries, FileEntry{
			Name:    name,
			Path:    joinRemote(pathToList, name),
			IsDir:   fi.IsDir(),
			Size:    fi.Size(),
			Mode:    fi.Mode().String(),
			ModTime: fi.ModTime(),
		})
	}
	sortEntries(entries)

	return &ListDirResponse{Path: pathToList, Entries: entries}, nil
}

func (s *SFTPFileSystem) Stat(ctx context.Context, p string) (*FileEntry, error) {
	_ = ctx
	remotePath, err := normalizeRemotePath(p)
	if err != nil {
		return nil, err
	}
	fi, err := s.client.Stat(remotePath)
	if err != nil {
		return nil, err
	}
	return &FileEntry{
		Name:    path.Base(remotePath),
		Path:    remotePath,
		IsDir:   fi.IsDir(),
		Size:    fi.Size(),
		Mode:    fi.Mode().String(),
		ModTime: fi.ModTime(),
	}, nil
}

func (s *SFTPFileSystem) MkdirAll(ctx context.Context, p string) error {
	_ = ctx
	remotePath, err := normalizeRemotePath(p)
	if err != nil {
		return err
	}
	return s.client.MkdirAll(remotePath)
}

func (s *SFTPFileSystem) Remove(ctx context.Context, p string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	remotePath, err := normalizeRemotePath(p)
	if err != nil {
		return err
	}
	fi, err := s.client.Stat(remotePath)
	if err != nil {
		return err
	}
	if fi.IsDir() {
		return s.client.RemoveDirectory(remotePath)
	}
	return s.client.Remove(remotePath)
}

func (s *SFTPFileSystem) Rename(ctx context.Context, from string, to string) error {
	_ = ctx
	fromP, err := normalizeRemotePath(from)
	if err != nil {
		return err
	}
	toP, err := normalizeRemotePath(to)
	if err != nil {
		return err
	}
	return s.client.Rename(fromP, toP)
}

func (s *SFTPFileSystem) OpenRead(ctx context.Context, p string) (io.ReadCloser, error) {
	_ = ctx
	remotePath, err := normalizeRemotePath(p)
	if err != nil {
		return nil, err
	}
	return s.client.Open(remotePath)
}

func (s *SFTPFileSystem) OpenWrite(ctx context.Context, p string, opts OpenWriteOptions) (io.WriteCloser, error) {
	_ = ctx
	remotePath, err := normalizeRemotePath(p)
	if err != nil {
		return nil, err
	}

	flag := os.O_WRONLY | os.O_CREATE
	if opts.Overwrite {
		flag |= os.O_TRUNC
	} else {
		flag |= os.O_EXCL
	}

	return s.client.OpenFile(remotePath, flag)
}

func (s *SFTPFileSystem) Pwd(ctx context.Context) (string, error) {
	_ = ctx
	wd, err := s.client.Getwd()
	if err != nil || strings.TrimSpace(wd) == "" {
		return "/", nil
	}
	if !strings.HasPrefix(wd, "/") {
		return "/", nil
	}
	return wd, nil
}

var _ FileSystem = (*SFTPFileSystem)(nil)
var _ PwdProvider = (*SFTPFileSystem)(nil)

// SFTPEndpointFileSystem resolves a pooled client on every call, so a
// dropped connection is redialed transparently.
type SFTPEndpointFileSystem struct {
	pool     *SFTPPool
	endpoint SFTPEndpoint
}

func NewSFTPEndpointFileSystem(pool *SFTPPool, endpoint SFTPEndpoint) (*SFTPEndpointFileSystem, error) {
	if pool == nil {
		return nil, fmt.Errorf("sftp pool is nil")
	}
	if strings.TrimSpace(endpoint.Host) == "" {
		return nil, fmt.Errorf("sftp host is empty")
	}
	return &SFTPEndpointFileSystem{pool: pool, endpoint: endpoint}, nil
}

func (e *SFTPEndpointFileSystem) fs(ctx context.Context) (*SFTPFileSystem, error) {
	cli, err := e.pool.GetClient(ctx, e.endpoint)
	if err != nil {
		return nil, err
	}
	return NewSFTPFileSystem(cli)
}

func (e *SFTPEndpointFileSystem) ListDir(ctx context.Context, p string, opts ListDirOptions) (*ListDirResponse, error) {
	fs, err := e.fs(ctx)
	if err != nil {
		return nil, err
	}
	return fs.ListDir(ctx, p, opts)
}

func (e *SFTPEndpointFileSystem) Stat(ctx context.Context, p string) (*FileEntry, error) {
	fs, err := e.fs(ctx)
	if err != nil {
		return nil, err
	}
	return fs.Stat(ctx, p)
}

func (e *SFTPEndpointFileSystem) MkdirAll(ctx context.Context, p string) error {
	fs, err := e.fs(ctx)
	if err != nil {
		return err
	}
	return fs.MkdirAll(ctx, p)
}

func (e *SFTPEndpointFileSystem) Remove(ctx context.Context, p string) error {
	fs, err := e.fs(ctx)
	if err != nil {
		return err
	}
	return fs.Remove(ctx, p)
}

func (e *SFTPEndpointFileSystem) Rename(ctx context.Context, from string, to string) error {
	fs, err := e.fs(ctx)
	if err != nil {
		return err
	}
	return fs.Rename(ctx, from, to)
}

func (e *SFTPEndpointFileSystem) OpenRead(ctx context.Context, p string) (io.ReadCloser, error) {
	fs, err := e.fs(ctx)
	if err != nil {
		return nil, err
	}
	return fs.OpenRead(ctx, p)
}

func (e *SFTPEndpointFileSystem) OpenWrite(ctx context.Context, p string, opts OpenWriteOptions) (io.WriteCloser, error) {
	fs, err := e.fs(ctx)
	if err != nil {
		return nil, err
	}
	return fs.OpenWrite(ctx, p, opts)
}

func (e *SFTPEndpointFileSystem) Pwd(ctx context.Context) (string, error) {
	fs, err := e.fs(ctx)
	if err != nil {
		return "", err
	}
	return fs.Pwd(ctx)
}

var _ FileSystem = (*SFTPEndpointFileSystem)(nil)
var _ PwdProvider = (*SFTPEndpointFileSystem)(nil)

// joinRemote joins a directory and a base path, ensuring a single '/' separator.
func joinRemote(dir string, base string) string {
	if dir == "" {
		return "/" + strings.TrimPrefix(base, "/")
	}
	if base == "" {
		return dir
	}
	if strings.HasSuffix(dir, "/") {
		return dir + strings.TrimPrefix(base, "/")
	}
	return dir + "/" + strings.TrimPrefix(base, "/")
}
