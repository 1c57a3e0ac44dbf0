package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/choraleia/explorer/pkg/config"
	fsimpl "github.com/choraleia/explorer/pkg/service/fs"
)

// FSRegistry builds the FileSystem backing the explorer.
//
// It owns the SFTP connection pool so that every catalog opened through it
// shares connections.
type FSRegistry struct {
	local    fsimpl.FileSystem
	sftpPool *fsimpl.SFTPPool
}

func NewFSRegistry() *FSRegistry {
	return &FSRegistry{
		local:    fsimpl.NewLocalFileSystem(),
		sftpPool: fsimpl.NewSFTPPool(),
	}
}

// Open returns the filesystem named by the storage section of cfg.
func (r *FSRegistry) Open(ctx context.Context, cfg *config.AppConfig) (fsimpl.FileSystem, error) {
	switch fsimpl.EndpointType(cfg.Backend()) {
	case fsimpl.EndpointLocal:
		return r.local, nil
	case fsimpl.EndpointSFTP:
		sc := cfg.SFTP()
		if strings.TrimSpace(sc.Host) == "" {
			return nil, fmt.Errorf("storage.sftp.host is required for sftp")
		}
		return fsimpl.NewSFTPEndpointFileSystem(r.sftpPool, fsimpl.SFTPEndpoint{
			Host:           sc.Host,
			Port:           sc.Port,
			Username:       sc.Username,
			Password:       sc.Password,
			PrivateKeyPath: sc.PrivateKeyPath,
			Passphrase:     sc.Passphrase,
		})
	case fsimpl.EndpointS3:
		sc := cfg.S3()
		client, err := fsimpl.NewS3Client(ctx, fsimpl.S3Endpoint{
			Endpoint:  sc.Endpoint,
			Region:    sc.Region,
			Bucket:    sc.Bucket,
			AccessKey: sc.AccessKey,
			SecretKey: sc.SecretKey,
		})
		if err != nil {
			return nil, err
		}
		return fsimpl.NewS3FileSystem(client, sc.Bucket)
	default:
		return nil, fmt.Errorf("unknown filesystem backend: %s", cfg.Backend())
	}
}

// OpenCatalog opens the backend and roots a catalog at storage.root.
func (r *FSRegistry) OpenCatalog(ctx context.Context, cfg *config.AppConfig) (*CatalogService, error) {
	fs, err := r.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewCatalogService(ctx, fs, cfg.StorageRoot())
}

// Close drops pooled remote connections.
func (r *FSRegistry) Close() {
	r.sftpPool.CloseAll()
}
