package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"path"
	"strings"

	"github.com/choraleia/explorer/pkg/explorer"
	fsimpl "github.com/choraleia/explorer/pkg/service/fs"
	"github.com/choraleia/explorer/pkg/utils"
)

var (
	ErrInvalidItemID = errors.New("invalid item id")
	ErrNotAFile      = errors.New("item is not a file")
	ErrNotADirectory = errors.New("item is not a directory")
	ErrRootDirectory = errors.New("operation not allowed on the root directory")
	ErrInvalidName   = errors.New("invalid name")
)

// CatalogService exposes a FileSystem subtree as explorer items.
//
// Item IDs are slash-separated paths relative to the storage root; the root
// itself is "". The parent of an item is therefore path.Dir of its ID.
type CatalogService struct {
	fs     fsimpl.FileSystem
	root   string
	hidden bool
	logger *slog.Logger
}

type CatalogOption func(*CatalogService)

// WithHiddenFiles lists dot files as well.
func WithHiddenFiles(show bool) CatalogOption {
	return func(c *CatalogService) { c.hidden = show }
}

// NewCatalogService maps the explorer root to root on fs. An empty root asks
// the filesystem for its preferred starting directory.
func NewCatalogService(ctx context.Context, fs fsimpl.FileSystem, root string, opts ...CatalogOption) (*CatalogService, error) {
	if fs == nil {
		return nil, fmt.Errorf("filesystem is nil")
	}
	root = strings.TrimSpace(root)
	if root == "" {
		if p, ok := fs.(fsimpl.PwdProvider); ok {
			wd, err := p.Pwd(ctx)
			if err != nil {
				return nil, fmt.Errorf("resolve storage root: %w", err)
			}
			root = wd
		} else {
			root = "/"
		}
	}

	st, err := fs.Stat(ctx, root)
	if err != nil {
		return nil, fmt.Errorf("stat storage root %s: %w", root, err)
	}
	if !st.IsDir {
		return nil, fmt.Errorf("storage root %s: %w", root, ErrNotADirectory)
	}

	c := &CatalogService{fs: fs, root: st.Path, logger: utils.GetLogger()}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Root is the absolute storage path of the explorer root.
func (c *CatalogService) Root() string { return c.root }

// FileSystem returns the backing filesystem.
func (c *CatalogService) FileSystem() fsimpl.FileSystem { return c.fs }

// CleanID validates id and returns it in canonical form.
func CleanID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", nil
	}
	clean := strings.TrimPrefix(path.Clean("/"+id), "/")
	if clean != id {
		return "", fmt.Errorf("%w: %q", ErrInvalidItemID, id)
	}
	return clean, nil
}

// ParentID returns the directory ID that contains id.
func ParentID(id string) string {
	dir := path.Dir(id)
	if dir == "." || dir == "/" {
		return ""
	}
	return dir
}

// ChildID returns the ID of name inside parent.
func ChildID(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "/" + name
}

func validName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, "/\\") {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// AbsPath maps an item ID onto the backing filesystem.
func (c *CatalogService) AbsPath(id string) (string, error) {
	clean, err := CleanID(id)
	if err != nil {
		return "", err
	}
	if clean == "" {
		return c.root, nil
	}
	return path.Join(c.root, clean), nil
}

// ListChildren returns the files and directories directly inside directoryID.
func (c *CatalogService) ListChildren(ctx context.Context, directoryID string) (explorer.Listing, error) {
	dirID, err := CleanID(directoryID)
	if err != nil {
		return explorer.Listing{}, err
	}
	abs, err := c.AbsPath(dirID)
	if err != nil {
		return explorer.Listing{}, err
	}

	resp, err := c.fs.ListDir(ctx, abs, fsimpl.ListDirOptions{IncludeHidden: c.hidden})
	if err != nil {
		return explorer.Listing{}, err
	}

	listing := explorer.Listing{
		Files:       make([]explorer.FileItem, 0, len(resp.Entries)),
		Directories: make([]explorer.DirectoryItem, 0),
	}
	for _, e := range resp.Entries {
		id := ChildID(dirID, e.Name)
		if e.IsDir {
			listing.Directories = append(listing.Directories, explorer.DirectoryItem{
				ID:       id,
				Name:     e.Name,
				ParentID: dirID,
			})
			continue
		}
		listing.Files = append(listing.Files, explorer.FileItem{
			ID:       id,
			Filename: e.Name,
			ParentID: dirID,
			Size:     e.Size,
			Mimetype: mimeFromName(e.Name),
			ModTime:  e.ModTime,
		})
	}
	return listing, nil
}

// Directory resolves a directory ID into an item.
func (c *CatalogService) Directory(ctx context.Context, id string) (explorer.DirectoryItem, error) {
	clean, err := CleanID(id)
	if err != nil {
		return explorer.DirectoryItem{}, err
	}
	abs, err := c.AbsPath(clean)
	if err != nil {
		return explorer.DirectoryItem{}, err
	}
	st, err := c.fs.Stat(ctx, abs)
	if err != nil {
		return explorer.DirectoryItem{}, err
	}
	if !st.IsDir {
		return explorer.DirectoryItem{}, fmt.Errorf("%s: %w", clean, ErrNotADirectory)
	}
	return explorer.DirectoryItem{ID: clean, Name: path.Base("/" + clean), ParentID: ParentID(clean)}, nil
}

// DeleteFile removes one file.
func (c *CatalogService) DeleteFile(ctx context.Context, id string) error {
	abs, st, err := c.stat(ctx, id)
	if err != nil {
		return err
	}
	if st.IsDir {
		return fmt.Errorf("%s: %w", id, ErrNotAFile)
	}
	if err := c.fs.Remove(ctx, abs); err != nil {
		return err
	}
	c.logger.Debug("File deleted", "id", id)
	return nil
}

// DeleteDirectory removes one empty directory. The root cannot be deleted.
func (c *CatalogService) DeleteDirectory(ctx context.Context, id string) error {
	clean, err := CleanID(id)
	if err != nil {
		return err
	}
	if clean == "" {
		return ErrRootDirectory
	}
	abs, st, err := c.stat(ctx, clean)
	if err != nil {
		return err
	}
	if !st.IsDir {
		return fmt.Errorf("%s: %w", clean, ErrNotADirectory)
	}
	if err := c.fs.Remove(ctx, abs); err != nil {
		return err
	}
	c.logger.Debug("Directory deleted", "id", clean)
	return nil
}

// CreateFolder creates name inside parentID.
func (c *CatalogService) CreateFolder(ctx context.Context, parentID, name string) (explorer.DirectoryItem, error) {
	name = strings.TrimSpace(name)
	if err := validName(name); err != nil {
		return explorer.DirectoryItem{}, err
	}
	parent, err := c.Directory(ctx, parentID)
	if err != nil {
		return explorer.DirectoryItem{}, err
	}

	id := ChildID(parent.ID, name)
	abs, err := c.AbsPath(id)
	if err != nil {
		return explorer.DirectoryItem{}, err
	}
	if _, err := c.fs.Stat(ctx, abs); err == nil {
		return explorer.DirectoryItem{}, fmt.Errorf("create folder %s: already exists", id)
	}
	if err := c.fs.MkdirAll(ctx, abs); err != nil {
		return explorer.DirectoryItem{}, err
	}
	return explorer.DirectoryItem{ID: id, Name: name, ParentID: parent.ID}, nil
}

// Move relocates an item into targetDirectoryID and returns its new ID.
// A directory cannot be moved into itself or its own subtree.
func (c *CatalogService) Move(ctx context.Context, id, targetDirectoryID string) (string, error) {
	clean, err := CleanID(id)
	if err != nil {
		return "", err
	}
	if clean == "" {
		return "", ErrRootDirectory
	}
	target, err := c.Directory(ctx, targetDirectoryID)
	if err != nil {
		return "", err
	}
	if target.ID == clean || strings.HasPrefix(target.ID, clean+"/") {
		return "", fmt.Errorf("move %s into %s: target is inside the source", clean, target.ID)
	}

	from, _, err := c.stat(ctx, clean)
	if err != nil {
		return "", err
	}
	newID := ChildID(target.ID, path.Base(clean))
	if newID == clean {
		return clean, nil
	}
	to, err := c.AbsPath(newID)
	if err != nil {
		return "", err
	}
	if err := c.fs.Rename(ctx, from, to); err != nil {
		return "", err
	}
	return newID, nil
}

// FilePath returns the storage path for a new file name inside parentID.
func (c *CatalogService) FilePath(parentID, name string) (string, error) {
	if err := validName(name); err != nil {
		return "", err
	}
	parent, err := CleanID(parentID)
	if err != nil {
		return "", err
	}
	return c.AbsPath(ChildID(parent, name))
}

func (c *CatalogService) stat(ctx context.Context, id string) (string, *fsimpl.FileEntry, error) {
	abs, err := c.AbsPath(id)
	if err != nil {
		return "", nil, err
	}
	st, err := c.fs.Stat(ctx, abs)
	if err != nil {
		return "", nil, err
	}
	return abs, st, nil
}

func mimeFromName(name string) string {
	ext := path.Ext(name)
	if ext == "" {
		return ""
	}
	mt := mime.TypeByExtension(strings.ToLower(ext))
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = mt[:i]
	}
	return mt
}

var (
	_ explorer.DirectoryLister = (*CatalogService)(nil)
	_ explorer.Remover         = (*CatalogService)(nil)
)
