package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/choraleia/explorer/pkg/explorer"
	fsimpl "github.com/choraleia/explorer/pkg/service/fs"
)

// newTestCatalog roots a catalog at a temp dir holding:
//
//	photos/a.png
//	photos/2024/b.png
//	notes.md
//	.secret
func newTestCatalog(t *testing.T) (*CatalogService, string) {
	t.Helper()
	root := t.TempDir()
	mustMkdir(t, filepath.Join(root, "photos", "2024"))
	mustWrite(t, filepath.Join(root, "photos", "a.png"), "aaaa")
	mustWrite(t, filepath.Join(root, "photos", "2024", "b.png"), "bb")
	mustWrite(t, filepath.Join(root, "notes.md"), "# notes")
	mustWrite(t, filepath.Join(root, ".secret"), "x")

	c, err := NewCatalogService(context.Background(), fsimpl.NewLocalFileSystem(), root)
	if err != nil {
		t.Fatalf("NewCatalogService: %v", err)
	}
	return c, root
}

func mustMkdir(t *testing.T, p string) {
	t.Helper()
	if err := os.MkdirAll(p, 0o700); err != nil {
		t.Fatal(err)
	}
}

func mustWrite(t *testing.T, p, content string) {
	t.Helper()
	if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
}

func exists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}

func TestCleanID(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "", want: ""},
		{in: "photos", want: "photos"},
		{in: "photos/2024", want: "photos/2024"},
		{in: "  photos  ", want: "photos"},
		{in: "/photos", wantErr: true},
		{in: "photos/", wantErr: true},
		{in: "photos/../etc", wantErr: true},
		{in: "..", wantErr: true},
		{in: "a//b", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := CleanID(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidItemID) {
					t.Fatalf("CleanID(%q) err = %v, want ErrInvalidItemID", tt.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("CleanID(%q): %v", tt.in, err)
			}
			if got != tt.want {
				t.Fatalf("CleanID(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestParentAndChildID(t *testing.T) {
	if got := ParentID("photos/2024"); got != "photos" {
		t.Fatalf("ParentID = %q", got)
	}
	if got := ParentID("photos"); got != "" {
		t.Fatalf("ParentID of top level = %q", got)
	}
	if got := ChildID("", "photos"); got != "photos" {
		t.Fatalf("ChildID at root = %q", got)
	}
	if got := ChildID("photos", "2024"); got != "photos/2024" {
		t.Fatalf("ChildID = %q", got)
	}
}

func TestCatalogService_ListChildren(t *testing.T) {
	c, _ := newTestCatalog(t)
	ctx := context.Background()

	root, err := c.ListChildren(ctx, "")
	if err != nil {
		t.Fatalf("ListChildren(root): %v", err)
	}
	if len(root.Directories) != 1 || root.Directories[0].ID != "photos" || root.Directories[0].ParentID != "" {
		t.Fatalf("root directories = %+v", root.Directories)
	}
	if len(root.Files) != 1 || root.Files[0].ID != "notes.md" {
		t.Fatalf("root files = %+v, hidden files must be skipped", root.Files)
	}

	photos, err := c.ListChildren(ctx, "photos")
	if err != nil {
		t.Fatalf("ListChildren(photos): %v", err)
	}
	if len(photos.Files) != 1 {
		t.Fatalf("photos files = %+v", photos.Files)
	}
	f := photos.Files[0]
	if f.ID != "photos/a.png" || f.ParentID != "photos" || f.Size != 4 || f.Mimetype != "image/png" {
		t.Fatalf("file = %+v", f)
	}
	if len(photos.Directories) != 1 || photos.Directories[0].ID != "photos/2024" {
		t.Fatalf("photos directories = %+v", photos.Directories)
	}

	if _, err := c.ListChildren(ctx, "../outside"); !errors.Is(err, ErrInvalidItemID) {
		t.Fatalf("escaping ID err = %v", err)
	}
}

func TestCatalogService_HiddenFiles(t *testing.T) {
	_, root := newTestCatalog(t)
	c, err := NewCatalogService(context.Background(), fsimpl.NewLocalFileSystem(), root, WithHiddenFiles(true))
	if err != nil {
		t.Fatal(err)
	}
	l, err := c.ListChildren(context.Background(), "")
	if err != nil {
		t.Fatal(err)
	}
	if len(l.Files) != 2 {
		t.Fatalf("files = %+v, want hidden file listed", l.Files)
	}
}

func TestCatalogService_RootMustBeDirectory(t *testing.T) {
	_, root := newTestCatalog(t)
	_, err := NewCatalogService(context.Background(), fsimpl.NewLocalFileSystem(), filepath.Join(root, "notes.md"))
	if !errors.Is(err, ErrNotADirectory) {
		t.Fatalf("err = %v, want ErrNotADirectory", err)
	}
}

func TestCatalogService_Delete(t *testing.T) {
	c, root := newTestCatalog(t)
	ctx := context.Background()

	if err := c.DeleteFile(ctx, "photos"); !errors.Is(err, ErrNotAFile) {
		t.Fatalf("DeleteFile(dir) err = %v", err)
	}
	if err := c.DeleteDirectory(ctx, "notes.md"); !errors.Is(err, ErrNotADirectory) {
		t.Fatalf("DeleteDirectory(file) err = %v", err)
	}
	if err := c.DeleteDirectory(ctx, ""); !errors.Is(err, ErrRootDirectory) {
		t.Fatalf("DeleteDirectory(root) err = %v", err)
	}
	if err := c.DeleteDirectory(ctx, "photos"); err == nil {
		t.Fatal("non-empty directory was deleted")
	}

	if err := c.DeleteFile(ctx, "photos/2024/b.png"); err != nil {
		t.Fatalf("DeleteFile: %v", err)
	}
	if err := c.DeleteDirectory(ctx, "photos/2024"); err != nil {
		t.Fatalf("DeleteDirectory: %v", err)
	}
	if exists(filepath.Join(root, "photos", "2024")) {
		t.Fatal("directory still exists")
	}
}

func TestCatalogService_CreateFolder(t *testing.T) {
	c, root := newTestCatalog(t)
	ctx := context.Background()

	d, err := c.CreateFolder(ctx, "photos", " 2025 ")
	if err != nil {
		t.Fatalf("CreateFolder: %v", err)
	}
	if d.ID != "photos/2025" || d.Name != "2025" || d.ParentID != "photos" {
		t.Fatalf("created = %+v", d)
	}
	if !exists(filepath.Join(root, "photos", "2025")) {
		t.Fatal("folder not created")
	}

	if _, err := c.CreateFolder(ctx, "photos", "2025"); err == nil {
		t.Fatal("creating an existing folder should fail")
	}
	for _, name := range []string{"", "..", "a/b", `a\b`} {
		if _, err := c.CreateFolder(ctx, "", name); !errors.Is(err, ErrInvalidName) {
			t.Fatalf("CreateFolder(%q) err = %v", name, err)
		}
	}
	if _, err := c.CreateFolder(ctx, "missing", "x"); err == nil {
		t.Fatal("creating inside a missing parent should fail")
	}
}

func TestCatalogService_Move(t *testing.T) {
	c, root := newTestCatalog(t)
	ctx := context.Background()

	newID, err := c.Move(ctx, "notes.md", "photos")
	if err != nil {
		t.Fatalf("Move file: %v", err)
	}
	if newID != "photos/notes.md" || !exists(filepath.Join(root, "photos", "notes.md")) {
		t.Fatalf("moved to %q", newID)
	}

	if _, err := c.Move(ctx, "photos", "photos/2024"); err == nil {
		t.Fatal("moving a directory into its own subtree should fail")
	}
	if _, err := c.Move(ctx, "", "photos"); !errors.Is(err, ErrRootDirectory) {
		t.Fatalf("moving the root err = %v", err)
	}

	same, err := c.Move(ctx, "photos/a.png", "photos")
	if err != nil || same != "photos/a.png" {
		t.Fatalf("move into own parent = %q, %v", same, err)
	}

	mustWrite(t, filepath.Join(root, "a.png"), "other")
	if _, err := c.Move(ctx, "photos/a.png", ""); err == nil {
		t.Fatal("move must not overwrite an existing item")
	}
}

func TestCatalogService_DeletionPlanner(t *testing.T) {
	c, root := newTestCatalog(t)
	ctx := context.Background()
	planner := explorer.NewDeletionPlanner(c, c)

	dir, err := c.Directory(ctx, "photos")
	if err != nil {
		t.Fatal(err)
	}
	plan, err := planner.Discover(ctx, dir)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if plan.FileCount() != 2 || plan.DirectoryCount() != 2 {
		t.Fatalf("plan = %d files, %d directories", plan.FileCount(), plan.DirectoryCount())
	}
	if err := planner.Execute(ctx, plan, nil); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if exists(filepath.Join(root, "photos")) {
		t.Fatal("photos still exists")
	}
	if !exists(filepath.Join(root, "notes.md")) {
		t.Fatal("sibling file was deleted")
	}
}
