package explorer

import (
	"errors"
	"time"
)

// ErrNotInListing reports an item that is not part of the current directory.
var ErrNotInListing = errors.New("item is not in the current directory")

// FileItem is a file as reported by the data layer. Items are compared by ID.
type FileItem struct {
	ID       string    `json:"id"`
	Filename string    `json:"filename"`
	ParentID string    `json:"parent_id"`
	Size     int64     `json:"size"`
	Mimetype string    `json:"mimetype,omitempty"`
	ModTime  time.Time `json:"mod_time"`
}

// DirectoryItem is a directory as reported by the data layer.
type DirectoryItem struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	ParentID string `json:"parent_id"`
}

// Ref converts the directory into a breadcrumb element.
func (d DirectoryItem) Ref() DirectoryRef {
	return DirectoryRef{ID: d.ID, Name: d.Name}
}

// Listing is the content of one directory.
type Listing struct {
	Files       []FileItem      `json:"files"`
	Directories []DirectoryItem `json:"directories"`
}

func indexOfFile(files []FileItem, id string) int {
	for i, f := range files {
		if f.ID == id {
			return i
		}
	}
	return -1
}

func containsFile(files []FileItem, id string) bool {
	return indexOfFile(files, id) >= 0
}

func cloneFiles(files []FileItem) []FileItem {
	out := make([]FileItem, len(files))
	copy(out, files)
	return out
}

func cloneDirectories(dirs []DirectoryItem) []DirectoryItem {
	out := make([]DirectoryItem, len(dirs))
	copy(out, dirs)
	return out
}
