package explorer

import (
	"fmt"
	"sort"
	"strings"
)

// Modifiers are the keyboard modifiers held during a click.
type Modifiers struct {
	Shift bool `json:"shift"`
	Meta  bool `json:"meta"`
}

// Key is a keyboard navigation key.
type Key string

const (
	KeyArrowUp   Key = "ArrowUp"
	KeyArrowDown Key = "ArrowDown"
)

func ParseKey(s string) (Key, error) {
	switch Key(s) {
	case KeyArrowUp, KeyArrowDown:
		return Key(s), nil
	default:
		return "", fmt.Errorf("unsupported navigation key %q", s)
	}
}

// MarkFile computes the next marked set after x was clicked.
//
// listing must be the displayed listing (filtered and sorted). The returned
// slice is always a fresh copy.
func MarkFile(listing, marked []FileItem, x FileItem, mods Modifiers) []FileItem {
	if containsFile(marked, x.ID) {
		if mods.Meta {
			return removeFile(marked, x.ID)
		}
		return []FileItem{x}
	}

	switch {
	case mods.Shift:
		return extendRange(listing, marked, x)
	case mods.Meta:
		return append(cloneFiles(marked), x)
	default:
		return []FileItem{x}
	}
}

// extendRange marks the span between the nearest marked index and x. The
// anchor end is excluded and the moving end included; items are appended in
// ascending listing order. Ties on distance go to the first marked item.
func extendRange(listing, marked []FileItem, x FileItem) []FileItem {
	target := indexOfFile(listing, x.ID)
	if target < 0 {
		return []FileItem{x}
	}

	nearest, best := -1, 0
	for _, m := range marked {
		i := indexOfFile(listing, m.ID)
		if i < 0 {
			continue
		}
		d := i - target
		if d < 0 {
			d = -d
		}
		if nearest < 0 || d < best {
			nearest, best = i, d
		}
	}
	if nearest < 0 {
		return []FileItem{x}
	}

	lo, hi := nearest+1, target
	if target < nearest {
		lo, hi = target, nearest-1
	}

	out := cloneFiles(marked)
	for i := lo; i <= hi; i++ {
		if !containsFile(out, listing[i].ID) {
			out = append(out, listing[i])
		}
	}
	return out
}

// NavigateMarked moves or grows the selection with the arrow keys. It works
// on the envelope of the marked items inside listing. At the listing
// boundary, or with nothing marked, the marked set is returned unchanged.
func NavigateMarked(listing, marked []FileItem, key Key, shift bool) []FileItem {
	lowest, highest := -1, -1
	for i, f := range listing {
		if containsFile(marked, f.ID) {
			if lowest < 0 {
				lowest = i
			}
			highest = i
		}
	}
	if lowest < 0 {
		return cloneFiles(marked)
	}

	var next FileItem
	switch key {
	case KeyArrowUp:
		if lowest == 0 {
			return cloneFiles(marked)
		}
		next = listing[lowest-1]
	case KeyArrowDown:
		if highest == len(listing)-1 {
			return cloneFiles(marked)
		}
		next = listing[highest+1]
	default:
		return cloneFiles(marked)
	}

	if shift {
		return append(cloneFiles(marked), next)
	}
	return []FileItem{next}
}

// ToggleSelected adds x to selected, or removes it if present.
func ToggleSelected(selected []FileItem, x FileItem) []FileItem {
	if containsFile(selected, x.ID) {
		return removeFile(selected, x.ID)
	}
	return append(cloneFiles(selected), x)
}

// ToggleAllSelected selects every file of listing, or clears them when all of
// them are already selected. Selected files outside listing are kept.
func ToggleAllSelected(listing, selected []FileItem) []FileItem {
	all := len(listing) > 0
	for _, f := range listing {
		if !containsFile(selected, f.ID) {
			all = false
			break
		}
	}

	if all {
		out := make([]FileItem, 0, len(selected))
		for _, f := range selected {
			if !containsFile(listing, f.ID) {
				out = append(out, f)
			}
		}
		return out
	}

	out := cloneFiles(selected)
	for _, f := range listing {
		if !containsFile(out, f.ID) {
			out = append(out, f)
		}
	}
	return out
}

// SortFiles orders files by filename, case-insensitively.
func SortFiles(files []FileItem) []FileItem {
	out := cloneFiles(files)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := strings.ToLower(out[i].Filename), strings.ToLower(out[j].Filename)
		if a != b {
			return a < b
		}
		return out[i].Filename < out[j].Filename
	})
	return out
}

// SortDirectories orders directories by name, case-insensitively.
func SortDirectories(dirs []DirectoryItem) []DirectoryItem {
	out := cloneDirectories(dirs)
	sort.SliceStable(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out
}

// FilterFiles keeps files whose name contains text, ignoring case.
func FilterFiles(files []FileItem, text string) []FileItem {
	needle := strings.ToLower(strings.TrimSpace(text))
	if needle == "" {
		return cloneFiles(files)
	}
	out := make([]FileItem, 0, len(files))
	for _, f := range files {
		if strings.Contains(strings.ToLower(f.Filename), needle) {
			out = append(out, f)
		}
	}
	return out
}

func FilterDirectories(dirs []DirectoryItem, text string) []DirectoryItem {
	needle := strings.ToLower(strings.TrimSpace(text))
	if needle == "" {
		return cloneDirectories(dirs)
	}
	out := make([]DirectoryItem, 0, len(dirs))
	for _, d := range dirs {
		if strings.Contains(strings.ToLower(d.Name), needle) {
			out = append(out, d)
		}
	}
	return out
}

// VisibleFiles is the listing the selection functions operate on.
func VisibleFiles(files []FileItem, searchText string) []FileItem {
	return SortFiles(FilterFiles(files, searchText))
}

// VisibleListing filters and sorts both halves of a directory listing.
func VisibleListing(l Listing, searchText string) Listing {
	return Listing{
		Files:       VisibleFiles(l.Files, searchText),
		Directories: SortDirectories(FilterDirectories(l.Directories, searchText)),
	}
}

func removeFile(files []FileItem, id string) []FileItem {
	out := make([]FileItem, 0, len(files))
	for _, f := range files {
		if f.ID != id {
			out = append(out, f)
		}
	}
	return out
}
