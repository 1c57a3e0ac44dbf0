// Package explorer holds the file explorer engine: navigation state, the
// selection algorithm, the upload queue and the directory deletion planner.
//
// The package owns no I/O. Directory listings, deletions and file transfers
// are injected through the DirectoryLister, Remover and Transferer
// interfaces.
package explorer

import (
	"encoding/json"
	"errors"
	"strings"
)

var ErrInvalidPath = errors.New("invalid path: first element must be the root")

// DirectoryRef points at one directory. An empty ID denotes the root.
type DirectoryRef struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// Root is the sentinel at the bottom of every PathStack.
var Root = DirectoryRef{}

func (r DirectoryRef) IsRoot() bool { return r.ID == "" }

type directoryRefJSON struct {
	ID   *string `json:"id"`
	Name string  `json:"name,omitempty"`
}

// MarshalJSON encodes the root as {"id": null}.
func (r DirectoryRef) MarshalJSON() ([]byte, error) {
	out := directoryRefJSON{Name: r.Name}
	if !r.IsRoot() {
		id := r.ID
		out.ID = &id
	}
	return json.Marshal(out)
}

func (r *DirectoryRef) UnmarshalJSON(b []byte) error {
	var in directoryRefJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	r.Name = in.Name
	r.ID = ""
	if in.ID != nil {
		r.ID = *in.ID
	}
	return nil
}

// PathStack is the breadcrumb of the current directory.
type PathStack []DirectoryRef

func NewPathStack() PathStack { return PathStack{Root} }

// Current returns the directory the explorer is showing.
func (p PathStack) Current() DirectoryRef {
	if len(p) == 0 {
		return Root
	}
	return p[len(p)-1]
}

// Push returns a new stack with dir appended.
func (p PathStack) Push(dir DirectoryRef) PathStack {
	out := make(PathStack, len(p), len(p)+1)
	copy(out, p)
	return append(out, dir)
}

// Parent drops the last element; the root is never popped.
func (p PathStack) Parent() PathStack {
	if len(p) <= 1 {
		return NewPathStack()
	}
	out := make(PathStack, len(p)-1)
	copy(out, p[:len(p)-1])
	return out
}

// Truncate keeps elements [0, i]. Out of range indexes are clamped.
func (p PathStack) Truncate(i int) PathStack {
	if i < 0 {
		i = 0
	}
	if i >= len(p) {
		i = len(p) - 1
	}
	if i < 0 {
		return NewPathStack()
	}
	out := make(PathStack, i+1)
	copy(out, p[:i+1])
	return out
}

func (p PathStack) Validate() error {
	if len(p) == 0 || !p[0].IsRoot() {
		return ErrInvalidPath
	}
	for _, ref := range p[1:] {
		if ref.IsRoot() {
			return ErrInvalidPath
		}
	}
	return nil
}

// String renders the breadcrumb as "/a/b".
func (p PathStack) String() string {
	if len(p) <= 1 {
		return "/"
	}
	names := make([]string, 0, len(p)-1)
	for _, ref := range p[1:] {
		names = append(names, ref.Name)
	}
	return "/" + strings.Join(names, "/")
}

func (p PathStack) clone() PathStack {
	if len(p) == 0 {
		return NewPathStack()
	}
	out := make(PathStack, len(p))
	copy(out, p)
	return out
}
