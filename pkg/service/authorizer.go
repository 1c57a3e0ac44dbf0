package service

import (
	"errors"
	"strings"

	"github.com/choraleia/explorer/pkg/explorer"
)

var ErrForbidden = errors.New("directory is read-only")

// Authorizer decides whether user may change the content of dir.
type Authorizer interface {
	CanEditDirectory(dir explorer.DirectoryRef, user string) bool
}

// AuthorizerFunc adapts a function to Authorizer.
type AuthorizerFunc func(dir explorer.DirectoryRef, user string) bool

func (f AuthorizerFunc) CanEditDirectory(dir explorer.DirectoryRef, user string) bool {
	return f(dir, user)
}

// PolicyAuthorizer marks configured subtrees read-only for every user.
// An empty entry (or "/") protects the whole tree.
type PolicyAuthorizer struct {
	readOnly []string
}

func NewPolicyAuthorizer(readOnly []string) *PolicyAuthorizer {
	out := make([]string, 0, len(readOnly))
	for _, p := range readOnly {
		p = strings.Trim(strings.TrimSpace(p), "/")
		out = append(out, p)
	}
	return &PolicyAuthorizer{readOnly: out}
}

func (a *PolicyAuthorizer) CanEditDirectory(dir explorer.DirectoryRef, user string) bool {
	_ = user
	for _, p := range a.readOnly {
		if p == "" || dir.ID == p || strings.HasPrefix(dir.ID, p+"/") {
			return false
		}
	}
	return true
}

var _ Authorizer = (*PolicyAuthorizer)(nil)
