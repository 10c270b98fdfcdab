// Package namespace maps a user id and a caller-facing relative path to a
// fully-qualified object key, and back.
//
// Every user owns the key prefix "user-<id>-files/". All keys produced here
// begin with that prefix; keys outside it are rejected on the way back.
package namespace

import (
	"fmt"
	"strings"

	"github.com/koustreak/drivebox/internal/errs"
)

// Namespace is one user's key prefix.
type Namespace struct {
	userID int64
	root   string
}

// For returns the namespace owned by userID.
func For(userID int64) Namespace {
	return Namespace{userID: userID, root: fmt.Sprintf("user-%d-files/", userID)}
}

// UserID returns the owner of the namespace.
func (n Namespace) UserID() int64 { return n.userID }

// Root returns the bare namespace-root key, with its trailing slash.
func (n Namespace) Root() string { return n.root }

// Key converts a relative path to a full key. "", "/" and a leading "/" are
// accepted and map onto the root.
func (n Namespace) Key(rel string) string {
	if rel == "" || rel == "/" {
		return n.root
	}
	return n.root + strings.TrimPrefix(rel, "/")
}

// Contains reports whether key lies inside the namespace.
func (n Namespace) Contains(key string) bool {
	return strings.HasPrefix(key, n.root)
}

// Rel converts a full key back to a relative path. The root key maps to "/".
func (n Namespace) Rel(key string) (string, error) {
	if !n.Contains(key) {
		return "", errs.InvalidPath("toRelativePath", n.userID, key, "key is outside the user namespace")
	}
	rel := strings.TrimPrefix(key, n.root)
	if rel == "" {
		return "/", nil
	}
	return rel, nil
}

// ToFullKey is For(userID).Key(rel).
func ToFullKey(userID int64, rel string) string {
	return For(userID).Key(rel)
}

// ToRelativePath is For(userID).Rel(key).
func ToRelativePath(userID int64, key string) (string, error) {
	return For(userID).Rel(key)
}
