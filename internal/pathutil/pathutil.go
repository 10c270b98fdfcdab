// Package pathutil classifies and sanitizes caller-facing relative paths.
//
// A relative path never starts with "/" except the literal root "/". The
// resource type is decided by syntax alone: a trailing "/" marks a directory,
// anything else is a file. Classification never touches the object store.
package pathutil

import (
	"fmt"
	"path"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/koustreak/drivebox/internal/errs"
)

// ResourceType is the syntactic kind of a relative path.
type ResourceType string

const (
	File      ResourceType = "FILE"
	Directory ResourceType = "DIRECTORY"
)

// Root is the relative path of a user's namespace root.
const Root = "/"

// DefaultMaxNameLength bounds a single path component, in runes.
const DefaultMaxNameLength = 255

const reservedChars = `/\?*:"<>|`

// Validator applies the path rules. The zero value uses DefaultMaxNameLength.
type Validator struct {
	MaxNameLength int
}

// NewValidator returns a Validator with the given per-name limit.
// A non-positive limit selects DefaultMaxNameLength.
func NewValidator(maxNameLength int) *Validator {
	return &Validator{MaxNameLength: maxNameLength}
}

func (v *Validator) maxName() int {
	if v == nil || v.MaxNameLength <= 0 {
		return DefaultMaxNameLength
	}
	return v.MaxNameLength
}

// Classify returns the resource type of rawPath, or an ErrKindInvalidPath
// error describing the first rule it violates.
func (v *Validator) Classify(rawPath string) (ResourceType, error) {
	if strings.TrimSpace(rawPath) == "" {
		return "", invalid("path must not be blank")
	}
	if rawPath == Root {
		return Directory, nil
	}
	if strings.HasPrefix(rawPath, "/") || strings.HasPrefix(rawPath, `\`) {
		return "", invalid("path must be relative to the user root")
	}
	if hasParentRef(path.Clean(rawPath)) {
		return "", invalid("path must not contain '..'")
	}

	kind := File
	body := rawPath
	if strings.HasSuffix(rawPath, "/") {
		kind = Directory
		body = strings.TrimSuffix(rawPath, "/")
	}

	for _, name := range strings.Split(body, "/") {
		if err := v.ValidateName(name); err != nil {
			return "", err
		}
	}
	return kind, nil
}

// ValidateName checks a single path component.
func (v *Validator) ValidateName(name string) error {
	switch {
	case name == "":
		return invalid("path contains an empty component")
	case name == "." || name == "..":
		return invalid(fmt.Sprintf("%q is not a valid name", name))
	case utf8.RuneCountInString(name) > v.maxName():
		return invalid(fmt.Sprintf("name exceeds %d characters", v.maxName()))
	case strings.HasPrefix(name, "."):
		return invalid(fmt.Sprintf("hidden name %q is not allowed", name))
	case strings.HasSuffix(name, " ") || strings.HasSuffix(name, "."):
		return invalid(fmt.Sprintf("name %q must not end with a space or dot", name))
	}

	for _, r := range name {
		if unicode.IsControl(r) {
			return invalid("name contains a control character")
		}
		if strings.ContainsRune(reservedChars, r) {
			return invalid(fmt.Sprintf("name contains reserved character %q", r))
		}
	}
	return nil
}

// IsValid reports whether rawPath classifies without error.
func (v *Validator) IsValid(rawPath string) bool {
	_, err := v.Classify(rawPath)
	return err == nil
}

// SameType reports whether a and b are both valid and of the same kind.
func (v *Validator) SameType(a, b string) bool {
	ta, errA := v.Classify(a)
	tb, errB := v.Classify(b)
	return errA == nil && errB == nil && ta == tb
}

// ExtractName returns the last component of p, without the directory marker.
func ExtractName(p string) string {
	p = strings.TrimSuffix(p, "/")
	if i := strings.LastIndex(p, "/"); i >= 0 {
		return p[i+1:]
	}
	return p
}

// ExtractParentPath returns the directory containing p, with a trailing
// slash, or "" when p sits directly under the root.
func ExtractParentPath(p string) string {
	p = strings.TrimSuffix(p, "/")
	if i := strings.LastIndex(p, "/"); i >= 0 {
		return p[:i+1]
	}
	return ""
}

// IsRenameOnly reports whether from and to share a parent directory.
func IsRenameOnly(from, to string) bool {
	return ExtractParentPath(from) == ExtractParentPath(to)
}

// IsPathChangeOnly reports whether from and to share a leaf name.
func IsPathChangeOnly(from, to string) bool {
	return ExtractName(from) == ExtractName(to)
}

// IsWithin reports whether child lies inside the directory dir, or is dir
// itself. dir must carry its trailing slash.
func IsWithin(dir, child string) bool {
	if dir == Root {
		return true
	}
	return strings.HasPrefix(child, dir)
}

// IsRoot reports whether p names the namespace root.
func IsRoot(p string) bool {
	return p == Root
}

// Join appends a relative child path to a directory path. The root yields
// the child unchanged.
func Join(dir, child string) string {
	if dir == Root || dir == "" {
		return child
	}
	return strings.TrimSuffix(dir, "/") + "/" + child
}

// Ancestors lists every directory implied by p, from the top level down to
// p's parent. "a/b/c.txt" yields ["a/", "a/b/"].
func Ancestors(p string) []string {
	parent := ExtractParentPath(p)
	if parent == "" {
		return nil
	}
	parts := strings.Split(strings.TrimSuffix(parent, "/"), "/")
	out := make([]string, 0, len(parts))
	var cur strings.Builder
	for _, part := range parts {
		cur.WriteString(part)
		cur.WriteByte('/')
		out = append(out, cur.String())
	}
	return out
}

func hasParentRef(cleaned string) bool {
	for _, seg := range strings.Split(cleaned, "/") {
		if seg == ".." {
			return true
		}
	}
	return false
}

func invalid(msg string) *errs.Error {
	return errs.New(errs.ErrKindInvalidPath, "classify", msg)
}
