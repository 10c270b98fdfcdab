// Package errs provides the closed error taxonomy used across drivebox.
//
// Every layer that talks to a backend (object store, account database) maps
// its native faults into *errs.Error before returning them. The storage
// adapter then attaches the caller's user id, relative path and operation
// name, so handlers can report a failure without knowing which backend
// produced it.
//
// Usage:
//
//	// In a driver, map native errors:
//	return errs.Wrap(errs.ErrKindNotFound, "stat", "object missing", minioErr)
//
//	// At the adapter boundary, close the taxonomy:
//	return errs.Translate(err, "getInfo", userID, relPath)
//
//	// In a handler, check the kind:
//	if errs.IsNotFound(err) {
//	    http.Error(w, "not found", http.StatusNotFound)
//	}
package errs

import (
	"errors"
	"fmt"
	"strings"
)

// ErrKind categorises an error without exposing backend-specific codes.
type ErrKind int

const (
	ErrKindUnknown       ErrKind = iota
	ErrKindInvalidPath           // bad path syntax, type mismatch, traversal
	ErrKindNotFound              // no object, no folder marker, no account
	ErrKindAlreadyExists         // destination key is already present
	ErrKindStorageFailed         // any other backend fault
)

func (k ErrKind) String() string {
	switch k {
	case ErrKindInvalidPath:
		return "invalid_path"
	case ErrKindNotFound:
		return "not_found"
	case ErrKindAlreadyExists:
		return "already_exists"
	case ErrKindStorageFailed:
		return "storage_failed"
	default:
		return "unknown"
	}
}

// Error is the single error type returned by drivebox subsystems.
type Error struct {
	Kind    ErrKind
	Op      string // attempted operation, e.g. "createFolder"
	UserID  int64  // zero when the failure is not user scoped
	Path    string // caller-facing relative path, if any
	Message string
	Cause   error // original backend error, preserved for logging
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s]", e.Kind)
	if e.Op != "" {
		fmt.Fprintf(&b, " %s", e.Op)
	}
	if e.UserID != 0 || e.Path != "" {
		fmt.Fprintf(&b, " (user=%d path=%q)", e.UserID, e.Path)
	}
	if e.Message != "" {
		fmt.Fprintf(&b, ": %s", e.Message)
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
}

// Unwrap allows errors.Is / errors.As to traverse the cause chain.
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithTarget returns a copy of e scoped to the given user and path.
func (e *Error) WithTarget(userID int64, path string) *Error {
	c := *e
	c.UserID = userID
	c.Path = path
	return &c
}

// --- Constructors ---

// New creates an *Error with the given kind, operation and message and no cause.
func New(kind ErrKind, op, msg string) *Error {
	return &Error{Kind: kind, Op: op, Message: msg}
}

// Wrap creates an *Error with the given kind, operation, message and cause.
func Wrap(kind ErrKind, op, msg string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Message: msg, Cause: cause}
}

// InvalidPath is shorthand for a user-scoped ErrKindInvalidPath.
func InvalidPath(op string, userID int64, path, msg string) *Error {
	return &Error{Kind: ErrKindInvalidPath, Op: op, UserID: userID, Path: path, Message: msg}
}

// NotFound is shorthand for a user-scoped ErrKindNotFound.
func NotFound(op string, userID int64, path string) *Error {
	return &Error{Kind: ErrKindNotFound, Op: op, UserID: userID, Path: path, Message: "resource not found"}
}

// AlreadyExists is shorthand for a user-scoped ErrKindAlreadyExists.
func AlreadyExists(op string, userID int64, path string) *Error {
	return &Error{Kind: ErrKindAlreadyExists, Op: op, UserID: userID, Path: path, Message: "resource already exists"}
}

// Translate closes the taxonomy at a layer boundary. An *Error keeps its kind
// and gains the operation and target; any other non-nil error becomes
// ErrKindStorageFailed. It never turns a failure into success.
func Translate(err error, op string, userID int64, path string) error {
	if err == nil {
		return nil
	}

	var e *Error
	if errors.As(err, &e) {
		out := e.WithTarget(userID, path)
		if out.Kind == ErrKindUnknown {
			out.Kind = ErrKindStorageFailed
		}
		if out.Op == "" {
			out.Op = op
		} else if out.Op != op {
			out.Op = op + "/" + out.Op
		}
		return out
	}

	return &Error{
		Kind:    ErrKindStorageFailed,
		Op:      op,
		UserID:  userID,
		Path:    path,
		Message: "storage operation failed",
		Cause:   err,
	}
}

// --- Predicates ---

// IsInvalidPath reports whether err was caused by a rejected path.
func IsInvalidPath(err error) bool {
	return KindOf(err) == ErrKindInvalidPath
}

// IsNotFound reports whether err represents a missing resource.
func IsNotFound(err error) bool {
	return KindOf(err) == ErrKindNotFound
}

// IsAlreadyExists reports whether err represents a conflicting destination.
func IsAlreadyExists(err error) bool {
	return KindOf(err) == ErrKindAlreadyExists
}

// IsStorageFailed reports whether err is a backend failure. Errors outside
// the taxonomy count as storage failures.
func IsStorageFailed(err error) bool {
	return KindOf(err) == ErrKindStorageFailed
}

// KindOf extracts the ErrKind from any error in the chain. Non-nil errors
// that carry no kind are reported as ErrKindStorageFailed.
func KindOf(err error) ErrKind {
	if err == nil {
		return ErrKindUnknown
	}
	var e *Error
	if errors.As(err, &e) && e.Kind != ErrKindUnknown {
		return e.Kind
	}
	return ErrKindStorageFailed
}
