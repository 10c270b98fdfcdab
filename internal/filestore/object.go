package filestore

import (
	"io"
	"strings"
	"time"
)

// ObjectInfo describes a single object stored in a bucket.
type ObjectInfo struct {
	// Key is the full object key within the bucket (e.g. "user-1-files/a.txt").
	Key string

	// Size is the byte size of the object. -1 if unknown.
	Size int64

	// ContentType is the MIME type (e.g. "image/jpeg").
	ContentType string

	// ETag is the object's entity tag, as returned by the backend.
	ETag string

	// LastModified is when the object was last written.
	// Zero for common-prefix entries.
	LastModified time.Time

	// IsDir is true when the key ends in "/". It covers both zero-length
	// folder markers and common prefixes from a non-recursive listing.
	IsDir bool
}

// Object is a streaming handle to an object's content.
// The caller MUST call Close() after reading to avoid resource leaks.
type Object interface {
	io.ReadCloser

	// Info returns the metadata for this object.
	Info() *ObjectInfo
}

// ListOptions controls how ListObjects filters results.
type ListOptions struct {
	// Prefix restricts results to objects whose key starts with this string.
	Prefix string

	// Recursive, when true, lists every object under the prefix. When false,
	// deeper keys are grouped into "/"-delimited common prefixes.
	Recursive bool

	// Limit caps the number of results returned. 0 means no cap.
	Limit int
}

// PutOptions carries optional object metadata for PutObject.
type PutOptions struct {
	// ContentType is stored with the object. Empty lets the backend decide.
	ContentType string
}

// IsDirKey reports whether key uses the trailing-slash directory convention.
func IsDirKey(key string) bool {
	return strings.HasSuffix(key, "/")
}

// NewReadCloserObject adapts a ReadCloser and its metadata into an Object.
func NewReadCloserObject(rc io.ReadCloser, info *ObjectInfo) Object {
	return &object{ReadCloser: rc, info: info}
}

// object pairs a content stream with its metadata.
type object struct {
	io.ReadCloser
	info *ObjectInfo
}

func (o *object) Info() *ObjectInfo {
	return o.info
}
