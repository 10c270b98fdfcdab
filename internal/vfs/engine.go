// Package vfs emulates a per-user folder tree on top of a flat object store.
//
// A directory exists when its zero-length marker object (a key ending in
// "/") exists. Every operation classifies its paths before touching the
// store, so a malformed path fails with ErrKindInvalidPath and no side
// effects. Multi-key operations (recursive delete, directory move) are
// sequences of single-key calls, not transactions.
//
// Usage:
//
//	eng := vfs.New(storage.New(store, "user-files", log, m), vfs.Config{}, log, m)
//	info, err := eng.CreateDirectory(ctx, userID, "docs/")
//	entries, err := eng.ListDirectory(ctx, userID, "/")
package vfs

import (
	"context"
	"strings"
	"time"

	"github.com/koustreak/drivebox/internal/errs"
	"github.com/koustreak/drivebox/internal/logger"
	"github.com/koustreak/drivebox/internal/metrics"
	"github.com/koustreak/drivebox/internal/pathutil"
	"github.com/koustreak/drivebox/internal/storage"
)

// PresignTTL is the lifetime of URLs from PresignedDownloadURL.
const PresignTTL = time.Hour

// ResourceInfo describes one file or directory. It is derived from a listing
// or stat result and never stored.
type ResourceInfo struct {
	Path    string                `json:"path"` // parent directory, "/" at top level
	Name    string                `json:"name"` // leaf name, no trailing slash
	Size    *int64                `json:"size,omitempty"`
	Type    pathutil.ResourceType `json:"type"`
	OwnerID int64                 `json:"ownerId"`
}

// Config tunes an Engine. The zero value is usable.
type Config struct {
	// MaxNameLength bounds each path component. <= 0 selects
	// pathutil.DefaultMaxNameLength.
	MaxNameLength int

	// CopyConcurrency bounds parallel copies during a directory move.
	// <= 1 copies sequentially.
	CopyConcurrency int
}

// Engine implements the folder operations.
// It holds no per-path state and is safe for concurrent use.
type Engine struct {
	store           *storage.Adapter
	paths           *pathutil.Validator
	copyConcurrency int
	log             *logger.Logger
	metrics         *metrics.Metrics
}

// New returns an Engine over store. log and m may be nil.
func New(store *storage.Adapter, cfg Config, log *logger.Logger, m *metrics.Metrics) *Engine {
	if log == nil {
		log = logger.Nop()
	}
	conc := cfg.CopyConcurrency
	if conc < 1 {
		conc = 1
	}
	return &Engine{
		store:           store,
		paths:           pathutil.NewValidator(cfg.MaxNameLength),
		copyConcurrency: conc,
		log:             log.Component("vfs"),
		metrics:         m,
	}
}

// Validator exposes the path rules the engine applies.
func (e *Engine) Validator() *pathutil.Validator {
	return e.paths
}

// --- read operations ---

// ListDirectory returns the direct children of the directory p. The
// directory's own marker is not part of the result.
func (e *Engine) ListDirectory(ctx context.Context, userID int64, p string) ([]ResourceInfo, error) {
	const op = "listDirectory"
	if err := e.expect(op, userID, p, pathutil.Directory); err != nil {
		return nil, err
	}
	if !pathutil.IsRoot(p) {
		if err := e.mustExist(ctx, op, userID, p); err != nil {
			return nil, err
		}
	}

	entries, err := e.store.List(ctx, userID, p, false)
	if err != nil {
		return nil, err
	}

	out := make([]ResourceInfo, 0, len(entries))
	for _, en := range entries {
		if en.Path == p {
			continue
		}
		out = append(out, newInfo(userID, en))
	}
	return out, nil
}

// GetResourceInfo returns metadata for p. The root is answered without a
// store call.
func (e *Engine) GetResourceInfo(ctx context.Context, userID int64, p string) (*ResourceInfo, error) {
	if _, err := e.classify("getResourceInfo", userID, p); err != nil {
		return nil, err
	}
	if pathutil.IsRoot(p) {
		info := rootInfo(userID)
		return &info, nil
	}

	en, err := e.store.Stat(ctx, userID, p)
	if err != nil {
		return nil, err
	}
	info := newInfo(userID, *en)
	return &info, nil
}

// Exists reports whether p is stored. Only a missing object reads as false;
// other store faults are returned as ErrKindStorageFailed.
func (e *Engine) Exists(ctx context.Context, userID int64, p string) (bool, error) {
	if _, err := e.classify("exists", userID, p); err != nil {
		return false, err
	}
	if pathutil.IsRoot(p) {
		return true, nil
	}
	return e.store.Exists(ctx, userID, p)
}

// SearchResources returns every file and directory whose leaf name contains
// query, ignoring case, in the store's listing order.
func (e *Engine) SearchResources(ctx context.Context, userID int64, query string) ([]ResourceInfo, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errs.InvalidPath("searchResources", userID, "", "search query must not be blank")
	}
	needle := strings.ToLower(query)

	entries, err := e.store.List(ctx, userID, pathutil.Root, true)
	if err != nil {
		return nil, err
	}

	out := make([]ResourceInfo, 0)
	for _, en := range entries {
		if pathutil.IsRoot(en.Path) {
			continue
		}
		if strings.Contains(strings.ToLower(pathutil.ExtractName(en.Path)), needle) {
			out = append(out, newInfo(userID, en))
		}
	}
	return out, nil
}

// PresignedDownloadURL returns a GET URL for the file p, valid for
// PresignTTL.
func (e *Engine) PresignedDownloadURL(ctx context.Context, userID int64, p string) (string, error) {
	const op = "presignedDownloadUrl"
	if err := e.expect(op, userID, p, pathutil.File); err != nil {
		return "", err
	}
	if err := e.mustExist(ctx, op, userID, p); err != nil {
		return "", err
	}
	return e.store.Presign(ctx, userID, p, PresignTTL)
}

// --- helpers ---

// classify runs the path rules and scopes any failure to the caller.
func (e *Engine) classify(op string, userID int64, p string) (pathutil.ResourceType, error) {
	t, err := e.paths.Classify(p)
	if err != nil {
		return "", errs.Translate(err, op, userID, p)
	}
	return t, nil
}

// expect classifies p and requires it to be of kind want.
func (e *Engine) expect(op string, userID int64, p string, want pathutil.ResourceType) error {
	got, err := e.classify(op, userID, p)
	if err != nil {
		return err
	}
	if got != want {
		return errs.InvalidPath(op, userID, p, "path must name a "+strings.ToLower(string(want)))
	}
	return nil
}

// mustExist probes p and returns ErrKindNotFound scoped to op when absent.
func (e *Engine) mustExist(ctx context.Context, op string, userID int64, p string) error {
	ok, err := e.store.Exists(ctx, userID, p)
	if err != nil {
		return err
	}
	if !ok {
		return errs.NotFound(op, userID, p)
	}
	return nil
}

const rootName = "root"

func rootInfo(userID int64) ResourceInfo {
	return ResourceInfo{Path: pathutil.Root, Name: rootName, Type: pathutil.Directory, OwnerID: userID}
}

// newInfo derives a ResourceInfo from a stored entry.
func newInfo(userID int64, en storage.Entry) ResourceInfo {
	if pathutil.IsRoot(en.Path) {
		return rootInfo(userID)
	}

	parent := pathutil.ExtractParentPath(en.Path)
	if parent == "" {
		parent = pathutil.Root
	}
	info := ResourceInfo{
		Path:    parent,
		Name:    pathutil.ExtractName(en.Path),
		Type:    pathutil.File,
		OwnerID: userID,
	}
	if en.IsDir {
		info.Type = pathutil.Directory
		return info
	}
	size := en.Size
	info.Size = &size
	return info
}
