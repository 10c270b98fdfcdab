// Package storage is the user-scoped seam between the filesystem engine and a
// raw filestore.Store.
//
// Every method takes a user id and a relative path, maps the path into the
// user's namespace, forwards the call, and closes the error taxonomy with
// errs.Translate: a missing object is ErrKindNotFound, a conflicting one is
// ErrKindAlreadyExists, and anything else is ErrKindStorageFailed. No fault
// is turned into success.
package storage

import (
	"bytes"
	"context"
	"io"
	"time"

	"github.com/koustreak/drivebox/internal/errs"
	"github.com/koustreak/drivebox/internal/filestore"
	"github.com/koustreak/drivebox/internal/logger"
	"github.com/koustreak/drivebox/internal/metrics"
	"github.com/koustreak/drivebox/internal/namespace"
)

// Entry is one object as seen from inside a user namespace.
type Entry struct {
	Path         string // relative path; "/" for the namespace root marker
	Key          string // full object key
	Size         int64
	IsDir        bool
	ContentType  string
	LastModified time.Time
}

// Adapter forwards user-scoped calls to a filestore.Store.
// It is safe for concurrent use if the Store is.
type Adapter struct {
	store   filestore.Store
	bucket  string
	log     *logger.Logger
	metrics *metrics.Metrics
}

// New returns an Adapter over store. log and m may be nil.
func New(store filestore.Store, bucket string, log *logger.Logger, m *metrics.Metrics) *Adapter {
	if log == nil {
		log = logger.Nop()
	}
	return &Adapter{
		store:   store,
		bucket:  bucket,
		log:     log.Component("storage"),
		metrics: m,
	}
}

// Ping checks the backing store.
func (a *Adapter) Ping(ctx context.Context) error {
	return a.call("ping", 0, "", func() error {
		return a.store.Ping(ctx)
	})
}

// --- metadata ---

// Stat returns metadata for rel. A missing object is ErrKindNotFound.
func (a *Adapter) Stat(ctx context.Context, userID int64, rel string) (*Entry, error) {
	ns := namespace.For(userID)
	var info *filestore.ObjectInfo
	err := a.call("getInfo", userID, rel, func() (err error) {
		info, err = a.store.StatObject(ctx, a.bucket, ns.Key(rel))
		return err
	})
	if err != nil {
		return nil, err
	}
	return a.entry(ns, *info)
}

// Exists reports whether an object is stored at rel. Only a not-found fault
// maps to false; every other fault is returned.
func (a *Adapter) Exists(ctx context.Context, userID int64, rel string) (bool, error) {
	ns := namespace.For(userID)
	err := a.call("exists", userID, rel, func() error {
		_, err := a.store.StatObject(ctx, a.bucket, ns.Key(rel))
		return err
	})
	switch {
	case err == nil:
		return true, nil
	case errs.IsNotFound(err):
		return false, nil
	default:
		return false, err
	}
}

// List returns the objects under the directory rel. A non-recursive listing
// reports deeper directories as IsDir entries. The directory's own marker
// is included when it exists; callers filter it.
func (a *Adapter) List(ctx context.Context, userID int64, rel string, recursive bool) ([]Entry, error) {
	ns := namespace.For(userID)
	var infos []filestore.ObjectInfo
	err := a.call("listObjects", userID, rel, func() (err error) {
		infos, err = a.store.ListObjects(ctx, a.bucket, filestore.ListOptions{
			Prefix:    ns.Key(rel),
			Recursive: recursive,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(infos))
	for _, info := range infos {
		e, err := a.entry(ns, info)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, nil
}

// Presign returns a GET URL for rel valid for ttl.
func (a *Adapter) Presign(ctx context.Context, userID int64, rel string, ttl time.Duration) (string, error) {
	ns := namespace.For(userID)
	var u string
	err := a.call("presign", userID, rel, func() (err error) {
		u, err = a.store.PresignGetURL(ctx, a.bucket, ns.Key(rel), ttl)
		return err
	})
	return u, err
}

// --- content ---

// Put writes size bytes from r at rel.
func (a *Adapter) Put(ctx context.Context, userID int64, rel string, r io.Reader, size int64, contentType string) (*Entry, error) {
	ns := namespace.For(userID)
	var info *filestore.ObjectInfo
	err := a.call("putObject", userID, rel, func() (err error) {
		info, err = a.store.PutObject(ctx, a.bucket, ns.Key(rel), r, size, filestore.PutOptions{ContentType: contentType})
		return err
	})
	if err != nil {
		return nil, err
	}
	return a.entry(ns, *info)
}

// PutMarker writes the zero-length folder marker for the directory rel.
func (a *Adapter) PutMarker(ctx context.Context, userID int64, rel string) error {
	ns := namespace.For(userID)
	return a.call("createFolder", userID, rel, func() error {
		_, err := a.store.PutObject(ctx, a.bucket, ns.Key(rel), bytes.NewReader(nil), 0, filestore.PutOptions{})
		return err
	})
}

// Get opens rel for reading. The caller MUST close the returned object.
func (a *Adapter) Get(ctx context.Context, userID int64, rel string) (filestore.Object, error) {
	ns := namespace.For(userID)
	var obj filestore.Object
	err := a.call("getObject", userID, rel, func() (err error) {
		obj, err = a.store.GetObject(ctx, a.bucket, ns.Key(rel))
		return err
	})
	return obj, err
}

// Remove deletes the object at rel.
func (a *Adapter) Remove(ctx context.Context, userID int64, rel string) error {
	ns := namespace.For(userID)
	return a.call("removeObject", userID, rel, func() error {
		return a.store.RemoveObject(ctx, a.bucket, ns.Key(rel))
	})
}

// Copy duplicates from onto to, both inside the user's namespace.
func (a *Adapter) Copy(ctx context.Context, userID int64, from, to string) error {
	ns := namespace.For(userID)
	return a.call("copyObject", userID, from, func() error {
		return a.store.CopyObject(ctx, a.bucket, ns.Key(from), ns.Key(to))
	})
}

// --- helpers ---

// call times fn, records it, and translates its error.
func (a *Adapter) call(op string, userID int64, rel string, fn func() error) error {
	start := time.Now()
	err := errs.Translate(fn(), op, userID, rel)
	a.metrics.ObserveStoreOp(op, start, err)

	fields := logger.Fields{
		"op":       op,
		"user_id":  userID,
		"path":     rel,
		"duration": time.Since(start).String(),
	}
	switch {
	case err == nil:
		a.log.DebugWith("store call", fields)
	case errs.IsStorageFailed(err):
		a.log.ErrorWith("store call failed", err, fields)
	default:
		fields["kind"] = errs.KindOf(err).String()
		a.log.DebugWith("store call rejected", fields)
	}
	return err
}

// entry converts a store result into an Entry, refusing keys from any other
// namespace.
func (a *Adapter) entry(ns namespace.Namespace, info filestore.ObjectInfo) (*Entry, error) {
	rel, err := ns.Rel(info.Key)
	if err != nil {
		return nil, errs.Translate(err, "toRelativePath", ns.UserID(), info.Key)
	}
	return &Entry{
		Path:         rel,
		Key:          info.Key,
		Size:         info.Size,
		IsDir:        info.IsDir || filestore.IsDirKey(info.Key),
		ContentType:  info.ContentType,
		LastModified: info.LastModified,
	}, nil
}
