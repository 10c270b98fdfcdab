// Package memory provides an in-process implementation of filestore.Store.
//
// It follows S3 semantics closely enough for the storage, vfs and download
// packages to be tested without a server: keys are flat, listing is in
// lexical order, removing a missing key succeeds, and a non-recursive list
// collapses deeper keys into "/"-terminated common prefixes.
//
// A Fault hook lets tests fail individual operations:
//
//	st := memory.New("files")
//	st.SetFault(func(op, key string) error {
//	    if op == memory.OpCopy && strings.HasSuffix(key, "b.txt") {
//	        return errors.New("boom")
//	    }
//	    return nil
//	})
package memory

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/koustreak/drivebox/internal/errs"
	"github.com/koustreak/drivebox/internal/filestore"
)

// Operation names passed to a Fault.
const (
	OpList    = "list"
	OpGet     = "get"
	OpStat    = "stat"
	OpPut     = "put"
	OpRemove  = "remove"
	OpCopy    = "copy"
	OpPresign = "presign"
)

// Fault is consulted before every keyed operation. A non-nil return fails the
// operation with that error wrapped as a storage failure. For OpCopy the key
// is the destination; for OpList it is the prefix. A Fault runs under the
// store lock and must not call back into the Store.
type Fault func(op, key string) error

type entry struct {
	data        []byte
	contentType string
	etag        string
	modTime     time.Time
}

// Store is an in-memory filestore.Store. It is safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	buckets map[string]map[string]*entry
	fault   Fault
	now     func() time.Time
}

var _ filestore.Store = (*Store)(nil)

// New returns a Store with the given buckets already created.
func New(buckets ...string) *Store {
	s := &Store{
		buckets: make(map[string]map[string]*entry),
		now:     time.Now,
	}
	for _, b := range buckets {
		s.buckets[b] = make(map[string]*entry)
	}
	return s
}

// SetFault installs f, replacing any previous hook. nil clears it.
func (s *Store) SetFault(f Fault) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fault = f
}

// Keys returns every key in bucket in lexical order.
func (s *Store) Keys(bucket string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.buckets[bucket]))
	for k := range s.buckets[bucket] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// --- filestore.Store implementation ---

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *Store) Close() error {
	return nil
}

func (s *Store) EnsureBucket(_ context.Context, bucket string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.buckets[bucket]; !ok {
		s.buckets[bucket] = make(map[string]*entry)
	}
	return nil
}

func (s *Store) ListObjects(ctx context.Context, bucket string, opts filestore.ListOptions) ([]filestore.ObjectInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	objects, err := s.check(ctx, OpList, bucket, opts.Prefix)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(objects))
	for k := range objects {
		if strings.HasPrefix(k, opts.Prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var results []filestore.ObjectInfo
	seen := make(map[string]bool)
	for _, k := range keys {
		if opts.Limit > 0 && len(results) >= opts.Limit {
			break
		}

		if !opts.Recursive {
			rest := strings.TrimPrefix(k, opts.Prefix)
			if i := strings.Index(rest, "/"); i >= 0 {
				cp := opts.Prefix + rest[:i+1]
				if !seen[cp] {
					seen[cp] = true
					results = append(results, filestore.ObjectInfo{Key: cp, IsDir: true})
				}
				continue
			}
		}

		results = append(results, info(k, objects[k]))
	}
	return results, nil
}

func (s *Store) GetObject(ctx context.Context, bucket, key string) (filestore.Object, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, err := s.lookup(ctx, OpGet, bucket, key)
	if err != nil {
		return nil, err
	}
	oi := info(key, e)
	return filestore.NewReadCloserObject(io.NopCloser(bytes.NewReader(e.data)), &oi), nil
}

func (s *Store) StatObject(ctx context.Context, bucket, key string) (*filestore.ObjectInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, err := s.lookup(ctx, OpStat, bucket, key)
	if err != nil {
		return nil, err
	}
	oi := info(key, e)
	return &oi, nil
}

func (s *Store) PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, opts filestore.PutOptions) (*filestore.ObjectInfo, error) {
	// Read outside the lock; r may be slow.
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindStorageFailed, OpPut, "failed to read object body", err)
	}
	if size >= 0 && int64(len(data)) != size {
		return nil, errs.New(errs.ErrKindStorageFailed, OpPut,
			fmt.Sprintf("body length %d does not match declared size %d", len(data), size))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	objects, err := s.check(ctx, OpPut, bucket, key)
	if err != nil {
		return nil, err
	}

	sum := md5.Sum(data)
	ct := opts.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	e := &entry{data: data, contentType: ct, etag: hex.EncodeToString(sum[:]), modTime: s.now().UTC()}
	objects[key] = e

	oi := info(key, e)
	return &oi, nil
}

func (s *Store) RemoveObject(ctx context.Context, bucket, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	objects, err := s.check(ctx, OpRemove, bucket, key)
	if err != nil {
		return err
	}
	delete(objects, key)
	return nil
}

func (s *Store) CopyObject(ctx context.Context, bucket, srcKey, dstKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	objects, err := s.check(ctx, OpCopy, bucket, dstKey)
	if err != nil {
		return err
	}
	src, ok := objects[srcKey]
	if !ok {
		return errs.New(errs.ErrKindNotFound, OpCopy, "source object does not exist")
	}

	cp := *src
	cp.data = bytes.Clone(src.data)
	cp.modTime = s.now().UTC()
	objects[dstKey] = &cp
	return nil
}

func (s *Store) PresignGetURL(ctx context.Context, bucket, key string, ttl time.Duration) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, err := s.check(ctx, OpPresign, bucket, key); err != nil {
		return "", err
	}
	u := url.URL{
		Scheme:   "memory",
		Host:     bucket,
		Path:     "/" + key,
		RawQuery: url.Values{"expires": {s.now().Add(ttl).UTC().Format(time.RFC3339)}}.Encode(),
	}
	return u.String(), nil
}

// --- helpers ---

// check runs the context, fault and bucket checks shared by every operation.
// The caller holds s.mu.
func (s *Store) check(ctx context.Context, op, bucket, key string) (map[string]*entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, errs.Wrap(errs.ErrKindStorageFailed, op, "context done", err)
	}
	if s.fault != nil {
		if err := s.fault(op, key); err != nil {
			return nil, errs.Wrap(errs.ErrKindStorageFailed, op, "injected fault", err)
		}
	}
	// A missing bucket is a deployment fault, never a missing object.
	objects, ok := s.buckets[bucket]
	if !ok {
		return nil, errs.New(errs.ErrKindStorageFailed, op, "bucket does not exist")
	}
	return objects, nil
}

func (s *Store) lookup(ctx context.Context, op, bucket, key string) (*entry, error) {
	objects, err := s.check(ctx, op, bucket, key)
	if err != nil {
		return nil, err
	}
	e, ok := objects[key]
	if !ok {
		return nil, errs.New(errs.ErrKindNotFound, op, "object does not exist")
	}
	return e, nil
}

func info(key string, e *entry) filestore.ObjectInfo {
	return filestore.ObjectInfo{
		Key:          key,
		Size:         int64(len(e.data)),
		ContentType:  e.contentType,
		ETag:         e.etag,
		LastModified: e.modTime,
		IsDir:        filestore.IsDirKey(key),
	}
}
