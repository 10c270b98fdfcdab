package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koustreak/drivebox/internal/errs"
	"github.com/koustreak/drivebox/internal/filestore"
	"github.com/koustreak/drivebox/internal/filestore/memory"
	"github.com/koustreak/drivebox/internal/metrics"
	"github.com/koustreak/drivebox/internal/namespace"
)

const bucket = "files"

func newAdapter(t *testing.T) (*Adapter, *memory.Store) {
	t.Helper()
	st := memory.New(bucket)
	return New(st, bucket, nil, nil), st
}

func TestPutStatGet(t *testing.T) {
	a, st := newAdapter(t)
	ctx := context.Background()

	e, err := a.Put(ctx, 1, "docs/a.txt", strings.NewReader("hello"), 5, "text/plain")
	require.NoError(t, err)
	assert.Equal(t, "docs/a.txt", e.Path)
	assert.Equal(t, "user-1-files/docs/a.txt", e.Key)
	assert.Equal(t, []string{"user-1-files/docs/a.txt"}, st.Keys(bucket))

	info, err := a.Stat(ctx, 1, "docs/a.txt")
	require.NoError(t, err)
	assert.Equal(t, int64(5), info.Size)
	assert.False(t, info.IsDir)

	obj, err := a.Get(ctx, 1, "docs/a.txt")
	require.NoError(t, err)
	defer obj.Close()
	body, _ := io.ReadAll(obj)
	assert.Equal(t, "hello", string(body))

	// Another user sees nothing.
	_, err = a.Stat(ctx, 2, "docs/a.txt")
	require.Error(t, err)
	assert.True(t, errs.IsNotFound(err))
}

func TestStat_NotFoundCarriesTarget(t *testing.T) {
	a, _ := newAdapter(t)

	_, err := a.Stat(context.Background(), 9, "missing.txt")
	require.Error(t, err)

	var e *errs.Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, errs.ErrKindNotFound, e.Kind)
	assert.Equal(t, int64(9), e.UserID)
	assert.Equal(t, "missing.txt", e.Path)
	assert.Contains(t, e.Op, "getInfo")
}

func TestExists(t *testing.T) {
	a, st := newAdapter(t)
	ctx := context.Background()

	ok, err := a.Exists(ctx, 1, "docs/")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, a.PutMarker(ctx, 1, "docs/"))
	ok, err = a.Exists(ctx, 1, "docs/")
	require.NoError(t, err)
	assert.True(t, ok)

	st.SetFault(func(op, key string) error {
		if op == memory.OpStat {
			return errors.New("connection reset")
		}
		return nil
	})
	ok, err = a.Exists(ctx, 1, "docs/")
	require.Error(t, err)
	assert.False(t, ok)
	assert.True(t, errs.IsStorageFailed(err), "transport faults must not read as absent")
}

func TestExists_MissingBucketIsStorageFailure(t *testing.T) {
	a := New(memory.New(), bucket, nil, nil)
	ctx := context.Background()

	ok, err := a.Exists(ctx, 1, "a.txt")
	require.Error(t, err)
	assert.False(t, ok)
	assert.True(t, errs.IsStorageFailed(err), "a missing bucket must not read as an absent key")

	_, err = a.Put(ctx, 1, "a.txt", strings.NewReader("x"), 1, "text/plain")
	assert.True(t, errs.IsStorageFailed(err))
}

func TestList(t *testing.T) {
	a, _ := newAdapter(t)
	ctx := context.Background()

	require.NoError(t, a.PutMarker(ctx, 1, "/"))
	require.NoError(t, a.PutMarker(ctx, 1, "docs/"))
	_, err := a.Put(ctx, 1, "docs/b.txt", strings.NewReader("b"), 1, "")
	require.NoError(t, err)
	_, err = a.Put(ctx, 1, "a.txt", strings.NewReader("a"), 1, "")
	require.NoError(t, err)
	_, err = a.Put(ctx, 2, "other.txt", strings.NewReader("x"), 1, "")
	require.NoError(t, err)

	flat, err := a.List(ctx, 1, "/", false)
	require.NoError(t, err)
	var paths []string
	for _, e := range flat {
		paths = append(paths, e.Path)
	}
	assert.Equal(t, []string{"/", "a.txt", "docs/"}, paths)
	assert.True(t, flat[2].IsDir)

	deep, err := a.List(ctx, 1, "/", true)
	require.NoError(t, err)
	assert.Len(t, deep, 4)
}

func TestCopyRemovePresign(t *testing.T) {
	a, st := newAdapter(t)
	ctx := context.Background()

	_, err := a.Put(ctx, 1, "a.txt", strings.NewReader("a"), 1, "")
	require.NoError(t, err)

	require.NoError(t, a.Copy(ctx, 1, "a.txt", "b.txt"))
	require.NoError(t, a.Remove(ctx, 1, "a.txt"))
	assert.Equal(t, []string{"user-1-files/b.txt"}, st.Keys(bucket))

	u, err := a.Presign(ctx, 1, "b.txt", time.Hour)
	require.NoError(t, err)
	assert.Contains(t, u, "user-1-files/b.txt")

	err = a.Copy(ctx, 1, "missing.txt", "c.txt")
	assert.True(t, errs.IsNotFound(err))
}

func TestCall_RecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	a := New(memory.New(bucket), bucket, nil, metrics.New(reg))
	ctx := context.Background()

	_, _ = a.Stat(ctx, 1, "nope")
	n, err := testutil.GatherAndCount(reg, "drivebox_store_operations_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = a.Put(ctx, 1, "x", strings.NewReader(""), 0, "")
	require.NoError(t, err)
	n, err = testutil.GatherAndCount(reg, "drivebox_store_operations_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestEntry_RejectsForeignKey(t *testing.T) {
	a, _ := newAdapter(t)
	_, err := a.entry(namespace.For(1), filestore.ObjectInfo{Key: "user-2-files/x"})
	require.Error(t, err)
	assert.True(t, errs.IsInvalidPath(err))
}
