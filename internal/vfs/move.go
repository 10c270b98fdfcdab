package vfs

import (
	"context"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/koustreak/drivebox/internal/errs"
	"github.com/koustreak/drivebox/internal/logger"
	"github.com/koustreak/drivebox/internal/pathutil"
	"github.com/koustreak/drivebox/internal/storage"
)

// MoveResource renames or relocates from to to. Both paths must be of the
// same kind. Every precondition is checked before the first mutation:
//
//   - a kind change, the root, or a directory moved into itself is
//     ErrKindInvalidPath;
//   - an existing to is ErrKindAlreadyExists;
//   - a missing from, or a missing parent of to, is ErrKindNotFound.
//
// A directory move copies the subtree and deletes the original only once
// every copy succeeded. When a copy fails, the copies already made are
// deleted on a best-effort basis and the original is left untouched. This
// is compensation, not a transaction: concurrent readers can observe both
// trees while the copy runs.
func (e *Engine) MoveResource(ctx context.Context, userID int64, from, to string) (*ResourceInfo, error) {
	const op = "moveResource"
	tf, err := e.classify(op, userID, from)
	if err != nil {
		return nil, err
	}
	tt, err := e.classify(op, userID, to)
	if err != nil {
		return nil, err
	}
	if tf != tt {
		return nil, errs.InvalidPath(op, userID, to, "a move cannot change the resource type")
	}
	if pathutil.IsRoot(from) || pathutil.IsRoot(to) {
		return nil, errs.InvalidPath(op, userID, from, "the root directory cannot be moved")
	}
	if tf == pathutil.Directory && pathutil.IsWithin(from, to) {
		return nil, errs.InvalidPath(op, userID, to, "a directory cannot be moved into itself")
	}

	ok, err := e.store.Exists(ctx, userID, to)
	if err != nil {
		return nil, err
	}
	if ok {
		return nil, errs.AlreadyExists(op, userID, to)
	}
	if err := e.mustExist(ctx, op, userID, from); err != nil {
		return nil, err
	}
	if parent := pathutil.ExtractParentPath(to); parent != "" {
		if err := e.mustExist(ctx, op, userID, parent); err != nil {
			return nil, err
		}
	}

	fields := logger.Fields{
		"user_id":     userID,
		"from":        from,
		"to":          to,
		"rename_only": pathutil.IsRenameOnly(from, to),
		"same_name":   pathutil.IsPathChangeOnly(from, to),
	}

	if tf == pathutil.File {
		err = e.moveFile(ctx, userID, from, to)
	} else {
		err = e.moveDirectory(ctx, op, userID, from, to)
	}
	if err != nil {
		return nil, err
	}

	e.log.InfoWith("resource moved", fields)
	if tf == pathutil.Directory {
		info := newInfo(userID, storage.Entry{Path: to, IsDir: true})
		return &info, nil
	}
	st, err := e.store.Stat(ctx, userID, to)
	if err != nil {
		// The move is done; only the size is unknown.
		e.log.WarnWith("moved file could not be read back", err, logger.Fields{"user_id": userID, "path": to})
		info := newInfo(userID, storage.Entry{Path: to})
		info.Size = nil
		return &info, nil
	}
	info := newInfo(userID, *st)
	return &info, nil
}

// moveFile copies then deletes. If the source cannot be deleted the copy is
// removed so the source stays the only instance.
func (e *Engine) moveFile(ctx context.Context, userID int64, from, to string) error {
	if err := e.store.Copy(ctx, userID, from, to); err != nil {
		return err
	}
	if err := e.store.Remove(ctx, userID, from); err != nil {
		if rbErr := e.store.Remove(ctx, userID, to); rbErr != nil {
			e.log.WarnWith("failed to remove copy after source delete failed", rbErr,
				logger.Fields{"user_id": userID, "path": to})
		}
		return err
	}
	return nil
}

// moveDirectory places the new marker, copies every key under from to the
// matching key under to, then deletes the original subtree.
func (e *Engine) moveDirectory(ctx context.Context, op string, userID int64, from, to string) error {
	originals, err := e.subtree(ctx, userID, from)
	if err != nil {
		return err
	}
	if err := e.store.PutMarker(ctx, userID, to); err != nil {
		return err
	}

	var (
		mu     sync.Mutex
		copied []string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.copyConcurrency)

	// The last original is the from marker, replaced by the to marker above.
	for _, src := range originals[:len(originals)-1] {
		if gctx.Err() != nil {
			break
		}
		dst := to + strings.TrimPrefix(src, from)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := e.store.Copy(gctx, userID, src, dst); err != nil {
				return err
			}
			mu.Lock()
			copied = append(copied, dst)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		e.compensate(ctx, userID, to, copied)
		return errs.Translate(err, op, userID, from)
	}

	return e.removeAll(ctx, op, userID, from, originals)
}

// compensate deletes the targets a failed directory move already wrote,
// the new marker last. Failures are logged and otherwise ignored.
func (e *Engine) compensate(ctx context.Context, userID int64, marker string, copied []string) {
	e.log.WarnWith("directory move failed, removing copied objects", nil,
		logger.Fields{"user_id": userID, "path": marker, "copied": len(copied)})

	for _, k := range append(copied, marker) {
		if err := e.store.Remove(ctx, userID, k); err != nil {
			e.log.WarnWith("compensating delete failed", err, logger.Fields{"user_id": userID, "path": k})
		}
	}
}
