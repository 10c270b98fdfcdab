package vfs

import (
	"context"
	"errors"
	"fmt"

	"github.com/koustreak/drivebox/internal/errs"
	"github.com/koustreak/drivebox/internal/logger"
	"github.com/koustreak/drivebox/internal/pathutil"
)

// DeleteResource removes the file p, or the directory p with everything
// beneath it. A missing p is ErrKindNotFound, detected before any delete.
//
// Directory deletes are best effort: every key is attempted even when some
// fail, and the failures are reported together afterwards.
func (e *Engine) DeleteResource(ctx context.Context, userID int64, p string) error {
	const op = "deleteResource"
	t, err := e.classify(op, userID, p)
	if err != nil {
		return err
	}
	if pathutil.IsRoot(p) {
		return errs.InvalidPath(op, userID, p, "the root directory cannot be deleted")
	}
	if err := e.mustExist(ctx, op, userID, p); err != nil {
		return err
	}

	if t == pathutil.File {
		if err := e.store.Remove(ctx, userID, p); err != nil {
			return err
		}
		e.log.InfoWith("file deleted", logger.Fields{"user_id": userID, "path": p})
		return nil
	}

	keys, err := e.subtree(ctx, userID, p)
	if err != nil {
		return err
	}
	if err := e.removeAll(ctx, op, userID, p, keys); err != nil {
		return err
	}
	e.log.InfoWith("directory deleted", logger.Fields{"user_id": userID, "path": p, "objects": len(keys)})
	return nil
}

// subtree lists every relative path under the directory dir with one
// recursive listing. The marker of dir itself comes last.
func (e *Engine) subtree(ctx context.Context, userID int64, dir string) ([]string, error) {
	entries, err := e.store.List(ctx, userID, dir, true)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(entries)+1)
	for _, en := range entries {
		if en.Path != dir {
			keys = append(keys, en.Path)
		}
	}
	return append(keys, dir), nil
}

// removeAll deletes every path in keys, continuing past failures. It returns
// ErrKindStorageFailed carrying every individual failure when any delete
// failed.
func (e *Engine) removeAll(ctx context.Context, op string, userID int64, root string, keys []string) error {
	var failures []error
	for _, k := range keys {
		if err := e.store.Remove(ctx, userID, k); err != nil {
			e.log.WarnWith("delete failed, continuing", err, logger.Fields{"user_id": userID, "path": k})
			failures = append(failures, err)
		}
	}
	if len(failures) == 0 {
		return nil
	}
	msg := fmt.Sprintf("%d of %d objects could not be deleted", len(failures), len(keys))
	return errs.Wrap(errs.ErrKindStorageFailed, op, msg, errors.Join(failures...)).WithTarget(userID, root)
}
