package vfs

import (
	"bytes"
	"context"
	"io"

	"github.com/gabriel-vasile/mimetype"

	"github.com/koustreak/drivebox/internal/errs"
	"github.com/koustreak/drivebox/internal/logger"
	"github.com/koustreak/drivebox/internal/pathutil"
	"github.com/koustreak/drivebox/internal/storage"
)

// sniffLen is how much of an upload is buffered for content-type detection.
const sniffLen = 3072

// Upload is one file handed to UploadFiles.
type Upload struct {
	// Name is the file's path relative to the destination directory. It may
	// contain subdirectories ("photos/2024/a.jpg").
	Name string

	// Size is the content length in bytes, or -1 if unknown.
	Size int64

	// ContentType is stored with the object. Empty means detect it.
	ContentType string

	Content io.Reader
}

// CreateDirectory creates the directory p. Its parent must already exist.
func (e *Engine) CreateDirectory(ctx context.Context, userID int64, p string) (*ResourceInfo, error) {
	const op = "createDirectory"
	if err := e.expect(op, userID, p, pathutil.Directory); err != nil {
		return nil, err
	}
	if pathutil.IsRoot(p) {
		return nil, errs.InvalidPath(op, userID, p, "the root directory always exists")
	}

	if parent := pathutil.ExtractParentPath(p); parent != "" {
		if err := e.mustExist(ctx, op, userID, parent); err != nil {
			return nil, err
		}
	}

	if err := e.CreateFolder(ctx, userID, p, true); err != nil {
		return nil, err
	}

	info := newInfo(userID, storage.Entry{Path: p, IsDir: true})
	return &info, nil
}

// CreateFolder writes the marker for p. When the marker is already present,
// strict mode fails with ErrKindAlreadyExists and non-strict mode does
// nothing.
//
// The existence probe and the write are separate calls: two strict callers
// can both pass the probe, and the later write wins.
func (e *Engine) CreateFolder(ctx context.Context, userID int64, p string, strict bool) error {
	const op = "createFolder"
	if err := e.expect(op, userID, p, pathutil.Directory); err != nil {
		return err
	}

	ok, err := e.store.Exists(ctx, userID, p)
	if err != nil {
		return err
	}
	if ok {
		if strict {
			return errs.AlreadyExists(op, userID, p)
		}
		return nil
	}

	if err := e.store.PutMarker(ctx, userID, p); err != nil {
		return err
	}
	e.log.InfoWith("folder created", logger.Fields{"user_id": userID, "path": p})
	return nil
}

// EnsureUserRoot creates the namespace root marker for userID if missing.
func (e *Engine) EnsureUserRoot(ctx context.Context, userID int64) error {
	return e.CreateFolder(ctx, userID, pathutil.Root, false)
}

// UploadFiles stores files under the directory dest, creating any missing
// ancestor directories on the way. Every target path is validated before
// the first write. A target that already exists fails the call with
// ErrKindAlreadyExists; files written before it are kept.
func (e *Engine) UploadFiles(ctx context.Context, userID int64, dest string, files []Upload) ([]ResourceInfo, error) {
	const op = "uploadFiles"
	if len(files) == 0 {
		return nil, errs.InvalidPath(op, userID, dest, "no files to upload")
	}
	if err := e.expect(op, userID, dest, pathutil.Directory); err != nil {
		return nil, err
	}

	targets := make([]string, len(files))
	for i, f := range files {
		target := pathutil.Join(dest, f.Name)
		if err := e.expect(op, userID, target, pathutil.File); err != nil {
			return nil, err
		}
		targets[i] = target
	}

	ensured := make(map[string]bool)
	out := make([]ResourceInfo, 0, len(files))
	for i, f := range files {
		target := targets[i]

		ok, err := e.store.Exists(ctx, userID, target)
		if err != nil {
			return out, err
		}
		if ok {
			return out, errs.AlreadyExists(op, userID, target)
		}

		for _, dir := range pathutil.Ancestors(target) {
			if ensured[dir] {
				continue
			}
			if err := e.CreateFolder(ctx, userID, dir, false); err != nil {
				return out, err
			}
			ensured[dir] = true
		}

		body, contentType, err := sniff(f)
		if err != nil {
			return out, errs.Wrap(errs.ErrKindStorageFailed, op, "failed to read upload", err).WithTarget(userID, target)
		}

		en, err := e.store.Put(ctx, userID, target, body, f.Size, contentType)
		if err != nil {
			return out, err
		}
		e.metrics.ObserveUpload()
		e.log.InfoWith("file uploaded", logger.Fields{"user_id": userID, "path": target, "size": en.Size})
		out = append(out, newInfo(userID, *en))
	}
	return out, nil
}

// sniff returns the upload body and its content type, detecting the type
// from the first bytes when the caller gave none.
func sniff(f Upload) (io.Reader, string, error) {
	if f.ContentType != "" {
		return f.Content, f.ContentType, nil
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(f.Content, head)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, "", err
	}
	head = head[:n]
	return io.MultiReader(bytes.NewReader(head), f.Content), mimetype.Detect(head).String(), nil
}
