// Package download turns a user path into a downloadable payload: the raw
// bytes of a file, or a zip archive of a directory subtree.
//
// Archives are built in a temporary file. The file is removed when the
// returned Result is closed, or immediately if building fails.
package download

import (
	"bytes"
	"context"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/gabriel-vasile/mimetype"
	"github.com/klauspost/compress/zip"

	"github.com/koustreak/drivebox/internal/errs"
	"github.com/koustreak/drivebox/internal/logger"
	"github.com/koustreak/drivebox/internal/metrics"
	"github.com/koustreak/drivebox/internal/pathutil"
	"github.com/koustreak/drivebox/internal/storage"
	"github.com/koustreak/drivebox/internal/vfs"
)

const (
	archiveContentType = "application/zip"
	rootArchiveName    = "root"
	sniffLen           = 3072
)

// Result is a prepared download. The caller MUST Close Content.
type Result struct {
	Content     io.ReadCloser
	Filename    string
	IsArchive   bool
	ContentType string
	Size        int64 // -1 when unknown
}

// Config tunes a Service.
type Config struct {
	// TempDir holds archives while they are built and streamed.
	// Empty selects os.TempDir().
	TempDir string `yaml:"temp_dir" envconfig:"TEMP_DIR"`
}

// Service prepares downloads.
type Service struct {
	engine  *vfs.Engine
	store   *storage.Adapter
	tempDir string
	log     *logger.Logger
	metrics *metrics.Metrics
}

// New returns a Service. log and m may be nil.
func New(engine *vfs.Engine, store *storage.Adapter, cfg Config, log *logger.Logger, m *metrics.Metrics) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		engine:  engine,
		store:   store,
		tempDir: cfg.TempDir,
		log:     log.Component("download"),
		metrics: m,
	}
}

// Prepare returns the payload for p: the file itself, or a "<name>.zip"
// archive of every file under the directory p. Folder markers are not
// archived, so empty subdirectories do not appear in the zip.
func (s *Service) Prepare(ctx context.Context, userID int64, p string) (*Result, error) {
	const op = "download"
	t, err := s.engine.Validator().Classify(p)
	if err != nil {
		return nil, errs.Translate(err, op, userID, p)
	}

	if t == pathutil.File {
		return s.file(ctx, userID, p)
	}

	if !pathutil.IsRoot(p) {
		ok, err := s.engine.Exists(ctx, userID, p)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, errs.NotFound(op, userID, p)
		}
	}
	return s.archive(ctx, userID, p)
}

func (s *Service) file(ctx context.Context, userID int64, p string) (*Result, error) {
	obj, err := s.store.Get(ctx, userID, p)
	if err != nil {
		return nil, err
	}
	info := obj.Info()

	res := &Result{
		Content:     obj,
		Filename:    pathutil.ExtractName(p),
		ContentType: info.ContentType,
		Size:        info.Size,
	}
	if res.ContentType != "" {
		return res, nil
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(obj, head)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		obj.Close()
		return nil, errs.Wrap(errs.ErrKindStorageFailed, "download", "failed to read object", err).WithTarget(userID, p)
	}
	head = head[:n]
	res.ContentType = mimetype.Detect(head).String()
	res.Content = &readCloser{Reader: io.MultiReader(bytes.NewReader(head), obj), Closer: obj}
	return res, nil
}

// archive zips every file under dir into a temporary file.
func (s *Service) archive(ctx context.Context, userID int64, dir string) (res *Result, err error) {
	entries, err := s.store.List(ctx, userID, dir, true)
	if err != nil {
		return nil, err
	}

	tmp, err := os.CreateTemp(s.tempDir, "drivebox-*.zip")
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindStorageFailed, "download", "failed to create temp file", err).WithTarget(userID, dir)
	}
	written := 0
	defer func() {
		s.metrics.ObserveArchive(written, err)
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
			s.log.WarnWith("archive build failed", err, logger.Fields{"user_id": userID, "path": dir})
		}
	}()

	zw := zip.NewWriter(tmp)
	for _, en := range entries {
		if en.IsDir {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, errs.Translate(err, "download", userID, dir)
		}
		if err := s.addEntry(ctx, zw, userID, strings.TrimPrefix(en.Path, dir), en); err != nil {
			return nil, err
		}
		written++
	}
	if err := zw.Close(); err != nil {
		return nil, errs.Wrap(errs.ErrKindStorageFailed, "download", "failed to finish archive", err).WithTarget(userID, dir)
	}

	size, err := tmp.Seek(0, io.SeekEnd)
	if err == nil {
		_, err = tmp.Seek(0, io.SeekStart)
	}
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindStorageFailed, "download", "failed to rewind archive", err).WithTarget(userID, dir)
	}

	name := rootArchiveName
	if !pathutil.IsRoot(dir) {
		name = pathutil.ExtractName(dir)
	}
	s.log.InfoWith("archive built", logger.Fields{"user_id": userID, "path": dir, "entries": written, "bytes": size})

	return &Result{
		Content:     &tempFile{File: tmp},
		Filename:    name + ".zip",
		IsArchive:   true,
		ContentType: archiveContentType,
		Size:        size,
	}, nil
}

// addEntry streams one object into the archive under name.
func (s *Service) addEntry(ctx context.Context, zw *zip.Writer, userID int64, name string, en storage.Entry) error {
	obj, err := s.store.Get(ctx, userID, en.Path)
	if err != nil {
		return err
	}
	defer obj.Close()

	w, err := zw.CreateHeader(&zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: en.LastModified,
	})
	if err != nil {
		return errs.Wrap(errs.ErrKindStorageFailed, "download", "failed to add archive entry", err).WithTarget(userID, en.Path)
	}
	if _, err := io.Copy(w, obj); err != nil {
		return errs.Wrap(errs.ErrKindStorageFailed, "download", "failed to copy object into archive", err).WithTarget(userID, en.Path)
	}
	return nil
}

// tempFile deletes itself on Close.
type tempFile struct {
	*os.File
	once sync.Once
	err  error
}

func (t *tempFile) Close() error {
	t.once.Do(func() {
		t.err = t.File.Close()
		if rmErr := os.Remove(t.File.Name()); rmErr != nil && t.err == nil {
			t.err = rmErr
		}
	})
	return t.err
}

type readCloser struct {
	io.Reader
	io.Closer
}
