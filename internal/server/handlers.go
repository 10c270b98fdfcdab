package server

import (
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/koustreak/drivebox/internal/errs"
	"github.com/koustreak/drivebox/internal/logger"
	"github.com/koustreak/drivebox/internal/vfs"
)

// uploadField is the multipart field carrying uploaded files.
const uploadField = "files"

func (s *Server) handleResourceInfo(w http.ResponseWriter, r *http.Request) {
	info, err := s.engine.GetResourceInfo(r.Context(), userID(r), r.URL.Query().Get("path"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.DeleteResource(r.Context(), userID(r), r.URL.Query().Get("path")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	info, err := s.engine.MoveResource(r.Context(), userID(r), q.Get("from"), q.Get("to"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	found, err := s.engine.SearchResources(r.Context(), userID(r), r.URL.Query().Get("query"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(found))
}

func (s *Server) handleListDirectory(w http.ResponseWriter, r *http.Request) {
	items, err := s.engine.ListDirectory(r.Context(), userID(r), r.URL.Query().Get("path"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(items))
}

func (s *Server) handleCreateDirectory(w http.ResponseWriter, r *http.Request) {
	info, err := s.engine.CreateDirectory(r.Context(), userID(r), r.URL.Query().Get("path"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, info)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(s.cfg.MaxUploadMemory); err != nil {
		writeMessage(w, http.StatusBadRequest, "expected a multipart/form-data body")
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File[uploadField]
	uploads := make([]vfs.Upload, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			s.fail(w, r, errs.Wrap(errs.ErrKindStorageFailed, "uploadFiles", "failed to open upload part", err))
			return
		}
		defer f.Close()

		uploads = append(uploads, vfs.Upload{
			Name:        partName(fh),
			Size:        fh.Size,
			ContentType: declaredType(fh),
			Content:     f,
		})
	}

	stored, err := s.engine.UploadFiles(r.Context(), userID(r), r.URL.Query().Get("path"), uploads)
	if err != nil {
		if len(stored) > 0 {
			s.log.WarnWith("upload stopped part way", err, logger.Fields{
				"user_id": userID(r),
				"stored":  len(stored),
				"total":   len(uploads),
			})
		}
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, stored)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	res, err := s.download.Prepare(r.Context(), userID(r), r.URL.Query().Get("path"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	defer res.Content.Close()

	h := w.Header()
	h.Set("Content-Type", res.ContentType)
	h.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": res.Filename}))
	if res.Size >= 0 {
		h.Set("Content-Length", strconv.FormatInt(res.Size, 10))
	}
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, res.Content); err != nil {
		s.log.WarnWith("download interrupted", err, logger.Fields{
			"user_id":  userID(r),
			"filename": res.Filename,
		})
	}
}

func (s *Server) handleLink(w http.ResponseWriter, r *http.Request) {
	link, err := s.engine.PresignedDownloadURL(r.Context(), userID(r), r.URL.Query().Get("path"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": link})
}

// partName returns the filename exactly as the client sent it. The
// multipart package reduces FileHeader.Filename to its base name, which
// would drop the subdirectories of a folder upload.
func partName(fh *multipart.FileHeader) string {
	_, params, err := mime.ParseMediaType(fh.Header.Get("Content-Disposition"))
	if err == nil && params["filename"] != "" {
		return params["filename"]
	}
	return fh.Filename
}

// declaredType returns the part's Content-Type, or "" when the client sent
// only the generic binary type and detection should decide.
func declaredType(fh *multipart.FileHeader) string {
	ct := fh.Header.Get("Content-Type")
	if ct == "application/octet-stream" {
		return ""
	}
	return ct
}

func nonNil(items []vfs.ResourceInfo) []vfs.ResourceInfo {
	if items == nil {
		return []vfs.ResourceInfo{}
	}
	return items
}
