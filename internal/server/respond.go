package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/koustreak/drivebox/internal/errs"
	"github.com/koustreak/drivebox/internal/logger"
)

type messageBody struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, messageBody{Message: msg})
}

// statusFor maps an error kind to its HTTP status.
func statusFor(kind errs.ErrKind) int {
	switch kind {
	case errs.ErrKindInvalidPath:
		return http.StatusBadRequest
	case errs.ErrKindNotFound:
		return http.StatusNotFound
	case errs.ErrKindAlreadyExists:
		return http.StatusConflict
	case errs.ErrKindStorageFailed, errs.ErrKindUnknown:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err as a {"message"} body. Storage failures are logged and
// their cause is not echoed to the client.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	kind := errs.KindOf(err)
	status := statusFor(kind)

	if status == http.StatusInternalServerError {
		s.log.ErrorWith("request failed", err, logger.Fields{
			"method": r.Method,
			"path":   r.URL.Path,
		})
		writeMessage(w, status, "storage operation failed")
		return
	}

	writeMessage(w, status, clientMessage(err))
}

func clientMessage(err error) string {
	var e *errs.Error
	if !errors.As(err, &e) || e.Message == "" {
		return errs.KindOf(err).String()
	}
	if e.Path != "" {
		return e.Message + ": " + e.Path
	}
	return e.Message
}
