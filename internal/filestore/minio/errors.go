package minio

import (
	"net/http"

	"github.com/koustreak/drivebox/internal/errs"
	miniogo "github.com/minio/minio-go/v7"
)

// mapError translates a MinIO SDK error into a *errs.Error.
// Only a missing object and a failed precondition keep a distinct kind. A
// missing bucket is a deployment fault and, like every other error
// including cancellation, is a storage failure.
func mapError(err error, op, msg string) *errs.Error {
	if err == nil {
		return nil
	}

	// ToErrorResponse returns a zero value for non-S3 errors.
	resp := miniogo.ToErrorResponse(err)

	switch resp.Code {
	case "NoSuchBucket":
		return errs.Wrap(errs.ErrKindStorageFailed, op, "bucket does not exist", err)
	case "NoSuchKey", "NoSuchUpload":
		return errs.Wrap(errs.ErrKindNotFound, op, msg, err)
	case "PreconditionFailed":
		return errs.Wrap(errs.ErrKindAlreadyExists, op, msg, err)
	}

	switch resp.StatusCode {
	case http.StatusNotFound:
		return errs.Wrap(errs.ErrKindNotFound, op, msg, err)
	case http.StatusPreconditionFailed:
		return errs.Wrap(errs.ErrKindAlreadyExists, op, msg, err)
	}

	return errs.Wrap(errs.ErrKindStorageFailed, op, msg, err)
}
