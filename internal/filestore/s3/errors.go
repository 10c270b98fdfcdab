package s3

import (
	"errors"
	"net/http"

	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	smithy "github.com/aws/smithy-go"

	"github.com/koustreak/drivebox/internal/errs"
)

// mapError translates an aws-sdk-go-v2 error into a *errs.Error.
func mapError(err error, op, msg string) *errs.Error {
	if err == nil {
		return nil
	}

	// A missing bucket also answers 404; it must not read as a missing key.
	var noBucket *types.NoSuchBucket
	if errors.As(err, &noBucket) {
		return errs.Wrap(errs.ErrKindStorageFailed, op, "bucket does not exist", err)
	}

	var noKey *types.NoSuchKey
	var notFound *types.NotFound
	if errors.As(err, &noKey) || errors.As(err, &notFound) {
		return errs.Wrap(errs.ErrKindNotFound, op, msg, err)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchBucket":
			return errs.Wrap(errs.ErrKindStorageFailed, op, "bucket does not exist", err)
		case "NoSuchKey", "NotFound":
			return errs.Wrap(errs.ErrKindNotFound, op, msg, err)
		case "PreconditionFailed":
			return errs.Wrap(errs.ErrKindAlreadyExists, op, msg, err)
		}
	}

	// HeadObject failures carry no body, only the status.
	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		switch respErr.HTTPStatusCode() {
		case http.StatusNotFound:
			return errs.Wrap(errs.ErrKindNotFound, op, msg, err)
		case http.StatusPreconditionFailed:
			return errs.Wrap(errs.ErrKindAlreadyExists, op, msg, err)
		}
	}

	return errs.Wrap(errs.ErrKindStorageFailed, op, msg, err)
}
