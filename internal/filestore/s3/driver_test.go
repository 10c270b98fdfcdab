package s3

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	smithy "github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	"github.com/stretchr/testify/assert"

	"github.com/koustreak/drivebox/internal/errs"
)

func TestEndpointURL(t *testing.T) {
	tests := []struct {
		endpoint string
		useSSL   bool
		want     string
	}{
		{"localhost:9000", false, "http://localhost:9000"},
		{"s3.example.com", true, "https://s3.example.com"},
		{" http://minio:9000 ", true, "http://minio:9000"},
	}
	for _, tt := range tests {
		t.Run(tt.endpoint, func(t *testing.T) {
			assert.Equal(t, tt.want, endpointURL(tt.endpoint, tt.useSSL))
		})
	}
}

func TestCopySource(t *testing.T) {
	assert.Equal(t, "files/user-1-files/a%20b/c.txt", copySource("files", "user-1-files/a b/c.txt"))
	assert.Equal(t, "files/user-1-files/docs/", copySource("files", "user-1-files/docs/"))
}

func statusErr(code int) error {
	return &awshttp.ResponseError{
		ResponseError: &smithyhttp.ResponseError{
			Response: &smithyhttp.Response{Response: &http.Response{StatusCode: code}},
			Err:      errors.New("http failure"),
		},
	}
}

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want errs.ErrKind
	}{
		{"typed no such key", &types.NoSuchKey{}, errs.ErrKindNotFound},
		{"typed not found", fmt.Errorf("head: %w", &types.NotFound{}), errs.ErrKindNotFound},
		{"api code", &smithy.GenericAPIError{Code: "NoSuchKey"}, errs.ErrKindNotFound},
		{"typed no such bucket", &types.NoSuchBucket{}, errs.ErrKindStorageFailed},
		{"api no such bucket", &smithy.GenericAPIError{Code: "NoSuchBucket"}, errs.ErrKindStorageFailed},
		{"precondition", &smithy.GenericAPIError{Code: "PreconditionFailed"}, errs.ErrKindAlreadyExists},
		{"bare 404", statusErr(http.StatusNotFound), errs.ErrKindNotFound},
		{"bare 412", statusErr(http.StatusPreconditionFailed), errs.ErrKindAlreadyExists},
		{"server error", statusErr(http.StatusInternalServerError), errs.ErrKindStorageFailed},
		{"access denied", &smithy.GenericAPIError{Code: "AccessDenied"}, errs.ErrKindStorageFailed},
		{"plain", errors.New("dial tcp: refused"), errs.ErrKindStorageFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapError(tt.err, "stat", "failed")
			assert.Equal(t, tt.want, got.Kind)
			assert.Equal(t, "stat", got.Op)
			assert.ErrorIs(t, got, tt.err)
		})
	}

	assert.Nil(t, mapError(nil, "stat", "failed"))
}
