package handler

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"

	"github.com/prn-tf/kvgate/internal/auth"
	"github.com/prn-tf/kvgate/internal/domain"
)

// serverName is sent in the Server header of every response.
const serverName = "s3_rocksdb_gateway"

// requestCounter feeds x-amz-request-id. The first request of a process is 1.
var requestCounter atomic.Uint64

// nextRequestID returns a process-unique request id as 16 hex digits.
func nextRequestID() string {
	return fmt.Sprintf("%016x", requestCounter.Add(1))
}

// S3Error is an API error together with the HTTP status it is served under.
type S3Error struct {
	Code           string
	Message        string
	HTTPStatusCode int
}

// Fixed errors constructed outside of mapError.
var (
	errMethodNotAllowed = S3Error{
		Code:           "MethodNotAllowed",
		Message:        "Unsupported method",
		HTTPStatusCode: http.StatusMethodNotAllowed,
	}

	errInvalidRange = S3Error{
		Code:           "InvalidRange",
		Message:        "The requested range is not satisfiable",
		HTTPStatusCode: http.StatusRequestedRangeNotSatisfiable,
	}
)

// mapError converts any error surfacing from the store, the verifier, or body
// reading into the S3 error it is answered with. The mapping is total:
// anything unrecognized reads as InternalError.
func mapError(err error) S3Error {
	var (
		invalid  *domain.InvalidInputError
		authErr  *auth.AuthError
		tooLarge *http.MaxBytesError
	)

	switch {
	case errors.Is(err, domain.ErrNoSuchBucket):
		return S3Error{
			Code:           "NoSuchBucket",
			Message:        "The specified bucket does not exist",
			HTTPStatusCode: http.StatusNotFound,
		}

	case errors.Is(err, domain.ErrNoSuchKey):
		return S3Error{
			Code:           "NoSuchKey",
			Message:        "The specified key does not exist",
			HTTPStatusCode: http.StatusNotFound,
		}

	case errors.Is(err, domain.ErrBucketNotEmpty):
		return S3Error{
			Code:           "BucketNotEmpty",
			Message:        "The bucket you tried to delete is not empty",
			HTTPStatusCode: http.StatusConflict,
		}

	case errors.As(err, &invalid):
		return S3Error{
			Code:           "InvalidRequest",
			Message:        invalid.Error(),
			HTTPStatusCode: http.StatusBadRequest,
		}

	case errors.As(err, &tooLarge):
		return S3Error{
			Code:           "EntityTooLarge",
			Message:        "Object too large",
			HTTPStatusCode: http.StatusRequestEntityTooLarge,
		}

	case errors.As(err, &authErr):
		return S3Error{
			Code:           string(authErr.Code),
			Message:        authErr.Message,
			HTTPStatusCode: authErr.HTTPStatus,
		}

	default:
		return S3Error{
			Code:           "InternalError",
			Message:        err.Error(),
			HTTPStatusCode: http.StatusInternalServerError,
		}
	}
}

// errorResponse is the XML error envelope.
type errorResponse struct {
	XMLName   xml.Name `xml:"Error"`
	Code      string   `xml:"Code"`
	Message   string   `xml:"Message"`
	Resource  string   `xml:"Resource"`
	RequestID string   `xml:"RequestId"`
}

// writeError renders the error envelope. The request id is read back from the
// response headers, where ServeHTTP placed it.
func writeError(w http.ResponseWriter, resource string, apiErr S3Error) {
	body := errorResponse{
		Code:      apiErr.Code,
		Message:   apiErr.Message,
		Resource:  resource,
		RequestID: w.Header().Get("x-amz-request-id"),
	}
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(apiErr.HTTPStatusCode)
	io.WriteString(w, xml.Header)
	_ = xml.NewEncoder(w).Encode(body)
}
