// Package auth verifies AWS Signature Version 4 on incoming requests.
package auth

import "errors"

// Authentication and signature errors.
var (
	// ErrAccessDenied indicates the request carries no usable authentication.
	ErrAccessDenied = errors.New("access denied")

	// ErrMalformedAuthorization indicates the signature material could not be parsed.
	ErrMalformedAuthorization = errors.New("malformed authorization")

	// ErrInvalidAccessKeyID indicates an unknown access key ID.
	ErrInvalidAccessKeyID = errors.New("the access key ID you provided does not exist in our records")

	// ErrSignatureMismatch indicates the recomputed signature differs from the supplied one.
	ErrSignatureMismatch = errors.New("the request signature we calculated does not match the signature you provided")

	// ErrStreamingNotSupported indicates an aws-chunked streaming upload.
	ErrStreamingNotSupported = errors.New("streaming signed uploads are not supported")
)

// S3ErrorCode represents S3 error codes for API responses.
type S3ErrorCode string

const (
	// S3ErrorAccessDenied maps to HTTP 403.
	S3ErrorAccessDenied S3ErrorCode = "AccessDenied"

	// S3ErrorSignatureDoesNotMatch maps to HTTP 403.
	S3ErrorSignatureDoesNotMatch S3ErrorCode = "SignatureDoesNotMatch"

	// S3ErrorInvalidAccessKeyId maps to HTTP 403.
	S3ErrorInvalidAccessKeyId S3ErrorCode = "InvalidAccessKeyId"

	// S3ErrorNotImplemented maps to HTTP 501.
	S3ErrorNotImplemented S3ErrorCode = "NotImplemented"
)

// AuthError pairs an S3 error code with the HTTP status it is served under.
type AuthError struct {
	// Code is the S3 error code.
	Code S3ErrorCode

	// Message is the error message.
	Message string

	// HTTPStatus is the HTTP status code.
	HTTPStatus int
}

func (e *AuthError) Error() string {
	return string(e.Code) + ": " + e.Message
}

// NewAuthError maps a verification failure onto its S3 error code. Anything
// that is not a recognized failure mode reads as AccessDenied.
func NewAuthError(err error) *AuthError {
	switch {
	case errors.Is(err, ErrSignatureMismatch):
		return &AuthError{
			Code:       S3ErrorSignatureDoesNotMatch,
			Message:    err.Error(),
			HTTPStatus: 403,
		}

	case errors.Is(err, ErrInvalidAccessKeyID):
		return &AuthError{
			Code:       S3ErrorInvalidAccessKeyId,
			Message:    err.Error(),
			HTTPStatus: 403,
		}

	case errors.Is(err, ErrStreamingNotSupported):
		return &AuthError{
			Code:       S3ErrorNotImplemented,
			Message:    err.Error(),
			HTTPStatus: 501,
		}

	default:
		return &AuthError{
			Code:       S3ErrorAccessDenied,
			Message:    err.Error(),
			HTTPStatus: 403,
		}
	}
}
