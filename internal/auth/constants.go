// Package auth verifies AWS Signature Version 4 on incoming requests, for
// both the Authorization header and presigned query-parameter forms.
package auth

// =============================================================================
// Constants
// =============================================================================

const (
	// SignV4Algorithm is the algorithm identifier for AWS Signature Version 4.
	SignV4Algorithm = "AWS4-HMAC-SHA256"

	// ISO8601BasicFormat is the timestamp format used in AWS v4 signatures.
	ISO8601BasicFormat = "20060102T150405Z"

	// YYYYMMDD is the short date format used in credential scope.
	YYYYMMDD = "20060102"

	// ServiceS3 is the only service name accepted in credential scope.
	ServiceS3 = "s3"

	// AWS4Request is the termination string for credential scope.
	AWS4Request = "aws4_request"
)

// =============================================================================
// Header and Query Parameter Names
// =============================================================================

const (
	// AuthorizationHeader is the HTTP header carrying the v4 signature.
	AuthorizationHeader = "Authorization"

	// XAmzDateHeader is the AWS request timestamp header.
	XAmzDateHeader = "X-Amz-Date"

	// XAmzContentSHA256Header carries the payload hash.
	XAmzContentSHA256Header = "X-Amz-Content-Sha256"

	// XAmzAlgorithmQuery is the algorithm query parameter (presigned URLs).
	XAmzAlgorithmQuery = "X-Amz-Algorithm"

	// XAmzCredentialQuery is the credential query parameter (presigned URLs).
	XAmzCredentialQuery = "X-Amz-Credential"

	// XAmzSignedHeadersQuery is the signed headers query parameter (presigned URLs).
	XAmzSignedHeadersQuery = "X-Amz-SignedHeaders"

	// XAmzExpiresQuery is the expiry query parameter (presigned URLs).
	XAmzExpiresQuery = "X-Amz-Expires"

	// XAmzSignatureQuery is the signature query parameter (presigned URLs).
	XAmzSignatureQuery = "X-Amz-Signature"
)

// =============================================================================
// Special Content Hash Values
// =============================================================================

const (
	// UnsignedPayload indicates the payload is not included in the signature.
	UnsignedPayload = "UNSIGNED-PAYLOAD"

	// StreamingPayloadPrefix marks aws-chunked uploads, which are not supported.
	StreamingPayloadPrefix = "STREAMING-"

	// EmptyStringSHA256 is the SHA-256 hash of an empty string.
	EmptyStringSHA256 = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
)
