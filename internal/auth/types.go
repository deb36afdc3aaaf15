// Package auth verifies AWS Signature Version 4 on incoming requests.
package auth

import (
	"time"
)

// =============================================================================
// Credential Types
// =============================================================================

// CredentialScope represents the scope of AWS credentials.
// Format: {date}/{region}/{service}/aws4_request
type CredentialScope struct {
	// Date is the date portion of the scope (YYYYMMDD).
	Date time.Time

	// Region is the AWS region (e.g., "us-east-1").
	Region string

	// Service is the AWS service (always "s3" here).
	Service string
}

// String returns the credential scope as a string.
// Format: {date}/{region}/{service}/aws4_request
func (cs CredentialScope) String() string {
	return cs.Date.Format(YYYYMMDD) + "/" + cs.Region + "/" + cs.Service + "/" + AWS4Request
}

// CredentialHeader represents parsed AWS credentials from a request.
type CredentialHeader struct {
	// AccessKey is the access key ID.
	AccessKey string

	// Scope is the credential scope.
	Scope CredentialScope
}

// String returns the credential as a string.
// Format: {access_key}/{scope}
func (ch CredentialHeader) String() string {
	return ch.AccessKey + "/" + ch.Scope.String()
}

// =============================================================================
// Signature Types
// =============================================================================

// SignedValues represents the components of an AWS v4 signature as parsed
// from the Authorization header or presigned query parameters.
type SignedValues struct {
	// Credential contains the access key and scope.
	Credential CredentialHeader

	// SignedHeaders is the list of headers included in the signature,
	// lowercased, in the order the client listed them.
	SignedHeaders []string

	// Signature is the client-supplied signature (hex-encoded).
	Signature string
}

// AuthType represents the type of authentication used in a request.
type AuthType int

const (
	// AuthTypeUnknown indicates an unrecognized Authorization header.
	AuthTypeUnknown AuthType = iota

	// AuthTypeAnonymous indicates no authentication material at all.
	AuthTypeAnonymous

	// AuthTypeSignedV4 indicates AWS Signature Version 4 in the Authorization header.
	AuthTypeSignedV4

	// AuthTypePresignedV4 indicates AWS Signature Version 4 in query parameters.
	AuthTypePresignedV4
)

// String returns the string representation of the auth type.
func (at AuthType) String() string {
	switch at {
	case AuthTypeAnonymous:
		return "Anonymous"
	case AuthTypeSignedV4:
		return "SignedV4"
	case AuthTypePresignedV4:
		return "PresignedV4"
	default:
		return "Unknown"
	}
}

// =============================================================================
// Signature Components
// =============================================================================

// CanonicalRequest represents the components of a canonical request.
type CanonicalRequest struct {
	// Method is the HTTP method.
	Method string

	// URI is the canonical URI path.
	URI string

	// QueryString is the canonical query string.
	QueryString string

	// Headers is the canonical headers block, newline-terminated.
	Headers string

	// SignedHeaders is the signed headers list joined with ";".
	SignedHeaders string

	// PayloadHash is the hash of the request payload.
	PayloadHash string
}

// String returns the canonical request as a string for signing.
func (cr CanonicalRequest) String() string {
	return cr.Method + "\n" +
		cr.URI + "\n" +
		cr.QueryString + "\n" +
		cr.Headers + "\n" +
		cr.SignedHeaders + "\n" +
		cr.PayloadHash
}

// StringToSign represents the final string that is HMAC-signed.
type StringToSign struct {
	// Algorithm is the signing algorithm.
	Algorithm string

	// RequestDateTime is the request timestamp in ISO 8601 basic format.
	RequestDateTime string

	// CredentialScope is the credential scope string.
	CredentialScope string

	// CanonicalRequestHash is the hex SHA-256 of the canonical request.
	CanonicalRequestHash string
}

// String returns the string to sign.
func (sts StringToSign) String() string {
	return sts.Algorithm + "\n" +
		sts.RequestDateTime + "\n" +
		sts.CredentialScope + "\n" +
		sts.CanonicalRequestHash
}
