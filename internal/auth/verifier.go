// Package auth verifies AWS Signature Version 4 on incoming requests.
package auth

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/prn-tf/kvgate/internal/codec"
)

// Credentials is the static key pair requests are verified against.
type Credentials struct {
	// AccessKeyID is the public access key identifier.
	AccessKeyID string

	// SecretKey is the signing secret for AccessKeyID.
	SecretKey string
}

// Verifier authenticates requests against a single configured credential
// pair. Both the Authorization-header and presigned-URL forms of SigV4 are
// accepted; aws-chunked streaming uploads are rejected.
type Verifier struct {
	creds  Credentials
	logger zerolog.Logger
}

// NewVerifier creates a Verifier for the given credentials.
func NewVerifier(creds Credentials, logger zerolog.Logger) *Verifier {
	return &Verifier{
		creds:  creds,
		logger: logger.With().Str("component", "auth").Logger(),
	}
}

// Verify authenticates r. body is the fully read request body; the header
// flow hashes it when the client did not supply X-Amz-Content-Sha256.
func (v *Verifier) Verify(r *http.Request, body []byte) error {
	var err error
	switch authType := GetAuthType(r); authType {
	case AuthTypeSignedV4:
		err = v.verifySigned(r, body)
	case AuthTypePresignedV4:
		err = v.verifyPresigned(r)
	default:
		err = ErrAccessDenied
	}

	if err != nil {
		v.logger.Debug().
			Err(err).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("authentication failed")
	}
	return err
}

// verifySigned handles the Authorization-header flow.
func (v *Verifier) verifySigned(r *http.Request, body []byte) error {
	signedValues, err := ParseSignV4(r.Header.Get(AuthorizationHeader))
	if err != nil {
		return err
	}

	if signedValues.Credential.AccessKey != v.creds.AccessKeyID {
		return ErrInvalidAccessKeyID
	}

	requestTime, err := GetRequestTime(r)
	if err != nil {
		return err
	}

	payloadHash := r.Header.Get(XAmzContentSHA256Header)
	if strings.HasPrefix(payloadHash, StreamingPayloadPrefix) {
		return ErrStreamingNotSupported
	}
	if payloadHash == "" {
		payloadHash = codec.HexSHA256(body)
	}

	return VerifySignature(r, v.creds.SecretKey, signedValues, payloadHash, requestTime)
}

// verifyPresigned handles the query-parameter flow. The payload is never
// signed, and the supplied expiry is not enforced.
func (v *Verifier) verifyPresigned(r *http.Request) error {
	signedValues, _, err := ParsePresignedV4(r)
	if err != nil {
		return err
	}

	if signedValues.Credential.AccessKey != v.creds.AccessKeyID {
		return ErrInvalidAccessKeyID
	}

	requestTime, err := GetRequestTime(r)
	if err != nil {
		return err
	}

	return VerifySignature(r, v.creds.SecretKey, signedValues, UnsignedPayload, requestTime)
}
