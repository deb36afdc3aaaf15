// Package auth verifies AWS Signature Version 4 on incoming requests.
package auth

import (
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// =============================================================================
// Authorization Header Parsing
// =============================================================================

// Regular expressions for parsing the AWS v4 Authorization header.
var (
	// credentialRegex matches Credential=accessKey/date/region/service/aws4_request
	credentialRegex = regexp.MustCompile(`Credential=([^/,\s]+)/(\d{8})/([^/,\s]+)/([^/,\s]+)/aws4_request`)

	// signedHeadersRegex matches SignedHeaders=header1;header2;header3
	signedHeadersRegex = regexp.MustCompile(`SignedHeaders=([^,\s]+)`)

	// signatureRegex matches Signature=hexstring
	signatureRegex = regexp.MustCompile(`Signature=([a-f0-9]{64})`)
)

// GetAuthType determines the authentication type from a request.
func GetAuthType(r *http.Request) AuthType {
	authHeader := r.Header.Get(AuthorizationHeader)

	if authHeader != "" {
		if strings.HasPrefix(authHeader, SignV4Algorithm) {
			return AuthTypeSignedV4
		}
		return AuthTypeUnknown
	}

	if r.URL.Query().Get(XAmzAlgorithmQuery) == SignV4Algorithm {
		return AuthTypePresignedV4
	}

	return AuthTypeAnonymous
}

// ParseSignV4 parses an AWS v4 Authorization header.
// Format: AWS4-HMAC-SHA256 Credential=access_key/date/region/service/aws4_request, SignedHeaders=..., Signature=...
func ParseSignV4(authHeader string) (*SignedValues, error) {
	if !strings.HasPrefix(authHeader, SignV4Algorithm) {
		return nil, ErrMalformedAuthorization
	}

	credentialMatch := credentialRegex.FindStringSubmatch(authHeader)
	if credentialMatch == nil {
		return nil, fmt.Errorf("%w: invalid credential format", ErrMalformedAuthorization)
	}
	if credentialMatch[4] != ServiceS3 {
		return nil, fmt.Errorf("%w: credential scope service must be %q", ErrMalformedAuthorization, ServiceS3)
	}

	date, err := time.Parse(YYYYMMDD, credentialMatch[2])
	if err != nil {
		return nil, fmt.Errorf("%w: invalid date in credential", ErrMalformedAuthorization)
	}

	signedHeadersMatch := signedHeadersRegex.FindStringSubmatch(authHeader)
	if signedHeadersMatch == nil {
		return nil, fmt.Errorf("%w: missing signed headers", ErrMalformedAuthorization)
	}
	signedHeaders := strings.Split(strings.ToLower(signedHeadersMatch[1]), ";")

	signatureMatch := signatureRegex.FindStringSubmatch(authHeader)
	if signatureMatch == nil {
		return nil, fmt.Errorf("%w: missing or invalid signature", ErrMalformedAuthorization)
	}

	return &SignedValues{
		Credential: CredentialHeader{
			AccessKey: credentialMatch[1],
			Scope: CredentialScope{
				Date:    date,
				Region:  credentialMatch[3],
				Service: credentialMatch[4],
			},
		},
		SignedHeaders: signedHeaders,
		Signature:     signatureMatch[1],
	}, nil
}

// ParsePresignedV4 parses presigned URL query parameters. The returned
// expiry is informational; presigned requests are not expired server-side.
func ParsePresignedV4(r *http.Request) (*SignedValues, int64, error) {
	query := r.URL.Query()

	if query.Get(XAmzAlgorithmQuery) != SignV4Algorithm {
		return nil, 0, fmt.Errorf("%w: unsupported algorithm", ErrMalformedAuthorization)
	}

	credential := query.Get(XAmzCredentialQuery)
	if credential == "" {
		return nil, 0, fmt.Errorf("%w: missing credential", ErrMalformedAuthorization)
	}

	parts := strings.Split(credential, "/")
	if len(parts) != 5 || parts[4] != AWS4Request {
		return nil, 0, fmt.Errorf("%w: invalid credential format", ErrMalformedAuthorization)
	}
	if parts[3] != ServiceS3 {
		return nil, 0, fmt.Errorf("%w: credential scope service must be %q", ErrMalformedAuthorization, ServiceS3)
	}

	date, err := time.Parse(YYYYMMDD, parts[1])
	if err != nil {
		return nil, 0, fmt.Errorf("%w: invalid date in credential", ErrMalformedAuthorization)
	}

	signedHeadersStr := query.Get(XAmzSignedHeadersQuery)
	if signedHeadersStr == "" {
		return nil, 0, fmt.Errorf("%w: missing signed headers", ErrMalformedAuthorization)
	}
	signedHeaders := strings.Split(strings.ToLower(signedHeadersStr), ";")

	signature := query.Get(XAmzSignatureQuery)
	if len(signature) != 64 {
		return nil, 0, fmt.Errorf("%w: missing or invalid signature", ErrMalformedAuthorization)
	}

	var expires int64
	if expiresStr := query.Get(XAmzExpiresQuery); expiresStr != "" {
		expires, err = strconv.ParseInt(expiresStr, 10, 64)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: invalid expires value", ErrMalformedAuthorization)
		}
	}

	return &SignedValues{
		Credential: CredentialHeader{
			AccessKey: parts[0],
			Scope: CredentialScope{
				Date:    date,
				Region:  parts[2],
				Service: parts[3],
			},
		},
		SignedHeaders: signedHeaders,
		Signature:     signature,
	}, expires, nil
}

// GetRequestTime extracts the request timestamp from the X-Amz-Date header,
// falling back to the query parameter for presigned URLs.
func GetRequestTime(r *http.Request) (time.Time, error) {
	if dateStr := r.Header.Get(XAmzDateHeader); dateStr != "" {
		t, err := time.Parse(ISO8601BasicFormat, dateStr)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: bad %s header", ErrMalformedAuthorization, XAmzDateHeader)
		}
		return t, nil
	}

	if dateStr := r.URL.Query().Get(XAmzDateHeader); dateStr != "" {
		t, err := time.Parse(ISO8601BasicFormat, dateStr)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: bad %s parameter", ErrMalformedAuthorization, XAmzDateHeader)
		}
		return t, nil
	}

	return time.Time{}, fmt.Errorf("%w: missing %s", ErrMalformedAuthorization, XAmzDateHeader)
}
