// Package codec provides byte-level encoding helpers shared by the signature
// and protocol layers: RFC 3986 percent encoding, canonical query strings,
// digest and HMAC helpers, and list continuation tokens.
package codec

import (
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// PercentEncode encodes s per RFC 3986. Unreserved characters pass through
// unchanged; every other byte becomes %XX with uppercase hex. When encodeSlash
// is false, '/' also passes through, which is the form canonical URIs use.
func PercentEncode(s string, encodeSlash bool) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9',
			c == '-', c == '.', c == '_', c == '~':
			b.WriteByte(c)
		case c == '/' && !encodeSlash:
			b.WriteByte(c)
		default:
			b.WriteString(fmt.Sprintf("%%%02X", c))
		}
	}
	return b.String()
}

// PercentDecode reverses percent encoding. '%' must be followed by two hex
// digits; '+' is a literal plus, not a space.
func PercentDecode(s string) (string, error) {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '%' {
			b.WriteByte(c)
			continue
		}
		if i+2 >= len(s) {
			return "", fmt.Errorf("truncated percent escape at offset %d", i)
		}
		hi, ok1 := unhex(s[i+1])
		lo, ok2 := unhex(s[i+2])
		if !ok1 || !ok2 {
			return "", fmt.Errorf("invalid percent escape %q at offset %d", s[i:i+3], i)
		}
		b.WriteByte(hi<<4 | lo)
		i += 2
	}
	return b.String(), nil
}

func unhex(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

// CanonicalQuery renders params in canonical form: keys sorted byte-wise,
// values sorted within a key, every key and value percent-encoded with
// encodeSlash=true, pairs joined by '&'. Keys without a value render "key=".
func CanonicalQuery(params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var pairs []string
	for _, k := range keys {
		vals := append([]string(nil), params[k]...)
		sort.Strings(vals)
		ek := PercentEncode(k, true)
		for _, v := range vals {
			pairs = append(pairs, ek+"="+PercentEncode(v, true))
		}
	}
	return strings.Join(pairs, "&")
}

// CollapseSpaces trims s and collapses internal whitespace runs to a single
// space, the normalization canonical header values require.
func CollapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// HexSHA256 returns the lowercase hex SHA-256 digest of data.
func HexSHA256(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// HexMD5 returns the lowercase hex MD5 digest of data.
func HexMD5(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}

// HMACSHA256 computes HMAC-SHA256 of data under key.
func HMACSHA256(key, data []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(data)
	return mac.Sum(nil)
}

// SigningKey derives the AWS v4 signing key for a credential scope: the
// HMAC chain over date, region, service, terminated by "aws4_request".
func SigningKey(secret, date, region, service string) []byte {
	k := HMACSHA256([]byte("AWS4"+secret), []byte(date))
	k = HMACSHA256(k, []byte(region))
	k = HMACSHA256(k, []byte(service))
	return HMACSHA256(k, []byte("aws4_request"))
}

// EncodeToken encodes a raw continuation cursor as the opaque token handed to
// clients.
func EncodeToken(raw []byte) string {
	return base64.StdEncoding.EncodeToString(raw)
}

// DecodeToken decodes a client-supplied continuation token back into the raw
// cursor bytes.
func DecodeToken(token string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("malformed continuation token: %w", err)
	}
	return raw, nil
}
