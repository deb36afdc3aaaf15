package handler

import (
	"net"
	"net/http"
	"strings"

	"github.com/prn-tf/kvgate/internal/codec"
)

// target is the bucket/key pair a request addresses. An empty bucket means
// the service root; an empty key with a bucket means a bucket operation.
type target struct {
	bucket string
	key    string
}

// resolveTarget extracts the addressed bucket and key from the request.
// Virtual-host style wins over path style when the Host header matches the
// configured suffix; otherwise the first path segment is the bucket and the
// remainder is the key.
func resolveTarget(r *http.Request, vhostSuffix string) target {
	path := r.URL.EscapedPath()

	if bucket, ok := bucketFromHost(r.Host, vhostSuffix); ok {
		keyEnc := strings.TrimPrefix(path, "/")
		return target{bucket: bucket, key: decodeOrRaw(keyEnc)}
	}

	p := strings.TrimPrefix(path, "/")
	if p == "" {
		return target{}
	}

	bucketEnc, keyEnc, _ := strings.Cut(p, "/")
	return target{bucket: decodeOrRaw(bucketEnc), key: decodeOrRaw(keyEnc)}
}

// bucketFromHost returns the bucket encoded in a virtual-host style Host
// header. The host must be <bucket>.<suffix> with a literal dot boundary; a
// bare suffix or an empty bucket label does not match.
func bucketFromHost(host, suffix string) (string, bool) {
	if suffix == "" || host == "" {
		return "", false
	}
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	bucket, ok := strings.CutSuffix(host, "."+suffix)
	if !ok || bucket == "" {
		return "", false
	}
	return bucket, true
}

// decodeOrRaw percent-decodes s, falling back to the raw text when the
// encoding is invalid.
func decodeOrRaw(s string) string {
	if dec, err := codec.PercentDecode(s); err == nil {
		return dec
	}
	return s
}
