package handler

import (
	"encoding/xml"
	"io"
	"net/http"
	"time"
)

const (
	// s3XMLNS is the namespace stamped on listing results.
	s3XMLNS = "http://s3.amazonaws.com/doc/2006-03-01/"

	// iso8601Millis is the timestamp layout used inside XML bodies.
	iso8601Millis = "2006-01-02T15:04:05.000Z"
)

// listAllMyBucketsResult is the ListBuckets response body. The Buckets
// wrapper is a struct so the element is present even when no buckets exist.
type listAllMyBucketsResult struct {
	XMLName xml.Name `xml:"ListAllMyBucketsResult"`
	XMLNS   string   `xml:"xmlns,attr"`
	Buckets struct {
		Buckets []bucketEntry `xml:"Bucket"`
	} `xml:"Buckets"`
}

// bucketEntry is one bucket in a ListBuckets response.
type bucketEntry struct {
	Name         string `xml:"Name"`
	CreationDate string `xml:"CreationDate"`
}

// listBucketResult is the ListObjectsV2 response body.
type listBucketResult struct {
	XMLName               xml.Name        `xml:"ListBucketResult"`
	XMLNS                 string          `xml:"xmlns,attr"`
	Name                  string          `xml:"Name"`
	Prefix                string          `xml:"Prefix"`
	MaxKeys               int             `xml:"MaxKeys"`
	KeyCount              int             `xml:"KeyCount"`
	IsTruncated           bool            `xml:"IsTruncated"`
	ContinuationToken     string          `xml:"ContinuationToken,omitempty"`
	NextContinuationToken string          `xml:"NextContinuationToken,omitempty"`
	Contents              []contentsEntry `xml:"Contents"`
}

// contentsEntry is one object in a ListObjectsV2 response.
type contentsEntry struct {
	Key          string `xml:"Key"`
	LastModified string `xml:"LastModified"`
	ETag         string `xml:"ETag"`
	Size         int64  `xml:"Size"`
	StorageClass string `xml:"StorageClass"`
}

// writeXML renders payload as the response body with the XML declaration.
func writeXML(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(status)
	io.WriteString(w, xml.Header)
	_ = xml.NewEncoder(w).Encode(payload)
}

// xmlTime renders t for XML bodies: UTC, second resolution, fixed .000
// millisecond field.
func xmlTime(t time.Time) string {
	return t.UTC().Format(iso8601Millis)
}

// quoteETag wraps a bare hex ETag in the double quotes S3 serves it with.
func quoteETag(etag string) string {
	return `"` + etag + `"`
}
