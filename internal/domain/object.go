package domain

import "time"

const (
	// StorageClassStandard is the storage class reported for every object.
	StorageClassStandard = "STANDARD"

	// DefaultContentType is served when an object was stored without one.
	DefaultContentType = "application/octet-stream"
)

// ObjectMeta is the metadata record kept alongside every object's data.
type ObjectMeta struct {
	// Size is the object length in bytes.
	Size int64

	// ModTime is the last write time, second resolution.
	ModTime time.Time

	// ETag is the lowercase hex MD5 of the object data, unquoted.
	ETag string

	// ContentType is the stored MIME type; may be empty.
	ContentType string
}

// EffectiveContentType returns the stored content type, or the default when
// none was recorded.
func (m ObjectMeta) EffectiveContentType() string {
	if m.ContentType == "" {
		return DefaultContentType
	}
	return m.ContentType
}

// ObjectEntry is one object in a listing.
type ObjectEntry struct {
	Key  string
	Meta ObjectMeta
}

// ListResult is the outcome of a ListObjectsV2 scan.
type ListResult struct {
	// Objects are the entries collected this page, in key order.
	Objects []ObjectEntry

	// IsTruncated reports whether more matching keys remain past this page.
	IsTruncated bool

	// NextToken resumes the scan after the last entry when IsTruncated.
	NextToken string
}

// KeyCount returns the number of entries in this page.
func (r ListResult) KeyCount() int {
	return len(r.Objects)
}
