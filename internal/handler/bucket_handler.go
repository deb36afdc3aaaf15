package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/prn-tf/kvgate/internal/domain"
	"github.com/prn-tf/kvgate/internal/store"
)

// BucketHandler serves the service-level and bucket-level operations.
type BucketHandler struct {
	store  *store.Store
	logger zerolog.Logger

	// now stamps CreationDate in listings; replaceable in tests.
	now func() time.Time
}

// NewBucketHandler creates a new BucketHandler.
func NewBucketHandler(s *store.Store, logger zerolog.Logger) *BucketHandler {
	return &BucketHandler{
		store:  s,
		logger: logger.With().Str("handler", "bucket").Logger(),
		now:    time.Now,
	}
}

// ListBuckets answers GET / with every bucket. The store does not record
// creation times, so each entry reports the current time.
func (h *BucketHandler) ListBuckets(w http.ResponseWriter, r *http.Request) {
	names, err := h.store.ListBuckets(r.Context())
	if err != nil {
		writeError(w, r.URL.EscapedPath(), mapError(err))
		return
	}

	created := xmlTime(h.now())
	result := listAllMyBucketsResult{XMLNS: s3XMLNS}
	for _, name := range names {
		result.Buckets.Buckets = append(result.Buckets.Buckets, bucketEntry{
			Name:         name,
			CreationDate: created,
		})
	}
	writeXML(w, http.StatusOK, result)
}

// CreateBucket answers PUT /{bucket}. Re-creating an existing bucket is a
// no-op success.
func (h *BucketHandler) CreateBucket(w http.ResponseWriter, r *http.Request, bucket string) {
	if err := h.store.CreateBucket(r.Context(), bucket); err != nil {
		writeError(w, r.URL.EscapedPath(), mapError(err))
		return
	}
	w.WriteHeader(http.StatusOK)
}

// HeadBucket answers HEAD /{bucket}.
func (h *BucketHandler) HeadBucket(w http.ResponseWriter, r *http.Request, bucket string) {
	exists, err := h.store.BucketExists(r.Context(), bucket)
	if err != nil {
		writeError(w, r.URL.EscapedPath(), mapError(err))
		return
	}
	if !exists {
		writeError(w, r.URL.EscapedPath(), S3Error{
			Code:           "NoSuchBucket",
			Message:        "The specified bucket does not exist",
			HTTPStatusCode: http.StatusNotFound,
		})
		return
	}
	w.WriteHeader(http.StatusOK)
}

// DeleteBucket answers DELETE /{bucket}. Only empty buckets can go.
func (h *BucketHandler) DeleteBucket(w http.ResponseWriter, r *http.Request, bucket string) {
	if err := h.store.DeleteBucket(r.Context(), bucket); err != nil {
		writeError(w, r.URL.EscapedPath(), mapError(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListObjectsV2 answers GET /{bucket}, honoring prefix, max-keys and
// continuation-token. An unparseable max-keys falls back to the default, and
// out-of-range values are clamped before being echoed.
func (h *BucketHandler) ListObjectsV2(w http.ResponseWriter, r *http.Request, bucket string) {
	query := r.URL.Query()
	prefix := query.Get("prefix")
	token := query.Get("continuation-token")

	maxKeys := store.MaxListKeys
	if raw := query.Get("max-keys"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			maxKeys = parsed
		}
	}
	if maxKeys <= 0 || maxKeys > store.MaxListKeys {
		maxKeys = store.MaxListKeys
	}

	result, err := h.store.ListObjectsV2(r.Context(), bucket, prefix, token, maxKeys)
	if err != nil {
		writeError(w, r.URL.EscapedPath(), mapError(err))
		return
	}

	body := listBucketResult{
		XMLNS:                 s3XMLNS,
		Name:                  bucket,
		Prefix:                prefix,
		MaxKeys:               maxKeys,
		KeyCount:              result.KeyCount(),
		IsTruncated:           result.IsTruncated,
		ContinuationToken:     token,
		NextContinuationToken: result.NextToken,
	}
	for _, obj := range result.Objects {
		body.Contents = append(body.Contents, contentsEntry{
			Key:          obj.Key,
			LastModified: xmlTime(obj.Meta.ModTime),
			ETag:         quoteETag(obj.Meta.ETag),
			Size:         obj.Meta.Size,
			StorageClass: domain.StorageClassStandard,
		})
	}
	writeXML(w, http.StatusOK, body)
}
