package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/prn-tf/kvgate/internal/domain"
	"github.com/prn-tf/kvgate/internal/store"
)

// ObjectHandler serves the object-level operations.
type ObjectHandler struct {
	store  *store.Store
	logger zerolog.Logger
}

// NewObjectHandler creates a new ObjectHandler.
func NewObjectHandler(s *store.Store, logger zerolog.Logger) *ObjectHandler {
	return &ObjectHandler{
		store:  s,
		logger: logger.With().Str("handler", "object").Logger(),
	}
}

// HandlePutObject answers PUT /{bucket}/{key}. The body was already read and
// size-checked by the router. Content-Type is stored as sent; an absent
// header stores the empty string and the default applies on read.
func (h *ObjectHandler) HandlePutObject(w http.ResponseWriter, r *http.Request, bucket, key string, body []byte) {
	meta, err := h.store.PutObject(r.Context(), bucket, key, body, r.Header.Get("Content-Type"))
	if err != nil {
		writeError(w, r.URL.EscapedPath(), mapError(err))
		return
	}
	w.Header().Set("ETag", quoteETag(meta.ETag))
	w.WriteHeader(http.StatusOK)
}

// HandleGetObject answers GET /{bucket}/{key}, honoring a single-range Range
// header. Existence wins over range validity: a missing object is 404 even
// under an unsatisfiable Range.
func (h *ObjectHandler) HandleGetObject(w http.ResponseWriter, r *http.Request, bucket, key string) {
	meta, data, err := h.store.GetObject(r.Context(), bucket, key)
	if err != nil {
		writeError(w, r.URL.EscapedPath(), mapError(err))
		return
	}

	size := int64(len(data))
	status := http.StatusOK
	body := data

	if rangeHeader := r.Header.Get("Range"); rangeHeader != "" {
		br, ok := parseRange(rangeHeader, size)
		if !ok {
			w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", size))
			writeError(w, r.URL.EscapedPath(), errInvalidRange)
			return
		}
		w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", br.start, br.end, size))
		status = http.StatusPartialContent
		body = data[br.start : br.end+1]
	}

	writeObjectHeaders(w, meta)
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// HandleHeadObject answers HEAD /{bucket}/{key} with the object's headers.
func (h *ObjectHandler) HandleHeadObject(w http.ResponseWriter, r *http.Request, bucket, key string) {
	meta, err := h.store.HeadObject(r.Context(), bucket, key)
	if err != nil {
		writeError(w, r.URL.EscapedPath(), mapError(err))
		return
	}
	writeObjectHeaders(w, meta)
	w.Header().Set("Content-Length", strconv.FormatInt(meta.Size, 10))
	w.WriteHeader(http.StatusOK)
}

// HandleDeleteObject answers DELETE /{bucket}/{key}. Deleting an absent key
// from an existing bucket still returns 204.
func (h *ObjectHandler) HandleDeleteObject(w http.ResponseWriter, r *http.Request, bucket, key string) {
	if err := h.store.DeleteObject(r.Context(), bucket, key); err != nil {
		writeError(w, r.URL.EscapedPath(), mapError(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeObjectHeaders sets the metadata headers shared by GET and HEAD.
func writeObjectHeaders(w http.ResponseWriter, meta domain.ObjectMeta) {
	w.Header().Set("Content-Type", meta.EffectiveContentType())
	w.Header().Set("ETag", quoteETag(meta.ETag))
	w.Header().Set("Last-Modified", meta.ModTime.UTC().Format(http.TimeFormat))
	w.Header().Set("Accept-Ranges", "bytes")
}
