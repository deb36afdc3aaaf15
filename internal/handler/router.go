// Package handler implements the S3 protocol surface: request target
// resolution, operation dispatch, XML rendering, and the error envelope.
package handler

import (
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/prn-tf/kvgate/internal/auth"
	"github.com/prn-tf/kvgate/internal/store"
)

// Router dispatches S3 API requests to the bucket and object handlers.
type Router struct {
	bucketHandler *BucketHandler
	objectHandler *ObjectHandler

	verifier          *auth.Verifier // nil when auth is disabled
	maxObjectBytes    int64
	virtualHostSuffix string
	logger            zerolog.Logger
}

// RouterConfig contains configuration for the router.
type RouterConfig struct {
	Store *store.Store

	// Verifier checks request signatures; leave nil to accept everything.
	Verifier *auth.Verifier

	// MaxObjectBytes caps request bodies; larger uploads get EntityTooLarge.
	MaxObjectBytes int64

	// VirtualHostSuffix enables virtual-host style addressing when set.
	VirtualHostSuffix string

	Logger zerolog.Logger
}

// NewRouter creates a new Router.
func NewRouter(config RouterConfig) *Router {
	return &Router{
		bucketHandler:     NewBucketHandler(config.Store, config.Logger),
		objectHandler:     NewObjectHandler(config.Store, config.Logger),
		verifier:          config.Verifier,
		maxObjectBytes:    config.MaxObjectBytes,
		virtualHostSuffix: config.VirtualHostSuffix,
		logger:            config.Logger.With().Str("component", "router").Logger(),
	}
}

// ServeHTTP handles one S3 API request: read and size-check the body, verify
// the signature, resolve the target, dispatch. Every response, including
// errors, carries the Server header and a fresh x-amz-request-id.
func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Server", serverName)
	w.Header().Set("x-amz-request-id", nextRequestID())

	body, err := readBody(w, r, rt.maxObjectBytes)
	if err != nil {
		writeError(w, r.URL.RequestURI(), mapError(err))
		return
	}

	if rt.verifier != nil {
		if err := rt.verifier.Verify(r, body); err != nil {
			rt.logger.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Err(err).
				Msg("signature verification failed")
			writeError(w, r.URL.RequestURI(), mapError(err))
			return
		}
	}

	t := resolveTarget(r, rt.virtualHostSuffix)
	switch {
	case t.bucket == "":
		rt.handleServiceRequest(w, r)
	case t.key == "":
		rt.handleBucketRequest(w, r, t.bucket)
	default:
		rt.handleObjectRequest(w, r, t.bucket, t.key, body)
	}
}

// handleServiceRequest routes requests addressing the service root.
func (rt *Router) handleServiceRequest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, r.URL.EscapedPath(), errMethodNotAllowed)
		return
	}
	rt.bucketHandler.ListBuckets(w, r)
}

// handleBucketRequest routes bucket-level requests.
func (rt *Router) handleBucketRequest(w http.ResponseWriter, r *http.Request, bucket string) {
	switch r.Method {
	case http.MethodPut:
		rt.bucketHandler.CreateBucket(w, r, bucket)
	case http.MethodHead:
		rt.bucketHandler.HeadBucket(w, r, bucket)
	case http.MethodGet:
		rt.bucketHandler.ListObjectsV2(w, r, bucket)
	case http.MethodDelete:
		rt.bucketHandler.DeleteBucket(w, r, bucket)
	default:
		writeError(w, r.URL.EscapedPath(), errMethodNotAllowed)
	}
}

// handleObjectRequest routes object-level requests.
func (rt *Router) handleObjectRequest(w http.ResponseWriter, r *http.Request, bucket, key string, body []byte) {
	switch r.Method {
	case http.MethodPut:
		rt.objectHandler.HandlePutObject(w, r, bucket, key, body)
	case http.MethodGet:
		rt.objectHandler.HandleGetObject(w, r, bucket, key)
	case http.MethodHead:
		rt.objectHandler.HandleHeadObject(w, r, bucket, key)
	case http.MethodDelete:
		rt.objectHandler.HandleDeleteObject(w, r, bucket, key)
	default:
		writeError(w, r.URL.EscapedPath(), errMethodNotAllowed)
	}
}

// readBody drains the request body under the configured cap. Exceeding it
// surfaces as *http.MaxBytesError, which maps to EntityTooLarge.
func readBody(w http.ResponseWriter, r *http.Request, limit int64) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	defer r.Body.Close()
	return io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
}
