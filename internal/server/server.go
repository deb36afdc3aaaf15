// Package server assembles the HTTP front-end: the S3 handler behind the
// metrics and logging middleware, plus the /metrics and /healthz endpoints.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/prn-tf/kvgate/internal/metrics"
)

// Config contains configuration for the HTTP server.
type Config struct {
	// Listen is the address to bind, host:port.
	Listen string
}

// Server is the gateway's HTTP front-end.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	instanceID string
	logger     zerolog.Logger
}

// New wires the S3 handler, metrics endpoint and health check into one
// router. /metrics and /healthz shadow same-named buckets for GET only;
// other methods on those paths fall through to the S3 handler.
func New(cfg Config, s3 http.Handler, m *metrics.Metrics, logger zerolog.Logger) *Server {
	s := &Server{
		instanceID: uuid.NewString(),
		logger:     logger.With().Str("component", "server").Logger(),
	}

	api := m.Middleware(s.requestLogger(s3))

	r := chi.NewRouter()
	r.Get("/metrics", m.Handler().ServeHTTP)
	r.Get("/healthz", s.handleHealthz)
	r.Handle("/", api)
	r.Handle("/*", api)
	r.MethodNotAllowed(api.ServeHTTP)

	s.handler = r
	s.httpServer = &http.Server{
		Addr:              cfg.Listen,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the composed router.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// InstanceID returns the uuid minted for this boot.
func (s *Server) InstanceID() string {
	return s.instanceID
}

// Start blocks serving requests until Shutdown or a listener error.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown drains inflight requests and closes the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// handleHealthz reports liveness and the boot instance id.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok","instance":"` + s.instanceID + `"}`))
}
