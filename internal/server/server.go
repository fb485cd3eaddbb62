// Package server exposes the generation pipeline over HTTP: provider and
// voice discovery, job submission and polling, audio download, runtime
// credential updates, and health/metrics endpoints.
//
// Every response carries an X-Request-ID header (set by the observe
// middleware), and every error body follows the
// {error_code, message, details} envelope.
package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/voxweave/voxweave/internal/config"
	"github.com/voxweave/voxweave/internal/ffmpeg"
	"github.com/voxweave/voxweave/internal/jobs"
	"github.com/voxweave/voxweave/internal/observe"
	"github.com/voxweave/voxweave/pkg/provider/tts"
)

// defaultVersion is reported by /api/health when main does not override it.
const defaultVersion = "dev"

// Server holds the handler dependencies. Construct with [New]; the zero
// value is not usable.
type Server struct {
	manager  *jobs.Manager
	registry *tts.Registry
	creds    *config.Credentials
	locator  *ffmpeg.Locator
	metrics  *observe.Metrics
	logger   *slog.Logger
	version  string

	// runJob launches background processing for a created job. Tests replace
	// it to process synchronously.
	runJob func(jobID string)
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server's logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithVersion sets the version string reported by the health endpoint.
func WithVersion(v string) Option {
	return func(s *Server) { s.version = v }
}

// WithMetrics sets the metrics instance used by handlers and middleware.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithJobRunner replaces the background job launcher (for testing).
func WithJobRunner(fn func(jobID string)) Option {
	return func(s *Server) { s.runJob = fn }
}

// New creates a Server over the given pipeline components.
func New(manager *jobs.Manager, registry *tts.Registry, creds *config.Credentials, locator *ffmpeg.Locator, opts ...Option) *Server {
	s := &Server{
		manager:  manager,
		registry: registry,
		creds:    creds,
		locator:  locator,
		logger:   slog.Default(),
		version:  defaultVersion,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	if s.runJob == nil {
		s.runJob = func(jobID string) {
			// Jobs outlive the request that created them.
			go manager.ProcessJob(context.Background(), jobID)
		}
	}
	return s
}

// Handler returns the full route table wrapped in the observability
// middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/providers", s.handleProviders)
	mux.HandleFunc("POST /api/voices", s.handleVoices)
	mux.HandleFunc("POST /api/generate", s.handleGenerate)
	mux.HandleFunc("GET /api/generate/{id}/status", s.handleJobStatus)
	mux.HandleFunc("GET /api/audio/{id}", s.handleAudioMetadata)
	mux.HandleFunc("GET /api/audio/{id}/file", s.handleAudioFile)
	mux.HandleFunc("GET /api/settings", s.handleGetSettings)
	mux.HandleFunc("PUT /api/settings", s.handlePutSettings)
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	return observe.Middleware(s.metrics)(mux)
}
