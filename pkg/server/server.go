// Package server exposes the pipeline registry over a small HTTP API:
// POST /v1/query runs the default (router) pipeline, /healthz reports
// liveness, and /metrics serves Prometheus metrics.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/relayai/relay-oss/internal/resilience"
	"github.com/relayai/relay-oss/pkg/domain"
	"github.com/relayai/relay-oss/pkg/engine"
)

// Server handles HTTP access to the pipeline registry.
type Server struct {
	registry *engine.Registry
	logger   *slog.Logger
	metrics  *Metrics
	limiter  *resilience.Limiter
	httpSrv  *http.Server
}

// Option configures a Server at construction time.
type Option func(*Server)

// WithRateLimit bounds the inbound query rate. A nil limiter disables the
// bound.
func WithRateLimit(limiter *resilience.Limiter) Option {
	return func(s *Server) { s.limiter = limiter }
}

// QueryRequest is the body of POST /v1/query.
type QueryRequest struct {
	Query    string `json:"query"`
	Pipeline string `json:"pipeline,omitempty"`
}

// QueryResponse is the success body of POST /v1/query.
type QueryResponse struct {
	Response  any    `json:"response"`
	Pipeline  string `json:"pipeline"`
	RequestID string `json:"request_id"`
}

// ErrorResponse is the standard JSON error body: a stable machine-readable
// code plus a human-readable message.
type ErrorResponse struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// New creates a server around the given registry.
func New(addr string, registry *engine.Registry, logger *slog.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		registry: registry,
		logger:   logger,
		metrics:  NewMetrics(),
	}
	for _, opt := range opts {
		opt(s)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/query", s.handleQuery)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", s.metrics.Handler())

	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Start blocks serving HTTP until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("http server listening", "addr", s.httpSrv.Addr)
	err := s.httpSrv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

// Handler exposes the mux for tests.
func (s *Server) Handler() http.Handler {
	return s.httpSrv.Handler
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":     "ok",
		"pipelines":  s.registry.List(),
		"generation": s.registry.Generation(),
	})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get("X-Request-ID")
	if requestID == "" {
		requestID = uuid.New().String()
	}

	if s.limiter != nil && !s.limiter.Allow() {
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(s.limiter.Limit()))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(s.limiter.Remaining()))
		s.writeError(w, http.StatusTooManyRequests, "RATE_LIMITED", "query rate limit exceeded", requestID)
		return
	}

	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Query == "" {
		s.writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "body must be JSON with a non-empty query", requestID)
		return
	}

	var pipeline *engine.Pipeline
	var err error
	if req.Pipeline != "" {
		var ok bool
		pipeline, ok = s.registry.Get(req.Pipeline)
		if !ok {
			s.writeError(w, http.StatusNotFound, "PIPELINE_NOT_FOUND", "no such pipeline: "+req.Pipeline, requestID)
			return
		}
	} else {
		pipeline, err = s.registry.Default()
		if err != nil {
			s.writeError(w, http.StatusServiceUnavailable, "NO_DEFAULT_PIPELINE", err.Error(), requestID)
			return
		}
	}

	start := time.Now()
	response, err := pipeline.RunQuery(r.Context(), req.Query)
	duration := time.Since(start)

	if err != nil {
		status := statusForError(err)
		s.metrics.RecordQuery(pipeline.ID(), status, duration)
		s.logger.Error("query failed",
			"request_id", requestID,
			"pipeline_id", pipeline.ID(),
			"status", status,
			"error", err,
		)
		s.writeError(w, status, codeForError(err), err.Error(), requestID)
		return
	}

	s.metrics.RecordQuery(pipeline.ID(), http.StatusOK, duration)
	s.logger.Info("query handled",
		"request_id", requestID,
		"pipeline_id", pipeline.ID(),
		"duration_ms", duration.Milliseconds(),
	)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Request-ID", requestID)
	_ = json.NewEncoder(w).Encode(QueryResponse{
		Response:  response,
		Pipeline:  pipeline.ID(),
		RequestID: requestID,
	})
}

func (s *Server) writeError(w http.ResponseWriter, status int, code, message, requestID string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Code: code, Message: message, RequestID: requestID})
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, domain.ErrMissingInput), errors.Is(err, domain.ErrAmbiguousInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrEmptyRouter), errors.Is(err, domain.ErrCyclicGraph):
		return http.StatusInternalServerError
	case errors.Is(err, domain.ErrSelection):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func codeForError(err error) string {
	switch {
	case errors.Is(err, domain.ErrMissingInput):
		return "MISSING_INPUT"
	case errors.Is(err, domain.ErrSelection):
		return "SELECTION_FAILED"
	case errors.Is(err, domain.ErrEmptyRouter):
		return "EMPTY_ROUTER"
	case errors.Is(err, domain.ErrCyclicGraph):
		return "CYCLIC_GRAPH"
	default:
		return "EXECUTION_FAILED"
	}
}
