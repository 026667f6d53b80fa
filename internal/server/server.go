// Package server exposes a read-only HTTP view of plans together with
// Prometheus metrics and health probes.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/felixgeelhaar/plancraft/internal/domain"
	"github.com/felixgeelhaar/plancraft/internal/engine"
	"github.com/felixgeelhaar/plancraft/internal/errors"
	"github.com/felixgeelhaar/plancraft/internal/health"
	"github.com/felixgeelhaar/plancraft/internal/metrics"
)

// Opener loads the current state of a plan.
type Opener func(ctx context.Context, id domain.PlanID) (*engine.Engine, error)

// Lister enumerates known plans.
type Lister func(ctx context.Context) ([]string, error)

// Server serves plan progress, reports and next-task decisions.
type Server struct {
	httpServer      *http.Server
	probes          *health.ProbeManager
	metrics         *metrics.Metrics
	open            Opener
	list            Lister
	logger          *slog.Logger
	inShutdown      atomic.Bool
	shutdownTimeout time.Duration
}

// Config holds server configuration.
type Config struct {
	// Address is the listen address (e.g. "127.0.0.1:8765")
	Address string

	// ShutdownTimeout bounds connection draining. Defaults to 30 seconds.
	ShutdownTimeout time.Duration

	// Read, write and idle timeouts default to 10s, 10s and 60s.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	Open    Opener
	List    Lister
	Probes  *health.ProbeManager
	Metrics *metrics.Metrics
	// Gatherer backs /metrics. Defaults to prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer
	Logger   *slog.Logger
}

// NewServer creates a server. Open is required.
func NewServer(cfg Config) *Server {
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 60 * time.Second
	}
	if cfg.Probes == nil {
		cfg.Probes = health.NewProbeManager("")
	}
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	s := &Server{
		probes:          cfg.Probes,
		metrics:         cfg.Metrics,
		open:            cfg.Open,
		list:            cfg.List,
		logger:          cfg.Logger,
		shutdownTimeout: cfg.ShutdownTimeout,
	}

	mux := http.NewServeMux()
	s.route(mux, "GET /healthz", s.handleLiveness)
	s.route(mux, "GET /readyz", s.handleReadiness)
	mux.Handle("GET /metrics", s.instrument("/metrics", metrics.Handler(cfg.Gatherer)))
	s.route(mux, "GET /plans", s.handlePlans)
	s.route(mux, "GET /plans/{id}/progress", s.handleProgress)
	s.route(mux, "GET /plans/{id}/report", s.handleReport)
	s.route(mux, "GET /plans/{id}/next", s.handleNext)

	s.httpServer = &http.Server{
		Addr:         cfg.Address,
		Handler:      mux,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return s
}

// Handler returns the root handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start listens and serves until Shutdown. It returns http.ErrServerClosed
// after a graceful shutdown.
func (s *Server) Start() error {
	s.probes.MarkReady()
	s.logger.Info("http server listening", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown fails readiness, stops keep-alives and drains connections for up
// to the shutdown timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	s.inShutdown.Store(true)
	s.probes.MarkShutdown()
	s.httpServer.SetKeepAlivesEnabled(false)

	ctx, cancel := context.WithTimeout(ctx, s.shutdownTimeout)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}

// IsShuttingDown returns whether Shutdown was called.
func (s *Server) IsShuttingDown() bool {
	return s.inShutdown.Load()
}

func (s *Server) route(mux *http.ServeMux, pattern string, h http.HandlerFunc) {
	mux.Handle(pattern, s.instrument(pattern, h))
}

type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

// instrument counts requests per route pattern and status code.
func (s *Server) instrument(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)
		if s.metrics != nil {
			s.metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(rec.code)).Inc()
		}
		s.logger.Debug("http request", "route", route, "path", r.URL.Path,
			"status", rec.code, "duration", time.Since(start))
	})
}

func (s *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.probes.CheckLiveness(r.Context()))
}

func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	result := s.probes.CheckReadiness(r.Context())
	status := http.StatusOK
	if result.Status == health.StatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, result)
}

func (s *Server) handlePlans(w http.ResponseWriter, r *http.Request) {
	if s.list == nil {
		writeJSON(w, http.StatusOK, map[string][]string{"plans": {}})
		return
	}
	ids, err := s.list(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"plans": ids})
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	e, ok := s.engine(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, e.Progress())
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	e, ok := s.engine(w, r)
	if !ok {
		return
	}
	if r.URL.Query().Get("format") == "text" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(e.GenerateReport()))
		return
	}
	writeJSON(w, http.StatusOK, e.Report())
}

func (s *Server) handleNext(w http.ResponseWriter, r *http.Request) {
	e, ok := s.engine(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, e.Decide(r.Context()))
}

func (s *Server) engine(w http.ResponseWriter, r *http.Request) (*engine.Engine, bool) {
	id := domain.PlanID(r.PathValue("id"))
	if err := id.Validate(); err != nil {
		s.writeError(w, errors.Validation(errors.ErrCodeInvalidDefinition, "invalid plan id: %v", err))
		return nil, false
	}
	e, err := s.open(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return nil, false
	}
	return e, true
}

type errorBody struct {
	Code    errors.ErrorCode `json:"code,omitempty"`
	Kind    errors.Kind      `json:"kind,omitempty"`
	Message string           `json:"message"`
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch errors.KindOf(err) {
	case errors.KindValidation:
		status = http.StatusBadRequest
	case errors.KindNotFound:
		status = http.StatusNotFound
	case errors.KindInvalidState:
		status = http.StatusConflict
	case errors.KindStorage:
		status = http.StatusServiceUnavailable
	}
	if status >= 500 {
		s.logger.Error("request failed", "error", err)
		if s.metrics != nil {
			s.metrics.RecordError("server", err)
		}
	}
	writeJSON(w, status, errorBody{
		Code:    errors.CodeOf(err),
		Kind:    errors.KindOf(err),
		Message: err.Error(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
