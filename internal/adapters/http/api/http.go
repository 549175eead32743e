// Package api declares HTTP contracts and route registration helpers.
//
// The handler layer is thin: it decodes requests, calls the raid service and
// maps its errors to status codes.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/okian/raidstats/internal/adapters/repository"
	service "github.com/okian/raidstats/internal/app"
	"github.com/okian/raidstats/internal/domain/aggregate"
	"github.com/okian/raidstats/internal/domain/model"
	"github.com/okian/raidstats/internal/domain/types"
	"github.com/okian/raidstats/pkg/logger"
	"github.com/okian/raidstats/pkg/metrics"
)

const defaultMaxBodyBytes = 2 << 20

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to the service implementation.
type Dependencies interface {
	Analyze(ctx context.Context, req types.AnalyzeRequest) (types.AnalysisResult, error)
	Ignore(ctx context.Context, req types.IgnoreRequest) (bool, error)
	Accept(ctx context.Context, req types.AcceptRequest) (int, error)
	MonthlyView(ctx context.Context, month string, filters aggregate.Filters) (types.MonthlyView, error)
	SearchMembers(ctx context.Context, q string) (types.MemberSearchResult, error)

	// Submit queues a relay event; false means the id was already seen.
	Submit(ctx context.Context, e model.SourceEvent) (bool, error)

	Health(ctx context.Context) error
}

// Option applies a configuration option to the Server.
type Option func(*Server)

// WithMaxBodyBytes caps request bodies.
func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxBody = n
		}
	}
}

// WithLogger sets a custom logger for the server.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// Server wires HTTP routes for the raid API.
type Server struct {
	deps    Dependencies
	stats   StatsProvider
	maxBody int64
	logger  logger.Logger
}

// NewServer creates a new API server.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	s := &Server{deps: deps, stats: statsProvider, maxBody: defaultMaxBodyBytes}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("api")
	}
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.handleHealth, "healthz"))
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.handleStats, "stats"))
	mux.Handle("GET /metrics", promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}))

	mux.HandleFunc("POST /raids/analyze", MetricsMiddleware(s.handleAnalyze, "analyze"))
	mux.HandleFunc("POST /raids/ignore", MetricsMiddleware(s.handleIgnore, "ignore"))
	mux.HandleFunc("POST /raids/accept", MetricsMiddleware(s.handleAccept, "accept"))
	mux.HandleFunc("POST /raids/events", MetricsMiddleware(s.handlePostEvent, "events"))
	mux.HandleFunc("GET /raids/month/{month}", MetricsMiddleware(s.handleMonth, "month"))
	mux.HandleFunc("GET /members/search", MetricsMiddleware(s.handleSearchMembers, "members_search"))
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBody)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.Join(ErrBadRequest, err)
	}
	return nil
}

// fail writes err with the status its kind maps to. Server-side failures are
// logged; client errors are not.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, code := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(r.Context(), "request failed", logger.String("op", op), logger.Error(err))
	}
	writeError(w, status, code, err)
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, ErrBadRequest), errors.Is(err, service.ErrBadRequest), errors.Is(err, types.ErrInvalidEvent):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, service.ErrBackpressure):
		return http.StatusTooManyRequests, "backpressure"
	case errors.Is(err, repository.ErrStore), errors.Is(err, service.ErrStopped):
		return http.StatusServiceUnavailable, "unavailable"
	}
	return http.StatusInternalServerError, "internal_error"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, types.Error{Code: code, Message: msg})
}
