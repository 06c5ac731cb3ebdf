package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"

	"github.com/platinummonkey/apidelta/pkg/checker"
	"github.com/platinummonkey/apidelta/pkg/httputil"
	"github.com/platinummonkey/apidelta/pkg/middleware"
	"github.com/platinummonkey/apidelta/pkg/observability"
)

// DefaultMaxBodyBytes bounds uploaded baseline documents
const DefaultMaxBodyBytes = 32 << 20

// Server routes HTTP requests to the handlers
type Server struct {
	router   *mux.Router
	checker  *checker.Checker
	health   *observability.HealthChecker
	metrics  *observability.Metrics
	gatherer prometheus.Gatherer
	tracer   trace.Tracer
	logger   *observability.Logger
	maxBody  int64
	limiter  middleware.Limiter
	notifier BaselineNotifier
}

// Option configures a Server
type Option func(*Server)

// WithHealth serves /health and /ready from h
func WithHealth(h *observability.HealthChecker) Option {
	return func(s *Server) { s.health = h }
}

// WithMetrics instruments every route and serves /metrics from gatherer
func WithMetrics(m *observability.Metrics, gatherer prometheus.Gatherer) Option {
	return func(s *Server) {
		s.metrics = m
		s.gatherer = gatherer
	}
}

// WithLogger sets the base request logger
func WithLogger(l *observability.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithTracer sets the tracer for handler spans
func WithTracer(t trace.Tracer) Option {
	return func(s *Server) { s.tracer = t }
}

// WithMaxBodyBytes bounds request bodies
func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) { s.maxBody = n }
}

// WithRateLimit limits /api/v1 requests per client. Health and metrics routes are exempt.
func WithRateLimit(l middleware.Limiter) Option {
	return func(s *Server) { s.limiter = l }
}

// WithNotifier announces baseline changes
func WithNotifier(n BaselineNotifier) Option {
	return func(s *Server) { s.notifier = n }
}

// NewServer creates a new API server around chk
func NewServer(chk *checker.Checker, opts ...Option) *Server {
	s := &Server{
		router:  mux.NewRouter(),
		checker: chk,
		tracer:  observability.Tracer(),
		logger:  observability.NewNopLogger(),
		maxBody: DefaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.health == nil {
		s.health = observability.NewHealthChecker("")
	}
	s.setupRoutes()
	return s
}

// RouteRegistrar is implemented by handler groups
type RouteRegistrar interface {
	RegisterRoutes(router *mux.Router)
}

func (s *Server) setupRoutes() {
	s.router.Use(
		httputil.RequestIDMiddleware(s.logger),
		httputil.LoggingMiddleware,
		httputil.RecoveryMiddleware,
		httputil.MaxBytesMiddleware(s.maxBody),
	)
	if s.metrics != nil {
		s.router.Use(observability.HTTPMetricsMiddleware(s.metrics))
	}

	s.router.HandleFunc("/health", s.health.Liveness).Methods(http.MethodGet)
	s.router.HandleFunc("/ready", s.health.Readiness).Methods(http.MethodGet)
	if s.gatherer != nil {
		s.router.Handle("/metrics", observability.MetricsHandler(s.gatherer)).Methods(http.MethodGet)
	}

	v1 := s.router.PathPrefix("/api/v1").Subrouter()
	if s.limiter != nil {
		v1.Use(middleware.RateLimit(s.limiter, "api", s.metrics))
	}
	for _, registrar := range []RouteRegistrar{
		NewBaselineHandlers(s.checker, s.notifier),
		NewCompareHandlers(s.checker, s.tracer),
		NewReportHandlers(s.checker),
	} {
		registrar.RegisterRoutes(v1)
	}
}

// Router exposes the router so callers can add routes
func (s *Server) Router() *mux.Router {
	return s.router
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
