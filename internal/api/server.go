// Package api provides the HTTP server exposing a repository over the
// simple repository protocol.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/simpleindex/simple-repository-server/internal/api/index"
	"github.com/simpleindex/simple-repository-server/internal/logger"
	"github.com/simpleindex/simple-repository-server/internal/telemetry"
	"github.com/simpleindex/simple-repository-server/pkg/repository"
)

// ServerOption configures the repository API server
type ServerOption func(*serverConfig)

// serverConfig holds the server configuration
type serverConfig struct {
	middlewares       []func(http.Handler) http.Handler
	metricsHandler    http.Handler
	repositoryMetrics *telemetry.RepositoryMetrics
}

// WithMiddlewares adds middleware to the server
func WithMiddlewares(mw ...func(http.Handler) http.Handler) ServerOption {
	return func(cfg *serverConfig) {
		cfg.middlewares = append(cfg.middlewares, mw...)
	}
}

// WithMetricsHandler exposes a scrape endpoint at /metrics
func WithMetricsHandler(handler http.Handler) ServerOption {
	return func(cfg *serverConfig) {
		cfg.metricsHandler = handler
	}
}

// WithRepositoryMetrics records repository operation metrics on the index
// routes
func WithRepositoryMetrics(metrics *telemetry.RepositoryMetrics) ServerOption {
	return func(cfg *serverConfig) {
		cfg.repositoryMetrics = metrics
	}
}

// NewServer creates and configures the HTTP router with the given repository and options
func NewServer(repo repository.Repository, opts ...ServerOption) *chi.Mux {
	cfg := &serverConfig{
		middlewares: []func(http.Handler) http.Handler{},
	}
	for _, opt := range opts {
		opt(cfg)
	}

	r := chi.NewRouter()

	for _, mw := range cfg.middlewares {
		r.Use(mw)
	}

	// Mount health check routes directly at root
	r.Mount("/", HealthRouter(repo))

	// Mount the simple repository protocol routes
	r.Mount("/simple", index.Router(repo, index.WithMetrics(cfg.repositoryMetrics)))

	if cfg.metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", cfg.metricsHandler)
	}

	return r
}

// LoggingMiddleware logs HTTP requests
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		logger.Debugf("HTTP %s %s %d %s %s",
			r.Method,
			r.URL.Path,
			ww.Status(),
			time.Since(start),
			middleware.GetReqID(r.Context()),
		)
	})
}
