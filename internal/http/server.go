// Package http provides the HTTP server and API surface for serve mode.
package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ChadR23/sentry-six/internal/config"
	"github.com/ChadR23/sentry-six/internal/http/middleware"
	"github.com/ChadR23/sentry-six/internal/observability"
)

// Server is the HTTP server hosting the REST API, the progress event
// stream, and the Prometheus endpoint.
type Server struct {
	config     config.ServerConfig
	router     *chi.Mux
	api        huma.API
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer assembles the router, middleware stack, and API scaffolding.
func NewServer(cfg config.ServerConfig, metrics *observability.Metrics, logger *slog.Logger, version string) *Server {
	if version == "" {
		version = "dev"
	}

	router := chi.NewRouter()
	router.Use(chimiddleware.RealIP)
	router.Use(middleware.RequestID)
	router.Use(middleware.Logging(logger))
	router.Use(middleware.Recovery(logger))
	if metrics != nil {
		router.Use(instrument(metrics))
		router.Method(http.MethodGet, "/metrics",
			promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	}

	humaConfig := huma.DefaultConfig("sentry-six API", version)
	humaConfig.Info.Description = "Tesla dashcam library indexing and export API"
	api := humachi.New(router, humaConfig)

	return &Server{
		config: cfg,
		router: router,
		api:    api,
		logger: logger.With("component", "http"),
	}
}

// API returns the Huma API for registering operations.
func (s *Server) API() huma.API {
	return s.api
}

// Router returns the chi router for raw routes such as the SSE stream.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// ListenAndServe runs the server until ctx is cancelled, then shuts down
// gracefully within the configured timeout.
func (s *Server) ListenAndServe(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         s.config.Address(),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "address", s.config.Address())
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("serving http: %w", err)
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down http server: %w", err)
		}
		s.logger.Info("http server stopped")
		return nil
	case err := <-errCh:
		return err
	}
}

// instrument records request counts and latency per method.
func instrument(m *observability.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			m.HTTPRequests.WithLabelValues(r.Method, strconv.Itoa(rec.status)).Inc()
			m.HTTPDuration.WithLabelValues(r.Method).Observe(time.Since(start).Seconds())
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}
