package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/sharedbox/sharedbox/internal/instrumentation"
)

// APIServer serves the aggregation API.
type APIServer struct {
	sc         *ServerContext
	health     *HealthChecker
	metrics    *instrumentation.Metrics
	httpServer *http.Server
	addr       string
}

// NewAPIServer creates the API server. The metrics argument may be nil.
func NewAPIServer(sc *ServerContext, addr string, metrics *instrumentation.Metrics) *APIServer {
	return &APIServer{
		sc:      sc,
		health:  NewHealthChecker(sc),
		metrics: metrics,
		addr:    addr,
	}
}

// Health exposes the health checker so callers can flip readiness during
// shutdown.
func (s *APIServer) Health() *HealthChecker {
	return s.health
}

// Handler builds the full route tree.
func (s *APIServer) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	s.health.RegisterHealthEndpoints(mux)
	return s.instrument(mux)
}

// instrument wraps the mux with request logging and metrics.
func (s *APIServer) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		duration := time.Since(start)

		s.metrics.RecordHTTPRequest(r.Context(), r.Method, r.URL.Path, rec.status, duration)
		s.sc.logger.Debug("http request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", rec.status),
			slog.Duration("duration", duration))
	})
}

// statusRecorder captures the response status for instrumentation.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Start starts the API server in a blocking manner.
// Call this in a goroutine if you need non-blocking operation.
func (s *APIServer) Start() error {
	s.httpServer = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	s.sc.logger.Info("starting API server", slog.String("addr", s.addr))
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the API server.
func (s *APIServer) Shutdown(ctx context.Context) error {
	s.health.SetReady(false)
	if s.httpServer != nil {
		s.sc.logger.Info("shutting down API server")
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

// Addr returns the configured listen address.
func (s *APIServer) Addr() string {
	return s.addr
}
