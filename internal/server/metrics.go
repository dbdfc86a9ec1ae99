package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/teemow/meetsched/internal/instrumentation"
)

const (
	// DefaultMetricsAddr is the default address for the metrics server.
	DefaultMetricsAddr = ":9090"

	// DefaultMetricsReadTimeout is the default read timeout for the metrics server.
	DefaultMetricsReadTimeout = 10 * time.Second

	// DefaultMetricsWriteTimeout is the default write timeout for the metrics server.
	DefaultMetricsWriteTimeout = 10 * time.Second

	// DefaultMetricsIdleTimeout is the default idle timeout for the metrics server.
	DefaultMetricsIdleTimeout = 60 * time.Second

	// DefaultShutdownTimeout is the default timeout for graceful server shutdown.
	DefaultShutdownTimeout = 30 * time.Second
)

// MetricsServerConfig holds configuration for the metrics server.
type MetricsServerConfig struct {
	// Addr is the address to bind the metrics server to (e.g., ":9090").
	Addr string

	// InstrumentationProvider provides the Prometheus metrics handler.
	InstrumentationProvider *instrumentation.Provider
}

// MetricsServer serves Prometheus metrics on a dedicated port, apart from
// the MCP endpoint.
type MetricsServer struct {
	handler http.Handler
	addr    string

	mu         sync.Mutex
	httpServer *http.Server
	listener   net.Listener
}

// NewMetricsServer creates a metrics server exposing /metrics and /healthz.
// The provider must be enabled and use the Prometheus exporter.
func NewMetricsServer(config MetricsServerConfig) (*MetricsServer, error) {
	if config.Addr == "" {
		config.Addr = DefaultMetricsAddr
	}

	if config.InstrumentationProvider == nil {
		return nil, errors.New("instrumentation provider is required for metrics server")
	}

	if !config.InstrumentationProvider.Enabled() {
		return nil, errors.New("instrumentation provider is not enabled")
	}

	handler := config.InstrumentationProvider.PrometheusHandler()
	if handler == nil {
		return nil, errors.New("metrics server requires the prometheus exporter")
	}

	return &MetricsServer{
		handler: handler,
		addr:    config.Addr,
	}, nil
}

// Start binds the address and serves until Shutdown. It blocks; ready, when
// non-nil, is closed once the listener is bound.
func (s *MetricsServer) Start(ready chan<- struct{}) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", s.handler)

	// Add a basic health check for the metrics server itself
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.listener = ln
	s.httpServer = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: DefaultMetricsReadTimeout,
		WriteTimeout:      DefaultMetricsWriteTimeout,
		IdleTimeout:       DefaultMetricsIdleTimeout,
	}
	srv := s.httpServer
	s.mu.Unlock()

	if ready != nil {
		close(ready)
	}

	slog.Info("starting metrics server", slog.String("addr", ln.Addr().String()))
	return srv.Serve(ln)
}

// Shutdown gracefully shuts down the metrics server.
func (s *MetricsServer) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpServer
	s.mu.Unlock()

	if srv != nil {
		slog.Info("shutting down metrics server")
		return srv.Shutdown(ctx)
	}
	return nil
}

// Addr returns the bound address once started, otherwise the configured one.
func (s *MetricsServer) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// MetricsMiddleware records http_requests_total and
// http_request_duration_seconds for requests to next. The path label is the
// route, not the request URL.
func MetricsMiddleware(metrics *instrumentation.Metrics, route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		metrics.RecordHTTPRequest(r.Context(), r.Method, route, rec.status, time.Since(start))
	})
}
