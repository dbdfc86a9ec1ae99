package server

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"
)

// MCPEndpoint is the path of the streamable HTTP endpoint.
const MCPEndpoint = "/mcp"

// HTTPServer serves MCP over streamable HTTP next to the health endpoints.
// It binds to whatever address it is given; put it behind a proxy that
// terminates TLS and authenticates callers before exposing it.
type HTTPServer struct {
	mcpServer *mcpserver.MCPServer
	sc        *ServerContext
	health    *HealthChecker

	mu         sync.Mutex
	httpServer *http.Server
	listener   net.Listener
}

// NewHTTPServer wraps mcpServer. sc may be nil in tests.
func NewHTTPServer(mcpServer *mcpserver.MCPServer, sc *ServerContext) *HTTPServer {
	return &HTTPServer{
		mcpServer: mcpServer,
		sc:        sc,
		health:    NewHealthChecker(sc),
	}
}

// Health returns the server's health checker.
func (s *HTTPServer) Health() *HealthChecker {
	return s.health
}

// Handler returns the routing handler.
func (s *HTTPServer) Handler() http.Handler {
	streamable := mcpserver.NewStreamableHTTPServer(s.mcpServer,
		mcpserver.WithEndpointPath(MCPEndpoint),
	)

	var mcpHandler http.Handler = streamable
	if s.sc != nil {
		mcpHandler = MetricsMiddleware(s.sc.Metrics(), MCPEndpoint, streamable)
	}

	mux := http.NewServeMux()
	mux.Handle(MCPEndpoint, mcpHandler)
	s.health.RegisterHealthEndpoints(mux)
	return mux
}

// Start binds addr and serves until Shutdown. ready, when non-nil, is
// closed once the listener is bound.
func (s *HTTPServer) Start(addr string, ready chan<- struct{}) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.listener = ln
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	srv := s.httpServer
	s.mu.Unlock()

	if ready != nil {
		close(ready)
	}
	return srv.Serve(ln)
}

// Addr returns the bound address, or "" before Start.
func (s *HTTPServer) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Shutdown marks the server not ready and drains open requests.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	s.health.SetReady(false)

	s.mu.Lock()
	srv := s.httpServer
	s.mu.Unlock()

	if srv != nil {
		return srv.Shutdown(ctx)
	}
	return nil
}
