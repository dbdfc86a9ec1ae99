package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/teemow/meetsched/internal/config"
	"github.com/teemow/meetsched/internal/instrumentation"
	"github.com/teemow/meetsched/internal/logging"
	"github.com/teemow/meetsched/internal/mirror"
	"github.com/teemow/meetsched/internal/resources"
	"github.com/teemow/meetsched/internal/server"
	"github.com/teemow/meetsched/internal/tools/calendar_tools"
	"github.com/teemow/meetsched/internal/tools/google_tools"
)

const (
	startupTimeout  = 5 * time.Second
	shutdownTimeout = 10 * time.Second
)

// serveFlagKeys maps serve flags to configuration keys.
var serveFlagKeys = map[string]string{
	"transport":       "transport",
	"http-addr":       "http_addr",
	"metrics-enabled": "metrics.enabled",
	"metrics-addr":    "metrics.addr",
	"mirror":          "mirror.backend",
	"timezone":        "scheduling.timezone",
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server",
		Long: `Start the MCP (Model Context Protocol) server to provide meeting
scheduling tools for AI assistants.

The server exposes tools to:
  - Find free slots shared by you and your attendees
  - Schedule, update and cancel meetings in Google Calendar
  - Resolve attendee names through Google Contacts
  - Manage the configured Google accounts

Meetings are mirrored into a local calendar when mirror.backend is set to
applescript (macOS Calendar) or caldav.

Transports:
  - stdio: Standard input/output (default)
  - streamable-http: Streamable HTTP on --http-addr, endpoint /mcp

Add a Google account first with: meetsched accounts add`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(cmd, serveFlagKeys)
			if err != nil {
				return err
			}
			return runServe(cfg, logger)
		},
	}

	cmd.Flags().String("transport", config.TransportStdio, "Transport type: stdio or streamable-http")
	cmd.Flags().String("http-addr", ":8080", "HTTP server address (for streamable-http transport)")
	cmd.Flags().Bool("metrics-enabled", false, "Enable the Prometheus metrics server on a dedicated port")
	cmd.Flags().String("metrics-addr", server.DefaultMetricsAddr, "Metrics server address")
	cmd.Flags().String("mirror", mirror.BackendNone, "Local calendar mirror: none, applescript or caldav")
	cmd.Flags().String("timezone", "", "IANA time zone for windows and working hours (default: local time zone)")

	return cmd
}

func runServe(cfg *config.Config, logger *slog.Logger) error {
	// Setup graceful shutdown
	shutdownCtx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	provider, err := instrumentation.NewProvider(shutdownCtx, cfg.Instrumentation(version))
	if err != nil {
		return fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := provider.Shutdown(ctx); err != nil {
			logger.Warn("Error during instrumentation shutdown", logging.Err(err))
		}
	}()

	var metricsServer *server.MetricsServer
	if cfg.Metrics.Enabled {
		metricsServer, err = startMetricsServer(provider, cfg.Metrics.Addr, logger)
		if err != nil {
			return err
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := metricsServer.Shutdown(ctx); err != nil {
				logger.Warn("Error during metrics server shutdown", logging.Err(err))
			}
		}()
	}

	serverContext, err := server.NewServerContext(shutdownCtx, server.Options{
		Config:   cfg,
		Provider: provider,
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create server context: %w", err)
	}
	defer func() {
		if err := serverContext.Shutdown(); err != nil {
			logger.Warn("Error during server context shutdown", logging.Err(err))
		}
	}()

	mcpSrv := newMCPServer()
	if err := registerAllTools(mcpSrv, serverContext); err != nil {
		return err
	}

	logger.Info("Starting meetsched MCP server",
		"transport", cfg.Transport,
		"mirror", serverContext.MirrorBackend())

	switch cfg.Transport {
	case config.TransportStdio:
		return runStdioServer(mcpSrv)
	case config.TransportStreamableHTTP:
		return runStreamableHTTPServer(shutdownCtx, mcpSrv, serverContext, cfg.HTTPAddr, logger)
	default:
		return fmt.Errorf("unsupported transport type: %s (supported: %s, %s)",
			cfg.Transport, config.TransportStdio, config.TransportStreamableHTTP)
	}
}

func newMCPServer() *mcpserver.MCPServer {
	return mcpserver.NewMCPServer("meetsched", version,
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithResourceCapabilities(false, false), // Subscribe and listChanged
	)
}

func startMetricsServer(provider *instrumentation.Provider, addr string, logger *slog.Logger) (*server.MetricsServer, error) {
	metricsServer, err := server.NewMetricsServer(server.MetricsServerConfig{
		Addr:                    addr,
		InstrumentationProvider: provider,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics server: %w", err)
	}

	// Use ready channel to confirm metrics server started successfully
	metricsReady := make(chan struct{})
	metricsErr := make(chan error, 1)
	go func() {
		if err := metricsServer.Start(metricsReady); err != nil && !errors.Is(err, http.ErrServerClosed) {
			metricsErr <- err
		}
		close(metricsErr)
	}()

	select {
	case <-metricsReady:
		logger.Info("Metrics server started", slog.String("addr", metricsServer.Addr()))
		return metricsServer, nil
	case err := <-metricsErr:
		return nil, fmt.Errorf("metrics server failed to start: %w", err)
	case <-time.After(startupTimeout):
		return nil, errors.New("metrics server startup timed out")
	}
}

func runStdioServer(mcpSrv *mcpserver.MCPServer) error {
	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := mcpserver.ServeStdio(mcpSrv); err != nil {
			serverDone <- err
		}
	}()

	err := <-serverDone
	if err != nil {
		return fmt.Errorf("server stopped with error: %w", err)
	}
	return nil
}

// registerAllTools registers all MCP tools and resources
func registerAllTools(mcpSrv *mcpserver.MCPServer, sc *server.ServerContext) error {
	type toolRegistration struct {
		name     string
		register func() error
	}

	registrations := []toolRegistration{
		{
			name: "Calendar",
			register: func() error {
				return calendar_tools.RegisterCalendarTools(mcpSrv, sc)
			},
		},
		{
			name: "Account",
			register: func() error {
				return google_tools.RegisterGoogleTools(mcpSrv, sc)
			},
		},
		{
			name: "Resource",
			register: func() error {
				return resources.RegisterResources(mcpSrv, sc)
			},
		},
	}

	for _, reg := range registrations {
		if err := reg.register(); err != nil {
			return fmt.Errorf("failed to register %s tools: %w", reg.name, err)
		}
	}

	return nil
}

func runStreamableHTTPServer(ctx context.Context, mcpSrv *mcpserver.MCPServer, sc *server.ServerContext, addr string, logger *slog.Logger) error {
	httpServer := server.NewHTTPServer(mcpSrv, sc)

	ready := make(chan struct{})
	serverDone := make(chan error, 1)
	go func() {
		serverDone <- httpServer.Start(addr, ready)
	}()

	select {
	case <-ready:
		logger.Info("MCP server listening",
			"addr", httpServer.Addr(),
			"endpoint", server.MCPEndpoint)
	case err := <-serverDone:
		return fmt.Errorf("failed to start HTTP server: %w", err)
	case <-time.After(startupTimeout):
		return errors.New("HTTP server startup timed out")
	}

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received, stopping HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("error during server shutdown: %w", err)
		}
		return nil
	case err := <-serverDone:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server stopped with error: %w", err)
		}
		return nil
	}
}
