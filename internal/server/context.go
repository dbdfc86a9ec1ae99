package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"google.golang.org/api/option"

	"github.com/teemow/meetsched/internal/accounts"
	"github.com/teemow/meetsched/internal/calendar"
	"github.com/teemow/meetsched/internal/config"
	"github.com/teemow/meetsched/internal/contacts"
	"github.com/teemow/meetsched/internal/google"
	"github.com/teemow/meetsched/internal/instrumentation"
	"github.com/teemow/meetsched/internal/mirror"
	"github.com/teemow/meetsched/internal/retry"
	"github.com/teemow/meetsched/internal/scheduler"
)

// ServerContext holds the long-lived state shared by all tools: the account
// manager, per-account Google clients, the mirror backend and the scheduler.
type ServerContext struct {
	ctx    context.Context
	cancel context.CancelFunc
	cfg    *config.Config

	accounts  *accounts.Manager
	calendars *accounts.ClientCache[*calendar.Client]
	contacts  *accounts.ClientCache[*contacts.Client]
	mirror    mirror.Calendar
	scheduler *scheduler.Scheduler

	metrics *instrumentation.Metrics
	audit   *instrumentation.AuditLogger
	logger  *slog.Logger

	mu       sync.RWMutex
	shutdown bool
}

// Options configures NewServerContext.
type Options struct {
	Config *config.Config

	// Provider supplies metrics; nil records nothing.
	Provider *instrumentation.Provider
	Logger   *slog.Logger

	// Store overrides the token file named by the configuration.
	Store accounts.Store

	// ClientOptions are appended to the options of every Google client.
	ClientOptions []option.ClientOption
}

// NewServerContext wires the scheduler from cfg. No Google call is made
// until a tool runs.
func NewServerContext(ctx context.Context, opts Options) (*ServerContext, error) {
	cfg := opts.Config
	if cfg == nil {
		return nil, errors.New("server context requires a configuration")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	metrics := &instrumentation.Metrics{}
	if opts.Provider != nil {
		metrics = opts.Provider.Metrics()
	}

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	manager, err := NewAccountManager(cfg, opts.Store, logger, metrics)
	if err != nil {
		return nil, err
	}

	backend, err := newMirror(cfg.Mirror, loc, logger)
	if err != nil {
		return nil, err
	}

	shutdownCtx, cancel := context.WithCancel(ctx)
	sc := &ServerContext{
		ctx:      shutdownCtx,
		cancel:   cancel,
		cfg:      cfg,
		accounts: manager,
		mirror:   backend,
		metrics:  metrics,
		logger:   logger,
		audit: instrumentation.NewAuditLogger(logger, instrumentation.AuditLoggingConfig{
			Enabled:    cfg.Audit.Enabled,
			IncludePII: cfg.Audit.IncludePII,
		}),
	}

	limiter := google.NewLimiter(cfg.Google.RequestsPerSecond, cfg.Google.Burst)
	clientOptions := func(email string) []option.ClientOption {
		httpClient := google.NewHTTPClient(manager.TokenSource(shutdownCtx, email), limiter)
		return append([]option.ClientOption{option.WithHTTPClient(httpClient)}, opts.ClientOptions...)
	}

	sc.calendars = accounts.NewClientCache(func(ctx context.Context, email string) (*calendar.Client, error) {
		return calendar.NewClient(shutdownCtx, email, clientOptions(email)...)
	})
	sc.contacts = accounts.NewClientCache(func(ctx context.Context, email string) (*contacts.Client, error) {
		return contacts.NewClient(shutdownCtx, logger, clientOptions(email)...)
	})
	manager.AddInvalidator(sc.calendars)
	manager.AddInvalidator(sc.contacts)

	maxRetries := cfg.Retry.MaxRetries
	if maxRetries == 0 {
		maxRetries = -1
	}

	sc.scheduler, err = scheduler.New(scheduler.Options{
		Accounts: manager,
		Services: &services{calendars: sc.calendars, contacts: sc.contacts, metrics: metrics},
		Mirror:   backend,
		Retry: retry.Policy{
			MaxRetries: maxRetries,
			OnRetry: func(ctx context.Context, name string, _ int, _ error) {
				metrics.RecordRetry(ctx, name)
			},
			Logger: logger,
		},
		WorkingHours: cfg.WorkingHours(),
		Location:     loc,
		MaxResults:   cfg.Scheduling.MaxResults,
		Logger:       logger,
		Metrics:      metrics,
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	return sc, nil
}

// Context returns the server context
func (sc *ServerContext) Context() context.Context {
	return sc.ctx
}

// Config returns the configuration the context was built from.
func (sc *ServerContext) Config() *config.Config {
	return sc.cfg
}

// Accounts returns the account manager.
func (sc *ServerContext) Accounts() *accounts.Manager {
	return sc.accounts
}

// Scheduler returns the meeting scheduler.
func (sc *ServerContext) Scheduler() *scheduler.Scheduler {
	return sc.scheduler
}

// MirrorBackend returns the name of the configured mirror backend.
func (sc *ServerContext) MirrorBackend() string {
	return sc.mirror.Name()
}

// Metrics returns the metrics recorder. It is never nil.
func (sc *ServerContext) Metrics() *instrumentation.Metrics {
	return sc.metrics
}

// AuditLogger returns the audit logger.
func (sc *ServerContext) AuditLogger() *instrumentation.AuditLogger {
	return sc.audit
}

// Logger returns the server logger.
func (sc *ServerContext) Logger() *slog.Logger {
	return sc.logger
}

// Shutdown gracefully shuts down the server context
func (sc *ServerContext) Shutdown() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.shutdown {
		return nil
	}

	sc.shutdown = true
	sc.cancel()
	sc.calendars.Reset()
	sc.contacts.Reset()
	return nil
}

// IsShutdown returns whether the server context has been shutdown
func (sc *ServerContext) IsShutdown() bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.shutdown
}
