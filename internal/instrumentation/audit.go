package instrumentation

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/teemow/meetsched/internal/logging"
)

// ToolInvocation captures one MCP tool call for audit logging.
//
// Account is the Google account the call acted for. It is PII and is only
// logged in clear text when the AuditLogger is configured with IncludePII.
type ToolInvocation struct {
	Tool    string
	Account string

	StartTime time.Time
	Duration  time.Duration
	Success   bool
	Error     string

	TraceID string
}

// NewToolInvocation creates a new ToolInvocation with timing started.
// Call Complete when the tool returns.
func NewToolInvocation(tool string, start time.Time) *ToolInvocation {
	return &ToolInvocation{
		Tool:      tool,
		StartTime: start,
	}
}

// WithAccount sets the account the tool acted for.
func (ti *ToolInvocation) WithAccount(account string) *ToolInvocation {
	ti.Account = account
	return ti
}

// WithSpanContext copies the trace id of the current span.
func (ti *ToolInvocation) WithSpanContext(ctx context.Context) *ToolInvocation {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		ti.TraceID = span.SpanContext().TraceID().String()
	}
	return ti
}

// Complete records the duration up to end and the outcome.
func (ti *ToolInvocation) Complete(end time.Time, err error) *ToolInvocation {
	ti.Duration = end.Sub(ti.StartTime)
	ti.Success = err == nil
	if err != nil {
		ti.Error = err.Error()
	}
	return ti
}

// Status returns StatusSuccess or StatusError.
func (ti *ToolInvocation) Status() string {
	if ti.Success {
		return StatusSuccess
	}
	return StatusError
}

// LogAttrs returns the invocation as slog attributes. With includePII the
// account is logged as is, otherwise anonymized.
func (ti *ToolInvocation) LogAttrs(includePII bool) []slog.Attr {
	attrs := []slog.Attr{
		logging.Tool(ti.Tool),
		logging.Duration(ti.Duration),
		slog.Bool("success", ti.Success),
	}

	if ti.Account != "" {
		if includePII {
			attrs = append(attrs, slog.String(logging.KeyAccount, ti.Account))
		} else {
			attrs = append(attrs, logging.Account(ti.Account), logging.Domain(ti.Account))
		}
	}
	if ti.TraceID != "" {
		attrs = append(attrs, slog.String("trace_id", ti.TraceID))
	}
	if ti.Error != "" {
		attrs = append(attrs, slog.String(logging.KeyError, ti.Error))
	}
	return attrs
}

// AuditLogger writes one structured record per tool invocation.
type AuditLogger struct {
	logger     *slog.Logger
	includePII bool
	enabled    bool
}

// NewAuditLogger creates an AuditLogger. A nil logger uses slog.Default.
func NewAuditLogger(logger *slog.Logger, config AuditLoggingConfig) *AuditLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLogger{
		logger:     logger,
		includePII: config.IncludePII,
		enabled:    config.Enabled,
	}
}

// LogToolInvocation logs successful invocations at info and failures at warn.
func (al *AuditLogger) LogToolInvocation(ctx context.Context, ti *ToolInvocation) {
	if al == nil || !al.enabled {
		return
	}

	level := slog.LevelInfo
	msg := "tool_executed"
	if !ti.Success {
		level = slog.LevelWarn
		msg = "tool_failed"
	}
	al.logger.LogAttrs(ctx, level, msg, ti.LogAttrs(al.includePII)...)
}
