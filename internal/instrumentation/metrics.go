package instrumentation

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/teemow/meetsched/internal/logging"
)

const (
	attrMethod    = "method"
	attrPath      = "path"
	attrStatus    = "status"
	attrOperation = "operation"
	attrService   = "service"
	attrResult    = "result"
	attrTool      = "tool"
	attrDomain    = "account_domain"
	attrBackend   = "backend"
)

// Metrics records meetsched metrics. The zero value is a valid recorder that
// drops everything, which is what a disabled Provider returns.
type Metrics struct {
	httpRequestsTotal   metric.Int64Counter
	httpRequestDuration metric.Float64Histogram

	googleAPIOperationsTotal   metric.Int64Counter
	googleAPIOperationDuration metric.Float64Histogram

	oauthTokenRefreshTotal metric.Int64Counter

	toolInvocationsTotal metric.Int64Counter
	toolDuration         metric.Float64Histogram

	retryAttemptsTotal metric.Int64Counter
	mirrorSyncTotal    metric.Int64Counter

	// detailedLabels adds the account domain to tool metrics
	detailedLabels bool
}

// NewMetrics creates all instruments on meter.
func NewMetrics(meter metric.Meter, detailedLabels bool) (*Metrics, error) {
	m := &Metrics{
		detailedLabels: detailedLabels,
	}

	var err error

	m.httpRequestsTotal, err = meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http_requests_total counter: %w", err)
	}

	m.httpRequestDuration, err = meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.01, 0.1, 0.5, 1.0, 2.5, 5.0, 10.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http_request_duration_seconds histogram: %w", err)
	}

	m.googleAPIOperationsTotal, err = meter.Int64Counter(
		"google_api_operations_total",
		metric.WithDescription("Total number of Google API operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create google_api_operations_total counter: %w", err)
	}

	m.googleAPIOperationDuration, err = meter.Float64Histogram(
		"google_api_operation_duration_seconds",
		metric.WithDescription("Google API operation duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create google_api_operation_duration_seconds histogram: %w", err)
	}

	m.oauthTokenRefreshTotal, err = meter.Int64Counter(
		"oauth_token_refresh_total",
		metric.WithDescription("Total number of OAuth token refresh attempts"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create oauth_token_refresh_total counter: %w", err)
	}

	m.toolInvocationsTotal, err = meter.Int64Counter(
		"mcp_tool_invocations_total",
		metric.WithDescription("Total number of MCP tool invocations"),
		metric.WithUnit("{invocation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create mcp_tool_invocations_total counter: %w", err)
	}

	m.toolDuration, err = meter.Float64Histogram(
		"mcp_tool_duration_seconds",
		metric.WithDescription("MCP tool execution duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create mcp_tool_duration_seconds histogram: %w", err)
	}

	m.retryAttemptsTotal, err = meter.Int64Counter(
		"retry_attempts_total",
		metric.WithDescription("Total number of retries after transient failures"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create retry_attempts_total counter: %w", err)
	}

	m.mirrorSyncTotal, err = meter.Int64Counter(
		"mirror_sync_total",
		metric.WithDescription("Total number of local calendar mirror operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create mirror_sync_total counter: %w", err)
	}

	return m, nil
}

// RecordHTTPRequest records an HTTP request with method, path, status code, and duration.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, path string, statusCode int, duration time.Duration) {
	if m == nil || m.httpRequestsTotal == nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String(attrMethod, method),
		attribute.String(attrPath, path),
		attribute.String(attrStatus, strconv.Itoa(statusCode)),
	)
	m.httpRequestsTotal.Add(ctx, 1, attrs)
	m.httpRequestDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordGoogleAPIOperation records one call to a Google API.
//
// Parameters:
//   - service: ServiceCalendar, ServicePeople or ServiceOAuth2
//   - operation: one of the Operation* constants
//   - status: StatusSuccess or StatusError
func (m *Metrics) RecordGoogleAPIOperation(ctx context.Context, service, operation, status string, duration time.Duration) {
	if m == nil || m.googleAPIOperationsTotal == nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String(attrService, service),
		attribute.String(attrOperation, operation),
		attribute.String(attrStatus, status),
	)
	m.googleAPIOperationsTotal.Add(ctx, 1, attrs)
	m.googleAPIOperationDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordOAuthTokenRefresh records a token refresh attempt.
// Result should be one of: "success", "failure"
func (m *Metrics) RecordOAuthTokenRefresh(ctx context.Context, result string) {
	if m == nil || m.oauthTokenRefreshTotal == nil {
		return
	}
	m.oauthTokenRefreshTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrResult, result)))
}

// RecordToolInvocation records an MCP tool invocation. The account's domain
// is attached only when detailed labels are enabled.
func (m *Metrics) RecordToolInvocation(ctx context.Context, toolName, status, account string, duration time.Duration) {
	if m == nil || m.toolInvocationsTotal == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrTool, toolName),
		attribute.String(attrStatus, status),
	}
	if m.detailedLabels {
		if domain := logging.ExtractDomain(account); domain != "" {
			attrs = append(attrs, attribute.String(attrDomain, domain))
		}
	}

	opt := metric.WithAttributes(attrs...)
	m.toolInvocationsTotal.Add(ctx, 1, opt)
	m.toolDuration.Record(ctx, duration.Seconds(), opt)
}

// RecordRetry records a retry of the named operation, e.g. "calendar.freebusy".
func (m *Metrics) RecordRetry(ctx context.Context, operation string) {
	if m == nil || m.retryAttemptsTotal == nil {
		return
	}
	m.retryAttemptsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrOperation, operation)))
}

// RecordMirrorSync records the outcome of a mirror create, update or delete.
// Result is ResultSuccess, ResultFailure or ResultSkipped.
func (m *Metrics) RecordMirrorSync(ctx context.Context, backend, operation, result string) {
	if m == nil || m.mirrorSyncTotal == nil {
		return
	}
	m.mirrorSyncTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrBackend, backend),
		attribute.String(attrOperation, operation),
		attribute.String(attrResult, result),
	))
}
