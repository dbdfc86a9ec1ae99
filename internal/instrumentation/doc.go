// Package instrumentation provides OpenTelemetry metrics, tracing and audit
// logging for the meetsched MCP server.
//
// # Metrics
//
// Server/HTTP Metrics:
//   - http_requests_total: Counter of HTTP requests by method, path, and status
//   - http_request_duration_seconds: Histogram of HTTP request durations
//
// Google API Metrics:
//   - google_api_operations_total: Counter of Calendar, People and OAuth2
//     calls by service, operation and status
//   - google_api_operation_duration_seconds: Histogram of Google API call durations
//   - oauth_token_refresh_total: Counter of token refresh attempts by result
//   - retry_attempts_total: Counter of retried Google calls by operation
//
// MCP Tool Metrics:
//   - mcp_tool_invocations_total: Counter of tool invocations by tool and status
//   - mcp_tool_duration_seconds: Histogram of tool execution durations
//
// Mirror Metrics:
//   - mirror_sync_total: Counter of mirror writes by backend, operation and result
//
// Account addresses are never used as label values. With DetailedLabels the
// account's domain is added to the tool metrics.
//
// # Tracing
//
// Spans are created for MCP tool invocations (tool.<name>) and Google API
// calls (google.<service>.<operation>). Tracing is off unless an exporter is
// configured.
//
// # Example Usage
//
//	provider, err := instrumentation.NewProvider(ctx, instrumentation.Config{
//		ServiceName:    "meetsched",
//		ServiceVersion: version,
//		Enabled:        true,
//	})
//	if err != nil {
//		return err
//	}
//	defer provider.Shutdown(ctx)
//
//	metrics := provider.Metrics()
//	metrics.RecordGoogleAPIOperation(ctx, instrumentation.ServiceCalendar,
//		instrumentation.OperationFreeBusy, instrumentation.StatusSuccess, time.Since(start))
//	metrics.RecordMirrorSync(ctx, "caldav", instrumentation.OperationCreate, instrumentation.ResultSuccess)
package instrumentation
