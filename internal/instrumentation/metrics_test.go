package instrumentation

import (
	"context"
	"testing"
	"time"
)

func newTestProvider(t *testing.T, detailedLabels bool) (context.Context, *Provider) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	provider, err := NewProvider(ctx, Config{
		ServiceName:     "meetsched-test",
		ServiceVersion:  "1.0.0",
		Enabled:         true,
		MetricsExporter: ExporterPrometheus,
		TracingExporter: ExporterNone,
		DetailedLabels:  detailedLabels,
	})
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
	return ctx, provider
}

func TestMetrics_RecordHTTPRequest(t *testing.T) {
	ctx, provider := newTestProvider(t, false)

	metrics := provider.Metrics()
	if metrics == nil {
		t.Fatal("expected metrics to be non-nil")
	}

	// Should not panic
	metrics.RecordHTTPRequest(ctx, "GET", "/mcp", 200, 100*time.Millisecond)
	metrics.RecordHTTPRequest(ctx, "POST", "/mcp", 500, 50*time.Millisecond)
}

func TestMetrics_RecordGoogleAPIOperation(t *testing.T) {
	ctx, provider := newTestProvider(t, false)
	metrics := provider.Metrics()

	// Should not panic
	metrics.RecordGoogleAPIOperation(ctx, ServiceCalendar, OperationFreeBusy, StatusSuccess, 200*time.Millisecond)
	metrics.RecordGoogleAPIOperation(ctx, ServiceCalendar, OperationCreate, StatusError, 500*time.Millisecond)
	metrics.RecordGoogleAPIOperation(ctx, ServicePeople, OperationSearch, StatusSuccess, 100*time.Millisecond)
}

func TestMetrics_RecordToolInvocation(t *testing.T) {
	for _, detailed := range []bool{false, true} {
		ctx, provider := newTestProvider(t, detailed)
		metrics := provider.Metrics()

		// Should not panic
		metrics.RecordToolInvocation(ctx, "meeting_find_slots", StatusSuccess, "jane@example.com", time.Second)
		metrics.RecordToolInvocation(ctx, "meeting_schedule", StatusError, "", time.Second)
	}
}

func TestMetrics_RecordRetryAndMirror(t *testing.T) {
	ctx, provider := newTestProvider(t, false)
	metrics := provider.Metrics()

	// Should not panic
	metrics.RecordOAuthTokenRefresh(ctx, ResultSuccess)
	metrics.RecordRetry(ctx, "calendar.freebusy")
	metrics.RecordMirrorSync(ctx, "applescript", OperationDelete, ResultFailure)
	metrics.RecordMirrorSync(ctx, "none", OperationCreate, ResultSkipped)
}

func TestMetrics_Nil(t *testing.T) {
	ctx := context.Background()

	for _, m := range []*Metrics{nil, {}} {
		// Should not panic
		m.RecordHTTPRequest(ctx, "GET", "/healthz", 200, time.Millisecond)
		m.RecordGoogleAPIOperation(ctx, ServiceCalendar, OperationGet, StatusSuccess, time.Millisecond)
		m.RecordOAuthTokenRefresh(ctx, ResultFailure)
		m.RecordToolInvocation(ctx, "account_list", StatusSuccess, "", time.Millisecond)
		m.RecordRetry(ctx, "calendar.insert")
		m.RecordMirrorSync(ctx, "caldav", OperationPatch, ResultSuccess)
	}
}

func TestMetrics_DisabledProvider(t *testing.T) {
	provider, err := NewProvider(context.Background(), Config{Enabled: false})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	// Should not panic
	provider.Metrics().RecordMirrorSync(context.Background(), "caldav", OperationCreate, ResultSuccess)
}
