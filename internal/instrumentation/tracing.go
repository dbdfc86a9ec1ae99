package instrumentation

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/teemow/meetsched/internal/logging"
)

// TracerName is the instrumentation scope of meetsched spans.
const TracerName = "github.com/teemow/meetsched"

// Span attribute keys.
const (
	SpanAttrTool          = "mcp.tool"
	SpanAttrService       = "google.service"
	SpanAttrOperation     = "google.operation"
	SpanAttrAccountDomain = "meetsched.account_domain"
	SpanAttrEventID       = "meetsched.event_id"
	SpanAttrAttendees     = "meetsched.attendees"
	SpanAttrMirrorBackend = "meetsched.mirror_backend"
)

// AccountAttr returns the account's domain as a span attribute; addresses
// are not recorded in traces.
func AccountAttr(account string) attribute.KeyValue {
	return attribute.String(SpanAttrAccountDomain, logging.ExtractDomain(account))
}

// EventAttr returns the event id as a span attribute.
func EventAttr(id string) attribute.KeyValue {
	return attribute.String(SpanAttrEventID, id)
}

// StartSpan starts a new span with the given name and attributes.
// The caller is responsible for ending the span.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	tracer := otel.GetTracerProvider().Tracer(TracerName)
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// StartToolSpan starts a server span for an MCP tool invocation.
func StartToolSpan(ctx context.Context, toolName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := make([]attribute.KeyValue, 0, len(attrs)+1)
	allAttrs = append(allAttrs, attribute.String(SpanAttrTool, toolName))
	allAttrs = append(allAttrs, attrs...)

	tracer := otel.GetTracerProvider().Tracer(TracerName)
	return tracer.Start(ctx, "tool."+toolName,
		trace.WithAttributes(allAttrs...),
		trace.WithSpanKind(trace.SpanKindServer),
	)
}

// StartGoogleAPISpan starts a client span named google.<service>.<operation>.
func StartGoogleAPISpan(ctx context.Context, service, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := make([]attribute.KeyValue, 0, len(attrs)+2)
	allAttrs = append(allAttrs,
		attribute.String(SpanAttrService, service),
		attribute.String(SpanAttrOperation, operation),
	)
	allAttrs = append(allAttrs, attrs...)

	tracer := otel.GetTracerProvider().Tracer(TracerName)
	return tracer.Start(ctx, "google."+service+"."+operation,
		trace.WithAttributes(allAttrs...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}

// EndSpan sets the span status from err and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// GetTraceID returns the trace ID from the current span in context, or "".
func GetTraceID(ctx context.Context) string {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		return span.SpanContext().TraceID().String()
	}
	return ""
}
