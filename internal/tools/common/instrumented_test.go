package common

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/teemow/meetsched/internal/instrumentation"
)

type testInstrumentation struct {
	audit *instrumentation.AuditLogger
}

func (ti *testInstrumentation) Metrics() *instrumentation.Metrics {
	return &instrumentation.Metrics{}
}

func (ti *testInstrumentation) AuditLogger() *instrumentation.AuditLogger {
	return ti.audit
}

func newTestInstrumentation() (*testInstrumentation, *bytes.Buffer) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	return &testInstrumentation{
		audit: instrumentation.NewAuditLogger(logger, instrumentation.AuditLoggingConfig{Enabled: true}),
	}, &buf
}

func callRequest(args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

func TestInstrumentedToolHandler_Success(t *testing.T) {
	inst, buf := newTestInstrumentation()

	called := false
	handler := func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		called = true
		return mcp.NewToolResultText("success"), nil
	}

	wrapped := InstrumentedToolHandler("meeting_find_slots", inst, handler)
	result, err := wrapped(context.Background(), callRequest(map[string]any{"account": "me@example.com"}))

	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if !called {
		t.Error("expected handler to be called")
	}
	if result == nil || ResultText(result) != "success" {
		t.Errorf("unexpected result %+v", result)
	}

	out := buf.String()
	if !strings.Contains(out, "tool_executed") || !strings.Contains(out, "domain=example.com") {
		t.Errorf("audit log missing invocation: %q", out)
	}
	if strings.Contains(out, "me@example.com") {
		t.Errorf("audit log leaks the account address: %q", out)
	}
}

func TestInstrumentedToolHandler_Error(t *testing.T) {
	inst, buf := newTestInstrumentation()

	expectedErr := errors.New("test error")
	handler := func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return nil, expectedErr
	}

	_, err := InstrumentedToolHandler("meeting_schedule", inst, handler)(context.Background(), callRequest(nil))

	if err != expectedErr {
		t.Errorf("expected error %v, got %v", expectedErr, err)
	}
	if !strings.Contains(buf.String(), "tool_failed") {
		t.Errorf("expected a failure record, got %q", buf.String())
	}
}

func TestInstrumentedToolHandler_ErrorResult(t *testing.T) {
	inst, buf := newTestInstrumentation()

	handler := func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return mcp.NewToolResultError("title is required"), nil
	}

	result, err := InstrumentedToolHandler("meeting_schedule", inst, handler)(context.Background(), callRequest(nil))

	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if !result.IsError {
		t.Error("expected an error result")
	}
	out := buf.String()
	if !strings.Contains(out, "tool_failed") || !strings.Contains(out, "title is required") {
		t.Errorf("expected the result text in the failure record, got %q", out)
	}
}

func TestInstrumentedToolHandler_NilAuditLogger(t *testing.T) {
	inst := &testInstrumentation{}

	handler := func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return mcp.NewToolResultText("ok"), nil
	}

	// Should not panic
	if _, err := InstrumentedToolHandler("account_list", inst, handler)(context.Background(), callRequest(nil)); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
}
