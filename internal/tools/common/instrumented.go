package common

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/teemow/meetsched/internal/instrumentation"
)

// ToolHandler is the signature of an MCP tool handler.
type ToolHandler = func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)

// Instrumentation supplies the recorders used by InstrumentedToolHandler.
// *server.ServerContext implements it.
type Instrumentation interface {
	Metrics() *instrumentation.Metrics
	AuditLogger() *instrumentation.AuditLogger
}

// InstrumentedToolHandler wraps a tool handler with a tool.<name> span,
// metrics and audit logging. A result with IsError set counts as a failure.
//
// Usage:
//
//	s.AddTool(myTool, common.InstrumentedToolHandler("my_tool", sc, handler))
func InstrumentedToolHandler(toolName string, inst Instrumentation, handler ToolHandler) ToolHandler {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		account := GetAccountFromArgs(request.GetArguments())

		ctx, span := instrumentation.StartToolSpan(ctx, toolName)
		if account != "" {
			span.SetAttributes(instrumentation.AccountAttr(account))
		}

		start := time.Now()
		invocation := instrumentation.NewToolInvocation(toolName, start).
			WithSpanContext(ctx).
			WithAccount(account)

		result, err := handler(ctx, request)

		failure := err
		if failure == nil && result != nil && result.IsError {
			failure = errors.New(ResultText(result))
		}
		invocation.Complete(time.Now(), failure)

		inst.Metrics().RecordToolInvocation(ctx, toolName, invocation.Status(), account, invocation.Duration)
		inst.AuditLogger().LogToolInvocation(ctx, invocation)
		instrumentation.EndSpan(span, failure)

		return result, err
	}
}

// ResultText joins the text content of a tool result.
func ResultText(result *mcp.CallToolResult) string {
	var parts []string
	for _, c := range result.Content {
		switch tc := c.(type) {
		case mcp.TextContent:
			parts = append(parts, tc.Text)
		case *mcp.TextContent:
			parts = append(parts, tc.Text)
		}
	}
	return strings.Join(parts, "\n")
}
