package calendar_tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/meetsched/internal/tools/common"
)

// RegisterAttendeeTools registers attendees_resolve.
func RegisterAttendeeTools(s *mcpserver.MCPServer, sched Scheduler, inst common.Instrumentation) error {
	resolveTool := mcp.NewTool("attendees_resolve",
		mcp.WithDescription("Resolve contact names to email addresses using the account's Google contacts and directory"),
		mcp.WithString("account",
			mcp.Description(accountDescription),
		),
		mcp.WithArray("attendees",
			mcp.Required(),
			mcp.Description("Names or email addresses to resolve. A comma-separated string is accepted too."),
			mcp.WithStringItems(),
		),
	)

	s.AddTool(resolveTool, common.InstrumentedToolHandler("attendees_resolve", inst,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleResolveAttendees(ctx, request, sched)
		}))

	return nil
}

func handleResolveAttendees(ctx context.Context, request mcp.CallToolRequest, sched Scheduler) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	inputs, err := common.StringListArg(args, "attendees")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(inputs) == 0 {
		return mcp.NewToolResultError("attendees is required"), nil
	}

	res, err := sched.ResolveAttendees(ctx, common.GetAccountFromArgs(args), inputs)
	if err != nil {
		return common.ErrorResult("resolve attendees", err), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Resolved %d attendee(s) (account: %s):\n\n", len(res.Attendees), res.Account)
	for i, a := range res.Attendees {
		fmt.Fprintf(&b, "%d. %s\n", i+1, a.String())
	}
	writeDiagnostics(&b, res.Duplicates, nil)

	return mcp.NewToolResultText(b.String()), nil
}
