package calendar_tools

import (
	"context"
	"fmt"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/meetsched/internal/scheduler"
	"github.com/teemow/meetsched/internal/server"
	"github.com/teemow/meetsched/internal/tools/common"
)

// Scheduler is the subset of *scheduler.Scheduler used by the tools.
type Scheduler interface {
	FindSlots(ctx context.Context, req scheduler.FindSlotsRequest) (*scheduler.SlotsResult, error)
	Book(ctx context.Context, req scheduler.BookRequest) (*scheduler.BookingResult, error)
	Update(ctx context.Context, req scheduler.UpdateRequest) (*scheduler.BookingResult, error)
	Delete(ctx context.Context, req scheduler.DeleteRequest) (*scheduler.DeletionResult, error)
	List(ctx context.Context, req scheduler.ListRequest) (*scheduler.ListResult, error)
	ResolveAttendees(ctx context.Context, hint string, inputs []string) (*scheduler.AttendeeResult, error)
}

const accountDescription = "Google account to act for, by email or label (default: the default account, or the one sharing a domain with the attendees)"

// RegisterCalendarTools registers all meeting tools with the MCP server
func RegisterCalendarTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	return registerTools(s, sc.Scheduler(), sc)
}

func registerTools(s *mcpserver.MCPServer, sched Scheduler, inst common.Instrumentation) error {
	if err := RegisterSchedulingTools(s, sched, inst); err != nil {
		return fmt.Errorf("failed to register scheduling tools: %w", err)
	}

	if err := RegisterEventTools(s, sched, inst); err != nil {
		return fmt.Errorf("failed to register event tools: %w", err)
	}

	if err := RegisterAttendeeTools(s, sched, inst); err != nil {
		return fmt.Errorf("failed to register attendee tools: %w", err)
	}

	return nil
}
