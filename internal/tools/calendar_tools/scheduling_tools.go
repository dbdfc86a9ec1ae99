package calendar_tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/meetsched/internal/availability"
	"github.com/teemow/meetsched/internal/scheduler"
	"github.com/teemow/meetsched/internal/tools/common"
)

// RegisterSchedulingTools registers meeting_find_slots and meeting_schedule.
func RegisterSchedulingTools(s *mcpserver.MCPServer, sched Scheduler, inst common.Instrumentation) error {
	searchOptions := []mcp.ToolOption{
		mcp.WithString("account",
			mcp.Description(accountDescription),
		),
		mcp.WithArray("attendees",
			mcp.Required(),
			mcp.Description("Attendees as email addresses or contact names. A comma-separated string is accepted too."),
			mcp.WithStringItems(),
		),
		mcp.WithNumber("durationMinutes",
			mcp.Required(),
			mcp.Description("Meeting duration in minutes"),
		),
		mcp.WithString("window",
			mcp.Description("Named search window. Use either window or start/end."),
			mcp.Enum(windowNames()...),
		),
		mcp.WithString("start",
			mcp.Description("Start of an explicit search window (RFC3339, e.g. '2025-01-06T09:00:00+01:00')"),
		),
		mcp.WithString("end",
			mcp.Description("End of an explicit search window (RFC3339)"),
		),
		mcp.WithBoolean("ignoreWorkingHours",
			mcp.Description("Also search outside the configured working hours (default: false)"),
		),
	}

	findOptions := append([]mcp.ToolOption{
		mcp.WithDescription("Find free time slots shared by you and the attendees"),
		mcp.WithNumber("maxResults",
			mcp.Description("Maximum number of slots to return (default: configured scheduling.max_results)"),
		),
	}, searchOptions...)
	findSlotsTool := mcp.NewTool("meeting_find_slots", findOptions...)

	s.AddTool(findSlotsTool, common.InstrumentedToolHandler("meeting_find_slots", inst,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleFindSlots(ctx, request, sched)
		}))

	scheduleOptions := append([]mcp.ToolOption{
		mcp.WithDescription("Book a meeting in the first free slot shared by you and the attendees, and copy it to the local calendar"),
		mcp.WithString("title",
			mcp.Required(),
			mcp.Description("Meeting title"),
		),
		mcp.WithString("description",
			mcp.Description("Meeting description"),
		),
		mcp.WithString("location",
			mcp.Description("Meeting location"),
		),
		mcp.WithBoolean("addConference",
			mcp.Description("Add a Google Meet link (default: false)"),
		),
	}, searchOptions...)
	scheduleTool := mcp.NewTool("meeting_schedule", scheduleOptions...)

	s.AddTool(scheduleTool, common.InstrumentedToolHandler("meeting_schedule", inst,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleSchedule(ctx, request, sched)
		}))

	return nil
}

// parseFindSlots reads the arguments shared by the search tools.
func parseFindSlots(args map[string]any) (scheduler.FindSlotsRequest, error) {
	attendees, err := common.StringListArg(args, "attendees")
	if err != nil {
		return scheduler.FindSlotsRequest{}, err
	}
	if len(attendees) == 0 {
		return scheduler.FindSlotsRequest{}, fmt.Errorf("attendees is required")
	}

	duration, ok, err := common.IntArg(args, "durationMinutes")
	if err != nil {
		return scheduler.FindSlotsRequest{}, err
	}
	if !ok || duration <= 0 {
		return scheduler.FindSlotsRequest{}, fmt.Errorf("durationMinutes is required and must be positive")
	}

	window, err := availability.ParseWindowSpec(
		common.StringArg(args, "window"),
		common.StringArg(args, "start"),
		common.StringArg(args, "end"),
	)
	if err != nil {
		return scheduler.FindSlotsRequest{}, err
	}

	return scheduler.FindSlotsRequest{
		Account:            common.GetAccountFromArgs(args),
		Attendees:          attendees,
		DurationMinutes:    duration,
		Window:             window,
		IgnoreWorkingHours: common.BoolArg(args, "ignoreWorkingHours"),
	}, nil
}

func handleFindSlots(ctx context.Context, request mcp.CallToolRequest, sched Scheduler) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	req, err := parseFindSlots(args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	maxResults, ok, err := common.IntArg(args, "maxResults")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if ok && maxResults <= 0 {
		return mcp.NewToolResultError("maxResults must be positive"), nil
	}
	req.MaxResults = maxResults

	res, err := sched.FindSlots(ctx, req)
	if err != nil {
		return common.ErrorResult("find slots", err), nil
	}

	var b strings.Builder
	if len(res.Slots) == 0 {
		fmt.Fprintf(&b, "No available %d minute slot in %s (account: %s)\n",
			req.DurationMinutes, formatSpan(res.Window), res.Account)
	} else {
		fmt.Fprintf(&b, "Found %d available slot(s) for a %d minute meeting (account: %s):\n\n",
			len(res.Slots), req.DurationMinutes, res.Account)
		for i, slot := range res.Slots {
			fmt.Fprintf(&b, "%d. %s\n", i+1, formatSpan(slot))
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Attendees: %s\n", formatAttendees(res.Attendees))
	writeDiagnostics(&b, res.Duplicates, res.Unavailable)

	return mcp.NewToolResultText(b.String()), nil
}

func handleSchedule(ctx context.Context, request mcp.CallToolRequest, sched Scheduler) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	title := common.StringArg(args, "title")
	if title == "" {
		return mcp.NewToolResultError("title is required"), nil
	}
	req, err := parseFindSlots(args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	res, err := sched.Book(ctx, scheduler.BookRequest{
		FindSlotsRequest: req,
		Title:            title,
		Description:      common.StringArg(args, "description"),
		Location:         common.StringArg(args, "location"),
		AddConference:    common.BoolArg(args, "addConference"),
	})
	if err != nil {
		return common.ErrorResult("schedule meeting", err), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Meeting scheduled (account: %s)\n\n", res.Account)
	writeEvent(&b, res.Event)
	fmt.Fprintf(&b, "Attendees: %s\n", formatAttendees(res.Attendees))
	writeDiagnostics(&b, res.Duplicates, res.Unavailable)
	writeOutcomes(&b, "event created", res.Mirror)

	return mcp.NewToolResultText(b.String()), nil
}
