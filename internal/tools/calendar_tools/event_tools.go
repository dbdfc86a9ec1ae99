package calendar_tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/meetsched/internal/availability"
	"github.com/teemow/meetsched/internal/scheduler"
	"github.com/teemow/meetsched/internal/tools/common"
)

// RegisterEventTools registers meeting_list, meeting_update and meeting_cancel.
func RegisterEventTools(s *mcpserver.MCPServer, sched Scheduler, inst common.Instrumentation) error {
	listTool := mcp.NewTool("meeting_list",
		mcp.WithDescription("List the meetings in a time window with their event IDs"),
		mcp.WithString("account",
			mcp.Description(accountDescription),
		),
		mcp.WithString("window",
			mcp.Description("Named window. Use either window or start/end."),
			mcp.Enum(windowNames()...),
		),
		mcp.WithString("start",
			mcp.Description("Start of an explicit window (RFC3339)"),
		),
		mcp.WithString("end",
			mcp.Description("End of an explicit window (RFC3339)"),
		),
		mcp.WithString("query",
			mcp.Description("Only return meetings matching this free text"),
		),
	)

	s.AddTool(listTool, common.InstrumentedToolHandler("meeting_list", inst,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleList(ctx, request, sched)
		}))

	updateTool := mcp.NewTool("meeting_update",
		mcp.WithDescription("Change the title, description, location, time, duration or attendees of a meeting. The local calendar copy is updated too."),
		mcp.WithString("account",
			mcp.Description(accountDescription),
		),
		mcp.WithString("eventId",
			mcp.Required(),
			mcp.Description("Google Calendar event ID"),
		),
		mcp.WithString("title",
			mcp.Description("New title"),
		),
		mcp.WithString("description",
			mcp.Description("New description; an empty string clears it"),
		),
		mcp.WithString("location",
			mcp.Description("New location; an empty string clears it"),
		),
		mcp.WithString("start",
			mcp.Description("New start time (RFC3339). The meeting keeps its length unless durationMinutes is given."),
		),
		mcp.WithNumber("durationMinutes",
			mcp.Description("New duration in minutes"),
		),
		mcp.WithArray("attendees",
			mcp.Description("Replacement attendee list as email addresses or contact names"),
			mcp.WithStringItems(),
		),
	)

	s.AddTool(updateTool, common.InstrumentedToolHandler("meeting_update", inst,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleUpdate(ctx, request, sched)
		}))

	cancelTool := mcp.NewTool("meeting_cancel",
		mcp.WithDescription("Delete a meeting from Google Calendar and from the local calendar"),
		mcp.WithString("account",
			mcp.Description(accountDescription),
		),
		mcp.WithString("eventId",
			mcp.Required(),
			mcp.Description("Google Calendar event ID"),
		),
	)

	s.AddTool(cancelTool, common.InstrumentedToolHandler("meeting_cancel", inst,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleCancel(ctx, request, sched)
		}))

	return nil
}

func parseUpdate(args map[string]any) (scheduler.UpdateRequest, error) {
	req := scheduler.UpdateRequest{
		Account:     common.GetAccountFromArgs(args),
		EventID:     common.StringArg(args, "eventId"),
		Title:       common.OptionalStringArg(args, "title"),
		Description: common.OptionalStringArg(args, "description"),
		Location:    common.OptionalStringArg(args, "location"),
	}
	if req.EventID == "" {
		return req, fmt.Errorf("eventId is required")
	}
	if req.Title != nil && strings.TrimSpace(*req.Title) == "" {
		return req, fmt.Errorf("title cannot be empty")
	}

	if startStr := common.StringArg(args, "start"); startStr != "" {
		start, err := time.Parse(time.RFC3339, startStr)
		if err != nil {
			return req, fmt.Errorf("invalid start format: %v", err)
		}
		req.Start = &start
	}

	duration, ok, err := common.IntArg(args, "durationMinutes")
	if err != nil {
		return req, err
	}
	if ok && duration <= 0 {
		return req, fmt.Errorf("durationMinutes must be positive")
	}
	req.DurationMinutes = duration

	if _, given := args["attendees"]; given {
		attendees, err := common.StringListArg(args, "attendees")
		if err != nil {
			return req, err
		}
		if len(attendees) == 0 {
			return req, fmt.Errorf("attendees cannot be empty; omit it to keep the current attendees")
		}
		req.Attendees = attendees
	}
	return req, nil
}

func handleUpdate(ctx context.Context, request mcp.CallToolRequest, sched Scheduler) (*mcp.CallToolResult, error) {
	req, err := parseUpdate(request.GetArguments())
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	res, err := sched.Update(ctx, req)
	if err != nil {
		return common.ErrorResult("update meeting", err), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Meeting updated (account: %s)\n\n", res.Account)
	writeEvent(&b, res.Event)
	if len(res.Attendees) > 0 {
		fmt.Fprintf(&b, "Attendees: %s\n", formatAttendees(res.Attendees))
	}
	writeDiagnostics(&b, res.Duplicates, res.Unavailable)
	writeOutcomes(&b, "event updated", res.Mirror)

	return mcp.NewToolResultText(b.String()), nil
}

func handleCancel(ctx context.Context, request mcp.CallToolRequest, sched Scheduler) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	eventID := common.StringArg(args, "eventId")
	if eventID == "" {
		return mcp.NewToolResultError("eventId is required"), nil
	}

	res, err := sched.Delete(ctx, scheduler.DeleteRequest{
		Account: common.GetAccountFromArgs(args),
		EventID: eventID,
	})
	if err != nil {
		return common.ErrorResult("cancel meeting", err), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Meeting cancelled (account: %s)\n\n", res.Account)
	fmt.Fprintf(&b, "Title: %s\n", res.Title)
	fmt.Fprintf(&b, "Was scheduled: %s\n", res.Start.Format(dayLayout+" MST"))
	fmt.Fprintf(&b, "Event ID: %s\n", res.EventID)
	writeOutcomes(&b, "event deleted", res.Mirror)

	return mcp.NewToolResultText(b.String()), nil
}

func handleList(ctx context.Context, request mcp.CallToolRequest, sched Scheduler) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	window, err := availability.ParseWindowSpec(
		common.StringArg(args, "window"),
		common.StringArg(args, "start"),
		common.StringArg(args, "end"),
	)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	res, err := sched.List(ctx, scheduler.ListRequest{
		Account: common.GetAccountFromArgs(args),
		Window:  window,
		Query:   common.StringArg(args, "query"),
	})
	if err != nil {
		return common.ErrorResult("list meetings", err), nil
	}

	var b strings.Builder
	if len(res.Events) == 0 {
		fmt.Fprintf(&b, "No meetings in %s (account: %s)\n", formatSpan(res.Window), res.Account)
		return mcp.NewToolResultText(b.String()), nil
	}
	fmt.Fprintf(&b, "Found %d meeting(s) in %s (account: %s):\n", len(res.Events), formatSpan(res.Window), res.Account)
	for i := range res.Events {
		b.WriteString("\n")
		writeEvent(&b, &res.Events[i])
	}

	return mcp.NewToolResultText(b.String()), nil
}
