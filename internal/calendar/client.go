package calendar

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	calendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/teemow/meetsched/internal/availability"
)

// Client wraps the Google Calendar service
type Client struct {
	svc     *calendar.Service
	account string // The account this client is associated with
}

// NewClient creates a Calendar client for account. Callers pass the
// authenticated HTTP client with option.WithHTTPClient.
func NewClient(ctx context.Context, account string, opts ...option.ClientOption) (*Client, error) {
	svc, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Calendar service: %w", err)
	}
	return &Client{svc: svc, account: account}, nil
}

// Account returns the account this client is associated with
func (c *Client) Account() string {
	return c.account
}

// QueryFreeBusy returns the busy intervals of each calendar in ids within
// window. Calendars that cannot be read are reported in FreeBusy.Errors
// instead of failing the query.
func (c *Client) QueryFreeBusy(ctx context.Context, window availability.TimeWindow, ids []string) (*FreeBusy, error) {
	if err := window.Validate(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, errors.New("at least one calendar id is required")
	}

	items := make([]*calendar.FreeBusyRequestItem, len(ids))
	for i, id := range ids {
		items[i] = &calendar.FreeBusyRequestItem{Id: id}
	}

	query := &calendar.FreeBusyRequest{
		TimeMin: window.Start.Format(time.RFC3339),
		TimeMax: window.End.Format(time.RFC3339),
		Items:   items,
	}

	result, err := c.svc.Freebusy.Query(query).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to query freebusy: %w", err)
	}

	fb := &FreeBusy{
		Busy:   make(availability.BusyMap, len(result.Calendars)),
		Errors: make(map[string][]string),
	}
	for id, cal := range result.Calendars {
		if len(cal.Errors) > 0 {
			for _, e := range cal.Errors {
				fb.Errors[id] = append(fb.Errors[id], e.Reason)
			}
			continue
		}

		intervals := make([]availability.TimeWindow, 0, len(cal.Busy))
		for _, busy := range cal.Busy {
			start, err := time.Parse(time.RFC3339, busy.Start)
			if err != nil {
				return nil, fmt.Errorf("invalid busy start %q for %s: %w", busy.Start, id, err)
			}
			end, err := time.Parse(time.RFC3339, busy.End)
			if err != nil {
				return nil, fmt.Errorf("invalid busy end %q for %s: %w", busy.End, id, err)
			}
			if !start.Before(end) {
				continue
			}
			intervals = append(intervals, availability.TimeWindow{Start: start, End: end})
		}
		fb.Busy[id] = intervals
	}

	return fb, nil
}

// ListEvents lists events in a calendar within a time range
func (c *Client) ListEvents(ctx context.Context, calendarID string, window availability.TimeWindow, query string) ([]Event, error) {
	call := c.svc.Events.List(calendarID).
		TimeMin(window.Start.Format(time.RFC3339)).
		TimeMax(window.End.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime")

	if query != "" {
		call = call.Q(query)
	}

	events, err := call.Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	out := make([]Event, 0, len(events.Items))
	for _, event := range events.Items {
		out = append(out, toEvent(event))
	}
	return out, nil
}

// GetEvent retrieves a specific event by ID
func (c *Client) GetEvent(ctx context.Context, calendarID, eventID string) (*Event, error) {
	event, err := c.svc.Events.Get(calendarID, eventID).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}

	e := toEvent(event)
	return &e, nil
}

// CreateEvent creates a new calendar event and notifies the attendees.
func (c *Client) CreateEvent(ctx context.Context, calendarID string, input EventInput) (*Event, error) {
	if input.Summary == "" {
		return nil, errors.New("event summary is required")
	}
	if !input.Start.Before(input.End) {
		return nil, errors.New("event start must be before end")
	}

	event := &calendar.Event{
		Summary:     input.Summary,
		Description: input.Description,
		Location:    input.Location,
		Start:       eventDateTime(input.Start, input.TimeZone),
		End:         eventDateTime(input.End, input.TimeZone),
	}
	if len(input.Attendees) > 0 {
		event.Attendees = eventAttendees(input.Attendees)
	}

	call := c.svc.Events.Insert(calendarID, event).SendUpdates("all")

	// Add conference data (Google Meet)
	if input.AddConference {
		call = call.ConferenceDataVersion(1)
		event.ConferenceData = &calendar.ConferenceData{
			CreateRequest: &calendar.CreateConferenceRequest{
				RequestId: uuid.NewString(),
				ConferenceSolutionKey: &calendar.ConferenceSolutionKey{
					Type: "hangoutsMeet",
				},
			},
		}
	}

	created, err := call.Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}

	e := toEvent(created)
	return &e, nil
}

// PatchEvent applies patch to an existing event and notifies the attendees.
func (c *Client) PatchEvent(ctx context.Context, calendarID, eventID string, patch EventPatch) (*Event, error) {
	event := &calendar.Event{}
	if patch.Summary != nil {
		event.Summary = *patch.Summary
		event.ForceSendFields = append(event.ForceSendFields, "Summary")
	}
	if patch.Description != nil {
		event.Description = *patch.Description
		event.ForceSendFields = append(event.ForceSendFields, "Description")
	}
	if patch.Location != nil {
		event.Location = *patch.Location
		event.ForceSendFields = append(event.ForceSendFields, "Location")
	}
	if patch.Start != nil {
		event.Start = eventDateTime(*patch.Start, patch.TimeZone)
	}
	if patch.End != nil {
		event.End = eventDateTime(*patch.End, patch.TimeZone)
	}
	if patch.Attendees != nil {
		event.Attendees = eventAttendees(patch.Attendees)
		event.ForceSendFields = append(event.ForceSendFields, "Attendees")
	}

	updated, err := c.svc.Events.Patch(calendarID, eventID, event).
		SendUpdates("all").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to update event: %w", err)
	}

	e := toEvent(updated)
	return &e, nil
}

// DeleteEvent deletes a calendar event and notifies the attendees.
func (c *Client) DeleteEvent(ctx context.Context, calendarID, eventID string) error {
	err := c.svc.Events.Delete(calendarID, eventID).SendUpdates("all").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}
	return nil
}
