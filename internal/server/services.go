package server

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/teemow/meetsched/internal/accounts"
	"github.com/teemow/meetsched/internal/attendee"
	"github.com/teemow/meetsched/internal/availability"
	"github.com/teemow/meetsched/internal/calendar"
	"github.com/teemow/meetsched/internal/contacts"
	"github.com/teemow/meetsched/internal/instrumentation"
	"github.com/teemow/meetsched/internal/scheduler"
)

// services hands out cached per-account clients wrapped with tracing and
// Google API metrics.
type services struct {
	calendars *accounts.ClientCache[*calendar.Client]
	contacts  *accounts.ClientCache[*contacts.Client]
	metrics   *instrumentation.Metrics
}

func (s *services) Calendar(ctx context.Context, account string) (scheduler.CalendarService, error) {
	client, err := s.calendars.Get(ctx, account)
	if err != nil {
		return nil, err
	}
	return &instrumentedCalendar{next: client, account: account, metrics: s.metrics}, nil
}

func (s *services) Contacts(ctx context.Context, account string) (attendee.ContactSearcher, error) {
	client, err := s.contacts.Get(ctx, account)
	if err != nil {
		return nil, err
	}
	return &instrumentedContacts{next: client, account: account, metrics: s.metrics}, nil
}

// observe runs fn inside a google.<service>.<operation> span and records the
// call's outcome and latency.
func observe(ctx context.Context, m *instrumentation.Metrics, service, operation string, attrs []attribute.KeyValue, fn func(context.Context) error) error {
	ctx, span := instrumentation.StartGoogleAPISpan(ctx, service, operation, attrs...)
	start := time.Now()

	err := fn(ctx)

	status := instrumentation.StatusSuccess
	if err != nil {
		status = instrumentation.StatusError
	}
	m.RecordGoogleAPIOperation(ctx, service, operation, status, time.Since(start))
	instrumentation.EndSpan(span, err)
	return err
}

type instrumentedCalendar struct {
	next    scheduler.CalendarService
	account string
	metrics *instrumentation.Metrics
}

func (c *instrumentedCalendar) attrs(extra ...attribute.KeyValue) []attribute.KeyValue {
	return append([]attribute.KeyValue{instrumentation.AccountAttr(c.account)}, extra...)
}

func (c *instrumentedCalendar) QueryFreeBusy(ctx context.Context, window availability.TimeWindow, ids []string) (*calendar.FreeBusy, error) {
	var fb *calendar.FreeBusy
	err := observe(ctx, c.metrics, instrumentation.ServiceCalendar, instrumentation.OperationFreeBusy,
		c.attrs(attribute.Int(instrumentation.SpanAttrAttendees, len(ids))),
		func(ctx context.Context) error {
			var err error
			fb, err = c.next.QueryFreeBusy(ctx, window, ids)
			return err
		})
	return fb, err
}

func (c *instrumentedCalendar) CreateEvent(ctx context.Context, calendarID string, input calendar.EventInput) (*calendar.Event, error) {
	var event *calendar.Event
	err := observe(ctx, c.metrics, instrumentation.ServiceCalendar, instrumentation.OperationCreate,
		c.attrs(attribute.Int(instrumentation.SpanAttrAttendees, len(input.Attendees))),
		func(ctx context.Context) error {
			var err error
			event, err = c.next.CreateEvent(ctx, calendarID, input)
			return err
		})
	return event, err
}

func (c *instrumentedCalendar) GetEvent(ctx context.Context, calendarID, eventID string) (*calendar.Event, error) {
	var event *calendar.Event
	err := observe(ctx, c.metrics, instrumentation.ServiceCalendar, instrumentation.OperationGet,
		c.attrs(instrumentation.EventAttr(eventID)),
		func(ctx context.Context) error {
			var err error
			event, err = c.next.GetEvent(ctx, calendarID, eventID)
			return err
		})
	return event, err
}

func (c *instrumentedCalendar) PatchEvent(ctx context.Context, calendarID, eventID string, patch calendar.EventPatch) (*calendar.Event, error) {
	var event *calendar.Event
	err := observe(ctx, c.metrics, instrumentation.ServiceCalendar, instrumentation.OperationPatch,
		c.attrs(instrumentation.EventAttr(eventID)),
		func(ctx context.Context) error {
			var err error
			event, err = c.next.PatchEvent(ctx, calendarID, eventID, patch)
			return err
		})
	return event, err
}

func (c *instrumentedCalendar) DeleteEvent(ctx context.Context, calendarID, eventID string) error {
	return observe(ctx, c.metrics, instrumentation.ServiceCalendar, instrumentation.OperationDelete,
		c.attrs(instrumentation.EventAttr(eventID)),
		func(ctx context.Context) error {
			return c.next.DeleteEvent(ctx, calendarID, eventID)
		})
}

type instrumentedContacts struct {
	next    attendee.ContactSearcher
	account string
	metrics *instrumentation.Metrics
}

func (c *instrumentedContacts) SearchContacts(ctx context.Context, query string, limit int) ([]attendee.Contact, error) {
	var found []attendee.Contact
	err := observe(ctx, c.metrics, instrumentation.ServicePeople, instrumentation.OperationSearch,
		[]attribute.KeyValue{instrumentation.AccountAttr(c.account)},
		func(ctx context.Context) error {
			var err error
			found, err = c.next.SearchContacts(ctx, query, limit)
			return err
		})
	return found, err
}

func (c *instrumentedCalendar) ListEvents(ctx context.Context, calendarID string, window availability.TimeWindow, query string) ([]calendar.Event, error) {
	var events []calendar.Event
	err := observe(ctx, c.metrics, instrumentation.ServiceCalendar, instrumentation.OperationList,
		c.attrs(),
		func(ctx context.Context) error {
			var err error
			events, err = c.next.ListEvents(ctx, calendarID, window, query)
			return err
		})
	return events, err
}
