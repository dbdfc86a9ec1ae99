package mirror

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav/caldav"
	"github.com/google/uuid"

	"github.com/teemow/meetsched/internal/logging"
)

const productID = "-//meetsched//EN"

// CalDAVConfig describes a CalDAV account.
type CalDAVConfig struct {
	URL      string
	Username string
	Password string
	Calendar string

	// HTTPClient overrides the default client. Basic auth is added on top.
	HTTPClient *http.Client
}

// basicAuthTransport adds Basic Auth to each request.
type basicAuthTransport struct {
	username  string
	password  string
	transport http.RoundTripper
}

func (t *basicAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.SetBasicAuth(t.username, t.password)
	req.Header.Set("User-Agent", "meetsched")
	return t.transport.RoundTrip(req)
}

// CalDAV mirrors into a calendar on a CalDAV server.
type CalDAV struct {
	client *caldav.Client
	name   string
	logger *slog.Logger

	mu           sync.Mutex
	calendarPath string
}

// NewCalDAV returns a CalDAV backend. The calendar is discovered by display
// name on first use.
func NewCalDAV(cfg CalDAVConfig, logger *slog.Logger) (*CalDAV, error) {
	if cfg.URL == "" || cfg.Calendar == "" {
		return nil, errors.New("caldav mirror requires a server URL and a calendar name")
	}
	if logger == nil {
		logger = slog.Default()
	}

	base := http.DefaultTransport
	if cfg.HTTPClient != nil && cfg.HTTPClient.Transport != nil {
		base = cfg.HTTPClient.Transport
	}
	httpClient := &http.Client{Transport: base}
	if cfg.Username != "" {
		httpClient.Transport = &basicAuthTransport{username: cfg.Username, password: cfg.Password, transport: base}
	}

	client, err := caldav.NewClient(httpClient, cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to create caldav client: %w", err)
	}
	return &CalDAV{client: client, name: cfg.Calendar, logger: logger}, nil
}

func (c *CalDAV) Name() string { return BackendCalDAV }

// calendar discovers the user's calendars and returns the path of the one
// with the configured name.
func (c *CalDAV) calendar(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.calendarPath != "" {
		return c.calendarPath, nil
	}

	principal, err := c.client.FindCurrentUserPrincipal(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: failed to find principal: %w", ErrUnavailable, err)
	}
	homeSet, err := c.client.FindCalendarHomeSet(ctx, principal)
	if err != nil {
		return "", fmt.Errorf("%w: failed to find calendar home set: %w", ErrUnavailable, err)
	}
	calendars, err := c.client.FindCalendars(ctx, homeSet)
	if err != nil {
		return "", fmt.Errorf("%w: failed to find calendars: %w", ErrUnavailable, err)
	}

	for _, cal := range calendars {
		if cal.Name == c.name {
			c.calendarPath = cal.Path
			c.logger.DebugContext(ctx, "Found CalDAV calendar", logging.Calendar(c.name), slog.String("path", cal.Path))
			return cal.Path, nil
		}
	}
	return "", fmt.Errorf("%w: no calendar named %q", ErrUnavailable, c.name)
}

// Create stores event as a new calendar object.
func (c *CalDAV) Create(ctx context.Context, event Event) error {
	if err := event.Validate(); err != nil {
		return err
	}
	calPath, err := c.calendar(ctx)
	if err != nil {
		return err
	}

	uid := uuid.NewString()
	cal := newCalendar(newEventComponent(uid, event, time.Now()))
	if _, err := c.client.PutCalendarObject(ctx, path.Join(calPath, uid+".ics"), cal); err != nil {
		return fmt.Errorf("failed to create event on CalDAV server: %w", err)
	}
	return nil
}

// Update rewrites the first event matching loc, keeping its UID.
func (c *CalDAV) Update(ctx context.Context, loc Locator, event Event) error {
	if err := event.Validate(); err != nil {
		return err
	}
	obj, comp, err := c.locate(ctx, loc)
	if err != nil {
		return err
	}

	applyEvent(comp, event, time.Now())
	if _, err := c.client.PutCalendarObject(ctx, obj.Path, obj.Data); err != nil {
		return fmt.Errorf("failed to update event on CalDAV server: %w", err)
	}
	return nil
}

// Delete removes the calendar object holding the first event matching loc.
func (c *CalDAV) Delete(ctx context.Context, loc Locator) error {
	obj, _, err := c.locate(ctx, loc)
	if err != nil {
		return err
	}
	if err := c.client.RemoveAll(ctx, obj.Path); err != nil {
		return fmt.Errorf("failed to delete event on CalDAV server: %w", err)
	}
	return nil
}

func (c *CalDAV) locate(ctx context.Context, loc Locator) (*caldav.CalendarObject, *ical.Component, error) {
	calPath, err := c.calendar(ctx)
	if err != nil {
		return nil, nil, err
	}

	query := &caldav.CalendarQuery{
		CompRequest: caldav.CalendarCompRequest{
			Name:     ical.CompCalendar,
			AllProps: true,
			AllComps: true,
		},
		CompFilter: caldav.CompFilter{
			Name: ical.CompCalendar,
			Comps: []caldav.CompFilter{{
				Name:  ical.CompEvent,
				Start: loc.Start.Add(-time.Minute),
				End:   loc.Start.Add(time.Minute),
			}},
		},
	}
	objects, err := c.client.QueryCalendar(ctx, calPath, query)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query CalDAV calendar: %w", err)
	}

	obj, comp, ok := matchEvent(objects, loc)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrNotFound, loc)
	}
	return obj, comp, nil
}

// matchEvent returns the first event whose summary equals loc.Title and
// whose start equals loc.Start.
func matchEvent(objects []caldav.CalendarObject, loc Locator) (*caldav.CalendarObject, *ical.Component, bool) {
	for i := range objects {
		obj := &objects[i]
		if obj.Data == nil {
			continue
		}
		for _, child := range obj.Data.Children {
			if child.Name != ical.CompEvent {
				continue
			}
			summary, err := child.Props.Text(ical.PropSummary)
			if err != nil || summary != loc.Title {
				continue
			}
			start, err := (&ical.Event{Component: child}).DateTimeStart(time.UTC)
			if err != nil || !start.Equal(loc.Start) {
				continue
			}
			return obj, child, true
		}
	}
	return nil, nil, false
}

func newCalendar(events ...*ical.Component) *ical.Calendar {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, productID)
	cal.Children = append(cal.Children, events...)
	return cal
}

func newEventComponent(uid string, event Event, now time.Time) *ical.Component {
	ve := ical.NewComponent(ical.CompEvent)
	ve.Props.SetText(ical.PropUID, uid)
	applyEvent(ve, event, now)
	return ve
}

// applyEvent overwrites the event properties of ve.
func applyEvent(ve *ical.Component, event Event, now time.Time) {
	ve.Props.SetDateTime(ical.PropDateTimeStamp, now.UTC())
	ve.Props.SetText(ical.PropSummary, event.Title)
	ve.Props.SetDateTime(ical.PropDateTimeStart, event.Start.UTC())
	ve.Props.SetDateTime(ical.PropDateTimeEnd, event.End.UTC())

	setOptionalText(ve, ical.PropLocation, event.Location)
	setOptionalText(ve, ical.PropDescription, event.Description)
	setOptionalRaw(ve, ical.PropURL, event.URL)

	// ATTENDEE is a CAL-ADDRESS; the value is written as is.
	ve.Props.Del(ical.PropAttendee)
	for _, email := range event.Attendees {
		p := ical.NewProp(ical.PropAttendee)
		p.Value = "mailto:" + strings.ToLower(email)
		ve.Props.Add(p)
	}
}

func setOptionalText(ve *ical.Component, name, value string) {
	if value == "" {
		ve.Props.Del(name)
		return
	}
	ve.Props.SetText(name, value)
}

// setOptionalRaw sets a property of its default value type, such as a URI,
// without TEXT escaping.
func setOptionalRaw(ve *ical.Component, name, value string) {
	if value == "" {
		ve.Props.Del(name)
		return
	}
	p := ical.NewProp(name)
	p.Value = value
	ve.Props.Set(p)
}
