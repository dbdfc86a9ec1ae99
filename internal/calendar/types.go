package calendar

import (
	"maps"
	"slices"
	"time"

	calendar "google.golang.org/api/calendar/v3"

	"github.com/teemow/meetsched/internal/availability"
)

// PrimaryCalendarID addresses the authenticated account's main calendar.
const PrimaryCalendarID = "primary"

// EventInput represents the input for creating a calendar event
type EventInput struct {
	Summary     string
	Description string
	Location    string
	Start       time.Time
	End         time.Time
	TimeZone    string
	Attendees   []string

	// AddConference requests a Google Meet conference for the event.
	AddConference bool
}

// EventPatch lists the fields to change on an existing event. Nil fields
// are left untouched; a nil Attendees slice keeps the current attendees.
type EventPatch struct {
	Summary     *string
	Description *string
	Location    *string
	Start       *time.Time
	End         *time.Time
	TimeZone    string
	Attendees   []string
}

// IsEmpty reports whether the patch changes nothing.
func (p EventPatch) IsEmpty() bool {
	return p.Summary == nil && p.Description == nil && p.Location == nil &&
		p.Start == nil && p.End == nil && p.Attendees == nil
}

// Event represents a simplified calendar event
type Event struct {
	ID          string
	Summary     string
	Description string
	Location    string
	Start       time.Time
	End         time.Time
	Organizer   string
	Status      string
	HTMLLink    string
	Attendees   []Attendee

	// ConferenceURL is the first video entry point of the event's
	// conference, falling back to the legacy Hangout link.
	ConferenceURL string
}

// Attendee represents information about an event attendee
type Attendee struct {
	Email          string
	DisplayName    string
	ResponseStatus string // "needsAction", "declined", "tentative", "accepted"
	Optional       bool
	Organizer      bool
}

// FreeBusy holds the result of a free/busy query.
type FreeBusy struct {
	// Busy has one entry per calendar that answered.
	Busy availability.BusyMap

	// Errors lists the calendars whose availability could not be read,
	// with Google's error reasons (e.g. "notFound").
	Errors map[string][]string
}

// Unavailable returns the ids of calendars that reported errors, sorted.
func (f *FreeBusy) Unavailable() []string {
	return slices.Sorted(maps.Keys(f.Errors))
}

func parseEventTime(dt *calendar.EventDateTime) time.Time {
	if dt == nil {
		return time.Time{}
	}
	if dt.DateTime != "" {
		if t, err := time.Parse(time.RFC3339, dt.DateTime); err == nil {
			return t
		}
	} else if dt.Date != "" {
		if t, err := time.Parse("2006-01-02", dt.Date); err == nil {
			return t
		}
	}
	return time.Time{}
}

func conferenceURL(event *calendar.Event) string {
	if event.ConferenceData != nil {
		for _, ep := range event.ConferenceData.EntryPoints {
			if ep.EntryPointType == "video" && ep.Uri != "" {
				return ep.Uri
			}
		}
	}
	return event.HangoutLink
}

// toEvent converts a Google Calendar event to an Event
func toEvent(event *calendar.Event) Event {
	if event == nil {
		return Event{}
	}

	e := Event{
		ID:            event.Id,
		Summary:       event.Summary,
		Description:   event.Description,
		Location:      event.Location,
		Status:        event.Status,
		HTMLLink:      event.HtmlLink,
		Start:         parseEventTime(event.Start),
		End:           parseEventTime(event.End),
		ConferenceURL: conferenceURL(event),
	}
	if event.Organizer != nil {
		e.Organizer = event.Organizer.Email
	}

	for _, att := range event.Attendees {
		e.Attendees = append(e.Attendees, Attendee{
			Email:          att.Email,
			DisplayName:    att.DisplayName,
			ResponseStatus: att.ResponseStatus,
			Optional:       att.Optional,
			Organizer:      att.Organizer,
		})
	}

	return e
}

func eventDateTime(t time.Time, tz string) *calendar.EventDateTime {
	if tz == "" {
		tz = "UTC"
	}
	return &calendar.EventDateTime{
		DateTime: t.Format(time.RFC3339),
		TimeZone: tz,
	}
}

func eventAttendees(emails []string) []*calendar.EventAttendee {
	attendees := make([]*calendar.EventAttendee, 0, len(emails))
	for _, email := range emails {
		attendees = append(attendees, &calendar.EventAttendee{Email: email})
	}
	return attendees
}
