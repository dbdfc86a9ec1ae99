package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/teemow/meetsched/internal/attendee"
	"github.com/teemow/meetsched/internal/availability"
	"github.com/teemow/meetsched/internal/calendar"
	"github.com/teemow/meetsched/internal/mirror"
)

var (
	// ErrNoAvailableSlot is returned when no span of the requested length is
	// free for every attendee inside the window.
	ErrNoAvailableSlot = errors.New("no available slot")

	// ErrNoAccount is returned when no account is configured or selected.
	ErrNoAccount = errors.New("no Google account configured; run 'meetsched accounts add'")
)

// CalendarService is the primary calendar of one account.
type CalendarService interface {
	QueryFreeBusy(ctx context.Context, window availability.TimeWindow, ids []string) (*calendar.FreeBusy, error)
	CreateEvent(ctx context.Context, calendarID string, input calendar.EventInput) (*calendar.Event, error)
	GetEvent(ctx context.Context, calendarID, eventID string) (*calendar.Event, error)
	PatchEvent(ctx context.Context, calendarID, eventID string, patch calendar.EventPatch) (*calendar.Event, error)
	DeleteEvent(ctx context.Context, calendarID, eventID string) error
	ListEvents(ctx context.Context, calendarID string, window availability.TimeWindow, query string) ([]calendar.Event, error)
}

// Services hands out per-account collaborators.
type Services interface {
	Calendar(ctx context.Context, account string) (CalendarService, error)
	Contacts(ctx context.Context, account string) (attendee.ContactSearcher, error)
}

// AccountResolver picks the account for an operation.
type AccountResolver interface {
	ResolveAccount(ctx context.Context, hint string, attendeeEmails []string) (string, error)
}

// MirrorRecorder receives mirror outcomes for metrics.
type MirrorRecorder interface {
	RecordMirrorSync(ctx context.Context, backend, operation, result string)
}

// FindSlotsRequest asks for free spans shared by the organizer and attendees.
type FindSlotsRequest struct {
	// Account is an optional email or label hint.
	Account         string
	Attendees       []string
	DurationMinutes int
	Window          availability.WindowSpec

	// IgnoreWorkingHours searches the whole window, nights included.
	IgnoreWorkingHours bool

	// MaxResults caps the returned spans; zero uses the scheduler default.
	MaxResults int
}

// SlotsResult is the outcome of FindSlots.
type SlotsResult struct {
	Account    string                    `json:"account"`
	Window     availability.TimeWindow   `json:"window"`
	Attendees  []attendee.Resolved       `json:"attendees"`
	Duplicates []string                  `json:"duplicates,omitempty"`
	Slots      []availability.TimeWindow `json:"slots"`

	// Unavailable lists calendars whose free/busy could not be read. Their
	// owners' availability was not taken into account.
	Unavailable []string `json:"unavailable,omitempty"`
}

// BookRequest plans and books a meeting in the first free span.
type BookRequest struct {
	FindSlotsRequest

	Title         string
	Description   string
	Location      string
	AddConference bool
}

// BookingResult is the outcome of Book and Update.
type BookingResult struct {
	Account     string              `json:"account"`
	Event       *calendar.Event     `json:"event"`
	Attendees   []attendee.Resolved `json:"attendees,omitempty"`
	Duplicates  []string            `json:"duplicates,omitempty"`
	Unavailable []string            `json:"unavailable,omitempty"`
	Mirror      mirror.Outcome      `json:"mirror"`
}

// UpdateRequest changes an existing event. Nil fields are left unchanged.
type UpdateRequest struct {
	Account     string
	EventID     string
	Title       *string
	Description *string
	Location    *string
	Start       *time.Time

	// DurationMinutes, when positive, sets the new length. Otherwise the
	// current length is kept.
	DurationMinutes int

	// Attendees, when non-nil, replaces the attendee list.
	Attendees []string
}

// DeleteRequest cancels an event.
type DeleteRequest struct {
	Account string
	EventID string
}

// DeletionResult is the outcome of Delete.
type DeletionResult struct {
	Account string         `json:"account"`
	EventID string         `json:"eventId"`
	Title   string         `json:"title"`
	Start   time.Time      `json:"start"`
	Mirror  mirror.Outcome `json:"mirror"`
}

// ListRequest asks for the meetings of an account inside a window. Query
// filters by free text when set.
type ListRequest struct {
	Account string
	Window  availability.WindowSpec
	Query   string
}

// ListResult is the outcome of List.
type ListResult struct {
	Account string                  `json:"account"`
	Window  availability.TimeWindow `json:"window"`
	Events  []calendar.Event        `json:"events"`
}

// AttendeeResult is the outcome of ResolveAttendees.
type AttendeeResult struct {
	Account    string              `json:"account"`
	Attendees  []attendee.Resolved `json:"attendees"`
	Duplicates []string            `json:"duplicates,omitempty"`
}
