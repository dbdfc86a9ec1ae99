package mirror

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Backend names accepted by configuration.
const (
	BackendNone        = "none"
	BackendAppleScript = "applescript"
	BackendCalDAV      = "caldav"
)

var (
	// ErrDisabled is returned by the Disabled backend.
	ErrDisabled = errors.New("local calendar mirror is disabled")

	// ErrNotFound is returned when no mirrored event matches a Locator.
	ErrNotFound = errors.New("mirrored event not found")

	// ErrPermission is returned when the local calendar refuses access.
	ErrPermission = errors.New("access to the local calendar was denied")

	// ErrUnavailable is returned when the backend cannot be reached.
	ErrUnavailable = errors.New("local calendar is unavailable")
)

// Event is the structured request describing a mirrored meeting.
type Event struct {
	Title       string
	Start       time.Time
	End         time.Time
	Location    string
	Description string
	URL         string
	Attendees   []string
}

// Validate checks the fields every backend relies on.
func (e Event) Validate() error {
	if e.Title == "" {
		return errors.New("mirror event title is required")
	}
	if !e.Start.Before(e.End) {
		return errors.New("mirror event start must be before end")
	}
	return nil
}

// Locator identifies a mirrored event by exact title and start instant.
type Locator struct {
	Title string
	Start time.Time
}

func (l Locator) String() string {
	return fmt.Sprintf("%q at %s", l.Title, l.Start.Format(time.RFC3339))
}

// Calendar is a local calendar that receives mirrored meetings.
type Calendar interface {
	// Name identifies the backend in outcomes and logs.
	Name() string
	Create(ctx context.Context, event Event) error
	Update(ctx context.Context, loc Locator, event Event) error
	Delete(ctx context.Context, loc Locator) error
}

// Outcome reports the mirror side of a scheduling operation.
type Outcome struct {
	Backend    string `json:"backend"`
	Attempted  bool   `json:"attempted"`
	OK         bool   `json:"ok"`
	Message    string `json:"message"`
	Suggestion string `json:"suggestion,omitempty"`
}

// NewOutcome converts the result of a backend call into an Outcome.
// action is the past-tense verb for the success message, e.g. "created".
func NewOutcome(backend, action string, err error) Outcome {
	switch {
	case err == nil:
		return Outcome{Backend: backend, Attempted: true, OK: true, Message: "local calendar event " + action}
	case errors.Is(err, ErrDisabled):
		return Outcome{Backend: backend, Message: err.Error()}
	default:
		return Outcome{
			Backend:    backend,
			Attempted:  true,
			Message:    err.Error(),
			Suggestion: suggestion(err),
		}
	}
}

// Skipped returns an Outcome for a mirror step that was not attempted.
func Skipped(backend, reason string) Outcome {
	return Outcome{Backend: backend, Message: reason}
}

func (o Outcome) String() string {
	switch {
	case o.OK:
		return o.Message
	case !o.Attempted:
		return "skipped: " + o.Message
	case o.Suggestion != "":
		return "failed: " + o.Message + " (" + o.Suggestion + ")"
	default:
		return "failed: " + o.Message
	}
}

func suggestion(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "the event may have been renamed or moved locally; update the local calendar manually"
	case errors.Is(err, ErrPermission):
		return "allow calendar automation for this terminal in System Settings > Privacy & Security"
	case errors.Is(err, ErrUnavailable):
		return "check the local calendar configuration (mirror.backend, mirror.calendar)"
	case errors.Is(err, context.DeadlineExceeded):
		return "the local calendar did not respond in time; retry later"
	default:
		return ""
	}
}
