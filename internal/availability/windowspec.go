package availability

import (
	"fmt"
	"strings"
	"time"
)

// WindowName identifies a relative search window.
type WindowName string

const (
	WindowToday    WindowName = "today"
	WindowTomorrow WindowName = "tomorrow"
	WindowThisWeek WindowName = "this_week"
	WindowNextWeek WindowName = "next_week"
)

// WindowNames lists the accepted relative windows.
var WindowNames = []WindowName{WindowToday, WindowTomorrow, WindowThisWeek, WindowNextWeek}

type windowKind int

const (
	kindNone windowKind = iota
	kindNamed
	kindExplicit
)

// WindowSpec selects the range to search: either a named relative window or
// an explicit start and end, never both. The zero value is invalid; build one
// with Named, Explicit or ParseWindowSpec.
type WindowSpec struct {
	kind     windowKind
	name     WindowName
	explicit TimeWindow
}

// Named returns a spec for a relative window such as "tomorrow".
func Named(name string) (WindowSpec, error) {
	n := WindowName(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range WindowNames {
		if n == known {
			return WindowSpec{kind: kindNamed, name: n}, nil
		}
	}
	return WindowSpec{}, fmt.Errorf("%w: unknown window %q (expected one of %s)", ErrInvalidInput, name, joinNames())
}

// Explicit returns a spec for the fixed range [start, end).
func Explicit(start, end time.Time) (WindowSpec, error) {
	w, err := NewTimeWindow(start, end)
	if err != nil {
		return WindowSpec{}, err
	}
	return WindowSpec{kind: kindExplicit, explicit: w}, nil
}

// ParseWindowSpec builds a spec from tool or CLI input. Exactly one of name
// or the start/end pair (RFC3339) must be given.
func ParseWindowSpec(name, start, end string) (WindowSpec, error) {
	name = strings.TrimSpace(name)
	start = strings.TrimSpace(start)
	end = strings.TrimSpace(end)

	hasRange := start != "" || end != ""
	switch {
	case name != "" && hasRange:
		return WindowSpec{}, fmt.Errorf("%w: provide either a named window or start/end, not both", ErrInvalidInput)
	case name != "":
		return Named(name)
	case start == "" || end == "":
		if hasRange {
			return WindowSpec{}, fmt.Errorf("%w: both start and end are required for an explicit window", ErrInvalidInput)
		}
		return WindowSpec{}, fmt.Errorf("%w: a named window or start/end is required", ErrInvalidInput)
	}

	s, err := time.Parse(time.RFC3339, start)
	if err != nil {
		return WindowSpec{}, fmt.Errorf("%w: invalid start time %q: %v", ErrInvalidInput, start, err)
	}
	e, err := time.Parse(time.RFC3339, end)
	if err != nil {
		return WindowSpec{}, fmt.Errorf("%w: invalid end time %q: %v", ErrInvalidInput, end, err)
	}
	return Explicit(s, e)
}

// IsNamed reports whether the spec is a relative window.
func (s WindowSpec) IsNamed() bool { return s.kind == kindNamed }

// IsExplicit reports whether the spec is a fixed range.
func (s WindowSpec) IsExplicit() bool { return s.kind == kindExplicit }

// Name returns the relative window name, or "" for explicit specs.
func (s WindowSpec) Name() WindowName { return s.name }

func (s WindowSpec) String() string {
	switch s.kind {
	case kindNamed:
		return string(s.name)
	case kindExplicit:
		return s.explicit.String()
	default:
		return "<unset>"
	}
}

// Resolve turns the spec into a concrete window. Named windows are computed
// relative to now in loc: "today" runs from now to midnight, "tomorrow" is
// the whole next day, "this_week" runs from now to the coming Monday and
// "next_week" is the following Monday-to-Monday week.
func (s WindowSpec) Resolve(now time.Time, loc *time.Location) (TimeWindow, error) {
	if loc == nil {
		loc = time.Local
	}
	switch s.kind {
	case kindExplicit:
		return s.explicit, nil
	case kindNamed:
	default:
		return TimeWindow{}, fmt.Errorf("%w: window is not set", ErrInvalidInput)
	}

	now = now.In(loc)
	today := startOfDay(now)
	nextMonday := addDays(today, daysUntilNextMonday(now.Weekday()))

	var w TimeWindow
	switch s.name {
	case WindowToday:
		w = TimeWindow{Start: now, End: addDays(today, 1)}
	case WindowTomorrow:
		w = TimeWindow{Start: addDays(today, 1), End: addDays(today, 2)}
	case WindowThisWeek:
		w = TimeWindow{Start: now, End: nextMonday}
	case WindowNextWeek:
		w = TimeWindow{Start: nextMonday, End: addDays(nextMonday, 7)}
	}
	return w, w.Validate()
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// addDays adds calendar days, keeping midnight across DST changes.
func addDays(day time.Time, n int) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d+n, 0, 0, 0, 0, day.Location())
}

func daysUntilNextMonday(wd time.Weekday) int {
	n := (int(time.Monday) - int(wd) + 7) % 7
	if n == 0 {
		n = 7
	}
	return n
}

func joinNames() string {
	names := make([]string, len(WindowNames))
	for i, n := range WindowNames {
		names[i] = string(n)
	}
	return strings.Join(names, ", ")
}
