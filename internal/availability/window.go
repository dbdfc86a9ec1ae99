package availability

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// ErrInvalidInput is returned for malformed windows, durations or slot sizes.
var ErrInvalidInput = errors.New("invalid input")

// TimeWindow is the half-open interval [Start, End).
type TimeWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// NewTimeWindow returns a validated window.
func NewTimeWindow(start, end time.Time) (TimeWindow, error) {
	w := TimeWindow{Start: start, End: end}
	if err := w.Validate(); err != nil {
		return TimeWindow{}, err
	}
	return w, nil
}

// Validate reports an error unless Start is strictly before End.
func (w TimeWindow) Validate() error {
	if w.Start.IsZero() || w.End.IsZero() {
		return fmt.Errorf("%w: window start and end are required", ErrInvalidInput)
	}
	if !w.Start.Before(w.End) {
		return fmt.Errorf("%w: window start %s must be before end %s",
			ErrInvalidInput, w.Start.Format(time.RFC3339), w.End.Format(time.RFC3339))
	}
	return nil
}

// Duration returns End - Start.
func (w TimeWindow) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

// Overlaps reports whether the two half-open intervals share any instant.
func (w TimeWindow) Overlaps(other TimeWindow) bool {
	return w.Start.Before(other.End) && other.Start.Before(w.End)
}

// Contains reports whether other lies entirely inside w.
func (w TimeWindow) Contains(other TimeWindow) bool {
	return !other.Start.Before(w.Start) && !other.End.After(w.End)
}

// In returns the window with both instants expressed in loc.
func (w TimeWindow) In(loc *time.Location) TimeWindow {
	return TimeWindow{Start: w.Start.In(loc), End: w.End.In(loc)}
}

func (w TimeWindow) String() string {
	return w.Start.Format(time.RFC3339) + "/" + w.End.Format(time.RFC3339)
}

// BusyMap maps a calendar or attendee identifier to the intervals during
// which it is unavailable. Interval order within an entry is irrelevant.
type BusyMap map[string][]TimeWindow

// Add appends busy intervals for id.
func (b BusyMap) Add(id string, windows ...TimeWindow) {
	b[id] = append(b[id], windows...)
}

// Conflicts reports whether candidate overlaps any busy interval of any entry.
func (b BusyMap) Conflicts(candidate TimeWindow) bool {
	for _, windows := range b {
		for _, busy := range windows {
			if candidate.Overlaps(busy) {
				return true
			}
		}
	}
	return false
}

// IDs returns the identifiers in the map, sorted.
func (b BusyMap) IDs() []string {
	ids := make([]string, 0, len(b))
	for id := range b {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// flatten collects every busy interval of every entry.
func (b BusyMap) flatten() []TimeWindow {
	var all []TimeWindow
	for _, windows := range b {
		all = append(all, windows...)
	}
	return all
}
