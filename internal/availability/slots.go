package availability

import (
	"fmt"
	"time"
)

const (
	minGridStepMinutes = 5
	maxGridStepMinutes = 30
)

// ComputeFreeSlots returns, in chronological order, every slotMinutes-long
// candidate starting at window.Start + k*slotMinutes (for starts before
// window.End) that overlaps no interval in busy.
//
// The final candidate is generated whenever its start lies inside the window,
// so its end may lie after window.End.
func ComputeFreeSlots(window TimeWindow, busy BusyMap, slotMinutes int) ([]TimeWindow, error) {
	if slotMinutes <= 0 {
		return nil, fmt.Errorf("%w: slot size must be positive, got %d minutes", ErrInvalidInput, slotMinutes)
	}
	if err := window.Validate(); err != nil {
		return nil, err
	}

	step := time.Duration(slotMinutes) * time.Minute
	intervals := busy.flatten()

	var slots []TimeWindow
	for t := window.Start; t.Before(window.End); t = t.Add(step) {
		candidate := TimeWindow{Start: t, End: t.Add(step)}
		if !overlapsAny(candidate, intervals) {
			slots = append(slots, candidate)
		}
	}
	return slots, nil
}

func overlapsAny(candidate TimeWindow, intervals []TimeWindow) bool {
	for _, busy := range intervals {
		if candidate.Overlaps(busy) {
			return true
		}
	}
	return false
}

// GridStep returns the probing grid, in minutes, used for a meeting of the
// given duration: duration/6 clamped to [5, 30].
func GridStep(durationMinutes int) int {
	return min(maxGridStepMinutes, max(minGridStepMinutes, durationMinutes/6))
}

// AlignUp rounds t up to the next multiple of step counted from the zero
// time. Instants already on the grid are returned unchanged.
func AlignUp(t time.Time, step time.Duration) time.Time {
	if step <= 0 {
		return t
	}
	truncated := t.Truncate(step)
	if truncated.Equal(t) {
		return t
	}
	return truncated.Add(step)
}
