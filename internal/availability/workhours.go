package availability

import (
	"fmt"
	"time"
)

// WorkingHoursID is the BusyMap key under which off-hours are recorded.
const WorkingHoursID = "working-hours"

// WorkingHours describes the daily bookable hours in a location. Time
// outside [StartHour, EndHour) is treated as busy, and so are Saturdays and
// Sundays unless IncludeWeekends is set.
type WorkingHours struct {
	StartHour       int
	EndHour         int
	IncludeWeekends bool
	Location        *time.Location
}

// Validate checks the hour bounds.
func (w WorkingHours) Validate() error {
	if w.StartHour < 0 || w.EndHour > 24 || w.StartHour >= w.EndHour {
		return fmt.Errorf("%w: working hours must satisfy 0 <= start < end <= 24, got %d-%d",
			ErrInvalidInput, w.StartHour, w.EndHour)
	}
	return nil
}

// OffHours returns the busy intervals that fall outside working hours and
// overlap window.
func (w WorkingHours) OffHours(window TimeWindow) []TimeWindow {
	loc := w.Location
	if loc == nil {
		loc = time.Local
	}

	var off []TimeWindow
	for day := startOfDay(window.Start.In(loc)); day.Before(window.End); day = addDays(day, 1) {
		next := addDays(day, 1)

		var candidates []TimeWindow
		if !w.IncludeWeekends && (day.Weekday() == time.Saturday || day.Weekday() == time.Sunday) {
			candidates = []TimeWindow{{Start: day, End: next}}
		} else {
			open := time.Date(day.Year(), day.Month(), day.Day(), w.StartHour, 0, 0, 0, loc)
			closing := time.Date(day.Year(), day.Month(), day.Day(), w.EndHour, 0, 0, 0, loc)
			if day.Before(open) {
				candidates = append(candidates, TimeWindow{Start: day, End: open})
			}
			if closing.Before(next) {
				candidates = append(candidates, TimeWindow{Start: closing, End: next})
			}
		}

		for _, c := range candidates {
			if c.Overlaps(window) {
				off = append(off, c)
			}
		}
	}
	return off
}

// Apply records the off-hours of window in busy under WorkingHoursID.
func (w WorkingHours) Apply(busy BusyMap, window TimeWindow) {
	if off := w.OffHours(window); len(off) > 0 {
		busy.Add(WorkingHoursID, off...)
	}
}
