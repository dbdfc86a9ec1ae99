package calendar_tools

import (
	"fmt"
	"strings"

	"github.com/teemow/meetsched/internal/attendee"
	"github.com/teemow/meetsched/internal/availability"
	"github.com/teemow/meetsched/internal/calendar"
	"github.com/teemow/meetsched/internal/mirror"
)

const (
	dayLayout  = "Mon, Jan 2 2006 15:04"
	timeLayout = "15:04 MST"
)

func windowNames() []string {
	names := make([]string, len(availability.WindowNames))
	for i, n := range availability.WindowNames {
		names[i] = string(n)
	}
	return names
}

func formatSpan(w availability.TimeWindow) string {
	return fmt.Sprintf("%s to %s", w.Start.Format(dayLayout), w.End.Format(timeLayout))
}

func formatAttendees(list []attendee.Resolved) string {
	parts := make([]string, len(list))
	for i, a := range list {
		parts[i] = a.String()
	}
	return strings.Join(parts, ", ")
}

// writeDiagnostics appends the dropped duplicates and unreadable calendars.
func writeDiagnostics(b *strings.Builder, duplicates, unavailable []string) {
	if len(duplicates) > 0 {
		fmt.Fprintf(b, "Duplicates removed: %s\n", strings.Join(duplicates, ", "))
	}
	if len(unavailable) > 0 {
		fmt.Fprintf(b, "Warning: availability could not be read for %s; their calendars were not checked\n",
			strings.Join(unavailable, ", "))
	}
}

func writeEvent(b *strings.Builder, event *calendar.Event) {
	fmt.Fprintf(b, "Title: %s\n", event.Summary)
	fmt.Fprintf(b, "When: %s\n", formatSpan(availability.TimeWindow{Start: event.Start, End: event.End}))
	fmt.Fprintf(b, "Event ID: %s\n", event.ID)
	if event.Location != "" {
		fmt.Fprintf(b, "Location: %s\n", event.Location)
	}
	if event.ConferenceURL != "" {
		fmt.Fprintf(b, "Meet: %s\n", event.ConferenceURL)
	}
	if event.HTMLLink != "" {
		fmt.Fprintf(b, "Link: %s\n", event.HTMLLink)
	}
}

// writeOutcomes renders the Google Calendar and mirror results as separate
// lines.
func writeOutcomes(b *strings.Builder, primary string, m mirror.Outcome) {
	fmt.Fprintf(b, "\nPrimary (Google Calendar): %s\n", primary)
	fmt.Fprintf(b, "Mirror (%s): %s\n", m.Backend, m.String())
}
