package availability

import "time"

// MaxDurationMinutes is the longest meeting that can be searched for or
// booked: one week.
const MaxDurationMinutes = 7 * 24 * 60

// PickContiguousSpan scans slots in order, merging each slot whose start
// equals the running span's end. At the first gap it stops if the running
// span already covers durationMinutes, otherwise it restarts at the slot
// after the gap. It returns [start, start+duration) of the first qualifying
// run, or false when no run is long enough.
func PickContiguousSpan(slots []TimeWindow, durationMinutes int) (TimeWindow, bool) {
	if len(slots) == 0 || durationMinutes <= 0 || durationMinutes > MaxDurationMinutes {
		return TimeWindow{}, false
	}
	need := time.Duration(durationMinutes) * time.Minute

	acc := slots[0]
	for _, slot := range slots[1:] {
		if slot.Start.Equal(acc.End) {
			acc.End = slot.End
			continue
		}
		if acc.Duration() >= need {
			break
		}
		acc = slot
	}

	if acc.Duration() < need {
		return TimeWindow{}, false
	}
	return TimeWindow{Start: acc.Start, End: acc.Start.Add(need)}, true
}

// CandidateSpans applies PickContiguousSpan repeatedly, each time to the
// slots starting at or after the previous span's end, and returns up to
// limit non-overlapping spans in chronological order. A limit <= 0 means no
// limit.
func CandidateSpans(slots []TimeWindow, durationMinutes, limit int) []TimeWindow {
	var spans []TimeWindow
	rest := slots
	for len(rest) > 0 && (limit <= 0 || len(spans) < limit) {
		span, ok := PickContiguousSpan(rest, durationMinutes)
		if !ok {
			break
		}
		spans = append(spans, span)

		next := 1
		for next < len(rest) && rest[next].Start.Before(span.End) {
			next++
		}
		rest = rest[next:]
	}
	return spans
}
