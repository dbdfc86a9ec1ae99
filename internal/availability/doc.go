// Package availability turns busy intervals into bookable time.
//
// It holds the pure parts of scheduling: the half-open TimeWindow type, the
// free-slot grid computed from a BusyMap, the greedy contiguous-span picker
// and the WindowSpec variant that names the range to search. Nothing in this
// package performs I/O; every function is safe for concurrent use.
//
// # Slot grid
//
// ComputeFreeSlots steps from the window start in fixed increments while the
// step start is before the window end. The last slot may therefore end after
// the window end. Callers that must not book outside the window filter the
// result themselves.
//
// # Span picking
//
// PickContiguousSpan merges adjacent slots and returns the first run that is
// long enough for the requested duration, clipped to exactly that duration.
// It is first-fit, not best-fit.
package availability
