// Package mirror copies meetings booked on the primary calendar into a local
// desktop calendar.
//
// Backends implement Calendar: AppleScript drives macOS Calendar through
// osascript, CalDAV talks to any CalDAV server, and Disabled turns mirroring
// off. Mirrored events carry no link to the primary event, so updates and
// deletions locate them by exact title and start time. If several events
// match, the first one returned by the backend is used; concurrent edits of
// identically titled events at the same instant can hit the wrong one.
//
// Mirror failures never roll back the primary calendar change. Callers turn
// backend errors into an Outcome with NewOutcome and report it alongside the
// primary result.
package mirror
