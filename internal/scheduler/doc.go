// Package scheduler composes availability math, attendee resolution, account
// selection and retries into the four meeting operations: find slots, book,
// update and cancel.
//
// Every remote call goes through the retry package. The local calendar
// mirror runs after the primary calendar change and its Outcome is returned
// next to the primary result; a failed mirror never undoes the primary
// change.
package scheduler
