package attendee

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptyInput is returned for blank entries.
	ErrEmptyInput = errors.New("attendee is empty")

	// ErrInvalidEmailFormat is returned for addresses that exceed the
	// length limits of RFC 5321.
	ErrInvalidEmailFormat = errors.New("invalid email format")

	// ErrEmptyAttendeeList is returned when ResolveMany gets no entries.
	ErrEmptyAttendeeList = errors.New("attendee list is empty")
)

// maxListedCandidates bounds the candidates quoted in an ambiguity error.
const maxListedCandidates = 5

// ContactNotFoundError reports a name with no matching contact.
type ContactNotFoundError struct {
	Query string
}

func (e *ContactNotFoundError) Error() string {
	return fmt.Sprintf("no contact found matching %q; provide the attendee's email address directly", e.Query)
}

// AmbiguousContactError reports a name that matched more than one contact.
type AmbiguousContactError struct {
	Query      string
	Candidates []Contact
}

func (e *AmbiguousContactError) Error() string {
	listed := e.Candidates
	if len(listed) > maxListedCandidates {
		listed = listed[:maxListedCandidates]
	}
	parts := make([]string, len(listed))
	for i, c := range listed {
		parts[i] = fmt.Sprintf("%s (%s)", c.Name, c.Email)
	}
	msg := fmt.Sprintf("%q matches %d contacts: %s", e.Query, len(e.Candidates), strings.Join(parts, ", "))
	if more := len(e.Candidates) - len(listed); more > 0 {
		msg += fmt.Sprintf(" and %d more", more)
	}
	return msg + "; specify the email address of the intended attendee"
}

// EntryError ties a resolution failure to the input that caused it.
type EntryError struct {
	Input string
	Err   error
}

func (e *EntryError) Error() string {
	return fmt.Sprintf("failed to resolve attendee %q: %v", e.Input, e.Err)
}

func (e *EntryError) Unwrap() error {
	return e.Err
}
