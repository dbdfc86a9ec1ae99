// Package attendee resolves the free-form invitee list an assistant passes
// in ("Alice", "bob@example.com") into canonical, deduplicated email
// addresses.
//
// Addresses are validated syntactically and lowercased without any lookup.
// Anything else is treated as a name and searched in the user's contacts; a
// name must match exactly one contact with an email address; zero or
// several matches are errors that carry enough detail for the caller to ask
// the user. The resolver never guesses.
package attendee
