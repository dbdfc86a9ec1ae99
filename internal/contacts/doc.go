// Package contacts searches Google People for attendee resolution.
//
// A search merges three sources in priority order: the user's own contacts,
// "other contacts" (people the user has interacted with) and, for Google
// Workspace accounts, the domain directory. Results are deduplicated by
// lowercased email address.
package contacts
