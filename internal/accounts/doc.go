// Package accounts manages the Google identities meetsched can act as.
//
// A single JSON document in the user configuration directory holds every
// account's OAuth token, an optional label ("work", "personal") and the
// default account. The Manager owns that document: it loads it once per
// process, migrates single-account files written by older versions, keeps
// tokens fresh and rewrites the whole file on every mutation.
//
// # Account selection
//
// ResolveAccount picks the identity for an operation in this order:
//
//  1. an explicit hint matching an account email or label
//  2. the only configured account
//  3. the first account whose domain appears among the attendee domains
//  4. the stored default, which may be empty
//
// # Token lifecycle
//
// A token within ExpiryBuffer of its expiry is refreshed before use. A failed
// refresh is reported as a *RefreshError telling the user to sign in to that
// account again.
//
// Clients built from an account's token are cached by callers in a
// ClientCache registered with the Manager, which drops an account's entry
// when the account is removed, relabelled or re-authenticated.
package accounts
