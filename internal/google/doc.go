// Package google wires golang.org/x/oauth2 to Google's endpoints for the
// account manager.
//
// It provides the OAuth client configuration and scopes, a Refresher and a
// UserInfoLookup satisfying the accounts package's collaborator interfaces,
// an authenticated and rate limited HTTP client for the Calendar and People
// services, and the loopback authorization code flow used by
// "meetsched accounts add".
package google
