package google

// DefaultOAuthScopes are the Google OAuth scopes requested when an account is
// added.
//
// The scopes provide access to:
//   - Identity: the account's email address (legacy token migration, account add)
//   - Google Calendar: free/busy queries and event management
//   - Contacts: read-only (including other contacts and directory)
var DefaultOAuthScopes = []string{
	// OpenID Connect scopes (required for user info)
	"openid",
	"https://www.googleapis.com/auth/userinfo.email",

	// Google Calendar scope
	"https://www.googleapis.com/auth/calendar",

	// Contacts scopes
	"https://www.googleapis.com/auth/contacts.readonly",
	"https://www.googleapis.com/auth/contacts.other.readonly",
	"https://www.googleapis.com/auth/directory.readonly",
}
