package accounts

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// ExpiryBuffer is how close to expiry a token may get before it is refreshed.
const ExpiryBuffer = 5 * time.Minute

// LegacyPlaceholder keys a token migrated from a single-account token file
// until the owning email has been discovered.
const LegacyPlaceholder = "legacy@placeholder.invalid"

var (
	// ErrAccountNotFound is returned when no account matches an email or label.
	ErrAccountNotFound = errors.New("account not found")

	// ErrNoCredentials is returned for an account entry without a token.
	ErrNoCredentials = errors.New("account has no stored credentials")

	// ErrLabelInUse is returned when a label already belongs to another account.
	ErrLabelInUse = errors.New("label already in use")

	// ErrInvalidAccount is returned for malformed account emails.
	ErrInvalidAccount = errors.New("invalid account email")
)

// RefreshError is returned when a token refresh fails. The caller must
// re-authenticate the named account.
type RefreshError struct {
	Email string
	Err   error
}

func (e *RefreshError) Error() string {
	return fmt.Sprintf("failed to refresh credentials for account %s: %v; re-authenticate with 'meetsched accounts add --email %s'",
		e.Email, e.Err, e.Email)
}

func (e *RefreshError) Unwrap() error {
	return e.Err
}

// Account is one authenticated identity.
type Account struct {
	Email   string        `json:"email"`
	Label   string        `json:"label,omitempty"`
	Token   *oauth2.Token `json:"token,omitempty"`
	AddedAt time.Time     `json:"added_at"`
}

// Domain returns the lowercased domain of the account email.
func (a *Account) Domain() string {
	i := strings.LastIndex(a.Email, "@")
	if i < 0 {
		return ""
	}
	return strings.ToLower(a.Email[i+1:])
}

// State is the credential state of an account.
type State int

const (
	StateUnauthenticated State = iota
	StateValid
	StateExpiring
	StateRefreshFailed
)

func (s State) String() string {
	switch s {
	case StateValid:
		return "valid"
	case StateExpiring:
		return "expiring"
	case StateRefreshFailed:
		return "refresh_failed"
	default:
		return "unauthenticated"
	}
}

// StateOf classifies tok at now. Tokens without an expiry are always valid.
func StateOf(tok *oauth2.Token, now time.Time) State {
	switch {
	case tok == nil || (tok.AccessToken == "" && tok.RefreshToken == ""):
		return StateUnauthenticated
	case tok.Expiry.IsZero():
		return StateValid
	case tok.Expiry.Sub(now) < ExpiryBuffer:
		return StateExpiring
	default:
		return StateValid
	}
}

// Info is the read-only view of an account returned by List.
type Info struct {
	Email     string    `json:"email"`
	Label     string    `json:"label,omitempty"`
	IsDefault bool      `json:"default"`
	State     string    `json:"state"`
	Expiry    time.Time `json:"expiry,omitzero"`
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
