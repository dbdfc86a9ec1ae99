package attendee

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	maxEmailLength     = 254
	maxLocalPartLength = 64
)

// emailPattern accepts the common dot-atom grammar: the RFC 5322 atext set in
// the local part and dot-separated hostname labels ending in a TLD of at
// least two letters.
var emailPattern = regexp.MustCompile(
	`^[A-Za-z0-9!#$%&'*+/=?^_` + "`" + `{|}~-]+(?:\.[A-Za-z0-9!#$%&'*+/=?^_` + "`" + `{|}~-]+)*` +
		`@(?:[A-Za-z0-9](?:[A-Za-z0-9-]*[A-Za-z0-9])?\.)+[A-Za-z]{2,}$`)

// LooksLikeEmail reports whether s matches the email grammar. It does not
// check length limits.
func LooksLikeEmail(s string) bool {
	return emailPattern.MatchString(s)
}

// NormalizeEmail validates an address that matched the grammar and returns
// it lowercased.
func NormalizeEmail(s string) (string, error) {
	if len(s) > maxEmailLength {
		return "", fmt.Errorf("%w: %q is longer than %d characters", ErrInvalidEmailFormat, s, maxEmailLength)
	}
	local := s[:strings.LastIndex(s, "@")]
	if len(local) > maxLocalPartLength {
		return "", fmt.Errorf("%w: local part of %q is longer than %d characters", ErrInvalidEmailFormat, s, maxLocalPartLength)
	}
	return strings.ToLower(s), nil
}

// Domain returns the lowercased domain of a canonical email.
func Domain(email string) string {
	i := strings.LastIndex(email, "@")
	if i < 0 {
		return ""
	}
	return strings.ToLower(email[i+1:])
}
