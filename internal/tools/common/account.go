package common

import "strings"

// GetAccountFromArgs returns the "account" argument, an email address or a
// label, or "" when the default account should be used.
func GetAccountFromArgs(args map[string]any) string {
	if accountVal, ok := args["account"].(string); ok {
		return strings.TrimSpace(accountVal)
	}
	return ""
}
