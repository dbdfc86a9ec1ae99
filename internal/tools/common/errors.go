package common

import (
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/teemow/meetsched/internal/accounts"
	"github.com/teemow/meetsched/internal/scheduler"
)

// ErrorResult converts err into a tool error result with a hint on how to
// proceed where one is known.
func ErrorResult(action string, err error) *mcp.CallToolResult {
	return mcp.NewToolResultError(FormatError(action, err))
}

// FormatError renders err for a tool caller.
func FormatError(action string, err error) string {
	msg := fmt.Sprintf("Failed to %s: %v", action, err)

	// RefreshError carries its own re-authentication hint.
	switch {
	case errors.Is(err, accounts.ErrNoCredentials):
		return msg + "\n\nRe-authenticate the account with: meetsched accounts add --email <email>"
	case errors.Is(err, accounts.ErrAccountNotFound):
		return msg + "\n\nList the configured accounts with the account_list tool."
	case errors.Is(err, scheduler.ErrNoAvailableSlot):
		return msg + "\n\nTry a wider window or a shorter duration."
	default:
		return msg
	}
}
