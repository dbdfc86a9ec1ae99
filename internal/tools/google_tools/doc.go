// Package google_tools provides MCP tools for managing the Google accounts
// known to meetsched.
//
// Tools:
//   - account_list: show configured accounts, labels, the default and the
//     credential state of each
//   - account_set_default: choose the account used when no account is given
//   - account_set_label: attach or clear a short alias such as "work"
//   - account_remove: forget an account and its stored token
//
// Adding an account requires a browser consent screen and is only available
// from the command line:
//
//	meetsched accounts add --label work
//
// Every tool that accepts an "account" argument takes either the account email
// or its label.
package google_tools
