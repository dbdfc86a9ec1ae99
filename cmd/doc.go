// Package cmd implements the command-line interface for meetsched.
//
// This package provides the following commands:
//   - serve: Start the MCP server with the scheduling and account tools
//   - accounts: Add, list, remove and label Google accounts
//   - generate-docs: Generate markdown documentation for all MCP tools
//   - version: Display version information
//
// Configuration is read from <user config dir>/meetsched/config.yaml (or the
// file named by --config), MEETSCHED_* environment variables, a .env file in
// the working directory and command-line flags, in increasing precedence.
package cmd
