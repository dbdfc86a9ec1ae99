// Package common provides shared utilities for MCP tool implementations:
// instrumentation of handlers, argument parsing and error rendering.
package common
