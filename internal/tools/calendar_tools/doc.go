// Package calendar_tools provides the MCP tools that find free time, list,
// book, move and cancel meetings, and resolve attendees.
//
// Every tool accepts an optional account (email or label). Booking tools
// report the Google Calendar result and the local mirror result on separate
// lines; a mirror failure never fails the tool.
package calendar_tools
