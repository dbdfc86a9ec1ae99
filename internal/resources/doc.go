// Package resources provides MCP resources exposing read-only meetsched state.
// Resources are data sources that MCP clients can fetch without calling a
// tool:
//
//   - meetsched://accounts: the configured Google accounts, their labels,
//     credential state and which one is the default
//   - meetsched://settings: the effective scheduling settings such as time
//     zone, working hours and the local calendar mirror
package resources
