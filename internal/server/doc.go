// Package server wires the long-lived state of the meetsched MCP server and
// serves it over HTTP.
//
// # Key Components
//
// ServerContext owns the account manager, the per-account Calendar and
// People clients, the mirror backend and the scheduler. Clients are built on
// first use with the account's token source and a shared rate limiter, and
// are dropped whenever the account is changed or removed. Every Google call
// is traced and counted.
//
// HTTPServer serves the streamable HTTP transport at /mcp together with the
// health endpoints:
//   - /healthz: liveness
//   - /readyz: readiness, including whether the token store can be read
//   - /healthz/detailed: uptime, account count and mirror backend
//
// MetricsServer exposes Prometheus metrics on a separate port.
package server
