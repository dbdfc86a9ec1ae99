// Package logging provides structured logging helpers for meetsched.
//
// All components log through log/slog. This package keeps attribute names
// consistent and makes sure account emails only ever reach the logs in
// anonymized form.
//
//	logger := logging.WithOperation(slog.Default(), "scheduler.book")
//	logger.Info("event created", logging.Account(email), logging.Status(logging.StatusSuccess))
//
// Tokens are never logged; use SanitizeToken when a length hint is useful.
package logging
