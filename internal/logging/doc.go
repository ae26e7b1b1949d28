// Package logging constructs the slog loggers used across the daemon and CLI.
//
// It parses the configured level and format, opens log file writers next to
// stdout/stderr, and hands out component loggers so every record carries the
// subsystem that emitted it. A no-op logger is available for tests and for
// collaborators constructed without a logger.
package logging
