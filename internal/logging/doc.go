// Package logging builds the slog loggers used across modelkeep.
//
// It provides a single-line console handler for interactive use, a JSON
// handler for machine consumption, helpers for common attribute shapes, and a
// no-op logger for tests. Components derive their loggers via WithComponent so
// every record carries a stable component field.
package logging
