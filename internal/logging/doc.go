// Package logging assembles structured slog loggers and formatting helpers used
// across imgbatch.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so batch code can tag log lines
// with the run ID and source image automatically. A no-op logger is provided
// for tests and wiring code that cannot fail.
package logging
