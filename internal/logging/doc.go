// Package logging assembles structured slog loggers and formatting helpers used
// across forager.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so pipeline code can automatically
// tag log lines with case item IDs, phases, unit names and correlation IDs. The
// package also provides a no-op logger for tests and the OnceSet used by
// decoders to report an unknown value a single time.
//
// Prefer these constructors over hand-rolled slog setup so new ants emit data
// with the same shape as the rest of the system.
package logging
