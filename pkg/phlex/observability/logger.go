// Package observability provides production-grade observability for
// phlex runs: structured logging, metrics, and distributed tracing.
//
// Features:
//   - Structured logging via slog (Go stdlib)
//   - Metrics via OpenTelemetry
//   - Tracing via OpenTelemetry
//
// All features are opt-in and have no-op implementations when disabled.
package observability

import (
	"log/slog"
	"time"
)

// LogRunStart logs the start of a graph run.
func LogRunStart(logger *slog.Logger, runID string) {
	if logger == nil {
		return
	}
	logger.Info("graph run starting",
		slog.String("run_id", runID),
	)
}

// LogRunComplete logs successful graph run completion.
func LogRunComplete(logger *slog.Logger, runID string, durationMs float64, storeCount int) {
	if logger == nil {
		return
	}
	logger.Info("graph run completed",
		slog.String("run_id", runID),
		slog.Float64("duration_ms", durationMs),
		slog.Int("stores_processed", storeCount),
	)
}

// LogRunError logs graph run failure.
func LogRunError(logger *slog.Logger, runID string, err error, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Error("graph run failed",
		slog.String("run_id", runID),
		slog.String("error", err.Error()),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogStore logs a store emitted by the source.
func LogStore(logger *slog.Logger, level, source string) {
	if logger == nil {
		return
	}
	logger.Debug("store emitted",
		slog.String("level", level),
		slog.String("source", source),
	)
}

// LogNodeFire logs an algorithm firing on a store.
func LogNodeFire(logger *slog.Logger, node, level string) {
	if logger == nil {
		return
	}
	logger.Debug("node firing",
		slog.String("node", node),
		slog.String("level", level),
	)
}

// LogNodeSkip logs an algorithm skipped by a false predicate.
func LogNodeSkip(logger *slog.Logger, node, level, predicate string) {
	if logger == nil {
		return
	}
	logger.Debug("node skipped",
		slog.String("node", node),
		slog.String("level", level),
		slog.String("predicate", predicate),
	)
}

// LogFlush logs release of a flush for a closed level instance.
func LogFlush(logger *slog.Logger, level string) {
	if logger == nil {
		return
	}
	logger.Debug("flush released",
		slog.String("level", level),
	)
}

// LogCommit logs a reducer committing its accumulator.
func LogCommit(logger *slog.Logger, node, level string) {
	if logger == nil {
		return
	}
	logger.Debug("reducer committed",
		slog.String("node", node),
		slog.String("level", level),
	)
}

// TimedOperation measures the duration of an operation.
// Returns a function that, when called, returns the elapsed time in
// milliseconds.
//
// Example:
//
//	done := TimedOperation()
//	// ... do work ...
//	durationMs := done()
func TimedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Milliseconds())
	}
}
