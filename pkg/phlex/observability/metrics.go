package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records phlex engine metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordNodeFire records one algorithm invocation with its duration
	// and error status.
	RecordNodeFire(ctx context.Context, node string, duration time.Duration, err error)

	// RecordRun records a graph run completion.
	RecordRun(ctx context.Context, success bool, duration time.Duration)

	// RecordStore records a store emitted by the source.
	RecordStore(ctx context.Context, level string)

	// RecordFlush records a flush released for a closed level instance.
	RecordFlush(ctx context.Context, level string)
}

// otelMetrics implements MetricsRecorder using OpenTelemetry.
type otelMetrics struct {
	nodeFires   metric.Int64Counter
	nodeLatency metric.Float64Histogram
	nodeErrors  metric.Int64Counter
	runs        metric.Int64Counter
	runLatency  metric.Float64Histogram
	stores      metric.Int64Counter
	flushes     metric.Int64Counter
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

// getDefaultMetrics returns the default OTel metrics instance.
// Lazily initializes the metrics on first call.
func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

// newOtelMetrics creates a new OTel metrics instance.
func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("phlex")

	nodeFires, err := meter.Int64Counter("phlex.node.fires",
		metric.WithDescription("Number of algorithm invocations"),
	)
	if err != nil {
		return nil, err
	}

	nodeLatency, err := meter.Float64Histogram("phlex.node.latency_ms",
		metric.WithDescription("Algorithm invocation latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	nodeErrors, err := meter.Int64Counter("phlex.node.errors",
		metric.WithDescription("Number of algorithm failures"),
	)
	if err != nil {
		return nil, err
	}

	runs, err := meter.Int64Counter("phlex.run.count",
		metric.WithDescription("Number of graph runs"),
	)
	if err != nil {
		return nil, err
	}

	runLatency, err := meter.Float64Histogram("phlex.run.latency_ms",
		metric.WithDescription("Graph run latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	stores, err := meter.Int64Counter("phlex.store.count",
		metric.WithDescription("Number of stores emitted by the source"),
	)
	if err != nil {
		return nil, err
	}

	flushes, err := meter.Int64Counter("phlex.flush.count",
		metric.WithDescription("Number of flushes released"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		nodeFires:   nodeFires,
		nodeLatency: nodeLatency,
		nodeErrors:  nodeErrors,
		runs:        runs,
		runLatency:  runLatency,
		stores:      stores,
		flushes:     flushes,
	}, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses OpenTelemetry.
// If metrics initialization fails, returns a no-op recorder.
//
// The recorder uses the global OTel meter provider. Configure the
// provider before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetMeterProvider(yourProvider)
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

// RecordNodeFire implements MetricsRecorder.
func (m *otelMetrics) RecordNodeFire(ctx context.Context, node string, duration time.Duration, err error) {
	attrs := metric.WithAttributes(attribute.String("node", node))
	m.nodeFires.Add(ctx, 1, attrs)
	m.nodeLatency.Record(ctx, float64(duration.Milliseconds()), attrs)
	if err != nil {
		m.nodeErrors.Add(ctx, 1, attrs)
	}
}

// RecordRun implements MetricsRecorder.
func (m *otelMetrics) RecordRun(ctx context.Context, success bool, duration time.Duration) {
	attrs := metric.WithAttributes(attribute.Bool("success", success))
	m.runs.Add(ctx, 1, attrs)
	m.runLatency.Record(ctx, float64(duration.Milliseconds()), attrs)
}

// RecordStore implements MetricsRecorder.
func (m *otelMetrics) RecordStore(ctx context.Context, level string) {
	m.stores.Add(ctx, 1, metric.WithAttributes(attribute.String("level", level)))
}

// RecordFlush implements MetricsRecorder.
func (m *otelMetrics) RecordFlush(ctx context.Context, level string) {
	m.flushes.Add(ctx, 1, metric.WithAttributes(attribute.String("level", level)))
}
