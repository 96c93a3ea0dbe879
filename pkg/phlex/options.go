package phlex

import (
	"github.com/phlex-hep/phlex/pkg/phlex/observability"
)

// runConfig holds configuration for one execution.
type runConfig struct {
	metrics        observability.MetricsRecorder
	spans          observability.SpanManager
	tracingEnabled bool
}

// defaultRunConfig returns the default execution configuration:
// no-op metrics, no tracing.
func defaultRunConfig() runConfig {
	return runConfig{
		metrics: observability.NoopMetrics{},
		spans:   observability.NoopSpanManager{},
	}
}

// RunOption configures execution behavior.
type RunOption func(*runConfig)

// WithMetrics enables OpenTelemetry metrics for this run.
// Configure the global meter provider before executing.
func WithMetrics() RunOption {
	return func(c *runConfig) {
		c.metrics = observability.NewMetricsRecorder()
	}
}

// WithMetricsRecorder supplies a custom metrics recorder.
func WithMetricsRecorder(m observability.MetricsRecorder) RunOption {
	return func(c *runConfig) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithTracing enables OpenTelemetry spans for the run and each node
// fire. Configure the global tracer provider before executing.
func WithTracing() RunOption {
	return func(c *runConfig) {
		c.tracingEnabled = true
		c.spans = observability.NewSpanManager()
	}
}
