package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
)

// TestNoopMetrics does nothing, safely.
func TestNoopMetrics(t *testing.T) {
	m := NoopMetrics{}
	ctx := context.Background()
	assert.NotPanics(t, func() {
		m.RecordNodeFire(ctx, "n", time.Second, errors.New("x"))
		m.RecordRun(ctx, false, time.Second)
		m.RecordStore(ctx, "event")
		m.RecordFlush(ctx, "job")
	})
}

// TestNoopSpanManager returns usable no-op spans.
func TestNoopSpanManager(t *testing.T) {
	m := NoopSpanManager{}
	ctx := context.Background()

	runCtx, runSpan := m.StartRunSpan(ctx, "gen", "run-1")
	assert.Equal(t, ctx, runCtx)
	assert.NotNil(t, runSpan)

	nodeCtx, nodeSpan := m.StartNodeSpan(ctx, "plus_one")
	assert.Equal(t, ctx, nodeCtx)
	assert.NotNil(t, nodeSpan)

	assert.NotPanics(t, func() {
		m.EndSpanWithError(runSpan, errors.New("x"))
		m.EndSpanWithError(nodeSpan, nil)
		m.EndSpanWithError(nil, nil)
		m.AddSpanEvent(ctx, "event", attribute.String("k", "v"))
	})
}
