package phlex

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// Context provides execution context to algorithms. It extends
// context.Context with framework services and metadata.
//
// Context is immutable after creation. The scheduler derives a context
// per node with the node name set and the logger enriched.
type Context interface {
	context.Context

	// Logger returns the configured logger, enriched with run and node
	// context. Never returns nil; defaults to slog.Default().
	Logger() *slog.Logger

	// RunID returns the unique identifier for this execution run.
	// Auto-generated if not configured.
	RunID() string

	// NodeName returns the algorithm currently executing.
	// Empty before execution starts.
	NodeName() string
}

// executionContext is the internal implementation of Context.
type executionContext struct {
	context.Context

	logger   *slog.Logger
	runID    string
	nodeName string
}

// Logger returns the configured logger.
func (c *executionContext) Logger() *slog.Logger {
	return c.logger
}

// RunID returns the run identifier.
func (c *executionContext) RunID() string {
	return c.runID
}

// NodeName returns the current algorithm name.
func (c *executionContext) NodeName() string {
	return c.nodeName
}

// ContextOption configures a Context.
type ContextOption func(*executionContext)

// WithLogger sets the logger for the context. The scheduler enriches
// it with run_id and node fields during execution.
func WithLogger(logger *slog.Logger) ContextOption {
	return func(c *executionContext) {
		c.logger = logger
	}
}

// WithRunID sets the run identifier. If not set, a UUID is generated.
func WithRunID(id string) ContextOption {
	return func(c *executionContext) {
		c.runID = id
	}
}

// NewContext creates an execution context from a standard context.
//
// Example:
//
//	ctx := phlex.NewContext(context.Background(),
//	    phlex.WithLogger(myLogger))
func NewContext(ctx context.Context, opts ...ContextOption) Context {
	ec := &executionContext{
		Context: ctx,
		logger:  slog.Default(),
		runID:   uuid.New().String(),
	}

	for _, opt := range opts {
		opt(ec)
	}

	return ec
}

// withNode returns a derived context with the node name set and the
// logger enriched.
func (c *executionContext) withNode(name string) *executionContext {
	return &executionContext{
		Context:  c.Context,
		logger:   c.logger.With("run_id", c.runID, "node", name),
		runID:    c.runID,
		nodeName: name,
	}
}

// asExecution normalizes any Context to the internal implementation so
// the scheduler can derive per-node contexts.
func asExecution(ctx Context) *executionContext {
	if ec, ok := ctx.(*executionContext); ok {
		return ec
	}
	return &executionContext{
		Context: ctx,
		logger:  ctx.Logger(),
		runID:   ctx.RunID(),
	}
}
