package phlex

import (
	"strings"
)

// Concurrency is a node's admission limit: at most N messages in
// flight at once. Serial nodes process one at a time; Unlimited nodes
// never block on their own gate.
type Concurrency int

const (
	// Unlimited places no bound on in-flight messages.
	Unlimited Concurrency = 0
	// Serial admits one message at a time.
	Serial Concurrency = 1
)

// ProductSpec addresses a product for wiring: a product name plus an
// optional layer (canonical level name such as "job" or "event").
// Layer participates in wiring checks only; at read time lexical
// inheritance resolves the value.
type ProductSpec struct {
	Name  string
	Layer string
}

// ParseSpec parses "name" or "name@layer" into a ProductSpec.
// Comparisons are exact and case-sensitive.
func ParseSpec(s string) ProductSpec {
	if i := strings.IndexByte(s, '@'); i >= 0 {
		return ProductSpec{Name: s[:i], Layer: s[i+1:]}
	}
	return ProductSpec{Name: s}
}

func parseSpecs(names []string) []ProductSpec {
	specs := make([]ProductSpec, len(names))
	for i, n := range names {
		specs[i] = ParseSpec(n)
	}
	return specs
}

// String renders the spec back to "name" or "name@layer" form.
func (ps ProductSpec) String() string {
	if ps.Layer == "" {
		return ps.Name
	}
	return ps.Name + "@" + ps.Layer
}

// nodeKind distinguishes the algorithm node kinds of the framework.
type nodeKind int

const (
	kindTransform nodeKind = iota
	kindObserve
	kindOutput
	kindReduce
)

func (k nodeKind) String() string {
	switch k {
	case kindTransform:
		return "transform"
	case kindObserve:
		return "observe"
	case kindOutput:
		return "output"
	case kindReduce:
		return "reduce"
	default:
		return "unknown"
	}
}

// SourceFunc produces the next store of a lazy, finite sequence.
// Returning (nil, nil) signals end of stream. For each emitted
// non-root store, the parent must have been emitted earlier.
type SourceFunc func(ctx Context) (*Store, error)

// TransformFunc consumes resolved input products and returns one
// output value per declared output product.
type TransformFunc func(ctx Context, in []any) ([]any, error)

// ObserveFunc consumes resolved input products for side effects only.
// It must not mutate the store.
type ObserveFunc func(ctx Context, in []any) error

// OutputFunc is a terminal consumer invoked with the full store.
// Flush stores never reach it.
type OutputFunc func(ctx Context, s *Store) error

// UpdateFunc folds one child store's products into the accumulator and
// returns the new accumulator.
type UpdateFunc func(ctx Context, acc any, in []any) (any, error)

// CommitFunc finalizes the accumulator on level close and returns one
// value per declared output product.
type CommitFunc func(ctx Context, acc any) ([]any, error)

// node is the internal representation of a registered algorithm.
// The framework holds no per-node mutable state beyond scheduler
// bookkeeping; the user callable is a pure function of its inputs plus
// the side effects its kind declares.
type node struct {
	name        string
	kind        nodeKind
	concurrency Concurrency
	predicates  []string
	inputs      []ProductSpec
	outputs     []ProductSpec

	transform TransformFunc
	observe   ObserveFunc
	output    OutputFunc

	// reduce only
	foldLevel string
	initial   any
	update    UpdateFunc
	commit    CommitFunc
}
