package phlex

import (
	"fmt"
	"sync"

	"github.com/phlex-hep/phlex/pkg/phlex/config"
)

// Graph is a mutable builder collecting algorithm registrations.
// Registration is deferred: builders record (name, inputs, outputs,
// concurrency, predicates) and the graph instantiates nodes once the
// configuration is bound, at Compile time.
//
// Graph is NOT thread-safe during building. Construct it from a single
// goroutine, then Compile() into an immutable CompiledGraph.
//
// Example:
//
//	g := phlex.NewGraph()
//	g.Source("gen", gen).Provides("a")
//	g.With("plus_one", phlex.Apply1(func(a int) int { return a + 1 }), phlex.Unlimited).
//	    Transform("a").To("b")
//	g.Observe("check", phlex.Observe1(func(b int) { ... })).InputFamily("b")
//	err := g.Execute(ctx)
type Graph struct {
	mu       sync.Mutex
	cfg      config.Config
	source   *sourceDecl
	creators []*creator
}

// sourceDecl records the registered source and its declared products.
type sourceDecl struct {
	name     string
	fn       SourceFunc
	provides []ProductSpec
}

// creator is a deferred node constructor. At Compile time it is
// invoked with the per-node configuration section to produce the node
// instance, once overrides (name, concurrency, predicates, produces)
// are known.
type creator struct {
	name   string
	create func(nodeCfg config.Config) (*node, error)
}

// GraphOption configures graph construction.
type GraphOption func(*Graph)

// WithConfig binds a configuration object to the graph. Per-node
// sections keyed by algorithm name are passed to each creator at
// Compile; a top-level "module_name" prefixes every algorithm name.
func WithConfig(cfg config.Config) GraphOption {
	return func(g *Graph) {
		g.cfg = cfg
	}
}

// NewGraph creates an empty graph builder.
func NewGraph(opts ...GraphOption) *Graph {
	g := &Graph{cfg: config.New(nil)}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Graph) register(name string, create func(config.Config) (*node, error)) {
	if name == "" {
		panic("phlex: algorithm name cannot be empty")
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.creators = append(g.creators, &creator{name: name, create: create})
}

// Source registers the source algorithm producing the store stream.
// Only one source may be registered.
func (g *Graph) Source(name string, fn SourceFunc) *SourceBuilder {
	if name == "" {
		panic("phlex: source name cannot be empty")
	}
	if fn == nil {
		panic("phlex: source function cannot be nil")
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.source != nil {
		panic(fmt.Sprintf("phlex: source already registered: %s", g.source.name))
	}
	g.source = &sourceDecl{name: name, fn: fn}
	return &SourceBuilder{decl: g.source}
}

// ProvideStore registers a source emitting exactly the given store,
// declaring every product the store carries. Convenient for driving a
// graph from a single pre-assembled store.
func (g *Graph) ProvideStore(store *Store) {
	emitted := false
	sb := g.Source("provided", func(Context) (*Store, error) {
		if emitted {
			return nil, nil
		}
		emitted = true
		return store, nil
	})
	sb.Provides(store.ProductNames()...)
}

// SourceBuilder finishes source registration.
type SourceBuilder struct {
	decl *sourceDecl
}

// Provides declares the products the source emits, for wiring.
// Specs may carry a layer: "i@event".
func (b *SourceBuilder) Provides(products ...string) *SourceBuilder {
	b.decl.provides = append(b.decl.provides, parseSpecs(products)...)
	return b
}

// With begins registration of a transform. The callable runs with the
// declared concurrency (default Serial).
func (g *Graph) With(name string, fn TransformFunc, concurrency ...Concurrency) *TransformBuilder {
	if fn == nil {
		panic("phlex: transform function cannot be nil")
	}
	b := &TransformBuilder{nodeBuilder: newNodeBuilder(name, concurrency)}
	g.register(name, func(cfg config.Config) (*node, error) {
		n, err := b.build(cfg)
		if err != nil {
			return nil, err
		}
		n.kind = kindTransform
		n.transform = fn
		return n, nil
	})
	return b
}

// Observe begins registration of an observer: consumes products,
// produces nothing, side effects only.
func (g *Graph) Observe(name string, fn ObserveFunc, concurrency ...Concurrency) *ObserveBuilder {
	if fn == nil {
		panic("phlex: observer function cannot be nil")
	}
	b := &ObserveBuilder{nodeBuilder: newNodeBuilder(name, concurrency)}
	g.register(name, func(cfg config.Config) (*node, error) {
		n, err := b.build(cfg)
		if err != nil {
			return nil, err
		}
		n.kind = kindObserve
		n.observe = fn
		return n, nil
	})
	return b
}

// Output begins registration of a terminal output consumer. The
// callable receives the full store; flush stores are skipped.
func (g *Graph) Output(name string, fn OutputFunc, concurrency ...Concurrency) *OutputBuilder {
	if fn == nil {
		panic("phlex: output function cannot be nil")
	}
	b := &OutputBuilder{nodeBuilder: newNodeBuilder(name, concurrency)}
	g.register(name, func(cfg config.Config) (*node, error) {
		n, err := b.build(cfg)
		if err != nil {
			return nil, err
		}
		n.kind = kindOutput
		n.output = fn
		return n, nil
	})
	return b
}

// Reduce begins registration of a fold over a level: update runs per
// child store, commit runs exactly once per level instance on flush.
func (g *Graph) Reduce(name string, update UpdateFunc, commit CommitFunc, concurrency ...Concurrency) *ReduceBuilder {
	if update == nil || commit == nil {
		panic("phlex: reduce functions cannot be nil")
	}
	b := &ReduceBuilder{nodeBuilder: newNodeBuilder(name, concurrency)}
	g.register(name, func(cfg config.Config) (*node, error) {
		n, err := b.build(cfg)
		if err != nil {
			return nil, err
		}
		if b.foldLevel == "" {
			return nil, &ConfigurationError{Key: name, Reason: "reduce requires ForEach(level)"}
		}
		n.kind = kindReduce
		n.foldLevel = b.foldLevel
		n.initial = b.initial
		n.update = update
		n.commit = commit
		return n, nil
	})
	return b
}

// nodeBuilder carries the settings common to every node kind.
type nodeBuilder struct {
	name        string
	concurrency Concurrency
	predicates  []string
	inputs      []ProductSpec
	outputs     []ProductSpec
}

func newNodeBuilder(name string, concurrency []Concurrency) nodeBuilder {
	c := Serial
	if len(concurrency) > 0 {
		c = concurrency[0]
	}
	if c < 0 {
		panic(fmt.Sprintf("phlex: negative concurrency for %s", name))
	}
	return nodeBuilder{name: name, concurrency: c}
}

// build applies the node's configuration section over the recorded
// registration. Recognized options: name (override), concurrency,
// predicates, produces (single-output rename).
func (b *nodeBuilder) build(cfg config.Config) (*node, error) {
	n := &node{
		name:        b.name,
		concurrency: b.concurrency,
		predicates:  append([]string(nil), b.predicates...),
		inputs:      append([]ProductSpec(nil), b.inputs...),
		outputs:     append([]ProductSpec(nil), b.outputs...),
	}
	if override := cfg.String("name", ""); override != "" {
		n.name = override
	}
	if cfg.Has("concurrency") {
		c, err := parseConcurrency(cfg)
		if err != nil {
			return nil, err
		}
		n.concurrency = c
	}
	if preds := cfg.StringSlice("predicates", nil); preds != nil {
		n.predicates = append(n.predicates, preds...)
	}
	if rename := cfg.String("produces", ""); rename != "" {
		if len(n.outputs) != 1 {
			return nil, &ConfigurationError{Key: "produces", Reason: "rename requires exactly one output"}
		}
		n.outputs[0].Name = rename
	}
	return n, nil
}

// parseConcurrency reads the "concurrency" option: "serial",
// "unlimited", or a non-negative integer (0 means Unlimited).
func parseConcurrency(cfg config.Config) (Concurrency, error) {
	switch s := cfg.String("concurrency", ""); s {
	case "serial":
		return Serial, nil
	case "unlimited":
		return Unlimited, nil
	case "":
	default:
		return Serial, &ConfigurationError{Key: "concurrency", Reason: fmt.Sprintf("unknown value %q", s)}
	}
	n := cfg.Int("concurrency", -1)
	if n < 0 {
		return Serial, &ConfigurationError{Key: "concurrency", Reason: "expected enum or non-negative integer"}
	}
	return Concurrency(n), nil
}

// TransformBuilder finishes transform registration.
type TransformBuilder struct {
	nodeBuilder
}

// Transform declares the input products, possibly drawn from ancestor
// stores via lexical inheritance.
func (b *TransformBuilder) Transform(inputs ...string) *TransformBuilder {
	b.inputs = append(b.inputs, parseSpecs(inputs)...)
	return b
}

// To declares the output products attached to the continuation store.
func (b *TransformBuilder) To(outputs ...string) *TransformBuilder {
	b.outputs = append(b.outputs, parseSpecs(outputs)...)
	return b
}

// When attaches predicate gating: every named boolean product must
// evaluate true for the node to fire on a store.
func (b *TransformBuilder) When(predicates ...string) *TransformBuilder {
	b.predicates = append(b.predicates, predicates...)
	return b
}

// ObserveBuilder finishes observer registration.
type ObserveBuilder struct {
	nodeBuilder
}

// InputFamily declares the input products.
func (b *ObserveBuilder) InputFamily(inputs ...string) *ObserveBuilder {
	b.inputs = append(b.inputs, parseSpecs(inputs)...)
	return b
}

// When attaches predicate gating.
func (b *ObserveBuilder) When(predicates ...string) *ObserveBuilder {
	b.predicates = append(b.predicates, predicates...)
	return b
}

// OutputBuilder finishes output registration.
type OutputBuilder struct {
	nodeBuilder
}

// InputFamily declares the input products.
func (b *OutputBuilder) InputFamily(inputs ...string) *OutputBuilder {
	b.inputs = append(b.inputs, parseSpecs(inputs)...)
	return b
}

// When attaches predicate gating.
func (b *OutputBuilder) When(predicates ...string) *OutputBuilder {
	b.predicates = append(b.predicates, predicates...)
	return b
}

// ReduceBuilder finishes reduce registration.
type ReduceBuilder struct {
	nodeBuilder
	foldLevel string
	initial   any
}

// ForEach names the level whose stores the reducer folds. The
// accumulator is scoped per instance of that level's parent and
// committed when the parent closes.
func (b *ReduceBuilder) ForEach(level string) *ReduceBuilder {
	b.foldLevel = level
	return b
}

// InitialValue seeds the accumulator for each level instance.
func (b *ReduceBuilder) InitialValue(v any) *ReduceBuilder {
	b.initial = v
	return b
}

// Input declares the products folded per child store.
func (b *ReduceBuilder) Input(inputs ...string) *ReduceBuilder {
	b.inputs = append(b.inputs, parseSpecs(inputs)...)
	return b
}

// To declares the products the commit emits at the parent scope.
func (b *ReduceBuilder) To(outputs ...string) *ReduceBuilder {
	b.outputs = append(b.outputs, parseSpecs(outputs)...)
	return b
}

// When attaches predicate gating on the child stores.
func (b *ReduceBuilder) When(predicates ...string) *ReduceBuilder {
	b.predicates = append(b.predicates, predicates...)
	return b
}

// Execute compiles the graph and runs it to completion.
// Wiring and configuration errors are reported synchronously before
// any message flows.
func (g *Graph) Execute(ctx Context, opts ...RunOption) error {
	cg, err := g.Compile()
	if err != nil {
		return err
	}
	return cg.Execute(ctx, opts...)
}
