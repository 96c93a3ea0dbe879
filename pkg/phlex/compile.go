package phlex

import (
	"errors"
	"fmt"
)

// sourceIndex is the producer index standing for the source.
const sourceIndex = -1

// compiledNode is a node plus its resolved wiring: the ports the
// scheduler joins on and the producer feeding each port.
type compiledNode struct {
	*node

	// ports are the products the node joins on before firing: the
	// declared inputs followed by any predicates that have a producer.
	ports []ProductSpec
	// portProducer[i] is the node index producing ports[i], or
	// sourceIndex.
	portProducer []int
	// nInputs is how many leading ports are algorithm inputs; the rest
	// gate only.
	nInputs int
	// indegree is the number of distinct producers feeding this node,
	// the source counted once. Flush barriers wait for this many
	// arrivals.
	indegree int
	// succs are the distinct node indices consuming this node's
	// outputs.
	succs []int
}

// CompiledGraph is the immutable, validated graph. It can be executed
// any number of times; each Execute is an independent run.
type CompiledGraph struct {
	source      *sourceDecl
	nodes       []*compiledNode
	producer    map[string]int // product name -> producing node index or sourceIndex
	sourceSuccs []int          // distinct nodes fed directly by the source
	order       []int          // topological order of node indices
}

// Compile resolves the deferred registrations against the bound
// configuration and validates the wiring. Every input product must
// resolve to exactly one producer; these violations are joined into a
// single error:
//
//   - unbound-input: an input has no producer
//   - duplicate-output: two nodes declare the same output
//   - level-mismatch: an input layer contradicts the producer's layer
//
// A cycle (the producer graph is not a DAG) is checked only when none
// of the above was found, and is then returned on its own.
func (g *Graph) Compile() (*CompiledGraph, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.source == nil {
		return nil, ErrNoSource
	}

	prefix := g.cfg.String("module_name", "")

	// Instantiate nodes through their creators with per-node config.
	nodes := make([]*compiledNode, 0, len(g.creators))
	seen := make(map[string]bool)
	for _, c := range g.creators {
		n, err := c.create(g.cfg.Sub(c.name))
		if err != nil {
			return nil, err
		}
		if prefix != "" {
			n.name = prefix + ":" + n.name
		}
		if seen[n.name] {
			return nil, &ConfigurationError{Key: n.name, Reason: "duplicate algorithm name"}
		}
		seen[n.name] = true
		if len(n.inputs) == 0 {
			return nil, &ConfigurationError{Key: n.name, Reason: "no inputs declared"}
		}
		nodes = append(nodes, &compiledNode{node: n})
	}

	var errs []error

	// Index producers: product name to producing node.
	producer := make(map[string]int)
	layer := make(map[string]string) // declared layer per output, for mismatch checks
	for _, spec := range g.source.provides {
		if _, dup := producer[spec.Name]; dup {
			errs = append(errs, &WiringError{Node: g.source.name, Product: spec.Name, Err: ErrDuplicateOutput})
			continue
		}
		producer[spec.Name] = sourceIndex
		layer[spec.Name] = spec.Layer
	}
	for i, n := range nodes {
		for _, spec := range n.outputs {
			if _, dup := producer[spec.Name]; dup {
				errs = append(errs, &WiringError{Node: n.name, Product: spec.Name, Err: ErrDuplicateOutput})
				continue
			}
			producer[spec.Name] = i
			layer[spec.Name] = spec.Layer
		}
	}

	// Resolve ports: every input needs a producer; predicates join
	// only when a producer exists, otherwise they resolve at run time
	// through the store chain.
	for _, n := range nodes {
		for _, spec := range n.inputs {
			p, ok := producer[spec.Name]
			if !ok {
				errs = append(errs, &WiringError{Node: n.name, Product: spec.Name, Err: ErrUnboundInput})
				continue
			}
			if spec.Layer != "" && layer[spec.Name] != "" && spec.Layer != layer[spec.Name] {
				errs = append(errs, &WiringError{Node: n.name, Product: spec.Name, Err: ErrLevelMismatch})
				continue
			}
			n.ports = append(n.ports, spec)
			n.portProducer = append(n.portProducer, p)
		}
		n.nInputs = len(n.ports)
		for _, pred := range n.predicates {
			if p, ok := producer[pred]; ok {
				n.ports = append(n.ports, ProductSpec{Name: pred})
				n.portProducer = append(n.portProducer, p)
			}
		}
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	cg := &CompiledGraph{
		source:   g.source,
		nodes:    nodes,
		producer: producer,
	}
	cg.wire()

	if err := cg.toposort(); err != nil {
		return nil, err
	}

	return cg, nil
}

// wire derives successor lists, source successors, and flush
// in-degrees from the resolved ports.
func (cg *CompiledGraph) wire() {
	sourceSeen := make(map[int]bool)
	succSeen := make([]map[int]bool, len(cg.nodes))
	for i := range cg.nodes {
		succSeen[i] = make(map[int]bool)
	}

	for ci, n := range cg.nodes {
		producers := make(map[int]bool)
		for _, p := range n.portProducer {
			producers[p] = true
			if p == sourceIndex {
				if !sourceSeen[ci] {
					sourceSeen[ci] = true
					cg.sourceSuccs = append(cg.sourceSuccs, ci)
				}
				continue
			}
			if !succSeen[p][ci] {
				succSeen[p][ci] = true
				cg.nodes[p].succs = append(cg.nodes[p].succs, ci)
			}
		}
		n.indegree = len(producers)
	}
}

// toposort orders nodes producer-first and detects cycles.
// Flush propagation follows data edges and is not a cycle.
func (cg *CompiledGraph) toposort() error {
	incoming := make([]int, len(cg.nodes))
	for _, n := range cg.nodes {
		for _, ci := range n.succs {
			incoming[ci]++
		}
	}

	queue := make([]int, 0, len(cg.nodes))
	for i, deg := range incoming {
		if deg == 0 {
			queue = append(queue, i)
		}
	}

	order := make([]int, 0, len(cg.nodes))
	for len(queue) > 0 {
		i := queue[0]
		queue = queue[1:]
		order = append(order, i)
		for _, ci := range cg.nodes[i].succs {
			incoming[ci]--
			if incoming[ci] == 0 {
				queue = append(queue, ci)
			}
		}
	}

	if len(order) != len(cg.nodes) {
		for i, deg := range incoming {
			if deg > 0 {
				return &WiringError{Node: cg.nodes[i].name, Err: ErrCycle}
			}
		}
	}

	cg.order = order
	return nil
}

// nodeByName returns the compiled node with the given algorithm name.
// Used by tests.
func (cg *CompiledGraph) nodeByName(name string) (*compiledNode, bool) {
	for _, n := range cg.nodes {
		if n.name == name {
			return n, true
		}
	}
	return nil, false
}

// Producers returns the product-to-producer mapping by algorithm name;
// source products map to the source name.
func (cg *CompiledGraph) Producers() map[string]string {
	out := make(map[string]string, len(cg.producer))
	for product, idx := range cg.producer {
		if idx == sourceIndex {
			out[product] = cg.source.name
		} else {
			out[product] = cg.nodes[idx].name
		}
	}
	return out
}

// String summarizes the graph for debugging.
func (cg *CompiledGraph) String() string {
	return fmt.Sprintf("graph{source=%s nodes=%d products=%d}",
		cg.source.name, len(cg.nodes), len(cg.producer))
}
