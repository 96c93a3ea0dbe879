/*
Package phlex orchestrates data-processing algorithms as a directed
graph whose edges carry typed products organized in a hierarchy of
nesting levels (job, run, event, ...).

# Overview

A source emits a stream of product stores forming a tree: each store
carries a level ID, a parent link, and named typed products. Stores
flow into the algorithm nodes wired to their products; transforms
attach new products on continuation stores, observers and outputs
consume them, and reducers fold the children of a level and commit
when that level closes. The scheduler runs nodes concurrently wherever
data dependencies permit, honoring per-node concurrency limits and
predicate gating, and injects flush markers so reducers finalize
exactly once per level instance.

# Basic Usage

Register algorithms on a graph, then execute:

	g := phlex.NewGraph()
	g.Source("gen", nextStore).Provides("a")
	g.With("plus_one", phlex.Apply1(func(a int) int { return a + 1 }), phlex.Unlimited).
	    Transform("a").
	    To("b")
	g.Observe("check", phlex.Observe1(func(b int) { fmt.Println(b) })).
	    InputFamily("b")

	ctx := phlex.NewContext(context.Background())
	if err := g.Execute(ctx); err != nil {
	    log.Fatal(err)
	}

# Hierarchy and reduction

Stores nest: a source emits a job store, then its events, and the
framework detects when an instance closes. A reducer folds every event
of a job and emits its result at job scope:

	g.Reduce("sum",
	    phlex.Fold1(func(acc, x int) int { return acc + x }),
	    phlex.CommitIdentity[int](),
	).ForEach("event").Input("x").To("total")

# Predicates

Predicates are boolean products. A node gated with When("keep") fires
only on stores whose chain resolves "keep" to true; stores where it is
false are skipped.

# Errors

Wiring violations (unbound inputs, duplicate outputs, cycles, level
mismatches) are reported synchronously by Compile or Execute before
any message flows. Runtime failures drain the engine and surface the
first error; see AlgorithmError, TypeMismatchError, and friends.
*/
package phlex
