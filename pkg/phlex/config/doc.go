/*
Package config provides hierarchical configuration for phlex graphs
and algorithms.

A Config wraps a map[string]any with typed accessors that never fail:
missing keys and wrong types fall back to the caller's default. Nested
mappings are addressed with Sub, which the framework uses to hand each
algorithm its own section keyed by algorithm name.

Load configuration from YAML or JSON files:

	cfg, err := config.FromFile("job.yaml")
	if err != nil {
	    log.Fatal(err)
	}
	g := phlex.NewGraph(phlex.WithConfig(cfg))

Recognized per-node options: name (override), concurrency ("serial",
"unlimited", or an integer), predicates (list of product names), and
produces (single-output rename).
*/
package config
