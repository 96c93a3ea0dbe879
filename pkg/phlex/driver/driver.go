// Package driver assembles and runs graphs from configuration.
//
// Algorithm modules register a Factory under a plugin name, typically
// in init(); the driver reads the job configuration's "plugins" list,
// invokes each factory against a fresh graph, and executes it. This is
// what lets `phlex <config-file>` run a job without the caller writing
// any wiring code.
package driver

import (
	"context"
	"errors"
	"log/slog"

	"github.com/phlex-hep/phlex/pkg/phlex"
	"github.com/phlex-hep/phlex/pkg/phlex/config"
	"github.com/phlex-hep/phlex/pkg/phlex/registry"
)

// Exit codes for the CLI surface.
const (
	ExitOK         = 0
	ExitValidation = 1
	ExitRuntime    = 2
)

// Factory wires one module's algorithms into the graph. cfg is the
// module's configuration section.
type Factory func(g *phlex.Graph, cfg config.Config) error

var factories = registry.New[string, Factory]()

// Register makes a factory available under a plugin name.
// Typically called from init() in the module's package.
func Register(name string, f Factory) {
	if f == nil {
		panic("driver: nil factory for " + name)
	}
	factories.Register(name, f)
}

// Registered reports whether a plugin name is known.
func Registered(name string) bool {
	return factories.Has(name)
}

// Assemble builds a graph from the configuration's "plugins" list.
// Each entry names a registered factory; its configuration section is
// looked up under the same name.
func Assemble(cfg config.Config) (*phlex.Graph, error) {
	g := phlex.NewGraph(phlex.WithConfig(cfg))
	names := cfg.StringSlice("plugins", nil)
	if len(names) == 0 {
		return nil, errors.New("configuration has no plugins list")
	}
	for _, name := range names {
		f, ok := factories.Get(name)
		if !ok {
			return nil, errors.New("unknown plugin: " + name)
		}
		if err := f(g, cfg.Sub(name)); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// Validate loads the configuration file, assembles the graph, and
// compiles it without executing. Used by the CLI's topology dump.
func Validate(configPath string) (*phlex.CompiledGraph, error) {
	cfg, err := config.FromFile(configPath)
	if err != nil {
		return nil, err
	}
	g, err := Assemble(cfg)
	if err != nil {
		return nil, err
	}
	return g.Compile()
}

// Run loads the configuration file, assembles the graph, and executes
// it to completion. The returned code follows the CLI contract: 0 on
// success, 1 on validation error, 2 on runtime algorithm error.
func Run(configPath string, logger *slog.Logger) int {
	cfg, err := config.FromFile(configPath)
	if err != nil {
		logger.Error("configuration load failed", "path", configPath, "error", err)
		return ExitValidation
	}

	g, err := Assemble(cfg)
	if err != nil {
		logger.Error("graph assembly failed", "error", err)
		return ExitValidation
	}

	compiled, err := g.Compile()
	if err != nil {
		logger.Error("graph validation failed", "error", err)
		return ExitValidation
	}

	ctx := phlex.NewContext(context.Background(), phlex.WithLogger(logger))
	if err := compiled.Execute(ctx); err != nil {
		logger.Error("run failed", "error", err)
		return ExitRuntime
	}
	return ExitOK
}
