// Package demo registers a small self-contained job with the driver:
// a generator source, a plus_one transform, an event-sum reducer, and
// a printing observer. It exists so the phlex binary can run a job out
// of the box and doubles as a reference for writing plugin modules.
//
// Configuration section (all optional):
//
//	demo:
//	  events: 10
package demo

import (
	"fmt"

	"github.com/phlex-hep/phlex/pkg/phlex"
	"github.com/phlex-hep/phlex/pkg/phlex/config"
	"github.com/phlex-hep/phlex/pkg/phlex/driver"
)

func init() {
	driver.Register("demo", wire)
}

func wire(g *phlex.Graph, cfg config.Config) error {
	n := cfg.Int("events", 10)

	var job *phlex.Store
	i := 0
	g.Source("gen", func(ctx phlex.Context) (*phlex.Store, error) {
		if job == nil {
			job = phlex.NewRootStore("gen", phlex.NewProducts())
			return job, nil
		}
		if i >= n {
			return nil, nil
		}
		i++
		return job.MakeChild(uint64(i), "event", "gen", phlex.ProductsOf("a", i)), nil
	}).Provides("a@event")

	g.With("plus_one", phlex.Apply1(func(a int) int { return a + 1 }), phlex.Unlimited).
		Transform("a").
		To("b")

	g.Reduce("sum_b",
		phlex.Fold1(func(acc, b int) int { return acc + b }),
		phlex.CommitIdentity[int](),
	).ForEach("event").Input("b").To("total")

	g.Observe("report", phlex.Observe1(func(total int) {
		fmt.Printf("total=%d\n", total)
	})).InputFamily("total")

	return nil
}
