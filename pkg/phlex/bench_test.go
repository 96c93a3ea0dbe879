package phlex

import (
	"testing"
)

// benchGraph builds the plus_one pipeline over n events.
func benchGraph(n int, delta int) *Graph {
	g := NewGraph()
	g.Source("gen", eventSource(n, func(i int, p *Products) {
		p.MustPut("a", i)
	})).Provides("a@event")
	g.With("plus", Apply1(func(a int) int { return a + delta }), Unlimited).
		Transform("a").To("b")
	g.Output("sink", func(ctx Context, s *Store) error { return nil }, Unlimited).
		InputFamily("b")
	return g
}

func BenchmarkPlusOne(b *testing.B) {
	for i := 0; i < b.N; i++ {
		g := benchGraph(1000, 1)
		if err := g.Execute(testContext()); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkPlus101(b *testing.B) {
	for i := 0; i < b.N; i++ {
		g := benchGraph(1000, 101)
		if err := g.Execute(testContext()); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkReduceToJob(b *testing.B) {
	for i := 0; i < b.N; i++ {
		g := NewGraph()
		g.Source("gen", eventSource(1000, func(i int, p *Products) {
			p.MustPut("x", 1)
		})).Provides("x@event")
		g.Reduce("sum",
			Fold1(func(acc, x int) int { return acc + x }),
			CommitIdentity[int](),
		).ForEach("event").Input("x").To("total")
		g.Output("sink", func(ctx Context, s *Store) error { return nil }, Serial).
			InputFamily("total")
		if err := g.Execute(testContext()); err != nil {
			b.Fatal(err)
		}
	}
}
