package phlex

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestReduce_ToJob folds one hundred events with x = 1 into a single
// total committed at job scope.
func TestReduce_ToJob(t *testing.T) {
	totals := &recorder[int]{}

	g := NewGraph()
	g.Source("gen", eventSource(100, func(i int, p *Products) {
		p.MustPut("x", 1)
	})).Provides("x@event")

	g.Reduce("sum",
		Fold1(func(acc, x int) int { return acc + x }),
		CommitIdentity[int](),
	).ForEach("event").Input("x").To("total")

	g.Observe("report", Observe1(totals.add), Serial).InputFamily("total")

	require.NoError(t, g.Execute(testContext()))
	assert.Equal(t, []int{100}, totals.snapshot(), "commit runs exactly once per level instance")
}

// TestReduce_PerRunInstances keeps one accumulator per run instance:
// events nested under two runs commit two separate sums.
func TestReduce_PerRunInstances(t *testing.T) {
	sums := &recorder[int]{}

	var job *Store
	var runs []*Store
	runIdx, evIdx := 0, 0
	var src SourceFunc
	src = func(ctx Context) (*Store, error) {
		if job == nil {
			job = NewRootStore("gen", NewProducts())
			runs = []*Store{
				job.MakeChild(1, "run", "gen", NewProducts()),
				job.MakeChild(2, "run", "gen", NewProducts()),
			}
			return job, nil
		}
		if runIdx >= len(runs) {
			return nil, nil
		}
		if evIdx == 0 {
			evIdx++
			return runs[runIdx], nil
		}
		if evIdx > 3 {
			runIdx++
			evIdx = 0
			return src(ctx)
		}
		ev := runs[runIdx].MakeChild(uint64(evIdx), "event", "gen",
			ProductsOf("x", 10*(runIdx+1)))
		evIdx++
		return ev, nil
	}

	g := NewGraph()
	g.Source("gen", src).Provides("x@event")

	g.Reduce("sum",
		Fold1(func(acc, x int) int { return acc + x }),
		CommitIdentity[int](),
	).ForEach("event").Input("x").To("runsum")

	g.Observe("report", Observe1(sums.add), Serial).InputFamily("runsum")

	require.NoError(t, g.Execute(testContext()))

	got := sums.snapshot()
	sort.Ints(got)
	assert.Equal(t, []int{30, 60}, got, "three events of 10 then three of 20")
}

// TestReduce_SingleLevelGraph folds the job store itself and commits
// once at end of stream.
func TestReduce_SingleLevelGraph(t *testing.T) {
	totals := &recorder[int]{}

	g := NewGraph()
	g.ProvideStore(NewRootStore("gen", ProductsOf("x", 7)))

	g.Reduce("sum",
		Fold1(func(acc, x int) int { return acc + x }),
		CommitIdentity[int](),
	).ForEach("job").Input("x").To("total")

	g.Observe("report", Observe1(totals.add), Serial).InputFamily("total")

	require.NoError(t, g.Execute(testContext()))
	assert.Equal(t, []int{7}, totals.snapshot())
}

// TestReduce_InitialValue seeds each accumulator.
func TestReduce_InitialValue(t *testing.T) {
	totals := &recorder[int]{}

	g := NewGraph()
	g.Source("gen", eventSource(3, func(i int, p *Products) {
		p.MustPut("x", 1)
	})).Provides("x@event")

	g.Reduce("sum",
		Fold1(func(acc, x int) int { return acc + x }),
		CommitIdentity[int](),
	).ForEach("event").Input("x").To("total").InitialValue(1000)

	g.Observe("report", Observe1(totals.add), Serial).InputFamily("total")

	require.NoError(t, g.Execute(testContext()))
	assert.Equal(t, []int{1003}, totals.snapshot())
}

// TestReduce_DownstreamOfTransform folds a transformed product, which
// exercises the update-happens-before-commit ordering across the
// intermediate node.
func TestReduce_DownstreamOfTransform(t *testing.T) {
	totals := &recorder[int]{}

	g := NewGraph()
	g.Source("gen", eventSource(50, func(i int, p *Products) {
		p.MustPut("a", i)
	})).Provides("a@event")

	g.With("double", Apply1(func(a int) int { return 2 * a }), Unlimited).
		Transform("a").To("b")

	g.Reduce("sum",
		Fold1(func(acc, b int) int { return acc + b }),
		CommitIdentity[int](),
	).ForEach("event").Input("b").To("total")

	g.Observe("report", Observe1(totals.add), Serial).InputFamily("total")

	require.NoError(t, g.Execute(testContext()))
	// sum of 2*i for i=1..50
	assert.Equal(t, []int{2550}, totals.snapshot())
}

// TestReduce_PredicateGated folds only events passing the gate.
func TestReduce_PredicateGated(t *testing.T) {
	totals := &recorder[int]{}

	g := NewGraph()
	g.Source("gen", eventSource(10, func(i int, p *Products) {
		p.MustPut("x", 1)
		p.MustPut("keep", i%2 == 0)
	})).Provides("x@event", "keep@event")

	g.Reduce("sum",
		Fold1(func(acc, x int) int { return acc + x }),
		CommitIdentity[int](),
	).ForEach("event").Input("x").To("total").When("keep")

	g.Observe("report", Observe1(totals.add), Serial).InputFamily("total")

	require.NoError(t, g.Execute(testContext()))
	assert.Equal(t, []int{5}, totals.snapshot())
}

// TestAccountant_FlushAfterQuiescence holds the flush while messages
// for the subtree are outstanding and releases it on the last retire.
func TestAccountant_FlushAfterQuiescence(t *testing.T) {
	var released []*Store
	a := newAccountant(func(fs *Store) { released = append(released, fs) })

	job := NewRootStore("gen", NewProducts())
	event := job.MakeChild(1, "event", "gen", NewProducts())

	a.enqueue(event.ID())
	a.scheduleFlush(event.MakeFlush())
	assert.Empty(t, released, "flush must wait for the outstanding message")

	a.retire(event.ID())
	require.Len(t, released, 1)
	assert.True(t, released[0].ID().Equal(event.ID()))
}

// TestAccountant_SubtreeCounting holds a parent flush while a
// descendant message is outstanding.
func TestAccountant_SubtreeCounting(t *testing.T) {
	var released []*Store
	a := newAccountant(func(fs *Store) { released = append(released, fs) })

	job := NewRootStore("gen", NewProducts())
	event := job.MakeChild(1, "event", "gen", NewProducts())

	a.enqueue(event.ID())
	a.scheduleFlush(job.MakeFlush())
	assert.Empty(t, released, "job flush must wait for the event message")

	a.retire(event.ID())
	require.Len(t, released, 1)
	assert.True(t, released[0].ID().Equal(job.ID()))
}

// TestAccountant_IdempotentFlush injects a second flush for the same
// instance with no further downstream effect.
func TestAccountant_IdempotentFlush(t *testing.T) {
	var released []*Store
	a := newAccountant(func(fs *Store) { released = append(released, fs) })

	job := NewRootStore("gen", NewProducts())
	event := job.MakeChild(1, "event", "gen", NewProducts())

	a.scheduleFlush(event.MakeFlush())
	a.scheduleFlush(event.MakeFlush())
	assert.Len(t, released, 1, "double injection is a no-op")
}

// TestAccountant_Wait returns once the source is done and everything
// retired.
func TestAccountant_Wait(t *testing.T) {
	a := newAccountant(func(*Store) {})

	job := NewRootStore("gen", NewProducts())
	a.enqueue(job.ID())

	done := make(chan struct{})
	go func() {
		a.finish()
		a.retire(job.ID())
		close(done)
	}()

	a.wait()
	<-done
}

// TestRunnerFlushBarrier_Dedup sends four event flushes and one job
// flush through a reducer folding events; only the job flush commits,
// so the commit runs exactly once.
func TestRunnerFlushBarrier_Dedup(t *testing.T) {
	commits := &counter{}

	g := NewGraph()
	g.Source("gen", eventSource(4, func(i int, p *Products) {
		p.MustPut("x", 1)
	})).Provides("x@event")

	g.Reduce("sum",
		Fold1(func(acc, x int) int { return acc + x }),
		func(ctx Context, acc any) ([]any, error) {
			commits.inc()
			v, _ := acc.(int)
			return []any{v}, nil
		},
	).ForEach("event").Input("x").To("total")

	g.Observe("sink", Observe1(func(int) {}), Serial).InputFamily("total")

	require.NoError(t, g.Execute(testContext()))
	assert.Equal(t, 1, commits.value(), "commit is exactly-once per instance")
}
