package phlex

import (
	"context"
	"sync"
)

// Test helpers shared across the package tests.

// testContext returns a fresh execution context.
func testContext() Context {
	return NewContext(context.Background())
}

// eventSource emits a job store followed by n event stores whose
// products are built per event by fill.
func eventSource(n int, fill func(i int, p *Products)) SourceFunc {
	var job *Store
	i := 0
	return func(ctx Context) (*Store, error) {
		if job == nil {
			job = NewRootStore("gen", NewProducts())
			return job, nil
		}
		if i >= n {
			return nil, nil
		}
		i++
		p := NewProducts()
		fill(i, &p)
		return job.MakeChild(uint64(i), "event", "gen", p), nil
	}
}

// emptySource emits nothing at all.
func emptySource(ctx Context) (*Store, error) {
	return nil, nil
}

// counter is a goroutine-safe counter for observer assertions.
type counter struct {
	mu sync.Mutex
	n  int
}

func (c *counter) inc() {
	c.mu.Lock()
	c.n++
	c.mu.Unlock()
}

func (c *counter) value() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

// recorder collects values seen by observers.
type recorder[T any] struct {
	mu     sync.Mutex
	values []T
}

func (r *recorder[T]) add(v T) {
	r.mu.Lock()
	r.values = append(r.values, v)
	r.mu.Unlock()
}

func (r *recorder[T]) snapshot() []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]T(nil), r.values...)
}
