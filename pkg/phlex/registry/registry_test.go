package registry

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRegistry_RegisterGet stores and retrieves values.
func TestRegistry_RegisterGet(t *testing.T) {
	r := New[string, int]()
	r.Register("a", 1)

	v, ok := r.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	_, ok = r.Get("missing")
	assert.False(t, ok)
}

// TestRegistry_MustGet panics on missing keys.
func TestRegistry_MustGet(t *testing.T) {
	r := New[string, int]()
	r.Register("a", 1)

	assert.Equal(t, 1, r.MustGet("a"))
	assert.Panics(t, func() { r.MustGet("missing") })
}

// TestRegistry_HasDeleteLen covers the bookkeeping methods.
func TestRegistry_HasDeleteLen(t *testing.T) {
	r := New[string, string]()
	r.Register("x", "1")
	r.Register("y", "2")

	assert.True(t, r.Has("x"))
	assert.Equal(t, 2, r.Len())
	assert.ElementsMatch(t, []string{"x", "y"}, r.Keys())

	r.Delete("x")
	assert.False(t, r.Has("x"))
	assert.Equal(t, 1, r.Len())
}

// TestRegistry_Range iterates a snapshot and honors early stop.
func TestRegistry_Range(t *testing.T) {
	r := New[string, int]()
	r.Register("a", 1)
	r.Register("b", 2)

	seen := map[string]int{}
	r.Range(func(k string, v int) bool {
		seen[k] = v
		return true
	})
	assert.Equal(t, map[string]int{"a": 1, "b": 2}, seen)

	count := 0
	r.Range(func(string, int) bool {
		count++
		return false
	})
	assert.Equal(t, 1, count)
}

// TestRegistry_GetOrCreate calls the factory at most once per key.
func TestRegistry_GetOrCreate(t *testing.T) {
	r := New[string, int]()
	calls := 0
	factory := func() int {
		calls++
		return 42
	}

	assert.Equal(t, 42, r.GetOrCreate("k", factory))
	assert.Equal(t, 42, r.GetOrCreate("k", factory))
	assert.Equal(t, 1, calls)
}

// TestRegistry_ConcurrentAccess hammers the registry from many
// goroutines.
func TestRegistry_ConcurrentAccess(t *testing.T) {
	r := New[int, int]()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r.Register(i, i)
			_, _ = r.Get(i)
			_ = r.GetOrCreate(i%10, func() int { return i })
		}(i)
	}
	wg.Wait()
	require.Equal(t, 50, r.Len())
}
