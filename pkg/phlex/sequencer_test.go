package phlex

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSequencer_InOrder passes straight through when completions
// arrive in order.
func TestSequencer_InOrder(t *testing.T) {
	s := newSequencer()
	var got []int
	for i := 0; i < 5; i++ {
		i := i
		s.release(uint64(i), func() { got = append(got, i) })
	}
	assert.Equal(t, []int{0, 1, 2, 3, 4}, got)
}

// TestSequencer_Reorders stashes out-of-order completions and drains
// them when the gap fills.
func TestSequencer_Reorders(t *testing.T) {
	s := newSequencer()
	var got []int
	add := func(i int) func() { return func() { got = append(got, i) } }

	s.release(2, add(2))
	s.release(1, add(1))
	assert.Empty(t, got, "nothing runs before sequence 0 completes")

	s.release(0, add(0))
	assert.Equal(t, []int{0, 1, 2}, got)

	s.release(3, add(3))
	assert.Equal(t, []int{0, 1, 2, 3}, got)
}

// TestSequencer_Concurrent releases from many goroutines and still
// observes sequence order.
func TestSequencer_Concurrent(t *testing.T) {
	s := newSequencer()
	var mu sync.Mutex
	var got []uint64

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(seq uint64) {
			defer wg.Done()
			s.release(seq, func() {
				mu.Lock()
				got = append(got, seq)
				mu.Unlock()
			})
		}(uint64(i))
	}
	wg.Wait()

	require.Len(t, got, 100)
	for i, seq := range got {
		assert.Equal(t, uint64(i), seq)
	}
}

// TestMailbox_FIFO preserves push order.
func TestMailbox_FIFO(t *testing.T) {
	mb := newMailbox()
	job := NewRootStore("gen", NewProducts())

	first := &message{store: job, seq: 1}
	second := &message{store: job, seq: 2}
	mb.push(first)
	mb.push(second)

	m, ok := mb.pop()
	require.True(t, ok)
	assert.Same(t, first, m)
	m, ok = mb.pop()
	require.True(t, ok)
	assert.Same(t, second, m)
}

// TestMailbox_CloseDrains lets queued messages drain before the
// dispatcher exits.
func TestMailbox_CloseDrains(t *testing.T) {
	mb := newMailbox()
	job := NewRootStore("gen", NewProducts())
	mb.push(&message{store: job})
	mb.close()

	_, ok := mb.pop()
	assert.True(t, ok, "queued message survives close")
	_, ok = mb.pop()
	assert.False(t, ok, "drained and closed")

	mb.push(&message{store: job})
	_, ok = mb.pop()
	assert.False(t, ok, "push after close is dropped")
}

// TestMailbox_BlockingPop wakes on push.
func TestMailbox_BlockingPop(t *testing.T) {
	mb := newMailbox()
	job := NewRootStore("gen", NewProducts())

	done := make(chan *message, 1)
	go func() {
		m, _ := mb.pop()
		done <- m
	}()

	mb.push(&message{store: job, seq: 9})
	m := <-done
	assert.Equal(t, uint64(9), m.seq)
}
