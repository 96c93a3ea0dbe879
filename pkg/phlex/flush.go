package phlex

import "sync"

// accountant is the flush coordinator's ledger. It tracks, per level
// instance, the number of outstanding messages anywhere in the graph
// for that instance or any descendant, and holds scheduled flushes
// until their subtree is quiescent.
//
// This accounting is the happens-before that makes reducers correct: a
// flush for L is injected only after every ordinary message for L's
// subtree has been fully processed, so it cannot overtake any of them.
type accountant struct {
	mu   sync.Mutex
	cond *sync.Cond

	// counts[h] is the outstanding message count for the instance with
	// ID hash h, descendants included: a message for ID I contributes
	// to I and every ancestor of I.
	counts map[uint64]int

	// pending holds flush stores for closed instances awaiting
	// quiescence.
	pending map[uint64]*Store

	// released marks flushes already injected; re-scheduling one is a
	// no-op, making flush injection idempotent per instance.
	released map[uint64]bool

	active     int
	sourceDone bool
	draining   bool

	// inject delivers a released flush into the graph. Called without
	// the ledger lock held.
	inject func(*Store)
}

func newAccountant(inject func(*Store)) *accountant {
	a := &accountant{
		counts:   make(map[uint64]int),
		pending:  make(map[uint64]*Store),
		released: make(map[uint64]bool),
		inject:   inject,
	}
	a.cond = sync.NewCond(&a.mu)
	return a
}

// enqueue records one in-flight message for the given instance.
// Must be called before the message becomes visible to a node.
func (a *accountant) enqueue(id *LevelID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.active++
	for cur := id; cur != nil; cur = cur.Parent() {
		a.counts[cur.Hash()]++
	}
}

// retire records that a message has been fully handled, including any
// forwarding of its results. Releases whatever flushes become ready.
func (a *accountant) retire(id *LevelID) {
	a.mu.Lock()
	a.active--
	for cur := id; cur != nil; cur = cur.Parent() {
		h := cur.Hash()
		if a.counts[h]--; a.counts[h] == 0 {
			delete(a.counts, h)
		}
	}
	ready := a.collectReady()
	a.cond.Broadcast()
	a.mu.Unlock()

	for _, fs := range ready {
		a.inject(fs)
	}
}

// scheduleFlush registers closure of a level instance. The flush is
// injected as soon as the instance's subtree is quiescent, which may
// be immediately. Scheduling the same instance twice has no further
// effect.
func (a *accountant) scheduleFlush(fs *Store) {
	h := fs.ID().Hash()

	a.mu.Lock()
	if a.released[h] || a.pending[h] != nil {
		a.mu.Unlock()
		return
	}
	a.pending[h] = fs
	ready := a.collectReady()
	a.cond.Broadcast()
	a.mu.Unlock()

	for _, rfs := range ready {
		a.inject(rfs)
	}
}

// collectReady removes and returns pending flushes whose subtree count
// has reached zero. Caller holds the lock; injection happens after it
// is dropped. While draining, ready flushes are discarded so the run
// can wind down without further dispatch.
func (a *accountant) collectReady() []*Store {
	var ready []*Store
	for h, fs := range a.pending {
		if a.counts[h] != 0 {
			continue
		}
		delete(a.pending, h)
		a.released[h] = true
		if !a.draining {
			ready = append(ready, fs)
		}
	}
	return ready
}

// finish marks end-of-stream at the source.
func (a *accountant) finish() {
	a.mu.Lock()
	a.sourceDone = true
	a.cond.Broadcast()
	a.mu.Unlock()
}

// drain stops further flush injection; in-flight messages still retire
// normally so quiescence is reached.
func (a *accountant) drain() {
	a.mu.Lock()
	a.draining = true
	a.collectReady()
	a.cond.Broadcast()
	a.mu.Unlock()
}

// wait blocks until the source is done, no messages are in flight, and
// no flush awaits release.
func (a *accountant) wait() {
	a.mu.Lock()
	for !a.sourceDone || a.active != 0 || len(a.pending) != 0 {
		a.cond.Wait()
	}
	a.mu.Unlock()
}
