package phlex

import (
	"context"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"github.com/phlex-hep/phlex/pkg/phlex/observability"
	"go.opentelemetry.io/otel/trace"
)

// Execute drives the source's store stream through the graph to
// completion: the source signals end of stream, every flush propagates
// to the terminal nodes, and no node has queued or in-flight work.
//
// On the first fatal error the engine drains: no new messages are
// admitted, in-flight tasks complete, and the first captured error is
// returned. There are no retries and no partial results.
func (cg *CompiledGraph) Execute(ctx Context, opts ...RunOption) (runErr error) {
	if ctx == nil {
		return ErrNilContext
	}

	cfg := defaultRunConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	ec := asExecution(ctx)
	startTime := time.Now()
	observability.LogRunStart(ec.Logger(), ec.RunID())

	var tracingCtx context.Context = ec
	var runSpan trace.Span
	if cfg.tracingEnabled {
		tracingCtx, runSpan = cfg.spans.StartRunSpan(ec, cg.source.name, ec.RunID())
		defer func() {
			cfg.spans.EndSpanWithError(runSpan, runErr)
		}()
	}

	eng := newEngine(cg, ec, &cfg, tracingCtx)
	runErr = eng.run()

	duration := time.Since(startTime)
	cfg.metrics.RecordRun(ec, runErr == nil, duration)
	if runErr != nil {
		observability.LogRunError(ec.Logger(), ec.RunID(), runErr, float64(duration.Milliseconds()))
	} else {
		observability.LogRunComplete(ec.Logger(), ec.RunID(), float64(duration.Milliseconds()), eng.storeCount)
	}
	return runErr
}

// engine is one execution of a compiled graph: a parallel task engine
// dispatching messages through per-node runners with concurrency
// gates, plus the flush coordinator's ledger.
type engine struct {
	cg         *CompiledGraph
	ctx        *executionContext
	cfg        *runConfig
	tracingCtx context.Context

	runners []*runner
	acct    *accountant

	failMu   sync.Mutex
	firstErr error
	draining bool

	dispatchers sync.WaitGroup
	tasks       sync.WaitGroup

	storeCount int
}

func newEngine(cg *CompiledGraph, ec *executionContext, cfg *runConfig, tracingCtx context.Context) *engine {
	eng := &engine{cg: cg, ctx: ec, cfg: cfg, tracingCtx: tracingCtx}
	eng.acct = newAccountant(eng.injectFlush)
	eng.runners = make([]*runner, len(cg.nodes))
	for i, n := range cg.nodes {
		eng.runners[i] = newRunner(eng, n)
	}
	return eng
}

// fail records the first error and switches the engine to draining.
func (e *engine) fail(err error) {
	if err == nil {
		return
	}
	e.failMu.Lock()
	if e.firstErr == nil {
		e.firstErr = err
		e.draining = true
	}
	e.failMu.Unlock()
	e.acct.drain()
}

func (e *engine) isDraining() bool {
	e.failMu.Lock()
	defer e.failMu.Unlock()
	return e.draining
}

// send accounts for and delivers one message to a runner.
func (e *engine) send(r *runner, m *message) {
	e.acct.enqueue(m.store.ID())
	r.mbox.push(m)
}

// injectFlush delivers a released flush to every node fed directly by
// the source; downstream nodes receive it by propagation.
func (e *engine) injectFlush(fs *Store) {
	observability.LogFlush(e.ctx.Logger(), fs.ID().String())
	e.cfg.metrics.RecordFlush(e.ctx, fs.LevelName())
	m := &message{store: fs, originator: e.cg.source.name}
	for _, ci := range e.cg.sourceSuccs {
		e.send(e.runners[ci], m)
	}
}

// run starts the dispatchers, drives the source, waits for
// quiescence, and shuts the runners down.
func (e *engine) run() error {
	for _, r := range e.runners {
		e.dispatchers.Add(1)
		go r.dispatch()
	}

	e.driveSource()
	e.acct.finish()
	e.acct.wait()
	e.tasks.Wait()

	for _, r := range e.runners {
		r.mbox.close()
	}
	e.dispatchers.Wait()

	e.failMu.Lock()
	defer e.failMu.Unlock()
	return e.firstErr
}

// driveSource pulls stores from the source, detects level closure, and
// feeds both ordinary messages and flush scheduling into the engine.
//
// A level instance opens when its first child store is emitted and
// closes when the source moves past its subtree; end of stream closes
// everything still open.
func (e *engine) driveSource() {
	sctx := e.ctx.withNode(e.cg.source.name)
	emitted := make(map[uint64]bool)
	var open []*Store

	closeTop := func() {
		top := open[len(open)-1]
		open = open[:len(open)-1]
		e.acct.scheduleFlush(top.MakeFlush())
	}

	for {
		if e.isDraining() {
			break
		}
		if err := e.ctx.Err(); err != nil {
			e.fail(err)
			break
		}

		store, err := e.cg.source.fn(sctx)
		if err != nil {
			e.fail(&AlgorithmError{Node: e.cg.source.name, Err: err})
			break
		}
		if store == nil {
			break
		}
		if store.IsFlush() {
			e.fail(&AlgorithmError{Node: e.cg.source.name, Err: ErrOrphanStore})
			break
		}
		if parent := store.ParentStore(); parent != nil && !emitted[parent.ID().Hash()] {
			e.fail(&AlgorithmError{Node: e.cg.source.name, Level: store.ID().String(), Err: ErrOrphanStore})
			break
		}

		for len(open) > 0 && !open[len(open)-1].ID().IsAncestorOf(store.ID()) {
			closeTop()
		}
		open = append(open, store)
		emitted[store.ID().Hash()] = true
		e.storeCount++

		observability.LogStore(sctx.Logger(), store.ID().String(), store.Source())
		e.cfg.metrics.RecordStore(e.ctx, store.LevelName())
		e.deliverFromSource(store)
	}

	for len(open) > 0 {
		closeTop()
	}
}

// deliverFromSource forwards an emitted store to every node with a
// source-fed port whose product the store carries directly.
func (e *engine) deliverFromSource(store *Store) {
	m := &message{store: store, originator: e.cg.source.name}
	for _, ci := range e.cg.sourceSuccs {
		r := e.runners[ci]
		for pi, p := range r.node.portProducer {
			if p == sourceIndex && store.ContainsProduct(r.node.ports[pi].Name) {
				e.send(r, m)
				break
			}
		}
	}
}

// runner is the per-node scheduling state: the mailbox, the admission
// gate, the join and flush bookkeeping, and the output sequencer.
type runner struct {
	eng  *engine
	node *compiledNode
	ctx  *executionContext

	mbox   *mailbox
	sem    chan struct{}
	outSeq *sequencer

	mu            sync.Mutex
	taskSeq       uint64
	entrySeq      uint64
	portCache     []map[uint64]*Store
	joins         map[uint64]*joinEntry
	flushArrivals map[uint64]int
	accums        map[uint64]*accumState
}

// joinEntry buffers the per-port stores for one level instance until
// every port is satisfied. born orders entries by creation so that one
// arrival completing several joins fires them in emission order.
type joinEntry struct {
	id     *LevelID
	born   uint64
	stores []*Store
	have   int
	fired  bool
}

// accumState is a reducer's per-level-instance accumulator.
type accumState struct {
	scope     *Store
	value     any
	committed bool
}

func newRunner(eng *engine, n *compiledNode) *runner {
	r := &runner{
		eng:           eng,
		node:          n,
		ctx:           eng.ctx.withNode(n.name),
		mbox:          newMailbox(),
		outSeq:        newSequencer(),
		joins:         make(map[uint64]*joinEntry),
		flushArrivals: make(map[uint64]int),
	}
	if n.concurrency > 0 {
		r.sem = make(chan struct{}, int(n.concurrency))
	}
	r.portCache = make([]map[uint64]*Store, len(n.ports))
	for i := range r.portCache {
		r.portCache[i] = make(map[uint64]*Store)
	}
	if n.kind == kindReduce {
		r.accums = make(map[uint64]*accumState)
	}
	return r
}

// dispatch is the runner's single dispatcher goroutine: it pops
// messages in arrival order, admits tasks against the concurrency
// gate, and handles flush barriers inline.
func (r *runner) dispatch() {
	defer r.eng.dispatchers.Done()
	for {
		m, ok := r.mbox.pop()
		if !ok {
			return
		}
		if m.store.IsFlush() {
			r.handleFlush(m)
		} else {
			r.handleProcess(m)
		}
		r.eng.acct.retire(m.store.ID())
	}
}

// handleProcess files the arriving store into the port caches, updates
// join entries, and fires every join that just completed.
func (r *runner) handleProcess(m *message) {
	if r.eng.isDraining() {
		return
	}

	r.mu.Lock()
	h := m.store.ID().Hash()
	for pi, spec := range r.node.ports {
		if m.store.ContainsProduct(spec.Name) {
			r.portCache[pi][h] = m.store
		}
	}
	if _, ok := r.joins[h]; !ok {
		r.joins[h] = &joinEntry{id: m.store.ID(), born: r.entrySeq, stores: make([]*Store, len(r.node.ports))}
		r.entrySeq++
	}

	var fire []*joinEntry
	for _, entry := range r.joins {
		if entry.fired {
			continue
		}
		if m.store.ID().Equal(entry.id) || m.store.ID().IsAncestorOf(entry.id) {
			if r.trySatisfy(entry) {
				entry.fired = true
				fire = append(fire, entry)
			}
		}
	}
	sort.Slice(fire, func(i, j int) bool { return fire[i].born < fire[j].born })

	for _, entry := range fire {
		r.admit(entry)
	}
	r.mu.Unlock()
}

// trySatisfy fills the entry's missing ports from the caches. A port
// is satisfied by a store for the entry's exact ID or any ancestor of
// it, the nearest level winning. Caller holds r.mu.
func (r *runner) trySatisfy(entry *joinEntry) bool {
	for pi := range r.node.ports {
		if entry.stores[pi] != nil {
			continue
		}
		for cur := entry.id; cur != nil; cur = cur.Parent() {
			if s, ok := r.portCache[pi][cur.Hash()]; ok {
				entry.stores[pi] = s
				entry.have++
				break
			}
		}
	}
	return entry.have == len(r.node.ports)
}

// admit assigns the task its sequence number, accounts for it, and
// either runs it inline (reducers, to keep updates in emission order)
// or hands it to a worker goroutine behind the concurrency gate.
// Caller holds r.mu.
func (r *runner) admit(entry *joinEntry) {
	seq := r.taskSeq
	r.taskSeq++
	trigger := mostDerived(entry.stores)
	r.eng.acct.enqueue(trigger.ID())

	if r.node.kind == kindReduce {
		// Updates apply in arrival order; no gate, no sequencer.
		r.updateLocked(entry, trigger)
		r.eng.acct.retire(trigger.ID())
		return
	}

	if r.sem != nil {
		r.mu.Unlock()
		r.sem <- struct{}{}
		r.mu.Lock()
	}
	r.eng.tasks.Add(1)
	go r.work(seq, entry, trigger)
}

// mostDerived returns the deepest of the joined stores.
func mostDerived(stores []*Store) *Store {
	best := stores[0]
	for _, s := range stores[1:] {
		best = MoreDerived(best, s)
	}
	return best
}

// work executes one admitted task on a worker goroutine and forwards
// its results in sequence order.
func (r *runner) work(seq uint64, entry *joinEntry, trigger *Store) {
	defer r.eng.tasks.Done()
	if r.sem != nil {
		defer func() { <-r.sem }()
	}

	out, err := r.execute(entry, trigger)

	r.outSeq.release(seq, func() {
		if err != nil {
			r.eng.fail(err)
		} else if out != nil {
			r.forward(out)
		}
		r.eng.acct.retire(trigger.ID())
	})
}

// execute gates on predicates and invokes the user algorithm. A nil
// store result with nil error means the node was skipped or produced
// nothing to forward.
func (r *runner) execute(entry *joinEntry, trigger *Store) (out *Store, err error) {
	if r.eng.isDraining() {
		return nil, nil
	}

	pass, err := r.evalPredicates(trigger)
	if err != nil || !pass {
		return nil, err
	}

	var nodeSpan trace.Span
	if r.eng.cfg.tracingEnabled {
		_, nodeSpan = r.eng.cfg.spans.StartNodeSpan(r.eng.tracingCtx, r.node.name)
	}
	start := time.Now()
	observability.LogNodeFire(r.ctx.Logger(), r.node.name, trigger.ID().String())

	defer func() {
		if rec := recover(); rec != nil {
			out = nil
			err = &PanicError{Node: r.node.name, Value: rec, Stack: string(debug.Stack())}
		}
		r.eng.cfg.metrics.RecordNodeFire(r.ctx, r.node.name, time.Since(start), err)
		if r.eng.cfg.tracingEnabled {
			r.eng.cfg.spans.EndSpanWithError(nodeSpan, err)
		}
	}()

	switch r.node.kind {
	case kindTransform:
		in, rerr := r.resolveInputs(entry)
		if rerr != nil {
			return nil, rerr
		}
		values, terr := r.node.transform(r.ctx, in)
		if terr != nil {
			return nil, r.wrap(terr, trigger)
		}
		return r.continuation(trigger, values)

	case kindObserve:
		in, rerr := r.resolveInputs(entry)
		if rerr != nil {
			return nil, rerr
		}
		if oerr := r.node.observe(r.ctx, in); oerr != nil {
			return nil, r.wrap(oerr, trigger)
		}
		return nil, nil

	case kindOutput:
		if oerr := r.node.output(r.ctx, trigger); oerr != nil {
			return nil, r.wrap(oerr, trigger)
		}
		return nil, nil
	}
	return nil, nil
}

// wrap classifies an algorithm failure: typed read errors keep their
// kind, everything else becomes an AlgorithmError.
func (r *runner) wrap(err error, trigger *Store) error {
	switch err.(type) {
	case *TypeMismatchError, *MissingProductError, *MissingPredicateError:
		return err
	default:
		return &AlgorithmError{Node: r.node.name, Level: trigger.ID().String(), Err: err}
	}
}

// evalPredicates resolves every predicate product on the trigger
// store's chain. False skips the node; unresolvable fails the run.
func (r *runner) evalPredicates(trigger *Store) (bool, error) {
	for _, pred := range r.node.predicates {
		v, err := GetProduct[bool](trigger, pred)
		if err != nil {
			if _, missing := err.(*MissingProductError); missing {
				return false, &MissingPredicateError{
					Node: r.node.name, Predicate: pred, Level: trigger.ID().String(),
				}
			}
			return false, err
		}
		if !v {
			observability.LogNodeSkip(r.ctx.Logger(), r.node.name, trigger.ID().String(), pred)
			return false, nil
		}
	}
	return true, nil
}

// resolveInputs reads the declared input values from the joined port
// stores.
func (r *runner) resolveInputs(entry *joinEntry) ([]any, error) {
	in := make([]any, r.node.nInputs)
	for i := 0; i < r.node.nInputs; i++ {
		name := r.node.ports[i].Name
		owner := entry.stores[i].StoreForProduct(name)
		if owner == nil {
			return nil, &MissingProductError{Product: name, Level: entry.id.String()}
		}
		prod, _ := owner.products.get(name)
		in[i] = prod.value
	}
	return in, nil
}

// continuation attaches the transform's outputs to a new store at the
// trigger's level.
func (r *runner) continuation(trigger *Store, values []any) (*Store, error) {
	if len(values) != len(r.node.outputs) {
		return nil, &AlgorithmError{
			Node:  r.node.name,
			Level: trigger.ID().String(),
			Err:   fmt.Errorf("returned %d values for %d declared outputs", len(values), len(r.node.outputs)),
		}
	}
	products := NewProducts()
	for i, spec := range r.node.outputs {
		if err := products.Put(spec.Name, values[i]); err != nil {
			return nil, &AlgorithmError{Node: r.node.name, Level: trigger.ID().String(), Err: err}
		}
	}
	return trigger.MakeContinuation(r.node.name, products), nil
}

// forward delivers an output store to every consumer of this node.
func (r *runner) forward(out *Store) {
	m := &message{store: out, originator: r.node.name}
	for _, ci := range r.node.succs {
		r.eng.send(r.eng.runners[ci], m)
	}
}

// updateLocked applies one reducer update in arrival order. The
// accumulator is scoped to the parent instance of the fold level and
// committed exactly once when that instance flushes. Caller holds r.mu.
func (r *runner) updateLocked(entry *joinEntry, trigger *Store) {
	if r.eng.isDraining() {
		return
	}

	pass, err := r.evalPredicates(trigger)
	if err != nil {
		r.eng.fail(err)
		return
	}
	if !pass {
		return
	}

	lvl := trigger
	if lvl.LevelName() != r.node.foldLevel {
		lvl = trigger.Parent(r.node.foldLevel)
		if lvl == nil {
			return
		}
	}
	scope := lvl.ParentStore()
	if scope == nil {
		scope = lvl
	}

	h := scope.ID().Hash()
	acc, ok := r.accums[h]
	if !ok {
		acc = &accumState{scope: scope, value: r.node.initial}
		r.accums[h] = acc
	}
	if acc.committed {
		r.eng.fail(&FlushOrderError{Node: r.node.name, Level: scope.ID().String()})
		return
	}

	in, err := r.resolveInputs(entry)
	if err != nil {
		r.eng.fail(err)
		return
	}

	start := time.Now()
	value, err := r.node.update(r.ctx, acc.value, in)
	r.eng.cfg.metrics.RecordNodeFire(r.ctx, r.node.name, time.Since(start), err)
	if err != nil {
		r.eng.fail(r.wrap(err, trigger))
		return
	}
	acc.value = value
}

// handleFlush counts flush arrivals against the node's in-degree and,
// on the last one, commits matching reducers, clears join state for
// the closed subtree, and propagates the flush downstream. Commit
// results are forwarded before the flush so they cannot be overtaken.
func (r *runner) handleFlush(m *message) {
	h := m.store.ID().Hash()

	r.mu.Lock()
	r.flushArrivals[h]++
	if r.flushArrivals[h] != r.node.indegree {
		r.mu.Unlock()
		return
	}
	delete(r.flushArrivals, h)

	for key, entry := range r.joins {
		if m.store.ID().Equal(entry.id) || m.store.ID().IsAncestorOf(entry.id) {
			delete(r.joins, key)
		}
	}
	for pi := range r.portCache {
		for key, s := range r.portCache[pi] {
			if m.store.ID().Equal(s.ID()) || m.store.ID().IsAncestorOf(s.ID()) {
				delete(r.portCache[pi], key)
			}
		}
	}

	var commitOut *Store
	if r.node.kind == kindReduce {
		if acc, ok := r.accums[h]; ok && !acc.committed {
			acc.committed = true
			commitOut = r.commitLocked(acc)
		}
	}
	r.mu.Unlock()

	if !r.eng.isDraining() {
		if commitOut != nil {
			r.forward(commitOut)
		}
		r.forward(m.store)
	}
}

// commitLocked finalizes one accumulator and builds the store carrying
// its outputs at the commit scope. Caller holds r.mu.
func (r *runner) commitLocked(acc *accumState) *Store {
	if r.eng.isDraining() {
		return nil
	}

	start := time.Now()
	values, err := r.node.commit(r.ctx, acc.value)
	r.eng.cfg.metrics.RecordNodeFire(r.ctx, r.node.name, time.Since(start), err)
	if err != nil {
		r.eng.fail(r.wrap(err, acc.scope))
		return nil
	}

	out, err := r.continuation(acc.scope, values)
	if err != nil {
		r.eng.fail(err)
		return nil
	}
	observability.LogCommit(r.ctx.Logger(), r.node.name, acc.scope.ID().String())
	return out
}

