package cimba

import "github.com/cimba-sim/cimba/pq"

// Predicate reports whether p may proceed given ctx (the value passed to
// guard.wait), evaluated against whatever resource state the guard was
// created for.
type Predicate func(p *Process, ctx any) bool

// Admit runs once, synchronously, the moment a process is granted
// passage through the guard (either immediately in wait, or from signal
// once the front waiter's predicate turns true). It is where the
// resource-specific state mutation happens (incrementing in-use,
// recording a holder, appending a buffer item): doing this synchronously,
// rather than when the process eventually resumes, is what lets signal's
// repeated-call loop see the updated state on its very next predicate
// check instead of granting the same unit twice.
type Admit func(p *Process, ctx any)

// guard is the priority queue of processes waiting for a predicate to
// hold, shared by every resource variant. Entries are keyed by process
// priority alone (a constant dkey), so strictly higher priority runs ahead
// of lower and equal priority is FIFO by insertion order, which is entry
// time order.
type guard struct {
	q         *pq.Queue
	byProcess map[*Process]pq.Handle
}

type guardEntry struct {
	predicate Predicate
	admit     Admit
	ctx       any
}

func newGuard() *guard {
	return &guard{q: pq.New(), byProcess: make(map[*Process]pq.Handle)}
}

// wait admits p immediately if predicate(p, ctx) already holds, running
// admit synchronously before returning. Otherwise it enqueues p (recording
// the queue entry in p's waits-for descriptor) and yields, returning
// whatever signal eventually resumes p; admit has already run by the time
// a SUCCESS signal is returned, whichever path produced it.
func (g *guard) wait(p *Process, predicate Predicate, admit Admit, ctx any) Signal {
	if predicate(p, ctx) {
		admit(p, ctx)
		return SUCCESS
	}
	h := g.q.Enqueue(p, &guardEntry{predicate: predicate, admit: admit, ctx: ctx}, nil, nil, 0, p.priority)
	g.byProcess[p] = h
	p.waitsFor = waitDescriptor{kind: waitResource, guard: g}
	return p.sim.sched.Yield(nil).(Signal)
}

// signal checks the front waiter's predicate; if it now holds, the
// waiter is dequeued, admit runs immediately, its waits-for is cleared,
// and a success resume is scheduled for it. Reports whether a waiter was
// woken. Callers releasing multiple units call signal repeatedly while it
// returns true; because admit runs before signal returns, the next call
// always sees up-to-date resource state.
func (g *guard) signal() bool {
	e, ok := g.q.Peek()
	if !ok {
		return false
	}
	p := e.Item.(*Process)
	ge := e.Aux1.(*guardEntry)
	if !ge.predicate(p, ge.ctx) {
		return false
	}
	g.q.Pop()
	delete(g.byProcess, p)
	ge.admit(p, ge.ctx)
	p.waitsFor = waitDescriptor{}
	p.sim.events.Schedule(wakeAction, p, SUCCESS, p.sim.Time(), p.priority)
	return true
}

// cancel removes p's entry from the guard, if present.
func (g *guard) cancel(p *Process) {
	h, ok := g.byProcess[p]
	if !ok {
		return
	}
	g.q.Cancel(h)
	delete(g.byProcess, p)
}

// reprioritize repositions p's entry so it matches a fresh insertion at
// (its original entry_time, newPriority).
func (g *guard) reprioritize(p *Process, newPriority int64) {
	h, ok := g.byProcess[p]
	if !ok {
		return
	}
	e, ok := g.q.Get(h)
	if !ok {
		return
	}
	g.q.Reprioritize(h, e.DKey, newPriority)
}

// HoldHandle identifies one (process, resource) holding relationship,
// distinct from the guard/event layers' pq.Handle since holder lists are
// plain slices, not priority queues.
type HoldHandle uint64

type heldResource struct {
	resource holdable
	handle   HoldHandle
}

// holdable is implemented by resource variants that support external
// drop (stop/interrupt teardown) and reprio (priority changes while
// holding). Buffers are not holdable: they have no notion of a "holder"
// to preempt or reprioritize.
type holdable interface {
	drop(p *Process, handle HoldHandle)
	reprio(p *Process, newPriority int64)
}

type coreHolder struct {
	process *Process
	amount  uint64
	handle  HoldHandle
}

// core is the shared capacity/in-use/holders bookkeeping behind the
// single-unit and counting-store variants.
type core struct {
	capacity   uint64
	inUse      uint64
	holders    []coreHolder
	nextHandle HoldHandle
}

func (c *core) alloc(p *Process, amount uint64) HoldHandle {
	c.nextHandle++
	h := c.nextHandle
	c.inUse += amount
	c.holders = append(c.holders, coreHolder{process: p, amount: amount, handle: h})
	return h
}

func (c *core) free(p *Process, handle HoldHandle) (amount uint64, ok bool) {
	for i, h := range c.holders {
		if h.process == p && h.handle == handle {
			c.holders = append(c.holders[:i], c.holders[i+1:]...)
			c.inUse -= h.amount
			return h.amount, true
		}
	}
	return 0, false
}

// lowestPriorityHolderBelow returns the index of the holder with the
// smallest priority strictly below ceiling, or -1 if none qualifies.
// Holder priority is read live from the process, so this never goes
// stale across SetPriority calls.
func (c *core) lowestPriorityHolderBelow(ceiling int64) int {
	best := -1
	for i, h := range c.holders {
		if h.process.priority >= ceiling {
			continue
		}
		if best == -1 || h.process.priority < c.holders[best].process.priority {
			best = i
		}
	}
	return best
}

// Store is a counting resource: up to capacity units may be held
// concurrently across any number of processes, each holding some amount.
type Store struct {
	sim   *Simulation
	name  string
	core  core
	guard *guard
}

// NewStore creates a counting store resource with the given capacity.
func (s *Simulation) NewStore(name string, capacity uint64) *Store {
	return &Store{sim: s, name: name, core: core{capacity: capacity}, guard: newGuard()}
}

// Name returns the store's diagnostic name.
func (r *Store) Name() string { return r.name }

// InUse returns the number of units currently held.
func (r *Store) InUse() uint64 { return r.core.inUse }

// Acquire requests amount units, waiting in the guard if capacity is not
// immediately available. Returns SUCCESS once granted, or the interrupt
// signal that cut the wait short.
func (r *Store) Acquire(p *Process, amount uint64) Signal {
	predicate := func(_ *Process, ctx any) bool {
		return r.core.capacity-r.core.inUse >= ctx.(uint64)
	}
	admit := func(pp *Process, ctx any) { r.commit(pp, ctx.(uint64)) }
	return r.guard.wait(p, predicate, admit, amount)
}

func (r *Store) commit(p *Process, amount uint64) {
	h := r.core.alloc(p, amount)
	p.held = append(p.held, heldResource{resource: r, handle: h})
}

// Release returns amount units previously acquired by p, then wakes
// queued waiters while capacity allows.
func (r *Store) Release(p *Process, amount uint64) {
	for i, h := range r.core.holders {
		if h.process != p {
			continue
		}
		switch {
		case h.amount < amount:
			violate("%q cannot release %d units: only holds %d", r.name, amount, h.amount)
		case h.amount == amount:
			r.core.holders = append(r.core.holders[:i], r.core.holders[i+1:]...)
			removeHeldResource(p, r, h.handle)
		default:
			r.core.holders[i].amount -= amount
		}
		r.core.inUse -= amount
		for r.guard.signal() {
		}
		return
	}
	violate("%q cannot release: process does not hold it", r.name)
}

// Preempt requests amount units, preferring to take them from holders
// whose priority is strictly lower than p's before falling back to
// waiting in the guard like Acquire. Each preempted holder is interrupted
// with PREEMPTED.
func (r *Store) Preempt(p *Process, amount uint64) Signal {
	for r.core.capacity-r.core.inUse < amount {
		vi := r.core.lowestPriorityHolderBelow(p.priority)
		if vi == -1 {
			break
		}
		victim := r.core.holders[vi]
		r.core.holders = append(r.core.holders[:vi], r.core.holders[vi+1:]...)
		r.core.inUse -= victim.amount
		removeHeldResource(victim.process, r, victim.handle)
		victim.process.Interrupt(PREEMPTED, victim.process.priority)
	}
	if r.core.capacity-r.core.inUse >= amount {
		r.commit(p, amount)
		return SUCCESS
	}
	return r.Acquire(p, amount)
}

func (r *Store) drop(p *Process, handle HoldHandle) {
	if _, ok := r.core.free(p, handle); ok {
		for r.guard.signal() {
		}
	}
}

// reprio is a no-op: holder selection for preemption always reads each
// holder's live priority (core.lowestPriorityHolderBelow), so there is
// nothing cached to refresh here.
func (r *Store) reprio(_ *Process, _ int64) {}

// Unit is a single-unit (binary semaphore) resource: a Store fixed at
// capacity 1, with amount-free convenience methods.
type Unit struct{ *Store }

// NewUnit creates a single-unit holdable resource.
func (s *Simulation) NewUnit(name string) *Unit {
	return &Unit{Store: s.NewStore(name, 1)}
}

func (u *Unit) Acquire(p *Process) Signal { return u.Store.Acquire(p, 1) }
func (u *Unit) Release(p *Process)        { u.Store.Release(p, 1) }
func (u *Unit) Preempt(p *Process) Signal { return u.Store.Preempt(p, 1) }

func removeHeldResource(p *Process, r holdable, handle HoldHandle) {
	out := p.held[:0]
	for _, h := range p.held {
		if h.resource == r && h.handle == handle {
			continue
		}
		out = append(out, h)
	}
	p.held = out
}

// Buffer is a bounded FIFO of opaque items with symmetric front (put) and
// back (get) guards. Not holdable: items pass through, nobody "holds"
// buffer capacity the way they hold a Store's units.
type Buffer struct {
	sim      *Simulation
	name     string
	capacity uint64
	items    []any
	putGuard *guard
	getGuard *guard
}

// NewBuffer creates a bounded buffer resource of the given capacity.
func (s *Simulation) NewBuffer(name string, capacity uint64) *Buffer {
	return &Buffer{sim: s, name: name, capacity: capacity, putGuard: newGuard(), getGuard: newGuard()}
}

// Name returns the buffer's diagnostic name.
func (b *Buffer) Name() string { return b.name }

// Len returns the number of items currently buffered.
func (b *Buffer) Len() int { return len(b.items) }

// Put waits until there is room for item, then appends it and wakes one
// queued getter if its predicate now holds. ctx carries item through to
// admit, since admit may run later (from signal) rather than inline.
func (b *Buffer) Put(p *Process, item any) Signal {
	predicate := func(*Process, any) bool { return uint64(len(b.items)) < b.capacity }
	admit := func(_ *Process, ctx any) { b.items = append(b.items, ctx) }
	sig := b.putGuard.wait(p, predicate, admit, item)
	if sig != SUCCESS {
		return sig
	}
	for b.getGuard.signal() {
	}
	return SUCCESS
}

// Get waits until an item is available, then removes and returns the
// oldest one, waking one queued putter if its predicate now holds. The
// removed item is captured by the admit closure, since removal must
// happen at the same synchronous point as every other guard mutation.
func (b *Buffer) Get(p *Process) (any, Signal) {
	var got any
	predicate := func(*Process, any) bool { return len(b.items) > 0 }
	admit := func(*Process, any) {
		got = b.items[0]
		b.items = b.items[1:]
	}
	sig := b.getGuard.wait(p, predicate, admit, nil)
	if sig != SUCCESS {
		return nil, sig
	}
	for b.putGuard.signal() {
	}
	return got, SUCCESS
}
