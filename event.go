package cimba

import (
	"log/slog"
	"reflect"

	"github.com/cimba-sim/cimba/metrics"
	"github.com/cimba-sim/cimba/pq"
)

// Handle identifies a live, scheduled event. Non-zero and unique for the
// life of the event, exactly like pq.Handle (the dispatcher is a thin,
// simulated-clock-aware layer over an indexed priority queue).
type Handle = pq.Handle

// Action is the callback a scheduled event runs once the clock reaches it.
type Action func(subject, object any)

// Waiter is resumed by the dispatcher when the event it registered against
// either fires (SUCCESS) or is cancelled (CANCELLED). owner is an opaque
// key used only for later removal (Dispatcher.RemoveWaiter); the
// dispatcher never inspects it otherwise, so the process layer is free to
// use a *Process as the key without the event layer knowing what one is.
type Waiter func(Signal)

type waiterReg struct {
	owner any
	fn    Waiter
}

type eventRecord struct {
	action          Action
	subject, object any
	waiters         []waiterReg
}

// Matcher reports whether a stored field matches a pattern-cancel
// criterion; nil is a wildcard. Shared with pq.Matcher's shape.
type Matcher = pq.Matcher

// Dispatcher is the event queue: an indexed priority queue of (action,
// subject, object) tuples ordered by (time, priority, insertion order)
// plus the simulated clock. It has no knowledge of processes or
// coroutines; the process layer builds on it via Waiter callbacks and
// plain Actions.
type Dispatcher struct {
	q     *pq.Queue
	clock float64

	metrics metrics.Provider
	log     *slog.Logger

	scheduled metrics.Counter
	executed  metrics.Counter
	depth     metrics.UpDownCounter
}

// NewDispatcher constructs a Dispatcher with its clock initialised to t0.
func NewDispatcher(t0 float64, provider metrics.Provider, log *slog.Logger) *Dispatcher {
	if provider == nil {
		provider = metrics.NewNoopProvider()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{
		q:         pq.New(),
		clock:     t0,
		metrics:   provider,
		log:       log,
		scheduled: provider.Counter("cimba_events_scheduled", metrics.WithUnit("1")),
		executed:  provider.Counter("cimba_events_executed", metrics.WithUnit("1")),
		depth:     provider.UpDownCounter("cimba_event_queue_depth", metrics.WithUnit("1")),
	}
}

// Time returns the current simulated clock.
func (d *Dispatcher) Time() float64 { return d.clock }

// Schedule inserts action to run at time with priority, requiring time to
// be no earlier than the current clock. Returns a fresh, non-zero handle.
func (d *Dispatcher) Schedule(action Action, subject, object any, time float64, priority int64) Handle {
	if time < d.clock {
		violate("event scheduled at %g before current clock %g", time, d.clock)
	}
	rec := &eventRecord{action: action, subject: subject, object: object}
	h := d.q.Enqueue(rec, nil, subject, object, time, priority)
	d.scheduled.Add(1)
	d.depth.Add(1)
	d.log.Debug("event scheduled", "handle", h, "time", time, "priority", priority)
	return h
}

// Cancel removes handle's event, if still scheduled, resuming its waiters
// with CANCELLED. Reports whether an event was removed.
func (d *Dispatcher) Cancel(handle Handle) bool {
	e, ok := d.q.Get(handle)
	if !ok {
		return false
	}
	d.q.Cancel(handle)
	d.depth.Add(-1)
	d.fire(e.Item.(*eventRecord), CANCELLED)
	d.log.Debug("event cancelled", "handle", handle)
	return true
}

// PatternCancel removes every scheduled event whose action, subject, and
// object satisfy the corresponding matchers (nil matches everything),
// resuming each removed event's waiters with CANCELLED. Returns the count
// removed.
func (d *Dispatcher) PatternCancel(matchAction, matchSubject, matchObject Matcher) int {
	handles := d.q.Find(func(e pq.Entry) bool {
		if matchAction != nil && !matchAction(e.Item.(*eventRecord).action) {
			return false
		}
		if matchSubject != nil && !matchSubject(e.Aux2) {
			return false
		}
		if matchObject != nil && !matchObject(e.Aux3) {
			return false
		}
		return true
	})
	for _, h := range handles {
		e, _ := d.q.Get(h)
		d.q.Cancel(h)
		d.depth.Add(-1)
		d.fire(e.Item.(*eventRecord), CANCELLED)
	}
	if len(handles) == 0 {
		d.log.Debug("pattern cancel matched no events")
	}
	return len(handles)
}

// Reprioritize changes a scheduled event's priority in place.
// Reprioritizing a handle that is not scheduled is a contract violation.
func (d *Dispatcher) Reprioritize(handle Handle, newPriority int64) bool {
	e, ok := d.q.Get(handle)
	if !ok {
		violate("reprioritize: handle %d is not scheduled", handle)
	}
	return d.q.Reprioritize(handle, e.DKey, newPriority)
}

// Clear cancels every scheduled event, resuming their waiters with
// CANCELLED, and returns the count removed.
func (d *Dispatcher) Clear() int {
	handles := d.q.Find(func(pq.Entry) bool { return true })
	for _, h := range handles {
		e, _ := d.q.Get(h)
		d.q.Cancel(h)
		d.fire(e.Item.(*eventRecord), CANCELLED)
	}
	d.depth.Add(-int64(len(handles)))
	return len(handles)
}

// Execute runs the main dispatch loop: while the queue is non-empty, pop
// the minimum event, advance the clock to its time, resume its waiters
// with SUCCESS, then run its action. It returns once the queue is empty.
func (d *Dispatcher) Execute() {
	for {
		e, ok := d.q.Pop()
		if !ok {
			return
		}
		d.depth.Add(-1)
		if e.DKey < d.clock {
			violate("popped event at %g before current clock %g", e.DKey, d.clock)
		}
		d.clock = e.DKey
		rec := e.Item.(*eventRecord)
		d.fire(rec, SUCCESS)
		d.executed.Add(1)
		rec.action(rec.subject, rec.object)
	}
}

// AddWaiter registers w, keyed by owner, to be resumed when handle's event
// fires or is cancelled. Reports whether handle is still scheduled.
func (d *Dispatcher) AddWaiter(handle Handle, owner any, w Waiter) bool {
	e, ok := d.q.Get(handle)
	if !ok {
		return false
	}
	rec := e.Item.(*eventRecord)
	rec.waiters = append(rec.waiters, waiterReg{owner: owner, fn: w})
	return true
}

// RemoveWaiter unregisters every waiter previously added under owner for
// handle. Reports whether handle was found (regardless of whether any
// waiter matched owner).
func (d *Dispatcher) RemoveWaiter(handle Handle, owner any) bool {
	e, ok := d.q.Get(handle)
	if !ok {
		return false
	}
	rec := e.Item.(*eventRecord)
	out := rec.waiters[:0]
	for _, w := range rec.waiters {
		if w.owner != owner {
			out = append(out, w)
		}
	}
	rec.waiters = out
	return true
}

func (d *Dispatcher) fire(rec *eventRecord, sig Signal) {
	ws := rec.waiters
	rec.waiters = nil
	for _, w := range ws {
		w.fn(sig)
	}
}

// Terminate discards all scheduled events without resuming waiters.
// Intended for simulation teardown once a run has finished or been
// abandoned. The dispatcher is not marked as terminated: a later Schedule
// call is accepted like any other.
func (d *Dispatcher) Terminate() {
	d.q.Clear()
}

// sameFunc reports whether two Action values share the same underlying
// function pointer. Closures created from the same function literal share
// one code pointer regardless of captured state, so this lets
// pattern-cancel match "this kind of action" (e.g. a process's own
// wakeup) without the action type needing to be comparable.
func sameFunc(a, b Action) bool {
	return reflect.ValueOf(a).Pointer() == reflect.ValueOf(b).Pointer()
}

func matchAction(want Action) Matcher {
	return func(v any) bool {
		a, ok := v.(Action)
		return ok && sameFunc(a, want)
	}
}

func matchIdentity(want any) Matcher {
	return func(v any) bool { return v == want }
}
