package cimba

import (
	"github.com/cimba-sim/cimba/coroutine"
)

// EntryFunc is a process's body. self lets the process suspend on its own
// behalf (Hold, WaitForProcess, ...); arg is the context value passed to
// Start. Its return value becomes the process's exit value.
type EntryFunc func(self *Process, arg any) any

type waitKind int

const (
	waitNone waitKind = iota
	waitClock
	waitEvent
	waitProcess
	waitResource
)

// waitDescriptor is the tagged variant identifying what a suspended
// process is blocked on. Exactly one kind is active at a time; when kind
// is waitNone the process is not suspended on anything the kernel tracks.
type waitDescriptor struct {
	kind        waitKind
	eventHandle Handle   // waitClock, waitEvent
	process     *Process // waitProcess
	guard       *guard   // waitResource
}

// Process is a coroutine augmented with a name, a priority, a
// waits-for descriptor, the processes currently blocked on its
// termination, and the resources it currently holds.
type Process struct {
	sim      *Simulation
	co       *coroutine.Coroutine
	name     string
	priority int64
	entry    EntryFunc

	waitsFor waitDescriptor
	waiters  []*Process
	held     []heldResource
}

// Name returns the process's diagnostic name.
func (p *Process) Name() string { return p.name }

// SetName updates the process's diagnostic name.
func (p *Process) SetName(name string) { p.name = name }

// Priority returns the process's current scheduling priority.
func (p *Process) Priority() int64 { return p.priority }

// ExitValue returns the value the process exited or was stopped with.
// Valid once the process has finished.
func (p *Process) ExitValue() any { return p.co.ExitValue() }

// Finished reports whether the process has terminated.
func (p *Process) Finished() bool { return p.co.Status() == coroutine.Finished }

// NewProcess allocates a process with the given name and priority. It
// must be Initialize'd with its entry function before Start.
func (s *Simulation) NewProcess(name string, priority int64) *Process {
	p := &Process{sim: s, co: s.sched.New(name, s.stackBytes), name: name, priority: priority}
	s.byCoroutine[p.co] = p
	return p
}

// Initialize attaches entry to p, preparing it to run once started.
func (p *Process) Initialize(entry EntryFunc) {
	p.entry = entry
	p.sim.sched.Initialize(p.co, func(self *coroutine.Coroutine, arg any) any {
		ret := entry(p, arg)
		p.finish(SUCCESS)
		return ret
	})
}

// Start schedules a zero-duration event, at the process's priority, whose
// action transfers into the process's coroutine for the first time,
// passing context.
func (p *Process) Start(context any) {
	p.sim.events.Schedule(func(subject, object any) {
		proc := subject.(*Process)
		proc.sim.sched.Start(proc.co, object)
	}, p, context, p.sim.Time(), p.priority)
}

// Hold suspends the calling process for duration simulated time units.
// Must be called from within the process itself, with waits-for == None
// and duration >= 0.
func (p *Process) Hold(duration float64) Signal {
	if p.waitsFor.kind != waitNone {
		violate("%q cannot hold: already waiting", p.name)
	}
	if duration < 0 {
		violate("%q cannot hold a negative duration (%g)", p.name, duration)
	}
	handle := p.sim.events.Schedule(wakeAction, p, SUCCESS, p.sim.Time()+duration, p.priority)
	p.waitsFor = waitDescriptor{kind: waitClock, eventHandle: handle}
	sig := p.sim.sched.Yield(nil).(Signal)
	if sig != SUCCESS {
		p.sim.events.Cancel(handle)
	}
	return sig
}

// WaitForProcess suspends the caller until target finishes. Returns
// SUCCESS immediately if target has already finished.
func (p *Process) WaitForProcess(target *Process) Signal {
	if target.Finished() {
		return SUCCESS
	}
	if p.waitsFor.kind != waitNone {
		violate("%q cannot wait_for_process: already waiting", p.name)
	}
	target.waiters = append(target.waiters, p)
	p.waitsFor = waitDescriptor{kind: waitProcess, process: target}
	return p.sim.sched.Yield(nil).(Signal)
}

// WaitForEvent suspends the caller until handle's event fires (SUCCESS)
// or is cancelled (CANCELLED). Requires the event to be currently
// scheduled.
func (p *Process) WaitForEvent(handle Handle) Signal {
	if p.waitsFor.kind != waitNone {
		violate("%q cannot wait_for_event: already waiting", p.name)
	}
	if !p.sim.events.AddWaiter(handle, p, func(sig Signal) { p.wake(sig) }) {
		violate("%q cannot wait_for_event: handle not scheduled", p.name)
	}
	p.waitsFor = waitDescriptor{kind: waitEvent, eventHandle: handle}
	return p.sim.sched.Yield(nil).(Signal)
}

// Interrupt tears down whatever p is currently waiting on and resumes it
// at the current clock, with priority, delivering signal. signal must not
// be SUCCESS. Non-blocking: safe to call from any process or the main
// coroutine belonging to the same Simulation.
func (p *Process) Interrupt(signal Signal, priority int64) {
	if signal == SUCCESS {
		violate("interrupt must not use SUCCESS as the signal")
	}
	p.stopWaiting()
	// Guards against interrupt racing a just-fired wakeup at the same
	// instant: any pending wakeup targeting p is cancelled before the
	// interrupt itself is scheduled, so p is resumed exactly once.
	p.sim.events.PatternCancel(matchAction(wakeAction), matchIdentity(any(p)), nil)
	p.sim.events.Schedule(wakeAction, p, signal, p.sim.Time(), priority)
}

// Stop tears down whatever p is waiting on, then schedules a stop event
// at the current clock with p's priority that marks p Finished (without
// running any more of p's user code), resumes every process waiting on
// p's termination with STOPPED, and drops every resource p holds.
func (p *Process) Stop(retval any) {
	p.stopWaiting()
	p.sim.events.PatternCancel(matchAction(wakeAction), matchIdentity(any(p)), nil)
	p.sim.events.Schedule(stopAction, p, retval, p.sim.Time(), p.priority)
}

// Exit ends the calling process immediately with retval, transferring
// control to its parent without running any code after this call. Must
// be called by the process on its own behalf.
func (p *Process) Exit(retval any) {
	if p.co != p.sim.sched.Current() {
		violate("%q: exit must be called by the process itself", p.name)
	}
	p.finish(SUCCESS)
	p.sim.sched.Exit(p.co, retval)
}

// SetPriority updates p's priority. If p is currently queued in a clock
// wakeup or a resource guard, its queue position is refreshed to match a
// fresh insertion at (entry_time, new). Every resource p holds has its
// reprio hook invoked so holder bookkeeping used for preemption selection
// stays correct.
func (p *Process) SetPriority(newPriority int64) {
	p.priority = newPriority
	switch p.waitsFor.kind {
	case waitClock:
		p.sim.events.Reprioritize(p.waitsFor.eventHandle, newPriority)
	case waitResource:
		p.waitsFor.guard.reprioritize(p, newPriority)
	}
	for _, h := range p.held {
		h.resource.reprio(p, newPriority)
	}
}

// wake clears p's waits-for descriptor and resumes its coroutine with
// sig. Called from dispatcher/guard context (i.e. whatever coroutine is
// currently executing when the resume is due), never by p itself.
func (p *Process) wake(sig Signal) {
	p.waitsFor = waitDescriptor{}
	p.sim.sched.Resume(p.co, sig)
}

// finish schedules a resume at the current clock, with sig, for every
// process blocked in WaitForProcess(p), so p itself runs on to its own
// exit before any of them. It runs once, either when p's entry returns
// normally (SUCCESS) or when p calls Exit (SUCCESS); Stop resumes waiters
// separately with STOPPED, since a stopped process never reaches its own
// finish path.
func (p *Process) finish(sig Signal) {
	waiters := p.waiters
	p.waiters = nil
	for _, w := range waiters {
		p.sim.events.Schedule(wakeAction, w, sig, p.sim.Time(), w.priority)
	}
}

// stopWaiting tears down p's current wait synchronously: cancels its
// private clock wakeup, removes it from an event's waiter list, removes
// it from a target process's waiters list, or removes it from a resource
// guard. Leaves waits-for at None.
func (p *Process) stopWaiting() {
	switch p.waitsFor.kind {
	case waitClock:
		p.sim.events.Cancel(p.waitsFor.eventHandle)
	case waitEvent:
		p.sim.events.RemoveWaiter(p.waitsFor.eventHandle, p)
	case waitProcess:
		removeProcess(&p.waitsFor.process.waiters, p)
	case waitResource:
		p.waitsFor.guard.cancel(p)
	}
	p.waitsFor = waitDescriptor{}
}

func (p *Process) dropAllHeld() {
	held := p.held
	p.held = nil
	for _, h := range held {
		h.resource.drop(p, h.handle)
	}
}

func removeProcess(list *[]*Process, p *Process) {
	out := (*list)[:0]
	for _, q := range *list {
		if q != p {
			out = append(out, q)
		}
	}
	*list = out
}

// wakeAction resumes subject (a *Process) with object (a Signal). It
// backs a process's own clock wakeup (Hold) and the zero-delay resumes
// scheduled by Interrupt, by finish, and by a guard signal.
func wakeAction(subject, object any) {
	subject.(*Process).wake(object.(Signal))
}

// stopAction is the stop event scheduled by Process.Stop: it finalizes
// the coroutine, wakes waiters with STOPPED, then drops held resources,
// in that order per the stop contract.
func stopAction(subject, object any) {
	p := subject.(*Process)
	p.sim.sched.Stop(p.co, object)

	waiters := p.waiters
	p.waiters = nil
	for _, w := range waiters {
		w.wake(STOPPED)
	}

	p.dropAllHeld()
}
