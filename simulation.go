package cimba

import (
	"log/slog"

	"github.com/cimba-sim/cimba/coroutine"
	"github.com/cimba-sim/cimba/metrics"
)

// Simulation bundles one coroutine scheduler and one event dispatcher
// into an explicit, passable context object instead of thread-local
// kernel state: all mutable kernel state lives here, so multiple
// independent simulations may run concurrently on separate goroutines,
// each single-threaded internally.
type Simulation struct {
	sched       *coroutine.Scheduler
	events      *Dispatcher
	byCoroutine map[*coroutine.Coroutine]*Process
	stackBytes  int
	log         *slog.Logger
}

// New constructs a Simulation from cfg.
//
// This Config-based constructor is kept for callers that already build a
// Config. Prefer NewOptions for new code.
func New(cfg *Config) *Simulation {
	if cfg == nil {
		c := defaultConfig()
		cfg = &c
	}
	if err := validateConfig(cfg); err != nil {
		panic(err)
	}

	provider := cfg.Metrics
	if provider == nil {
		provider = metrics.NewNoopProvider()
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	return &Simulation{
		sched:       coroutine.NewScheduler(),
		events:      NewDispatcher(cfg.StartTime, provider, log),
		byCoroutine: make(map[*coroutine.Coroutine]*Process),
		stackBytes:  int(cfg.ProcessStackBytes),
		log:         log,
	}
}

// Time returns the current simulated clock.
func (s *Simulation) Time() float64 { return s.events.Time() }

// Events returns the simulation's event dispatcher, for direct
// event_schedule/cancel/reprioritize/pattern_cancel access alongside the
// process-layer convenience methods.
func (s *Simulation) Events() *Dispatcher { return s.events }

// Current returns the process currently executing, or nil if the caller
// is on the simulation's main coroutine (i.e. not inside any process).
func (s *Simulation) Current() *Process {
	return s.byCoroutine[s.sched.Current()]
}

// Run drives the simulation to completion: while any event remains
// scheduled, it fires the earliest one, in (time, priority, FIFO) order.
func (s *Simulation) Run() { s.events.Execute() }

// Clear cancels every scheduled event, resuming their waiters with
// CANCELLED, and returns the count removed.
func (s *Simulation) Clear() int { return s.events.Clear() }

// Terminate discards every scheduled event without resuming waiters.
// Events scheduled afterwards are still accepted.
func (s *Simulation) Terminate() { s.events.Terminate() }
