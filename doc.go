// Package cimba is a discrete-event simulation kernel for
// process-oriented simulations (queues, servers, factories). A user
// writes each entity as a long-running procedure that advances simulated
// time by explicitly holding, waiting, or acquiring resources; the kernel
// weaves these procedures into a single thread of control (each has its
// own goroutine, but only one runs at a time), suspending and resuming
// them at well-defined points and advancing a simulated clock between
// events.
//
// Constructors
//   - New(*Config): current stable constructor that accepts a Config.
//   - NewOptions(opts ...Option): options-based constructor. Prefer this
//     in new code.
//
// Layers
//   - coroutine: goroutine-backed stackful-style coroutines with
//     symmetric transfer/yield/resume. No knowledge of simulated time.
//   - pq: an indexed priority queue (binary heap + handle index) used by
//     both the event dispatcher and resource guards.
//   - This package: the event dispatcher (Dispatcher), the process layer
//     (Process), and the resource layer (Store, Unit, Buffer), tied
//     together by Simulation.
//
// Defaults
// Unless overridden, the following defaults apply to a newly created
// Simulation:
//   - StartTime: 0
//   - ProcessStackBytes: 131072 (128 KiB; advisory only)
//   - Metrics: a no-op provider
//   - Logger: slog.Default()
package cimba
