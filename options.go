package cimba

import (
	"log/slog"

	"github.com/cimba-sim/cimba/metrics"
)

// Option configures a Simulation. Use NewOptions(opts...) to construct
// one via options.
type Option func(*Config)

// WithStartTime sets the simulated clock's initial value (default 0).
func WithStartTime(t0 float64) Option {
	return func(c *Config) { c.StartTime = t0 }
}

// WithProcessStackBytes sets the advisory per-process stack size; it has
// no effect on the goroutine-backed coroutine layer. Must be greater
// than zero.
func WithProcessStackBytes(n uint) Option {
	return func(c *Config) { c.ProcessStackBytes = n }
}

// WithMetrics attaches a metrics.Provider to record the dispatcher's
// instrumentation (scheduled/executed event counts, queue depth).
func WithMetrics(p metrics.Provider) Option {
	return func(c *Config) { c.Metrics = p }
}

// WithLogger attaches a *slog.Logger for structured diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// NewOptions creates a new Simulation using functional options. It
// internally builds a Config and delegates to New.
func NewOptions(opts ...Option) *Simulation {
	cfg := defaultConfig()
	for _, opt := range opts {
		if opt == nil {
			panic("nil cimba option")
		}
		opt(&cfg)
	}
	return New(&cfg)
}
