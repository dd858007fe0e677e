package cimba

import (
	"log/slog"

	"github.com/cimba-sim/cimba/metrics"
)

// Config holds Simulation configuration.
type Config struct {
	// StartTime is the simulated clock's initial value.
	// Default: 0.
	StartTime float64

	// ProcessStackBytes is an advisory per-process stack size; the
	// goroutine-backed coroutine layer grows and shrinks stacks
	// automatically, so this value is stored only for introspection and
	// never used to size anything.
	// Default: 131072 (128 KiB).
	ProcessStackBytes uint

	// Metrics receives simulation instrumentation (scheduled/executed
	// event counts, queue depth). Default: a no-op provider.
	Metrics metrics.Provider

	// Logger receives structured diagnostics from the dispatcher and
	// resource layer. Default: slog.Default().
	Logger *slog.Logger
}

// defaultConfig centralizes default values for Config. These defaults are
// applied by both New (when cfg is nil) and NewOptions (options builder
// base).
func defaultConfig() Config {
	return Config{
		StartTime:         0,
		ProcessStackBytes: 128 * 1024,
	}
}

// validateConfig performs lightweight invariant checks.
func validateConfig(cfg *Config) error {
	if cfg.ProcessStackBytes == 0 {
		return ContractViolation{Msg: "ProcessStackBytes must be greater than zero"}
	}
	return nil
}
