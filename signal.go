package cimba

import "fmt"

// Signal is the outcome value returned from Hold, WaitForProcess,
// WaitForEvent, and the resource Acquire/Preempt calls. It is normal
// control flow, never an error: callers branch on it and decide whether
// to retry, bail out, or propagate.
type Signal int64

const (
	// SUCCESS is the zero signal: the wait completed on its own terms.
	// It must never be passed as an interrupt signal.
	SUCCESS Signal = 0

	// STOPPED is delivered when the waiting process itself is being torn
	// down by Process.Stop.
	STOPPED Signal = -1

	// PREEMPTED is delivered when a held resource unit was taken away by
	// a higher-priority acquirer.
	PREEMPTED Signal = -2

	// CANCELLED is delivered when the thing being waited on (an event, a
	// guard entry) was cancelled out from under the waiter.
	CANCELLED Signal = -3

	// INTERRUPTED is the generic user-supplied interrupt signal. Any
	// other non-zero value is also permitted as an interrupt signal.
	INTERRUPTED Signal = -4
)

func (s Signal) String() string {
	switch s {
	case SUCCESS:
		return "success"
	case STOPPED:
		return "stopped"
	case PREEMPTED:
		return "preempted"
	case CANCELLED:
		return "cancelled"
	case INTERRUPTED:
		return "interrupted"
	default:
		return fmt.Sprintf("signal(%d)", int64(s))
	}
}
