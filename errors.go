package cimba

import (
	"errors"
	"fmt"
)

// Namespace prefixes every sentinel error and contract-violation message
// this module produces.
const Namespace = "cimba"

var ErrHandleNotFound = errors.New(Namespace + ": handle not found")

// ContractViolation marks a programming error rather than a normal
// simulated outcome: negative hold duration, scheduling at a time before
// the current clock, reprioritizing an event handle that is not
// scheduled, and similar invariant breaks. Violations detected inside the
// coroutine package (yield from the main coroutine, destroying a running
// coroutine) panic with coroutine.ContractViolation instead. These are
// fatal to the simulation; unlike a Signal, user code is never expected
// to recover from one.
type ContractViolation struct{ Msg string }

func (e ContractViolation) Error() string { return Namespace + ": contract violation: " + e.Msg }

func violate(format string, args ...any) {
	panic(ContractViolation{Msg: fmt.Sprintf(format, args...)})
}
