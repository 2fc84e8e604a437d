// This file provides the kernel's error taxonomy: a small set of sentinel
// and typed errors covering the failure kinds named in the core design
// (allocator exhaustion, queue-full, kernel-origin faults, lock-held
// quarantine escalation, and table-capacity refusals).

package mira

import (
	"errors"
	"fmt"
)

// Sentinel errors for the error kinds that propagate to a caller. Interrupt
// context paths (the fault sensor, the profiler, the adaptive controller)
// never surface these upward; they log and mutate state in place, per the
// propagation policy. Only the allocator, the queue and the task table
// return them.
var (
	// ErrOutOfMemory is returned when the bump allocator's arena is exhausted.
	ErrOutOfMemory = errors.New("mira: out of memory")

	// ErrQueueFull is returned by Queue.Enqueue when the queue is at capacity.
	ErrQueueFull = errors.New("mira: work queue full")

	// ErrTableFull is returned when the task table has no free slot.
	ErrTableFull = errors.New("mira: task table full")
)

// KernelFaultError reports a page fault that originated in kernel-mode code.
// It is non-recoverable: the sensor routes it to the panic handler rather
// than attempting to heal it, since kernel-mode faults indicate a bug class
// outside the supervisor's scope.
type KernelFaultError struct {
	// TaskID is the currently scheduled task at the time of the fault, or -1
	// if no task was current.
	TaskID int
	// RIP is the faulting instruction pointer.
	RIP uint64
}

func (e *KernelFaultError) Error() string {
	return fmt.Sprintf("mira: kernel-mode page fault at rip=%#x (task=%d)", e.RIP, e.TaskID)
}

// HeldLockQuarantineError reports that a task qualified for quarantine while
// holding one or more kernel locks. Terminating it in place could deadlock
// the kernel, so the core parks the current CPU instead.
type HeldLockQuarantineError struct {
	TaskID           int
	KernelLocksHeld  int
	ExceptionBurst   int
}

func (e *HeldLockQuarantineError) Error() string {
	return fmt.Sprintf("mira: quarantine of task %d deferred, %d kernel locks held (burst=%d): CPU parked",
		e.TaskID, e.KernelLocksHeld, e.ExceptionBurst)
}

// WrapError wraps an error with a message, preserving the cause chain so
// that errors.Is/errors.As continue to match against it.
func WrapError(message string, cause error) error {
	return fmt.Errorf("%s: %w", message, cause)
}
