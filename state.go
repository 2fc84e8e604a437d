package mira

import (
	"sync/atomic"
)

// TaskStatus is the lifecycle state of a task.
//
// State Machine:
//
//	NotRunning (0) → Running (2)              [Table.Start]
//	Running (2) ↔ Sleeping (1)                [voluntary sleep / scheduler wake]
//	Running (2) → Zombie (3)                  [fault sensor / profiler quarantine]
//	Sleeping (1) → Zombie (3)                 [quarantine of a sleeping task]
//	Zombie (3) → (terminal)
//
// Zombie is the only quarantine state; there is no other sentinel repurposed
// for "stopped by the supervisor" (see the status-sentinel design note).
type TaskStatus uint32

const (
	NotRunning TaskStatus = 0
	Sleeping   TaskStatus = 1
	Running    TaskStatus = 2
	Zombie     TaskStatus = 3
)

func (s TaskStatus) String() string {
	switch s {
	case NotRunning:
		return "NotRunning"
	case Running:
		return "Running"
	case Sleeping:
		return "Sleeping"
	case Zombie:
		return "Zombie"
	default:
		return "Unknown"
	}
}

// FastStatus is a lock-free task-status cell with cache-line padding, so that
// frequent sensor/scheduler writes to one task's status never false-share a
// cache line with a neighboring task's status in the task table.
type FastStatus struct { // betteralign:ignore
	_ [sizeOfCacheLine / 2]byte                    //nolint:unused
	v atomic.Uint32                                // TaskStatus value
	_ [sizeOfCacheLine/2 - sizeOfAtomicUint32]byte //nolint:unused
}

func newFastStatus(initial TaskStatus) *FastStatus {
	s := &FastStatus{}
	s.v.Store(uint32(initial))
	return s
}

// Load returns the current status atomically.
func (s *FastStatus) Load() TaskStatus {
	return TaskStatus(s.v.Load())
}

// Store atomically stores a new status. Used for the unconditional
// transitions the sensor/profiler perform (→ Zombie): those are terminal and
// never race against a conflicting writer.
func (s *FastStatus) Store(status TaskStatus) {
	s.v.Store(uint32(status))
}

// TryTransition attempts to atomically move from one status to another.
func (s *FastStatus) TryTransition(from, to TaskStatus) bool {
	return s.v.CompareAndSwap(uint32(from), uint32(to))
}

// IsZombie reports whether the task has been quarantined.
func (s *FastStatus) IsZombie() bool {
	return s.Load() == Zombie
}

// Priority selects the scheduler's skip-counter length: the number of
// subsequent scans a task must miss after running once. Values preserve the
// ratios of the original Fibonacci-like spacing; only the ratios are
// semantically meaningful, not the absolute numbers.
type Priority uint32

const (
	PriorityNormal Priority = 0
	PriorityLow    Priority = 55
	PriorityLower  Priority = 89
	PriorityIdle   Priority = 144
)

func (p Priority) String() string {
	switch p {
	case PriorityNormal:
		return "Normal"
	case PriorityLow:
		return "Low"
	case PriorityLower:
		return "Lower"
	case PriorityIdle:
		return "Idle"
	default:
		return "Unknown"
	}
}
