package mira

import (
	"sync/atomic"

	"mira/arch"
)

// Mode is the privilege level a task executes at.
type Mode int

const (
	ModeKernel Mode = iota
	ModeUser
)

// SentientState is the fault-sensor's per-task burst-window state, mutated
// only by the sensor for the currently running task. It is logically
// volatile: the "current task" the sensor observes can change between
// faults, but within one fault's handling there is no cross-actor
// contention over these two fields.
type SentientState struct {
	LastExceptionTickMS uint64
	ExceptionBurstCount int
}

// Task is a single schedulable unit. Fields mutated from more than one
// actor (status, priority, skip counter) are atomics; everything else is
// written only at creation or under the scheduler's interrupts-disabled
// section.
type Task struct {
	ID   int
	Name string

	Entry func()

	KernelStack []byte
	UserStack   []byte

	Mode Mode

	status *FastStatus

	SavedContext arch.Context

	priority    atomic.Uint32 // Priority
	skipCounter atomic.Int32

	Sentient SentientState

	KernelLocksHeld int

	// ProfilerFaultCount is incremented by the fault sensor and atomically
	// exchanged-with-zero by the homeostatic profiler.
	ProfilerFaultCount atomic.Uint64

	// FaultCountPeriod is incremented by the fault sensor and reset to zero
	// by the adaptive controller at the end of each interval.
	FaultCountPeriod atomic.Uint64

	WakeupTick uint64
}

// Status returns the task's current lifecycle status.
func (t *Task) Status() TaskStatus { return t.status.Load() }

// Priority returns the task's current scheduling priority.
func (t *Task) Priority() Priority { return Priority(t.priority.Load()) }

// SetPriority installs a new scheduling priority. This does not by itself
// change SkipCounter; the scheduler applies the new priority the next time
// it selects this task to run.
func (t *Task) SetPriority(p Priority) { t.priority.Store(uint32(p)) }

// SkipCounter returns the task's remaining skip count.
func (t *Task) SkipCounter() int { return int(t.skipCounter.Load()) }

// HasRun reports whether the task has ever been dispatched.
func (t *Task) HasRun() bool { return t.SavedContext.RIP != 0 }

// Table is the fixed-capacity collection of task records, indexed by slot
// id. It is the sole owner of task memory; tasks are only ever removed from
// scheduling by transitioning to Zombie, never physically deleted from the
// table (their id must remain a stable, never-reused key).
type Table struct {
	alloc        *Allocator
	tasks        []*Task
	kernelStack  int
	userStack    int
	nextID       int
	lastUserTask int
}

// NewTable constructs a task table with capacity slots, allocating kernel
// and user stacks from alloc as tasks are created.
func NewTable(alloc *Allocator, capacity, kernelStackSize, userStackSize int) *Table {
	return &Table{
		alloc:        alloc,
		tasks:        make([]*Task, 0, capacity),
		kernelStack:  kernelStackSize,
		userStack:    userStackSize,
		lastUserTask: -1,
	}
}

// CreateFromEntry allocates a task record and its owned stacks, initializes
// per-task state, and returns the new task. Returns ErrTableFull if the
// table is at capacity.
func (tb *Table) CreateFromEntry(entry func(), name string, mode Mode) (*Task, error) {
	if len(tb.tasks) >= cap(tb.tasks) {
		return nil, ErrTableFull
	}
	kAddr, err := tb.alloc.Alloc(tb.kernelStack)
	if err != nil {
		return nil, err
	}
	t := &Task{
		ID:          tb.nextID,
		Name:        name,
		Entry:       entry,
		Mode:        mode,
		status:      newFastStatus(NotRunning),
		KernelStack: tb.alloc.Bytes(kAddr, tb.kernelStack),
		WakeupTick:  0,
	}
	if mode == ModeUser {
		uAddr, err := tb.alloc.Alloc(tb.userStack)
		if err != nil {
			return nil, err
		}
		t.UserStack = tb.alloc.Bytes(uAddr, tb.userStack)
	}
	t.priority.Store(uint32(PriorityNormal))
	tb.nextID++
	tb.tasks = append(tb.tasks, t)
	return t, nil
}

// Start transitions a task from NotRunning to Running so the scheduler will
// pick it up on the next tick.
func (tb *Table) Start(id int) {
	t := tb.Get(id)
	if t == nil {
		return
	}
	t.status.TryTransition(NotRunning, Running)
}

// Get returns the task with the given id, or nil if no such task exists.
func (tb *Table) Get(id int) *Task {
	for _, t := range tb.tasks {
		if t.ID == id {
			return t
		}
	}
	return nil
}

// All returns every task record in the table, in creation order.
func (tb *Table) All() []*Task {
	return tb.tasks
}

// Count returns the total number of tasks ever created.
func (tb *Table) Count() int { return len(tb.tasks) }

// ActiveCount returns the number of tasks not in the Zombie state.
func (tb *Table) ActiveCount() int {
	n := 0
	for _, t := range tb.tasks {
		if t.Status() != Zombie {
			n++
		}
	}
	return n
}

// LastUserTask returns the most recently dispatched user-mode task, or nil
// if none has run yet. Neither the profiler nor the sensor uses it; it serves
// diagnostics that need "the last user task" outside of an active fault.
func (tb *Table) LastUserTask() *Task {
	if tb.lastUserTask < 0 {
		return nil
	}
	return tb.Get(tb.lastUserTask)
}
