package mira

import (
	"sync/atomic"

	"mira/arch"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// evictionAck is the single-slot eviction-acknowledgment register: the
// scheduler writes an outgoing zombie task's id here only after its full
// register state has been saved, and the apoptosis worker spins on it to
// learn "the scheduler has fully switched this task off" before reclaiming
// its resources. -1 is the unset sentinel.
type evictionAck struct {
	slot atomic.Int32
}

const noEvictionAck = -1

func newEvictionAck() *evictionAck {
	a := &evictionAck{}
	a.store(noEvictionAck)
	return a
}

func (a *evictionAck) store(id int) {
	a.slot.Store(int32(id))
}

func (a *evictionAck) load() int {
	return int(a.slot.Load())
}

// Scheduler is the sole point of context switching: round-robin over the
// task table with priority skipping and first-run bootstrap, invoked
// exclusively from the timer-tick handler.
type Scheduler struct {
	table   *Table
	cpu     *arch.CPU
	ack     *evictionAck
	current int // index of the task the scheduler considers "current", -1 initially
	logger  *logiface.Logger[*stumpy.Event]
}

// NewScheduler constructs a Scheduler over the given task table and
// simulated CPU.
func NewScheduler(table *Table, cpu *arch.CPU, logger *logiface.Logger[*stumpy.Event]) *Scheduler {
	return &Scheduler{
		table:   table,
		cpu:     cpu,
		ack:     newEvictionAck(),
		current: -1,
		logger:  logger,
	}
}

// EvictionAck returns the current value of the eviction-acknowledgment
// slot, for the apoptosis worker's handshake wait.
func (s *Scheduler) EvictionAck() int { return s.ack.load() }

// CurrentTaskID returns the id of the task the scheduler currently considers
// "current" (the last one dispatched), or -1 if the scheduler has never
// selected a task.
func (s *Scheduler) CurrentTaskID() int {
	tasks := s.table.All()
	if s.current < 0 || s.current >= len(tasks) {
		return -1
	}
	return tasks[s.current].ID
}

// ClearEvictionAck resets the acknowledgment slot to the unset sentinel.
// Called by the apoptosis worker once it has observed its awaited id.
func (s *Scheduler) ClearEvictionAck() { s.ack.store(noEvictionAck) }

// Schedule saves prev into the outgoing task's context (if any), selects
// the next runnable task honoring skip-counters, bootstraps it on first
// dispatch, programs the simulated CPU's ring-0 stack pointer, and returns
// a pointer to the next task's saved context for the caller (the timer
// stub) to install. If no task is runnable it returns the current task's
// saved context, or prev unchanged when the table is empty or no task has
// been selected yet, per the "scheduler never fails" contract.
func (s *Scheduler) Schedule(prev *arch.Context) *arch.Context {
	tasks := s.table.All()
	if len(tasks) == 0 {
		return prev
	}

	s.save(prev)

	idx, ok := s.selectNext()
	if !ok {
		if s.current >= 0 {
			return &tasks[s.current].SavedContext
		}
		return prev
	}
	s.current = idx
	next := tasks[idx]

	if !next.HasRun() {
		s.bootstrap(next)
	}

	stackTop := kernelStackTop(next)
	s.cpu.SetKernelStackTop(stackTop)
	s.table.lastUserTaskIfUser(next)

	return &next.SavedContext
}

// save copies prev into the currently-scheduled task's saved context (if a
// task is current), tracks it as the last-run user task, and — if it has
// become Zombie since it last ran — writes its id into the eviction
// acknowledgment slot.
func (s *Scheduler) save(prev *arch.Context) {
	if s.current < 0 || prev == nil {
		return
	}
	tasks := s.table.All()
	if s.current >= len(tasks) {
		return
	}
	outgoing := tasks[s.current]
	outgoing.SavedContext = *prev

	if outgoing.Mode == ModeUser {
		s.table.lastUserTask = outgoing.ID
	}

	if outgoing.Status() == Zombie {
		s.ack.store(outgoing.ID)
		if s.logger != nil {
			s.logger.Debug().Int("pid", outgoing.ID).Log("eviction acknowledged")
		}
	}
}

// selectNext scans from the slot after current, at most len(tasks) slots,
// skipping non-Running candidates and candidates with a positive skip
// counter (decrementing once per skip). The first qualifying candidate has
// its skip counter reset to its priority and is returned.
func (s *Scheduler) selectNext() (int, bool) {
	tasks := s.table.All()
	n := len(tasks)
	if n == 0 {
		return 0, false
	}
	start := s.current
	for i := 1; i <= n; i++ {
		idx := (start + i) % n
		t := tasks[idx]

		if t.Status() != Running {
			continue
		}
		if t.SkipCounter() > 0 {
			t.skipCounter.Add(-1)
			continue
		}

		t.skipCounter.Store(int32(t.Priority()))
		return idx, true
	}
	return 0, false
}

// bootstrap synthesizes the first-dispatch register image: instruction
// pointer at the task's entry, stack pointer at the top of its owned
// stack(s), segment selectors per mode, and interrupts enabled in the
// flags word.
func (s *Scheduler) bootstrap(t *Task) {
	var cs, ss uint64
	var sp uint64
	if t.Mode == ModeUser {
		cs, ss = arch.UserCodeSelector, arch.UserDataSelector
		sp = uint64(len(t.UserStack))
	} else {
		cs, ss = arch.KernelCodeSelector, arch.KernelDataSelector
		sp = uint64(len(t.KernelStack))
	}
	t.SavedContext = arch.Context{
		RIP:    entryToRIP(t.Entry),
		CS:     cs,
		RFLAGS: arch.FlagsInterruptEnable,
		RSP:    sp,
		SS:     ss,
	}
}

// entryToRIP derives a stable non-zero "instruction pointer" identity for a
// task's entry function. Go cannot take the address of a function value as
// an instruction pointer the way the source's function pointer can, so the
// identity used here is a monotonically-assigned non-zero handle; the only
// invariant that matters to the rest of the kernel is "zero iff never
// dispatched", which this preserves.
var ripCounter uint64 = 1

func entryToRIP(_ func()) uint64 {
	ripCounter++
	return ripCounter
}

func kernelStackTop(t *Task) uint64 {
	return uint64(len(t.KernelStack))
}

// lastUserTaskIfUser is a small helper kept on Table so Scheduler.Schedule
// doesn't need direct field access across the package boundary it would
// otherwise have (both live in package mira, but keeping the mutation next
// to Table's other bookkeeping matches where LastUserTask's read side
// lives).
func (tb *Table) lastUserTaskIfUser(t *Task) {
	if t.Mode == ModeUser {
		tb.lastUserTask = t.ID
	}
}
