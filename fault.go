package mira

import (
	"sync/atomic"
	"time"

	"mira/arch"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

const (
	// BurstWindowMS is the rolling window the fast path counts faults over.
	BurstWindowMS uint64 = 10
	// BurstThreshold is the number of faults within BurstWindowMS that
	// triggers emergency quarantine.
	BurstThreshold = 2000
)

// Sensor is the page-fault hot path (§4.F). It runs in (simulated)
// interrupt context on every fault: it never switches context itself, only
// marks state, so that the next scheduler tick enforces any quarantine it
// decides on.
type Sensor struct {
	table     *Table
	scheduler *Scheduler
	queue     *Queue
	clock     *Clock
	cpu       *arch.CPU
	panicFn   arch.PanicFunc
	logger    *logiface.Logger[*stumpy.Event]

	totalExceptions atomic.Uint64
	sentient        atomic.Bool

	rate *ExceptionRateCounter
}

// NewSensor constructs a Sensor wired to the given collaborators.
func NewSensor(table *Table, scheduler *Scheduler, queue *Queue, clock *Clock, cpu *arch.CPU, panicFn arch.PanicFunc, logger *logiface.Logger[*stumpy.Event]) *Sensor {
	s := &Sensor{
		table:     table,
		scheduler: scheduler,
		queue:     queue,
		clock:     clock,
		cpu:       cpu,
		panicFn:   panicFn,
		logger:    logger,
		rate:      NewExceptionRateCounter(10*time.Second, 100*time.Millisecond),
	}
	s.sentient.Store(true)
	return s
}

// ExceptionRate reports the sensor's rolling exceptions/sec observed across
// the whole kernel over the tracked window (independent of any one task's
// per-interval sampling), for a dashboard consumer per §6's observability
// surface.
func (s *Sensor) ExceptionRate() float64 { return s.rate.Rate() }

// SetSentient enables or disables the resilience subsystem at runtime (the
// WithSentient option's backing store).
func (s *Sensor) SetSentient(enabled bool) { s.sentient.Store(enabled) }

// TotalExceptions returns the total-exceptions counter.
func (s *Sensor) TotalExceptions() uint64 { return s.totalExceptions.Load() }

// currentTask is threaded from the scheduler's notion of "current";
// exposed narrowly so the sensor can resolve "the currently executing
// task" without the scheduler exposing its full selection state.
func (s *Sensor) currentTask() *Task {
	idx := s.scheduler.current
	tasks := s.table.All()
	if idx < 0 || idx >= len(tasks) {
		return nil
	}
	return tasks[idx]
}

// HandlePageFault implements the fault sensor's full contract (§4.F steps
// 1-10). frame is the CPU-pushed interrupt frame; code is the bytes at the
// faulting instruction pointer, used to decode its length.
func (s *Sensor) HandlePageFault(frame *arch.Frame, code []byte) {
	// 1. Global counter.
	s.totalExceptions.Add(1)
	s.rate.Increment()

	// 2. Kernel-origin guard.
	if frame.IsKernelOrigin() {
		s.panic(frame)
		return
	}

	// 3. Current task; already-Zombie tasks are ignored.
	current := s.currentTask()
	if current != nil && current.Status() == Zombie {
		return
	}

	// 4. Mode guard.
	if current == nil || current.Mode != ModeUser {
		s.panic(frame)
		return
	}

	// 5. Instruction length decode.
	length := arch.InstructionLength(code)

	if !s.sentient.Load() {
		// Control build: advance and return, livelock intact by design.
		frame.RIP += uint64(length)
		return
	}

	// 6. Adaptive report.
	current.FaultCountPeriod.Add(1)

	// 7. Profiler counter.
	current.ProfilerFaultCount.Add(1)

	// 8. Burst window.
	now := s.clock.Ticks()
	st := &current.Sentient
	if now-st.LastExceptionTickMS <= BurstWindowMS {
		st.ExceptionBurstCount++
	} else {
		st.ExceptionBurstCount = 1
		st.LastExceptionTickMS = now
	}

	// 9. Quarantine decision.
	if st.ExceptionBurstCount >= BurstThreshold {
		if current.KernelLocksHeld > 0 {
			err := &HeldLockQuarantineError{
				TaskID:          current.ID,
				KernelLocksHeld: current.KernelLocksHeld,
				ExceptionBurst:  st.ExceptionBurstCount,
			}
			if s.logger != nil {
				s.logger.Crit().Err(WrapError("quarantine deferred", err)).Int("pid", current.ID).Int("locks", current.KernelLocksHeld).Log("quarantine deferred, parking CPU")
			}
			s.cpu.Park()
			return
		}

		current.status.Store(Zombie)
		frame.RIP += uint64(length)

		if err := s.queue.Enqueue(current.ID); err != nil {
			if s.logger != nil {
				s.logger.Err().Err(err).Int("pid", current.ID).Log("apoptosis queue full")
			}
		}
		if s.logger != nil {
			s.logger.Info().Int("pid", current.ID).Int("burst", st.ExceptionBurstCount).Log("fast-path quarantine")
		}
		return
	}

	// 10. Non-quarantine path: still advance past the faulting instruction.
	frame.RIP += uint64(length)
}

func (s *Sensor) panic(frame *arch.Frame) {
	current := s.currentTask()
	id := -1
	if current != nil {
		id = current.ID
	}
	err := &KernelFaultError{TaskID: id, RIP: frame.RIP}
	if s.logger != nil {
		s.logger.Emerg().Err(err).Uint64("rip", frame.RIP).Int("pid", id).Log("kernel panic: page fault in kernel context")
	}
	if s.panicFn != nil {
		s.panicFn(err.Error())
	}
	s.cpu.Park()
}
