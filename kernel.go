package mira

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"mira/arch"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// Kernel run-states, mirroring the teacher's loop state machine: a fresh
// Kernel is Awake, Run transitions it to Running, and Shutdown (or the tick
// source stopping) transitions it to Terminated exactly once.
const (
	kernelAwake int32 = iota
	kernelRunning
	kernelTerminated
)

// ErrKernelAlreadyRunning is returned by Run if the kernel is already
// running or has already terminated.
var ErrKernelAlreadyRunning = errors.New("mira: kernel already running")

// Kernel wires together every collaborator described by the core design:
// the allocator, task table, work queue, scheduler, clock, fault sensor,
// apoptosis worker, homeostatic profiler, and adaptive controller. It is
// the single entry point embedding code constructs and drives.
type Kernel struct {
	cfg *kernelConfig

	alloc      *Allocator
	table      *Table
	queue      *Queue
	cpu        *arch.CPU
	scheduler  *Scheduler
	clock      *Clock
	sensor     *Sensor
	apoptosis  *ApoptosisWorker
	profiler   *Profiler
	controller *AdaptiveController
	logger     *logiface.Logger[*stumpy.Event]

	state    atomic.Int32
	stopOnce sync.Once
	done     chan struct{}
}

// defaultKernelStackSize and defaultUserStackSize size the per-task stacks
// the task table allocates from the bump arena.
const (
	defaultKernelStackSize = 16 << 10
	defaultUserStackSize   = 64 << 10
)

// New constructs a Kernel from the given options, wiring every collaborator
// over a freshly allocated arena. It performs no boot-strap task creation;
// callers create and start tasks explicitly.
func New(opts ...Option) (*Kernel, error) {
	cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}

	alloc := NewAllocator(cfg.heapSize)
	table := NewTable(alloc, cfg.taskCapacity, defaultKernelStackSize, defaultUserStackSize)
	queue := NewQueue(cfg.queueCapacity)
	cpu := &arch.CPU{}
	scheduler := NewScheduler(table, cpu, cfg.logger)
	clock := NewClock(scheduler, table)
	sensor := NewSensor(table, scheduler, queue, clock, cpu, kernelPanic(cfg.logger), cfg.logger)
	sensor.SetSentient(cfg.sentient)
	apoptosis := NewApoptosisWorker(queue, scheduler, table, alloc, cfg.logger)
	profiler := NewProfiler(table, clock, cfg.logger)
	controller := NewAdaptiveController(table, cfg.taskCapacity, cfg.randSource, cfg.logger)

	k := &Kernel{
		cfg:        cfg,
		alloc:      alloc,
		table:      table,
		queue:      queue,
		cpu:        cpu,
		scheduler:  scheduler,
		clock:      clock,
		sensor:     sensor,
		apoptosis:  apoptosis,
		profiler:   profiler,
		controller: controller,
		logger:     cfg.logger,
		done:       make(chan struct{}),
	}
	return k, nil
}

// kernelPanic builds the PanicFunc installed on the sensor: it logs at
// emergency level and never calls the Go panic builtin, since a kernel-mode
// fault is expected, controlled-halt territory.
func kernelPanic(logger *logiface.Logger[*stumpy.Event]) arch.PanicFunc {
	return func(msg string) {
		if logger != nil {
			logger.Emerg().Log(msg)
		}
	}
}

// CreateTaskFromEntry allocates a new task record running entry, returning
// ErrTableFull if the task table is at capacity or ErrOutOfMemory if its
// stacks cannot be allocated.
func (k *Kernel) CreateTaskFromEntry(entry func(), name string, mode Mode) (*Task, error) {
	t, err := k.table.CreateFromEntry(entry, name, mode)
	if err != nil {
		return nil, WrapError(fmt.Sprintf("create task %q", name), err)
	}
	return t, nil
}

// StartTask transitions a task to Running so the scheduler begins
// dispatching it.
func (k *Kernel) StartTask(id int) {
	k.table.Start(id)
}

// PageFaultHandler routes a page fault to the fault sensor's hot path.
func (k *Kernel) PageFaultHandler(frame *arch.Frame, code []byte) {
	k.sensor.HandlePageFault(frame, code)
}

// CurrentTaskID returns the id of the task the scheduler currently considers
// "current", or -1 if none has been dispatched yet.
func (k *Kernel) CurrentTaskID() int {
	return k.scheduler.CurrentTaskID()
}

// Tick drives one timer-interrupt cycle: the clock advances, wakes due
// sleepers, and invokes the scheduler; the apoptosis worker and the two
// task-context supervisors (profiler, adaptive controller) are then each
// given one opportunity to run, matching the source's single-core
// cooperative-alongside-interrupts model.
func (k *Kernel) Tick(prev *arch.Context) *arch.Context {
	next := k.clock.Tick(prev)
	k.apoptosis.RunOnce()
	k.profiler.RunOnce()
	k.controller.RunOnce(k.clock.Ticks())
	return next
}

// Run drives Tick from source until ctx is cancelled, source stops, or
// Shutdown is called. It blocks for the duration of the run; call it from
// its own goroutine for non-blocking use. Returns ErrKernelAlreadyRunning
// if the kernel has already been run or shut down.
func (k *Kernel) Run(ctx context.Context, source TickSource) error {
	if !k.state.CompareAndSwap(kernelAwake, kernelRunning) {
		return ErrKernelAlreadyRunning
	}
	defer close(k.done)

	var frame arch.Context
	for {
		select {
		case <-ctx.Done():
			k.state.Store(kernelTerminated)
			return ctx.Err()
		default:
		}
		if k.state.Load() != kernelRunning {
			return nil
		}

		_, ok := source.Next()
		if !ok {
			k.state.Store(kernelTerminated)
			return nil
		}
		if next := k.Tick(&frame); next != nil {
			frame = *next
		}
		if k.cpu.Parked() {
			k.state.Store(kernelTerminated)
			return nil
		}
	}
}

// Shutdown requests the running Kernel to stop and waits for Run to return,
// or for ctx to expire. Safe to call multiple times and safe to call before
// Run; subsequent calls after the first are no-ops that just wait.
func (k *Kernel) Shutdown(ctx context.Context) error {
	k.stopOnce.Do(func() {
		if !k.state.CompareAndSwap(kernelRunning, kernelTerminated) {
			k.state.CompareAndSwap(kernelAwake, kernelTerminated)
		}
	})
	select {
	case <-k.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats is the packed, allocation-light observability snapshot returned by
// Snapshot: the Go analogue of a syscall returning a packed struct to
// user-space dashboards.
type Stats struct {
	TotalExceptions uint64
	ExceptionRate   float64
	TaskCount       int
	ActiveTaskCount int
	Tasks           []TaskView
	QueueDepth      QueueDepthMetrics
}

// TaskView is one task's observable state as exposed to a dashboard: never
// the live Task record itself, so a caller can't mutate kernel state through
// a snapshot.
type TaskView struct {
	ID                 int
	Name               string
	Status             TaskStatus
	Priority           Priority
	ProfilerFaultCount uint64
}

// Snapshot returns a point-in-time observability snapshot of the whole
// kernel.
func (k *Kernel) Snapshot() Stats {
	tasks := k.table.All()
	views := make([]TaskView, 0, len(tasks))
	for _, t := range tasks {
		views = append(views, TaskView{
			ID:                 t.ID,
			Name:               t.Name,
			Status:             t.Status(),
			Priority:           t.Priority(),
			ProfilerFaultCount: t.ProfilerFaultCount.Load(),
		})
	}
	return Stats{
		TotalExceptions: k.sensor.TotalExceptions(),
		ExceptionRate:   k.sensor.ExceptionRate(),
		TaskCount:       k.table.Count(),
		ActiveTaskCount: k.table.ActiveCount(),
		Tasks:           views,
		QueueDepth:      k.apoptosis.QueueDepth(),
	}
}

// SetSentient enables or disables the resilience subsystem at runtime.
func (k *Kernel) SetSentient(enabled bool) { k.sensor.SetSentient(enabled) }

// RateQuantiles reports the homeostatic profiler's streaming p50/p99
// fault-rate estimate for taskID.
func (k *Kernel) RateQuantiles(taskID int) (p50, p99 float64, ok bool) {
	return k.profiler.RateQuantiles(taskID)
}

// Reclaimed returns the number of tasks the apoptosis worker has fully
// cleaned up.
func (k *Kernel) Reclaimed() int { return k.apoptosis.Reclaimed() }
