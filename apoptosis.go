package mira

import (
	"runtime"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// ApoptosisWorker is the deferred-cleanup task (§4.G): it dequeues
// quarantined task ids, waits for the scheduler's eviction handshake, then
// reclaims the task's resources. The wait-then-clear protocol is what
// guarantees "scheduler has fully switched off the task" happens-before
// "worker reclaims its stack" (invariant 2 of §8).
type ApoptosisWorker struct {
	queue     *Queue
	scheduler *Scheduler
	table     *Table
	alloc     *Allocator
	logger    *logiface.Logger[*stumpy.Event]

	reclaimed int
	depth     QueueDepthMetrics
}

// NewApoptosisWorker constructs an ApoptosisWorker over the given
// collaborators.
func NewApoptosisWorker(queue *Queue, scheduler *Scheduler, table *Table, alloc *Allocator, logger *logiface.Logger[*stumpy.Event]) *ApoptosisWorker {
	return &ApoptosisWorker{queue: queue, scheduler: scheduler, table: table, alloc: alloc, logger: logger}
}

// Reclaimed returns the number of tasks the worker has fully cleaned up.
func (w *ApoptosisWorker) Reclaimed() int { return w.reclaimed }

// QueueDepth reports the apoptosis work queue's current/max/EMA-smoothed
// depth, for a dashboard consumer watching for quarantine pressure.
func (w *ApoptosisWorker) QueueDepth() QueueDepthMetrics { return w.depth.Snapshot() }

// RunOnce drains at most one pending cleanup if the queue is non-empty,
// spinning (yielding the goroutine, not the host CPU) until the eviction
// handshake for that id completes. It is the cooperative-scheduling
// equivalent of one iteration of the source's infinite worker loop; callers
// drive it repeatedly (e.g. once per simulated tick, or in a dedicated
// goroutine) rather than it looping internally, so tests can single-step
// it deterministically.
func (w *ApoptosisWorker) RunOnce() {
	w.depth.Update(w.queue.Len())
	pid := w.queue.Dequeue()
	if pid == QueueEmpty {
		return
	}
	w.depth.Update(w.queue.Len())
	w.awaitHandshake(pid)
}

// awaitHandshake spins until the scheduler's eviction-acknowledgment slot
// equals pid, then clears it and performs cleanup.
func (w *ApoptosisWorker) awaitHandshake(pid int) {
	if w.logger != nil {
		w.logger.Debug().Int("pid", pid).Log("waiting for eviction handshake")
	}
	for w.scheduler.EvictionAck() != pid {
		runtime.Gosched()
	}
	w.scheduler.ClearEvictionAck()

	w.cleanup(pid)
}

// cleanup performs the logical reclaim step. Task memory is intentionally
// left allocated (the allocator has no free-the-arena path and task
// records must remain addressable by their now-terminal id), matching the
// source's deliberate choice to leak rather than introduce a free-list for
// task records; a production system would return the stacks to the
// allocator here.
func (w *ApoptosisWorker) cleanup(pid int) {
	w.reclaimed++
	if w.logger != nil {
		w.logger.Info().Int("pid", pid).Log("apoptosis complete, task neutralized")
	}
}
