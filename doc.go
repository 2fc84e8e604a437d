// Package mira implements a small, single-core resident-kernel scheduling
// core with an adaptive resilience supervisor: a round-robin scheduler with
// priority-based skip counters, a page-fault sensor hot path, an apoptosis
// pipeline that quarantines pathological tasks, a homeostatic profiler, and
// an epsilon-greedy Q-learning adaptive controller that throttles tasks
// whose fault rate drifts anomalously before the fast path or the profiler
// would otherwise have to intervene.
//
// # Architecture
//
// A [Kernel] wires together the bump/slab [Allocator], the fixed-capacity
// [Table] of [Task] records, the bounded apoptosis [Queue], the
// round-robin [Scheduler], the timer-tick [Clock], the page-fault [Sensor],
// the [ApoptosisWorker], the homeostatic [Profiler], and the
// [AdaptiveController]. Architecture-specific primitives (the saved-register
// context image, segment selectors, the hardware RNG, the instruction-length
// decoder) live in the mira/arch subpackage, isolated so the rest of the
// kernel stays platform-neutral.
//
// # Task Lifecycle
//
// A task moves through NotRunning → Running → {Sleeping ↔ Running} →
// Zombie. Zombie is terminal and is the only quarantine state: once a task
// is marked Zombie the scheduler never dispatches it again, and the
// apoptosis worker reclaims it after observing the scheduler's eviction
// handshake.
//
// # Resilience Pipeline
//
// Three independent mechanisms catch pathological fault behavior at
// different timescales:
//
//   - The fault [Sensor] runs in the simulated interrupt path on every page
//     fault; a burst of faults within a 10ms window triggers immediate
//     quarantine.
//   - The homeostatic [Profiler] samples each running task's fault counter
//     every 250ms and quarantines tasks whose rate exceeds a fixed critical
//     threshold, catching sustained-but-sub-burst attacks.
//   - The [AdaptiveController] tracks short/long exponential moving averages
//     of each task's fault rate every 150ms; on sustained divergence it
//     applies an epsilon-greedy-selected throttle (lowering scheduling
//     priority for a fixed epoch) and learns, via fixed-point Q-values,
//     which throttle level actually reduces the rate.
//
// # Usage
//
//	k, err := mira.New(mira.WithTaskCapacity(8))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	task, err := k.CreateTaskFromEntry(workload, "worker", mira.ModeUser)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	k.StartTask(task.ID)
//
//	ctx, cancel := context.WithCancel(context.Background())
//	defer cancel()
//	if err := k.Run(ctx, tickSource); err != nil {
//	    log.Fatal(err)
//	}
package mira
