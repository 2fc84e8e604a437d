package mira

import (
	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

const (
	// ProfilerIntervalMS is the homeostatic profiler's sampling period.
	ProfilerIntervalMS uint64 = 250
	// CriticalExceptionThreshold is the faults/sec rate, strictly exceeded,
	// that triggers termination.
	CriticalExceptionThreshold uint64 = 15000
	// lowHeadroomWarnFraction is the RateHeadroom fraction below which a
	// task's tail fault rate is considered "trending toward critical" and
	// worth a warning even though it hasn't crossed CriticalExceptionThreshold.
	lowHeadroomWarnFraction = 0.10
)

// Profiler is the homeostatic profiler (§4.H): a periodic, task-context
// sampler that reads each user-mode Running task's fault counter via an
// atomic exchange-with-zero and terminates tasks whose rate exceeds the
// critical threshold.
type Profiler struct {
	table     *Table
	clock     *Clock
	logger    *logiface.Logger[*stumpy.Event]
	lastRunMS uint64

	quantiles map[int]*pSquareMultiQuantile
}

// NewProfiler constructs a Profiler over the given task table and clock.
func NewProfiler(table *Table, clock *Clock, logger *logiface.Logger[*stumpy.Event]) *Profiler {
	return &Profiler{
		table:     table,
		clock:     clock,
		logger:    logger,
		quantiles: make(map[int]*pSquareMultiQuantile),
	}
}

// RunOnce runs one profiler iteration: if the sampling interval hasn't
// elapsed, it is a no-op (the task-context equivalent of "yield"); 	otherwise
// it samples every user-mode Running task and quarantines any whose
// exchanged-with-zero fault count implies a rate above the critical
// threshold.
func (p *Profiler) RunOnce() {
	now := p.clock.Ticks()
	if now < p.lastRunMS+ProfilerIntervalMS {
		return
	}
	p.lastRunMS = now

	for _, t := range p.table.All() {
		if t.Mode != ModeUser || t.Status() != Running {
			continue
		}

		count := t.ProfilerFaultCount.Swap(0)
		if count == 0 {
			continue
		}

		mq := p.recordRate(t.ID, count)

		rate := clampDiv(count*1000, ProfilerIntervalMS)
		if rate > CriticalExceptionThreshold {
			t.status.Store(Zombie)
			if p.logger != nil {
				p.logger.Info().Int("pid", t.ID).Uint64("rate", rate).Log("homeostatic profiler: high exception rate, apoptosis triggered")
			}
			continue
		}

		if headroom := mq.RateHeadroom(float64(CriticalExceptionThreshold)); headroom < lowHeadroomWarnFraction {
			if p.logger != nil {
				p.logger.Warning().Int("pid", t.ID).Uint64("rate", rate).Float64("headroom", headroom).Log("homeostatic profiler: tail fault rate trending toward critical")
			}
		}
	}
}

func (p *Profiler) recordRate(taskID int, count uint64) *pSquareMultiQuantile {
	mq, ok := p.quantiles[taskID]
	if !ok {
		mq = newPSquareMultiQuantile(0.50, 0.99)
		p.quantiles[taskID] = mq
	}
	rate := float64(count) * 1000 / float64(ProfilerIntervalMS)
	mq.Update(rate)
	return mq
}

// RateQuantiles reports the streaming p50/p99 fault-rate estimate (faults
// per second) the profiler has observed for taskID, or ok=false if no
// samples have been recorded yet. Purely observational: it never feeds back
// into the termination decision in RunOnce.
func (p *Profiler) RateQuantiles(taskID int) (p50, p99 float64, ok bool) {
	mq, exists := p.quantiles[taskID]
	if !exists || mq.Count() == 0 {
		return 0, 0, false
	}
	return mq.Quantile(0), mq.Quantile(1), true
}
