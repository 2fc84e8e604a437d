package mira

import (
	"container/heap"
	"sync/atomic"

	"mira/arch"
)

// TickSource supplies the periodic timer interrupt the glue code invokes
// the scheduler from. A simulated source drives tests at idealized timing;
// cmd/mirasim's host driver can back it with a real OS timer.
type TickSource interface {
	// Next blocks until the next tick and returns the monotonic tick count
	// in milliseconds since boot. Returns ok=false if the source has been
	// stopped.
	Next() (ticks uint64, ok bool)
}

// sleepEntry is one task waiting on the timer-driven wake heap, ordered by
// wakeup tick (earliest first), matching the teacher's container/heap-based
// timer ordering.
type sleepEntry struct {
	wakeTick uint64
	taskID   int
	index    int
}

type sleepHeap []*sleepEntry

func (h sleepHeap) Len() int            { return len(h) }
func (h sleepHeap) Less(i, j int) bool  { return h[i].wakeTick < h[j].wakeTick }
func (h sleepHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i]; h[i].index = i; h[j].index = j }
func (h *sleepHeap) Push(x interface{}) {
	e := x.(*sleepEntry)
	e.index = len(*h)
	*h = append(*h, e)
}
func (h *sleepHeap) Pop() interface{} {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}

// Clock is the timer-tick glue (§4.E): on each tick it increments the
// monotonic tick counter, wakes any Sleeping tasks whose wakeup_tick has
// arrived, and invokes the scheduler with the saved pre-interrupt register
// image.
type Clock struct {
	ticks     atomic.Uint64
	scheduler *Scheduler
	table     *Table
	sleeping  sleepHeap
}

// NewClock constructs a Clock driving the given scheduler.
func NewClock(scheduler *Scheduler, table *Table) *Clock {
	return &Clock{scheduler: scheduler, table: table}
}

// Ticks returns the current monotonic tick count in milliseconds since
// boot.
func (c *Clock) Ticks() uint64 { return c.ticks.Load() }

// Sleep marks task as Sleeping until wakeTick, registering it on the
// wake heap so the next qualifying tick restores it to Running.
func (c *Clock) Sleep(t *Task, wakeTick uint64) {
	t.status.Store(Sleeping)
	t.WakeupTick = wakeTick
	heap.Push(&c.sleeping, &sleepEntry{wakeTick: wakeTick, taskID: t.ID})
}

// Tick runs one timer-interrupt cycle: advance the tick counter, wake any
// due sleepers, and invoke the scheduler.
func (c *Clock) Tick(prev *arch.Context) *arch.Context {
	now := c.ticks.Add(1)

	for c.sleeping.Len() > 0 && c.sleeping[0].wakeTick <= now {
		e := heap.Pop(&c.sleeping).(*sleepEntry)
		if t := c.table.Get(e.taskID); t != nil && t.Status() == Sleeping {
			t.status.TryTransition(Sleeping, Running)
		}
	}

	return c.scheduler.Schedule(prev)
}
