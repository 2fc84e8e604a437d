package mira

import (
	"testing"

	"mira/arch"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newAckedZombie builds a single-task table/scheduler pair, dispatches the
// task, marks it Zombie, and drives one more Schedule so the scheduler's
// eviction-ack slot already holds the task's id before the apoptosis worker
// ever looks at it. This sidesteps awaitHandshake's spin-wait, which would
// otherwise hang forever in a single-goroutine test if the ack were never
// produced.
func newAckedZombie(t *testing.T) (*Table, *Scheduler, *Task) {
	t.Helper()
	tb := newTestTable(t, 2)
	cpu := &arch.CPU{}
	sched := NewScheduler(tb, cpu, nil)

	task, err := tb.CreateFromEntry(func() {}, "victim", ModeUser)
	require.NoError(t, err)
	tb.Start(task.ID)

	ctx := sched.Schedule(nil)
	task.status.Store(Zombie)
	sched.Schedule(ctx)

	require.Equal(t, task.ID, sched.EvictionAck())
	return tb, sched, task
}

func TestApoptosisWorker_RunOnceDrainsQueuedZombie(t *testing.T) {
	tb, sched, task := newAckedZombie(t)
	queue := NewQueue(4)
	require.NoError(t, queue.Enqueue(task.ID))
	alloc := NewAllocator(1024)
	worker := NewApoptosisWorker(queue, sched, tb, alloc, nil)

	worker.RunOnce()

	assert.Equal(t, 1, worker.Reclaimed())
	assert.Equal(t, noEvictionAck, sched.EvictionAck())
}

func TestApoptosisWorker_RunOnceOnEmptyQueueIsNoop(t *testing.T) {
	tb := newTestTable(t, 1)
	cpu := &arch.CPU{}
	sched := NewScheduler(tb, cpu, nil)
	queue := NewQueue(4)
	alloc := NewAllocator(1024)
	worker := NewApoptosisWorker(queue, sched, tb, alloc, nil)

	worker.RunOnce()

	assert.Zero(t, worker.Reclaimed())
}

func TestApoptosisWorker_QueueDepthTracksLength(t *testing.T) {
	tb, sched, task := newAckedZombie(t)
	queue := NewQueue(4)
	require.NoError(t, queue.Enqueue(task.ID))
	alloc := NewAllocator(1024)
	worker := NewApoptosisWorker(queue, sched, tb, alloc, nil)

	worker.RunOnce()

	depth := worker.QueueDepth()
	assert.Equal(t, 0, depth.Current)
	assert.Equal(t, 1, depth.Max)
}
