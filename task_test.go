package mira

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTable(t *testing.T, capacity int) *Table {
	t.Helper()
	alloc := NewAllocator(1 << 20)
	return NewTable(alloc, capacity, 256, 256)
}

func TestTable_CreateFromEntry(t *testing.T) {
	tb := newTestTable(t, 4)

	task, err := tb.CreateFromEntry(func() {}, "worker", ModeUser)
	require.NoError(t, err)
	assert.Equal(t, 0, task.ID)
	assert.Equal(t, "worker", task.Name)
	assert.Equal(t, ModeUser, task.Mode)
	assert.Equal(t, NotRunning, task.Status())
	assert.Equal(t, PriorityNormal, task.Priority())
	assert.Len(t, task.KernelStack, 256)
	assert.Len(t, task.UserStack, 256)
	assert.False(t, task.HasRun(), "RIP must be zero iff never dispatched")
}

func TestTable_KernelTaskHasNoUserStack(t *testing.T) {
	tb := newTestTable(t, 4)

	task, err := tb.CreateFromEntry(func() {}, "kworker", ModeKernel)
	require.NoError(t, err)
	assert.Nil(t, task.UserStack)
}

func TestTable_StableIDs(t *testing.T) {
	tb := newTestTable(t, 4)

	a, err := tb.CreateFromEntry(func() {}, "a", ModeUser)
	require.NoError(t, err)
	b, err := tb.CreateFromEntry(func() {}, "b", ModeUser)
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID)
	assert.Same(t, a, tb.Get(a.ID))
	assert.Same(t, b, tb.Get(b.ID))
}

func TestTable_TableFull(t *testing.T) {
	tb := newTestTable(t, 1)

	_, err := tb.CreateFromEntry(func() {}, "only", ModeUser)
	require.NoError(t, err)

	_, err = tb.CreateFromEntry(func() {}, "overflow", ModeUser)
	assert.ErrorIs(t, err, ErrTableFull)
}

func TestTable_StartTransitionsToRunning(t *testing.T) {
	tb := newTestTable(t, 2)
	task, err := tb.CreateFromEntry(func() {}, "a", ModeUser)
	require.NoError(t, err)

	tb.Start(task.ID)
	assert.Equal(t, Running, task.Status())
}

func TestTable_StartUnknownIDIsNoop(t *testing.T) {
	tb := newTestTable(t, 2)
	assert.NotPanics(t, func() { tb.Start(999) })
}

func TestTable_ActiveCount(t *testing.T) {
	tb := newTestTable(t, 3)
	a, err := tb.CreateFromEntry(func() {}, "a", ModeUser)
	require.NoError(t, err)
	b, err := tb.CreateFromEntry(func() {}, "b", ModeUser)
	require.NoError(t, err)

	assert.Equal(t, 2, tb.Count())
	assert.Equal(t, 2, tb.ActiveCount())

	b.status.Store(Zombie)
	assert.Equal(t, 2, tb.Count(), "zombie tasks are never removed from the table")
	assert.Equal(t, 1, tb.ActiveCount())
	_ = a
}

func TestTask_SkipCounterNeverExceedsPriority(t *testing.T) {
	tb := newTestTable(t, 1)
	task, err := tb.CreateFromEntry(func() {}, "a", ModeUser)
	require.NoError(t, err)

	task.SetPriority(PriorityLow)
	task.skipCounter.Store(int32(task.Priority()))
	assert.LessOrEqual(t, task.SkipCounter(), int(task.Priority()))
}

func TestTable_LastUserTask(t *testing.T) {
	tb := newTestTable(t, 2)
	assert.Nil(t, tb.LastUserTask())

	task, err := tb.CreateFromEntry(func() {}, "a", ModeUser)
	require.NoError(t, err)
	tb.lastUserTask = task.ID
	assert.Same(t, task, tb.LastUserTask())
}
