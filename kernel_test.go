package mira

import (
	"context"
	"testing"

	"mira/arch"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// finiteTickSource yields n ticks then reports stopped.
type finiteTickSource struct {
	remaining int
	tick      uint64
}

func (s *finiteTickSource) Next() (uint64, bool) {
	if s.remaining <= 0 {
		return 0, false
	}
	s.remaining--
	s.tick++
	return s.tick, true
}

func newTestKernel(t *testing.T) *Kernel {
	t.Helper()
	k, err := New(WithTaskCapacity(4), WithQueueCapacity(4), WithHeap(1<<20))
	require.NoError(t, err)
	return k
}

func TestKernel_New_DefaultsWireEveryCollaborator(t *testing.T) {
	k := newTestKernel(t)
	assert.NotNil(t, k.alloc)
	assert.NotNil(t, k.table)
	assert.NotNil(t, k.queue)
	assert.NotNil(t, k.scheduler)
	assert.NotNil(t, k.clock)
	assert.NotNil(t, k.sensor)
	assert.NotNil(t, k.apoptosis)
	assert.NotNil(t, k.profiler)
	assert.NotNil(t, k.controller)
}

func TestKernel_CreateAndStartTask(t *testing.T) {
	k := newTestKernel(t)
	task, err := k.CreateTaskFromEntry(func() {}, "worker", ModeUser)
	require.NoError(t, err)
	assert.Equal(t, NotRunning, task.Status())

	k.StartTask(task.ID)
	assert.Equal(t, Running, task.Status())
}

func TestKernel_CreateTaskFromEntry_WrapsTableFullError(t *testing.T) {
	k, err := New(WithTaskCapacity(1))
	require.NoError(t, err)
	_, err = k.CreateTaskFromEntry(func() {}, "only", ModeUser)
	require.NoError(t, err)

	_, err = k.CreateTaskFromEntry(func() {}, "overflow", ModeUser)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTableFull)
	assert.Contains(t, err.Error(), `"overflow"`)
}

func TestKernel_TickDrivesEveryCollaborator(t *testing.T) {
	k := newTestKernel(t)
	task, err := k.CreateTaskFromEntry(func() {}, "worker", ModeUser)
	require.NoError(t, err)
	k.StartTask(task.ID)

	var frame arch.Context
	next := k.Tick(&frame)
	require.NotNil(t, next)
	assert.Equal(t, task.ID, k.CurrentTaskID())
}

func TestKernel_Snapshot_ReflectsTaskState(t *testing.T) {
	k := newTestKernel(t)
	task, err := k.CreateTaskFromEntry(func() {}, "worker", ModeUser)
	require.NoError(t, err)
	k.StartTask(task.ID)

	snap := k.Snapshot()
	require.Len(t, snap.Tasks, 1)
	assert.Equal(t, task.ID, snap.Tasks[0].ID)
	assert.Equal(t, "worker", snap.Tasks[0].Name)
	assert.Equal(t, Running, snap.Tasks[0].Status)
	assert.Equal(t, 1, snap.TaskCount)
	assert.Equal(t, 1, snap.ActiveTaskCount)
}

func TestKernel_PageFaultHandler_KernelOriginParksCPU(t *testing.T) {
	k := newTestKernel(t)
	frame := &arch.Frame{CS: arch.KernelCodeSelector}

	k.PageFaultHandler(frame, nil)

	assert.True(t, k.cpu.Parked())
}

func TestKernel_Run_StopsWhenTickSourceExhausts(t *testing.T) {
	k := newTestKernel(t)
	src := &finiteTickSource{remaining: 5}

	err := k.Run(context.Background(), src)
	assert.NoError(t, err)
	assert.Equal(t, kernelTerminated, k.state.Load())
}

func TestKernel_Run_ReturnsAlreadyRunningAfterTerminated(t *testing.T) {
	k := newTestKernel(t)
	src := &finiteTickSource{remaining: 1}
	require.NoError(t, k.Run(context.Background(), src))

	err := k.Run(context.Background(), &finiteTickSource{remaining: 1})
	assert.ErrorIs(t, err, ErrKernelAlreadyRunning)
}

func TestKernel_Run_RespectsContextCancellation(t *testing.T) {
	k := newTestKernel(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := k.Run(ctx, &finiteTickSource{remaining: 100})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestKernel_Shutdown_ReturnsContextErrorIfRunNeverStarted(t *testing.T) {
	k := newTestKernel(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := k.Shutdown(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestKernel_RateQuantiles_NoSamplesYet(t *testing.T) {
	k := newTestKernel(t)
	task, err := k.CreateTaskFromEntry(func() {}, "a", ModeUser)
	require.NoError(t, err)

	_, _, ok := k.RateQuantiles(task.ID)
	assert.False(t, ok)
}

func TestKernel_Reclaimed_StartsAtZero(t *testing.T) {
	k := newTestKernel(t)
	assert.Zero(t, k.Reclaimed())
}
