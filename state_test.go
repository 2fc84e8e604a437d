package mira

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTaskStatusString(t *testing.T) {
	cases := []struct {
		status TaskStatus
		want   string
	}{
		{NotRunning, "NotRunning"},
		{Running, "Running"},
		{Sleeping, "Sleeping"},
		{Zombie, "Zombie"},
		{TaskStatus(99), "Unknown"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, tc.status.String())
	}
}

func TestFastStatus_LoadStore(t *testing.T) {
	s := newFastStatus(NotRunning)
	assert.Equal(t, NotRunning, s.Load())

	s.Store(Running)
	assert.Equal(t, Running, s.Load())
	assert.False(t, s.IsZombie())

	s.Store(Zombie)
	assert.True(t, s.IsZombie())
}

func TestFastStatus_TryTransition(t *testing.T) {
	s := newFastStatus(Running)

	assert.False(t, s.TryTransition(Sleeping, Zombie), "transition from wrong prior state must fail")
	assert.Equal(t, Running, s.Load())

	assert.True(t, s.TryTransition(Running, Sleeping))
	assert.Equal(t, Sleeping, s.Load())

	assert.True(t, s.TryTransition(Sleeping, Running))
	assert.Equal(t, Running, s.Load())
}

func TestPriorityString(t *testing.T) {
	cases := []struct {
		p    Priority
		want string
	}{
		{PriorityNormal, "Normal"},
		{PriorityLow, "Low"},
		{PriorityLower, "Lower"},
		{PriorityIdle, "Idle"},
		{Priority(7), "Unknown"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, tc.p.String())
	}
}

// TestPriorityRatios pins the Fibonacci-like spacing the scheduler's skip
// counters rely on: only the ratios are semantically meaningful, but the
// exact constants must not drift since the adaptive controller depends on
// their relative throttling intensity.
func TestPriorityRatios(t *testing.T) {
	assert.Equal(t, Priority(0), PriorityNormal)
	assert.Equal(t, Priority(55), PriorityLow)
	assert.Equal(t, Priority(89), PriorityLower)
	assert.Equal(t, Priority(144), PriorityIdle)
	assert.Less(t, PriorityNormal, PriorityLow)
	assert.Less(t, PriorityLow, PriorityLower)
	assert.Less(t, PriorityLower, PriorityIdle)
}
