package mira

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestQueueDepthMetrics_TracksCurrentAndMax(t *testing.T) {
	var m QueueDepthMetrics
	m.Update(3)
	m.Update(7)
	m.Update(1)

	snap := m.Snapshot()
	assert.Equal(t, 1, snap.Current)
	assert.Equal(t, 7, snap.Max)
}

func TestQueueDepthMetrics_AvgSeedsFromFirstObservation(t *testing.T) {
	var m QueueDepthMetrics
	m.Update(5)
	snap := m.Snapshot()
	assert.Equal(t, 5.0, snap.Avg)
}

func TestQueueDepthMetrics_AvgIsEMASmoothed(t *testing.T) {
	var m QueueDepthMetrics
	m.Update(0)
	m.Update(10)
	snap := m.Snapshot()
	// 0.9*0 + 0.1*10 = 1.0
	assert.InDelta(t, 1.0, snap.Avg, 1e-9)
}

func TestExceptionRateCounter_ZeroWhenIdle(t *testing.T) {
	c := NewExceptionRateCounter(time.Second, 100*time.Millisecond)
	assert.Zero(t, c.Rate())
}

func TestExceptionRateCounter_CountsIncrements(t *testing.T) {
	c := NewExceptionRateCounter(time.Second, 100*time.Millisecond)
	for i := 0; i < 10; i++ {
		c.Increment()
	}
	assert.Greater(t, c.Rate(), 0.0)
}

func TestExceptionRateCounter_DefaultsAppliedForInvalidWindow(t *testing.T) {
	c := NewExceptionRateCounter(0, 0)
	assert.NotEmpty(t, c.buckets)
	assert.Equal(t, 100*time.Millisecond, c.bucketSize)
}

func TestExceptionRateCounter_BucketSizeExceedingWindowFallsBack(t *testing.T) {
	c := NewExceptionRateCounter(time.Second, 10*time.Second)
	assert.Equal(t, 100*time.Millisecond, c.bucketSize)
}
