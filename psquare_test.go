package mira

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPSquareQuantile_MedianOfUniformSamples(t *testing.T) {
	q := newPSquareQuantile(0.5)
	for i := 1; i <= 100; i++ {
		q.Update(float64(i))
	}
	assert.InDelta(t, 50, q.Quantile(), 10)
	assert.Equal(t, 100, q.Count())
	assert.Equal(t, 100.0, q.Max())
}

func TestPSquareQuantile_FewerThanFiveSamplesUsesExactOrder(t *testing.T) {
	q := newPSquareQuantile(0.5)
	q.Update(3)
	q.Update(1)
	q.Update(2)
	assert.Equal(t, 3, q.Count())
	// p=0.5 over 3 sorted samples [1,2,3]: index = int(2*0.5) = 1 -> value 2
	assert.Equal(t, 2.0, q.Quantile())
}

func TestPSquareQuantile_ZeroObservations(t *testing.T) {
	q := newPSquareQuantile(0.99)
	assert.Zero(t, q.Quantile())
	assert.Zero(t, q.Count())
	assert.Zero(t, q.Max())
}

func TestPSquareQuantile_ClampsOutOfRangePercentile(t *testing.T) {
	low := newPSquareQuantile(-1)
	high := newPSquareQuantile(2)
	assert.Equal(t, 0.0, low.p)
	assert.Equal(t, 1.0, high.p)
}

func TestPSquareMultiQuantile_TracksMeanSumMax(t *testing.T) {
	m := newPSquareMultiQuantile(0.5, 0.99)
	for _, v := range []float64{1, 2, 3, 4, 5} {
		m.Update(v)
	}
	assert.Equal(t, 5, m.Count())
	assert.Equal(t, 15.0, m.Sum())
	assert.Equal(t, 5.0, m.Max())
	assert.Equal(t, 3.0, m.Mean())
}

func TestPSquareMultiQuantile_QuantileIndexOutOfRange(t *testing.T) {
	m := newPSquareMultiQuantile(0.5)
	m.Update(10)
	assert.Zero(t, m.Quantile(-1))
	assert.Zero(t, m.Quantile(5))
}

func TestPSquareMultiQuantile_ReturnsOrderedP50P99(t *testing.T) {
	m := newPSquareMultiQuantile(0.5, 0.99)
	for i := 1; i <= 200; i++ {
		m.Update(float64(i))
	}
	p50 := m.Quantile(0)
	p99 := m.Quantile(1)
	assert.Less(t, p50, p99)
}

func TestPSquareMultiQuantile_RateHeadroom_NoSamplesIsFullHeadroom(t *testing.T) {
	m := newPSquareMultiQuantile(0.50, 0.99)
	assert.Equal(t, 1.0, m.RateHeadroom(15000))
}

func TestPSquareMultiQuantile_RateHeadroom_NonPositiveThresholdIsFullHeadroom(t *testing.T) {
	m := newPSquareMultiQuantile(0.50, 0.99)
	m.Update(100)
	assert.Equal(t, 1.0, m.RateHeadroom(0))
}

func TestPSquareMultiQuantile_RateHeadroom_ShrinksAsRateApproachesThreshold(t *testing.T) {
	m := newPSquareMultiQuantile(0.50, 0.99)
	for i := 0; i < 10; i++ {
		m.Update(9000)
	}
	headroom := m.RateHeadroom(10000)
	assert.InDelta(t, 0.1, headroom, 0.05)
}

func TestPSquareMultiQuantile_RateHeadroom_ClampsAtZeroPastThreshold(t *testing.T) {
	m := newPSquareMultiQuantile(0.50, 0.99)
	for i := 0; i < 10; i++ {
		m.Update(20000)
	}
	assert.Zero(t, m.RateHeadroom(15000))
}

func TestPSquareMultiQuantile_Reset(t *testing.T) {
	m := newPSquareMultiQuantile(0.5)
	for i := 0; i < 10; i++ {
		m.Update(float64(i))
	}
	m.Reset()
	assert.Zero(t, m.Count())
	assert.Zero(t, m.Sum())
	assert.Zero(t, m.Max())
}
