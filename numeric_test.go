package mira

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClampDiv(t *testing.T) {
	assert.Equal(t, 5, clampDiv(10, 2))
	assert.Equal(t, 0, clampDiv(10, 0))
	assert.Equal(t, 0, clampDiv(10, -1))
	assert.Equal(t, uint64(3), clampDiv(uint64(7), uint64(2)))
}

func TestMaxOf(t *testing.T) {
	assert.Equal(t, 5, maxOf(5, 3))
	assert.Equal(t, 3, maxOf(1, 3))
	assert.Equal(t, 2.5, maxOf(2.5, 2.5))
}

func TestMinOf(t *testing.T) {
	assert.Equal(t, 3, minOf(5, 3))
	assert.Equal(t, 1, minOf(1, 3))
	assert.Equal(t, int64(-4), minOf(int64(-4), int64(7)))
}
