package mira

import (
	"sync/atomic"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"golang.org/x/sys/cpu"
)

// Test_sizeOfCacheLine verifies the sizeOfCacheLine constant used to pad
// FastStatus is at least as large as this platform's real cache line, and
// an exact multiple of it, the same check the teacher runs for its own
// FastState padding.
func Test_sizeOfCacheLine(t *testing.T) {
	actual := unsafe.Sizeof(cpu.CacheLinePad{})
	assert.GreaterOrEqual(t, uintptr(sizeOfCacheLine), actual)
	assert.Zero(t, uintptr(sizeOfCacheLine)%actual)
}

func TestSizeOf_AtomicUint64(t *testing.T) {
	assert.Equal(t, uintptr(sizeOfAtomicUint64), unsafe.Sizeof(atomic.Uint64{}))
}

// TestFastStatusSize verifies FastStatus's hand-placed padding totals
// exactly one cache line, so neighboring tasks' status cells never
// false-share.
func TestFastStatusSize(t *testing.T) {
	var s FastStatus
	assert.Equal(t, uintptr(sizeOfCacheLine), unsafe.Sizeof(s))
}
