package mira

// These constants are verified via unit tests.
const (
	// sizeOfCacheLine is the size of a CPU cache line.
	// 64 bytes is standard for x86-64.
	// 128 bytes is standard for Apple Silicon (M1/M2/M3) and other ARM64.
	// We use 128 to satisfy the largest common alignment requirement. Used
	// by state.go's FastStatus to size its hand-placed padding so the cell
	// occupies exactly one cache line.
	sizeOfCacheLine = 128

	// sizeOfAtomicUint64 is the size of an atomic.Uint64 variable.
	sizeOfAtomicUint64 = 8

	// sizeOfAtomicUint32 is the size of an atomic.Uint32 variable, as held
	// by state.go's FastStatus.
	sizeOfAtomicUint32 = 4
)
