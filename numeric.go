package mira

import "golang.org/x/exp/constraints"

// clampDiv performs integer division with a floor of zero, used by the
// homeostatic profiler's and adaptive controller's rate math wherever a
// zero or negative denominator would otherwise be reachable through caller
// error.
func clampDiv[T constraints.Integer](n, d T) T {
	if d <= 0 {
		return 0
	}
	return n / d
}

// maxOf returns the greater of two ordered values, used wherever the
// fixed-point controller math needs a generic min/max instead of a
// type-specific one (int64 fixed-point values here, but shared with any
// other ordered counter in the package).
func maxOf[T constraints.Ordered](a, b T) T {
	if a > b {
		return a
	}
	return b
}

// minOf returns the lesser of two ordered values.
func minOf[T constraints.Ordered](a, b T) T {
	if a < b {
		return a
	}
	return b
}
