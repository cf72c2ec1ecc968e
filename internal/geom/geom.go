// Package geom holds the saturating integer helpers used wherever pixel
// geometry crosses a float or width boundary. Every helper clamps instead of
// wrapping or panicking, so a bad coordinate degrades to an edge value.
package geom

import "math"

// SubClamp returns a-b, or 0 when b > a.
func SubClamp(a, b int) int {
	if b >= a {
		return 0
	}
	return a - b
}

// AddSat returns a+b clamped to the int range.
func AddSat(a, b int) int {
	if b > 0 && a > math.MaxInt-b {
		return math.MaxInt
	}
	if b < 0 && a < math.MinInt-b {
		return math.MinInt
	}
	return a + b
}

// FloorInt truncates a non-negative float toward zero and saturates at
// math.MaxInt. NaN and negative values map to 0.
func FloorInt(v float64) int {
	if math.IsNaN(v) || v <= 0 {
		return 0
	}
	if v >= math.MaxInt {
		return math.MaxInt
	}
	return int(v)
}
