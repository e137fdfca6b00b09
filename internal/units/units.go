// Package units provides shared angle and speed conversions used across the
// planner. Angles are radians and speeds metres per second unless a function
// name says otherwise.
package units

import "math"

// WrapAngle normalises an angle to the range (-π, π].
func WrapAngle(rad float64) float64 {
	for rad > math.Pi {
		rad -= 2 * math.Pi
	}
	for rad <= -math.Pi {
		rad += 2 * math.Pi
	}
	return rad
}

// AngleDiff returns the signed smallest difference a-b, wrapped to (-π, π].
func AngleDiff(a, b float64) float64 {
	return WrapAngle(a - b)
}

// Clamp limits v to the inclusive range [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
