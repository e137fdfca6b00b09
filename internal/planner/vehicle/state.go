// Package vehicle defines the immutable per-cycle vehicle state snapshots
// consumed by the planning loop and controllers. A snapshot is captured at
// ingestion and never mutated afterwards; the planning loop always works on
// copies so a late-arriving odometry update cannot tear a cycle in half.
package vehicle

import "math"

// State is the vehicle pose and motion at one instant, in the planning frame.
type State struct {
	X         float64 // metres
	Y         float64 // metres
	Yaw       float64 // radians, planning frame
	Speed     float64 // m/s, along heading
	YawRate   float64 // rad/s
	Curvature float64 // 1/m, signed; derived from yaw rate and speed

	TUnixNanos int64 // capture time
}

// minSpeedForCurvature guards the yaw-rate/speed division near standstill.
const minSpeedForCurvature = 0.1

// NewState builds a State from raw odometry values, deriving curvature from
// yaw rate and speed. Below minSpeedForCurvature the curvature is reported
// as zero rather than blowing up.
func NewState(x, y, yaw, speed, yawRate float64, tUnixNanos int64) State {
	s := State{
		X:          x,
		Y:          y,
		Yaw:        yaw,
		Speed:      speed,
		YawRate:    yawRate,
		TUnixNanos: tUnixNanos,
	}
	if math.Abs(speed) >= minSpeedForCurvature {
		s.Curvature = yawRate / speed
	}
	return s
}

// FrontAxle derives the front-axle state from a baselink state by projecting
// the wheelbase along the current heading. Speed and rates carry over
// unchanged; the Stanley controller reads cross-track error at this point.
func (s State) FrontAxle(wheelbase float64) State {
	front := s
	front.X = s.X + wheelbase*math.Cos(s.Yaw)
	front.Y = s.Y + wheelbase*math.Sin(s.Yaw)
	return front
}

// DistanceTo returns the straight-line distance from the state to (x, y).
func (s State) DistanceTo(x, y float64) float64 {
	return math.Hypot(x-s.X, y-s.Y)
}
