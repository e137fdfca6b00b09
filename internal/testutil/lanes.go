// Package testutil provides shared test fixtures for planner tests.
package testutil

import (
	"math"

	"github.com/banshee-data/drive.report/internal/planner/lane"
)

// StraightLane builds a lane running along +X at 2m waypoint spacing in
// lane 2 with 3.5m lanes on both sides.
func StraightLane(length float64) *lane.Lane {
	n := int(length/2) + 1
	l := &lane.Lane{Waypoints: make([]lane.Waypoint, n)}
	for i := range l.Waypoints {
		l.Waypoints[i] = lane.Waypoint{
			X: float64(i) * 2, Y: 0,
			LaneID: 2, LaneWidth: 3.5, LeftWidth: 3.5, RightWidth: 3.5,
		}
	}
	return l
}

// CurvedLane builds a lane following a single sine period of the given
// amplitude over length, with the same lane metadata as StraightLane.
func CurvedLane(length, amplitude float64) *lane.Lane {
	n := int(length/2) + 1
	k := 2 * math.Pi / length
	l := &lane.Lane{Waypoints: make([]lane.Waypoint, n)}
	for i := range l.Waypoints {
		x := float64(i) * 2
		l.Waypoints[i] = lane.Waypoint{
			X: x, Y: amplitude * math.Sin(k*x),
			LaneID: 2, LaneWidth: 3.5, LeftWidth: 3.5, RightWidth: 3.5,
		}
	}
	return l
}
