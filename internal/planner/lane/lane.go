// Package lane models the reference lane geometry the planner follows: the
// wholesale-replaced global waypoint sequence, the local window selected
// around the vehicle each cycle, and the smoothed reference spline fitted
// over that window for Frenet-frame conversions.
package lane

import (
	"errors"
	"fmt"
	"math"
)

// ErrOffMap is returned when the vehicle is too far from every lane waypoint
// for a local window to make sense.
var ErrOffMap = errors.New("lane: vehicle is off the reference map")

// maxOffMapDistance is how far (metres) the vehicle may sit from the nearest
// waypoint before the lane input is considered unusable for this cycle.
const maxOffMapDistance = 25.0

// Waypoint is one sample of the reference lane geometry with its per-lane
// metadata. Widths of the adjacent lanes are zero when no such lane exists.
type Waypoint struct {
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Heading   float64 `json:"heading"`   // radians
	Curvature float64 `json:"curvature"` // 1/m

	LaneID     int     `json:"lane_id"`
	LaneWidth  float64 `json:"lane_width"`  // metres
	LeftWidth  float64 `json:"left_width"`  // adjacent left lane width, 0 if none
	RightWidth float64 `json:"right_width"` // adjacent right lane width, 0 if none
}

// Lane is an ordered waypoint sequence describing the reference path. It is
// replaced wholesale on each new reference-path input and never partially
// mutated, so a held pointer is always internally consistent.
type Lane struct {
	Waypoints []Waypoint
	MapHeight float64 // elevation carried through to 3D visualisation outputs
}

// NearestIndex returns the index of the waypoint closest to (x, y), or -1 on
// an empty lane.
func (l *Lane) NearestIndex(x, y float64) int {
	best := -1
	bestDist := math.MaxFloat64
	for i, wp := range l.Waypoints {
		d := math.Hypot(wp.X-x, wp.Y-y)
		if d < bestDist {
			bestDist = d
			best = i
		}
	}
	return best
}

// Window selects the local waypoint subset around (x, y): `behind` metres of
// chord length before the nearest waypoint and `ahead` metres after it. The
// window keeps the original ordering. Returns ErrOffMap when the nearest
// waypoint is farther than the off-map limit, and an error when fewer than
// minCount waypoints survive.
func (l *Lane) Window(x, y, behind, ahead float64, minCount int) (*Lane, error) {
	if len(l.Waypoints) == 0 {
		return nil, fmt.Errorf("lane: no waypoints in reference path")
	}
	nearest := l.NearestIndex(x, y)
	wp := l.Waypoints[nearest]
	if math.Hypot(wp.X-x, wp.Y-y) > maxOffMapDistance {
		return nil, ErrOffMap
	}

	// Walk backwards accumulating chord length until `behind` is covered.
	start := nearest
	acc := 0.0
	for start > 0 && acc < behind {
		a, b := l.Waypoints[start-1], l.Waypoints[start]
		acc += math.Hypot(b.X-a.X, b.Y-a.Y)
		start--
	}

	// Walk forwards accumulating chord length until `ahead` is covered.
	end := nearest
	acc = 0.0
	for end < len(l.Waypoints)-1 && acc < ahead {
		a, b := l.Waypoints[end], l.Waypoints[end+1]
		acc += math.Hypot(b.X-a.X, b.Y-a.Y)
		end++
	}

	window := l.Waypoints[start : end+1]
	if len(window) < minCount {
		return nil, fmt.Errorf("lane: only %d local waypoints, need %d", len(window), minCount)
	}

	out := &Lane{
		Waypoints: make([]Waypoint, len(window)),
		MapHeight: l.MapHeight,
	}
	copy(out.Waypoints, window)
	return out, nil
}
