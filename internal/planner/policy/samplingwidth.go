// Package policy holds the per-cycle decision rules of the planner: how wide
// the lateral sampling corridor may open, and which candidate trajectory is
// committed. Both are pure functions over the cycle's inputs so they can be
// exercised exhaustively in tests.
package policy

import (
	"github.com/banshee-data/drive.report/internal/monitoring"
	"github.com/banshee-data/drive.report/internal/planner/frenet"
)

// LaneWidths carries the widths (metres) of the current lane and its
// immediate neighbours at the sampling origin. A zero neighbour width means
// no such lane exists there.
type LaneWidths struct {
	Current float64
	Left    float64
	Right   float64
}

// ComputeCorridor derives the lateral sampling bounds for one cycle.
//
// Staying in lane, the corridor is symmetric: (laneWidth - vehicleWidth)/2 to
// each side, less the safety margin. A lane change opens the corridor toward
// the target lane's centreline while the far boundary of the departed lane
// still caps the other side. A target lane that is not an immediate,
// existing neighbour falls back to the stay-in-lane corridor; that is a
// policy degradation, not an error.
//
// Lane ids ascend to the right: target == current-1 is a left change.
func ComputeCorridor(currentLaneID, targetLaneID int, vehicleWidth, safetyMargin float64, widths LaneWidths) frenet.Corridor {
	inLane := halfCorridor(widths.Current, vehicleWidth, safetyMargin)
	corridor := frenet.Corridor{Left: inLane, Right: inLane}

	switch targetLaneID - currentLaneID {
	case 0:
		return corridor
	case -1: // left change
		if widths.Left <= 0 {
			monitoring.Logf("[policy] target lane %d has no geometry, keeping in-lane corridor", targetLaneID)
			return corridor
		}
		corridor.Left = widths.Current/2 + widths.Left/2 - vehicleWidth/2 - safetyMargin
		if corridor.Left < 0 {
			corridor.Left = 0
		}
		return corridor
	case 1: // right change
		if widths.Right <= 0 {
			monitoring.Logf("[policy] target lane %d has no geometry, keeping in-lane corridor", targetLaneID)
			return corridor
		}
		corridor.Right = widths.Current/2 + widths.Right/2 - vehicleWidth/2 - safetyMargin
		if corridor.Right < 0 {
			corridor.Right = 0
		}
		return corridor
	default:
		monitoring.Logf("[policy] target lane %d is not adjacent to lane %d, keeping in-lane corridor", targetLaneID, currentLaneID)
		return corridor
	}
}

func halfCorridor(laneWidth, vehicleWidth, safetyMargin float64) float64 {
	half := (laneWidth-vehicleWidth)/2 - safetyMargin
	if half < 0 {
		return 0
	}
	return half
}
