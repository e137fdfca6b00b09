package policy

import (
	"errors"

	"github.com/banshee-data/drive.report/internal/planner/frenet"
)

// ErrNoCandidates signals that the cycle produced no feasible trajectory and
// the fail-safe path must run.
var ErrNoCandidates = errors.New("policy: no feasible candidates")

// SelectTrajectory picks one candidate from the cost-ordered list.
//
// The hysteresis rule: prefer the cheapest candidate that stays in the
// current lane; switch lanes only when no same-lane candidate exists, or when
// the best different-lane candidate undercuts the best same-lane cost by more
// than margin. A lane change has to be decisively better, not marginally, so
// the selection cannot oscillate between near-equal options.
func SelectTrajectory(candidates []frenet.Candidate, currentLaneID int, margin float64) (frenet.Candidate, error) {
	if len(candidates) == 0 {
		return frenet.Candidate{}, ErrNoCandidates
	}

	var bestSame, bestOther *frenet.Candidate
	for i := range candidates {
		c := &candidates[i]
		if c.LaneID == currentLaneID {
			if bestSame == nil || c.Cost < bestSame.Cost {
				bestSame = c
			}
		} else {
			if bestOther == nil || c.Cost < bestOther.Cost {
				bestOther = c
			}
		}
	}

	if bestSame == nil {
		return *bestOther, nil
	}
	if bestOther != nil && bestOther.Cost < bestSame.Cost-margin {
		return *bestOther, nil
	}
	return *bestSame, nil
}
