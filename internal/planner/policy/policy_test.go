package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/drive.report/internal/planner/frenet"
)

func TestComputeCorridorStayInLane(t *testing.T) {
	t.Parallel()

	t.Run("symmetric bounds of (W-Vw)/2", func(t *testing.T) {
		t.Parallel()
		c := ComputeCorridor(2, 2, 1.9, 0, LaneWidths{Current: 3.5, Left: 3.5, Right: 3.5})
		assert.InDelta(t, 0.8, c.Left, 1e-12)
		assert.InDelta(t, 0.8, c.Right, 1e-12)
	})

	t.Run("safety margin narrows both sides", func(t *testing.T) {
		t.Parallel()
		c := ComputeCorridor(2, 2, 1.9, 0.1, LaneWidths{Current: 3.5})
		assert.InDelta(t, 0.7, c.Left, 1e-12)
		assert.InDelta(t, 0.7, c.Right, 1e-12)
	})

	t.Run("vehicle wider than lane clamps to zero", func(t *testing.T) {
		t.Parallel()
		c := ComputeCorridor(2, 2, 4.0, 0, LaneWidths{Current: 3.5})
		assert.Zero(t, c.Left)
		assert.Zero(t, c.Right)
	})
}

func TestComputeCorridorLaneChange(t *testing.T) {
	t.Parallel()

	widths := LaneWidths{Current: 3.5, Left: 3.5, Right: 3.0}

	t.Run("left change opens left bound to target centreline", func(t *testing.T) {
		t.Parallel()
		c := ComputeCorridor(2, 1, 1.9, 0, widths)
		// 3.5/2 + 3.5/2 - 1.9/2 = 2.55
		assert.InDelta(t, 2.55, c.Left, 1e-12)
		// Departed lane's far boundary still caps the right side.
		assert.InDelta(t, 0.8, c.Right, 1e-12)
	})

	t.Run("right change opens right bound", func(t *testing.T) {
		t.Parallel()
		c := ComputeCorridor(2, 3, 1.9, 0, widths)
		// 3.5/2 + 3.0/2 - 1.9/2 = 2.3
		assert.InDelta(t, 2.3, c.Right, 1e-12)
		assert.InDelta(t, 0.8, c.Left, 1e-12)
	})

	t.Run("missing neighbour falls back to stay-in-lane", func(t *testing.T) {
		t.Parallel()
		c := ComputeCorridor(2, 1, 1.9, 0, LaneWidths{Current: 3.5})
		assert.InDelta(t, 0.8, c.Left, 1e-12)
		assert.InDelta(t, 0.8, c.Right, 1e-12)
	})

	t.Run("non-adjacent target falls back to stay-in-lane", func(t *testing.T) {
		t.Parallel()
		c := ComputeCorridor(2, 4, 1.9, 0, widths)
		assert.InDelta(t, 0.8, c.Left, 1e-12)
		assert.InDelta(t, 0.8, c.Right, 1e-12)
	})
}

func cand(laneID int, cost float64) frenet.Candidate {
	return frenet.Candidate{
		Points: make([]frenet.TrajectoryPoint, 3),
		LaneID: laneID,
		Cost:   cost,
	}
}

func TestSelectTrajectory(t *testing.T) {
	t.Parallel()

	t.Run("empty list fails", func(t *testing.T) {
		t.Parallel()
		_, err := SelectTrajectory(nil, 2, 0.5)
		assert.ErrorIs(t, err, ErrNoCandidates)
	})

	t.Run("prefers same-lane candidate over cheaper different lane within margin", func(t *testing.T) {
		t.Parallel()
		sel, err := SelectTrajectory([]frenet.Candidate{cand(1, 0.8), cand(2, 1.0)}, 2, 0.5)
		require.NoError(t, err)
		assert.Equal(t, 2, sel.LaneID)
	})

	t.Run("switches lanes when decisively better", func(t *testing.T) {
		t.Parallel()
		sel, err := SelectTrajectory([]frenet.Candidate{cand(1, 0.4), cand(2, 1.0)}, 2, 0.5)
		require.NoError(t, err)
		assert.Equal(t, 1, sel.LaneID)
	})

	t.Run("margin boundary keeps same lane", func(t *testing.T) {
		t.Parallel()
		// C2 == C1 - margin exactly: not strictly better, stay in lane.
		sel, err := SelectTrajectory([]frenet.Candidate{cand(1, 0.5), cand(2, 1.0)}, 2, 0.5)
		require.NoError(t, err)
		assert.Equal(t, 2, sel.LaneID)
	})

	t.Run("falls back to different lane when no same-lane candidate", func(t *testing.T) {
		t.Parallel()
		sel, err := SelectTrajectory([]frenet.Candidate{cand(3, 2.0), cand(1, 1.5)}, 2, 0.5)
		require.NoError(t, err)
		assert.Equal(t, 1, sel.LaneID)
	})

	t.Run("picks cheapest same-lane candidate", func(t *testing.T) {
		t.Parallel()
		sel, err := SelectTrajectory([]frenet.Candidate{cand(2, 3.0), cand(2, 1.2), cand(2, 2.0)}, 2, 0.5)
		require.NoError(t, err)
		assert.Equal(t, 1.2, sel.Cost)
	})

	t.Run("hysteresis sweep", func(t *testing.T) {
		t.Parallel()
		// For all (c1, c2, margin): different lane wins iff c2 < c1 - margin.
		for _, c1 := range []float64{0, 0.5, 1, 2} {
			for _, c2 := range []float64{0, 0.4, 0.9, 1.6} {
				for _, margin := range []float64{0, 0.25, 1} {
					sel, err := SelectTrajectory([]frenet.Candidate{cand(2, c1), cand(3, c2)}, 2, margin)
					require.NoError(t, err)
					wantOther := c2 < c1-margin
					if wantOther {
						assert.Equal(t, 3, sel.LaneID, "c1=%v c2=%v margin=%v", c1, c2, margin)
					} else {
						assert.Equal(t, 2, sel.LaneID, "c1=%v c2=%v margin=%v", c1, c2, margin)
					}
				}
			}
		}
	})
}
