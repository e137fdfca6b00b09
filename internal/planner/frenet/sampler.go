package frenet

import (
	"context"
	"math"
	"sort"

	"github.com/banshee-data/drive.report/internal/planner/lane"
)

// OffsetSampler is a minimal CandidatePlanner used by the scenario simulator
// and tests: it fans candidates across the corridor at fixed lateral offsets,
// blends each one from the start offset to its target, and rejects candidates
// that pass too close to an obstacle. Deployments replace it with the full
// polynomial sampler; the planning loop only sees the interface.
type OffsetSampler struct {
	// LateralStep is the offset spacing between candidates (metres).
	LateralStep float64
	// Horizon is the longitudinal sampling length (metres).
	Horizon float64
	// Resolution is the sample spacing along each candidate (metres).
	Resolution float64
	// CruiseSpeed is the planned speed on straight road (m/s).
	CruiseSpeed float64
	// MaxLateralAccel caps the planned speed in curves (m/s^2).
	MaxLateralAccel float64
	// VehicleWidth inflates the obstacle clearance check.
	VehicleWidth float64
	// BlendLength is the arclength over which the lateral offset transitions
	// from the start state to the candidate's target offset.
	BlendLength float64
}

// Lane id convention: ids ascend to the right, so the left neighbour of lane
// n is n-1 and the right neighbour is n+1.

// Plan implements CandidatePlanner.
func (os *OffsetSampler) Plan(ctx context.Context, start State, ref *lane.RefSpline, corridor Corridor, obstacles []Obstacle) ([]Candidate, error) {
	step := os.LateralStep
	if step <= 0 {
		step = 0.5
	}
	horizon := os.Horizon
	if horizon <= 0 {
		horizon = 30
	}
	res := os.Resolution
	if res <= 0 {
		res = 0.5
	}
	blend := os.BlendLength
	if blend <= 0 {
		blend = 15
	}

	maxS := start.S + horizon
	if end := ref.Length(); maxS > end {
		maxS = end
	}
	if maxS-start.S < 2*res {
		return nil, nil
	}

	// The fan is anchored at the reference line and steps outward, so the
	// centred offset is always sampled regardless of the corridor bounds.
	var offsets []float64
	for k := 0; ; k++ {
		o := float64(k) * step
		left := o <= corridor.Left+1e-9
		right := k > 0 && o <= corridor.Right+1e-9
		if left {
			offsets = append(offsets, o)
		}
		if right {
			offsets = append(offsets, -o)
		}
		if !left && !right {
			break
		}
	}

	var candidates []Candidate
	for _, offset := range offsets {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		cand := os.sampleOne(start, ref, offset, maxS, res, blend)
		if len(cand.Points) < 3 {
			continue
		}
		if os.collides(cand, obstacles) {
			continue
		}
		candidates = append(candidates, cand)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Cost < candidates[j].Cost
	})
	return candidates, nil
}

func (os *OffsetSampler) sampleOne(start State, ref *lane.RefSpline, offset, maxS, res, blend float64) Candidate {
	cruise := os.CruiseSpeed
	if cruise <= 0 {
		cruise = 8
	}
	maxLatAccel := os.MaxLateralAccel
	if maxLatAccel <= 0 {
		maxLatAccel = 2.5
	}

	var pts []TrajectoryPoint
	t := 0.0
	for s := start.S; s <= maxS+1e-9; s += res {
		// Linear blend from the start offset to the target offset, then hold.
		frac := (s - start.S) / blend
		if frac > 1 {
			frac = 1
		}
		d := start.D + frac*(offset-start.D)

		wp := ref.At(s)
		nx, ny := -math.Sin(wp.Heading), math.Cos(wp.Heading)
		// Slow down in curves so the lateral acceleration stays under the cap.
		speed := cruise
		if k := math.Abs(wp.Curvature); k > 1e-6 {
			if vmax := math.Sqrt(maxLatAccel / k); vmax < speed {
				speed = vmax
			}
		}
		pts = append(pts, TrajectoryPoint{
			X:         wp.X + d*nx,
			Y:         wp.Y + d*ny,
			Heading:   wp.Heading,
			Curvature: wp.Curvature,
			Speed:     speed,
			S:         s,
			D:         d,
			TOffset:   t,
		})
		t += res / speed
	}

	meta := ref.At(start.S)
	laneID := meta.LaneID
	half := meta.LaneWidth / 2
	if half > 0 {
		if offset > half {
			laneID-- // left neighbour
		} else if offset < -half {
			laneID++ // right neighbour
		}
	}

	// Cost prefers staying near the lane centre and near the current offset.
	cost := math.Abs(offset) + 0.2*math.Abs(offset-start.D)
	return Candidate{Points: pts, LaneID: laneID, Cost: cost}
}

// collides does a coarse clearance check: any sample within the inflated
// obstacle radius fails the candidate.
func (os *OffsetSampler) collides(c Candidate, obstacles []Obstacle) bool {
	if len(obstacles) == 0 {
		return false
	}
	halfWidth := os.VehicleWidth / 2
	if halfWidth <= 0 {
		halfWidth = 0.95
	}
	for _, ob := range obstacles {
		radius := math.Hypot(ob.Length, ob.Width)/2 + halfWidth
		for _, p := range c.Points {
			if math.Hypot(p.X-ob.X, p.Y-ob.Y) < radius {
				return true
			}
		}
	}
	return false
}
