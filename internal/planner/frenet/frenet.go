// Package frenet defines the Frenet-frame state model, the candidate
// trajectory type produced by the sampling planner, and the contract the
// planning loop consumes candidates through. The generation algorithm itself
// is a collaborator behind the CandidatePlanner interface; this package only
// fixes the shapes that cross that boundary.
package frenet

import (
	"context"

	"github.com/banshee-data/drive.report/internal/planner/lane"
)

// State is a point in the Frenet frame of the reference spline: longitudinal
// progress s with its time derivatives, and lateral offset d with its
// derivatives taken with respect to s. d is positive left of the reference.
type State struct {
	S     float64 `json:"s"`
	SDot  float64 `json:"s_dot"`
	SDDot float64 `json:"s_ddot"`

	D       float64 `json:"d"`
	DPrime  float64 `json:"d_prime"`
	DDPrime float64 `json:"dd_prime"`
}

// TrajectoryPoint is one sample of a candidate or committed trajectory,
// carrying both Cartesian pose and the Frenet coordinates it was sampled at.
type TrajectoryPoint struct {
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Heading   float64 `json:"heading"`
	Curvature float64 `json:"curvature"`
	Speed     float64 `json:"speed"` // planned speed at this sample, m/s

	S float64 `json:"s"` // arclength along the reference spline
	D float64 `json:"d"` // lateral offset from the reference spline

	TOffset float64 `json:"t_offset"` // seconds from the trajectory start
}

// Candidate is one sampled trajectory proposed for one planning cycle,
// tagged with the lane it ends in and a scalar cost (lower is better). The
// selector takes read-only ownership of the chosen candidate; nothing
// mutates Points after creation.
type Candidate struct {
	Points []TrajectoryPoint
	LaneID int
	Cost   float64
}

// StateAt reconstructs the Frenet state at sample index idx, with lateral
// derivatives estimated by central differences over the neighbouring
// samples. Used to continue sampling from a point ahead on the previously
// selected candidate so derivatives join smoothly. Returns false when the
// index is out of range or the candidate is too short to difference.
func (c *Candidate) StateAt(idx int) (State, bool) {
	if c == nil || idx < 0 || idx >= len(c.Points) || len(c.Points) < 3 {
		return State{}, false
	}

	lo, hi := idx-1, idx+1
	if lo < 0 {
		lo, hi = 0, 2
	}
	if hi > len(c.Points)-1 {
		lo, hi = len(c.Points)-3, len(c.Points)-1
	}

	p := c.Points[idx]
	a, b := c.Points[lo], c.Points[hi]
	ds := b.S - a.S

	st := State{
		S:    p.S,
		SDot: p.Speed,
		D:    p.D,
	}
	if ds > 0 {
		st.DPrime = (b.D - a.D) / ds
		// Second derivative from the two one-sided slopes.
		if mid := idx; mid > lo && mid < hi {
			d1 := (c.Points[mid].D - a.D) / (c.Points[mid].S - a.S)
			d2 := (b.D - c.Points[mid].D) / (b.S - c.Points[mid].S)
			st.DDPrime = (d2 - d1) / (ds / 2)
		}
		dt := b.TOffset - a.TOffset
		if dt > 0 {
			st.SDDot = (b.Speed - a.Speed) / dt
		}
	}
	return st, true
}

// Corridor bounds the lateral sampling range for one cycle: the maximum
// offset left of the reference and the maximum offset right of it, both
// non-negative metres.
type Corridor struct {
	Left  float64 `json:"left"`
	Right float64 `json:"right"`
}

// Obstacle is one detected object in the planning frame: an oriented
// bounding box with an instantaneous velocity. No persistent identity is
// kept; the whole set is replaced each perception update.
type Obstacle struct {
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Heading float64 `json:"heading"`
	Length  float64 `json:"length"`
	Width   float64 `json:"width"`
	VX      float64 `json:"vx"`
	VY      float64 `json:"vy"`
}

// CandidatePlanner produces feasible candidate trajectories ordered best to
// worst by cost. Implementations are CPU-bound and synchronous; they must
// honour ctx cancellation so an overrunning cycle can be abandoned. An empty
// slice with a nil error means no feasible trajectory exists this cycle.
type CandidatePlanner interface {
	Plan(ctx context.Context, start State, ref *lane.RefSpline, corridor Corridor, obstacles []Obstacle) ([]Candidate, error)
}
