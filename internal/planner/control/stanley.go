// Package control holds the two per-cycle vehicle controllers: a Stanley
// lateral controller producing a steering angle from the committed trajectory
// and the front-axle pose, and a PID longitudinal controller producing an
// acceleration from the speed error. Both are pure over their inputs except
// for the PID's explicit integrator state.
package control

import (
	"errors"
	"math"

	"github.com/banshee-data/drive.report/internal/planner/frenet"
	"github.com/banshee-data/drive.report/internal/planner/vehicle"
	"github.com/banshee-data/drive.report/internal/units"
)

// ErrNoReferencePoint is returned when no committed waypoint lies within the
// lookahead radius of the front axle. The loop treats this as a control
// fault and runs the fail-safe path.
var ErrNoReferencePoint = errors.New("control: no trajectory point within lookahead distance")

// StanleyConfig tunes the lateral controller.
type StanleyConfig struct {
	// Gain scales the cross-track correction term.
	Gain float64
	// MaxLookahead bounds, in metres, how far from the front axle the
	// nearest-waypoint search may match before the trajectory is considered
	// lost.
	MaxLookahead float64
	// MaxSteeringAngle saturates the output, radians.
	MaxSteeringAngle float64
}

// minStanleySpeed keeps the atan2 cross-track term bounded near standstill.
const minStanleySpeed = 0.5

// Steering computes the Stanley steering command for the front-axle pose
// against the committed trajectory.
//
// The nearest trajectory segment to the front axle supplies the reference:
// heading error is the wrapped difference between the segment tangent and
// the vehicle heading, and cross-track error is the signed lateral distance
// from the axle to the segment, positive when the axle sits left of it. The
// command is headingError - atan2(gain*crossTrack, speed), saturated to the
// steering limit; the subtraction steers back toward the path.
func Steering(cfg StanleyConfig, front vehicle.State, traj []frenet.TrajectoryPoint) (float64, error) {
	if len(traj) == 0 {
		return 0, ErrNoReferencePoint
	}

	nearest := -1
	nearestDist := math.MaxFloat64
	for i, p := range traj {
		d := math.Hypot(p.X-front.X, p.Y-front.Y)
		if d < nearestDist {
			nearestDist = d
			nearest = i
		}
	}
	if nearestDist > cfg.MaxLookahead {
		return 0, ErrNoReferencePoint
	}

	tangent, cross := segmentErrors(traj, nearest, front.X, front.Y)
	headingErr := units.AngleDiff(tangent, front.Yaw)

	speed := math.Max(front.Speed, minStanleySpeed)
	steer := headingErr - math.Atan2(cfg.Gain*cross, speed)
	return units.Clamp(steer, -cfg.MaxSteeringAngle, cfg.MaxSteeringAngle), nil
}

// segmentErrors returns the tangent heading of the trajectory segment
// closest to (x, y) around index i, and the signed cross-track distance to
// it. A single-point trajectory falls back to the stored waypoint heading.
func segmentErrors(traj []frenet.TrajectoryPoint, i int, x, y float64) (tangent, cross float64) {
	a, b := segmentAround(traj, i)
	dx := b.X - a.X
	dy := b.Y - a.Y
	segLen := math.Hypot(dx, dy)
	if segLen < 1e-9 {
		p := traj[i]
		tangent = p.Heading
		// Signed lateral offset via the waypoint's own heading.
		cross = -(x-p.X)*math.Sin(p.Heading) + (y-p.Y)*math.Cos(p.Heading)
		return tangent, cross
	}
	tangent = math.Atan2(dy, dx)
	// Cross product of segment direction with the axle offset: positive when
	// the axle is left of the segment.
	cross = (dx*(y-a.Y) - dy*(x-a.X)) / segLen
	return tangent, cross
}

// segmentAround picks the trajectory segment bracketing index i, preferring
// the forward segment so the tangent points along travel.
func segmentAround(traj []frenet.TrajectoryPoint, i int) (a, b frenet.TrajectoryPoint) {
	switch {
	case len(traj) == 1:
		return traj[0], traj[0]
	case i >= len(traj)-1:
		return traj[len(traj)-2], traj[len(traj)-1]
	default:
		return traj[i], traj[i+1]
	}
}
