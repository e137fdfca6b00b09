// Package publish defines the per-cycle output record the planning loop
// emits and the fan-out sinks that carry it: an in-process latest-value
// store for the HTTP API and an asynchronous UDP forwarder for downstream
// consumers.
package publish

import (
	"time"

	"github.com/banshee-data/drive.report/internal/planner/frenet"
	"github.com/banshee-data/drive.report/internal/planner/lane"
)

// Command is the final actuation request for one cycle.
type Command struct {
	Acceleration  float64 `json:"acceleration"`   // m/s^2, negative braking
	SteeringAngle float64 `json:"steering_angle"` // radians, positive left
	// Stop marks a fail-safe command; consumers must treat it as an
	// instruction to bring the vehicle to a halt regardless of the numeric
	// fields.
	Stop bool `json:"stop"`
}

// Outputs is everything one planning cycle produced. Every cycle emits a
// full record, including failed ones, so downstream consumers never act on
// stale data.
type Outputs struct {
	CycleID   string        `json:"cycle_id"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration_ns"`
	Mode      string        `json:"mode"` // "regenerate" or "continue"

	CurrentLaneID int `json:"current_lane_id"`
	TargetLaneID  int `json:"target_lane_id"`

	// Failure is empty on success, otherwise "selection_failed" or
	// "control_fault".
	Failure string `json:"failure,omitempty"`

	ReferencePath []lane.Waypoint          `json:"reference_path,omitempty"`
	Trajectory    []frenet.TrajectoryPoint `json:"trajectory,omitempty"`
	NextCandidate []frenet.TrajectoryPoint `json:"next_candidate,omitempty"`
	Corridor      frenet.Corridor          `json:"corridor"`
	Candidates    []frenet.Candidate       `json:"candidates,omitempty"`
	Obstacles     []frenet.Obstacle        `json:"obstacles,omitempty"`

	Command Command `json:"command"`
}

// Publisher receives the output record once per cycle. Implementations must
// not block the planning loop.
type Publisher interface {
	Publish(out Outputs)
}

// Multi fans one record out to several publishers in order.
type Multi []Publisher

func (m Multi) Publish(out Outputs) {
	for _, p := range m {
		p.Publish(out)
	}
}
