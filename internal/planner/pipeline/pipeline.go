// Package pipeline runs the per-cycle planning loop: collect input
// snapshots, choose the replan start state, sample and select a candidate,
// grow the committed trajectory, and compute steering and acceleration.
// Ingestion callbacks never plan; the loop owns all planning state and is
// driven by a single ticker.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/drive.report/internal/config"
	"github.com/banshee-data/drive.report/internal/planner/control"
	"github.com/banshee-data/drive.report/internal/planner/frenet"
	"github.com/banshee-data/drive.report/internal/planner/ingest"
	"github.com/banshee-data/drive.report/internal/planner/lane"
	"github.com/banshee-data/drive.report/internal/planner/policy"
	"github.com/banshee-data/drive.report/internal/planner/publish"
	"github.com/banshee-data/drive.report/internal/planner/trajbuf"
)

// Cycle modes. A regenerate cycle restarts sampling from the vehicle's
// projected pose; a continue cycle extends the committed trajectory from a
// lookahead point on it.
const (
	ModeRegenerate = "regenerate"
	ModeContinue   = "continue"
)

// Failure tags carried on the output record.
const (
	FailureNone            = ""
	FailureInputMissing    = "input_missing"
	FailureSelectionFailed = "selection_failed"
	FailureControlFault    = "control_fault"
)

// Recorder persists one cycle record. Implementations run inside the cycle
// and should be fast; the sqlite store batches writes internally.
type Recorder interface {
	RecordCycle(ctx context.Context, out publish.Outputs) error
}

// Config wires a planning loop.
type Config struct {
	Tuning    *config.TuningConfig
	Inputs    *ingest.Store
	Planner   frenet.CandidatePlanner
	Publisher publish.Publisher // optional
	Recorder  Recorder          // optional
}

// Status is a read-only view of loop health for the API and debug pages.
type Status struct {
	Mode          string        `json:"mode"`
	Cycles        uint64        `json:"cycles"`
	Failures      uint64        `json:"failures"`
	LastCycleID   string        `json:"last_cycle_id"`
	LastDuration  time.Duration `json:"last_duration_ns"`
	CurrentLaneID int           `json:"current_lane_id"`
	TargetLaneID  int           `json:"target_lane_id"`
	BufferLen     int           `json:"buffer_len"`
}

// Loop is the planning loop. All fields below the configuration block are
// owned by the goroutine running Run (or by the test driving Tick) and are
// never touched concurrently; the atomics are the only cross-goroutine
// surface.
type Loop struct {
	inputs    *ingest.Store
	planner   frenet.CandidatePlanner
	publisher publish.Publisher
	recorder  Recorder

	tuning     atomic.Pointer[config.TuningConfig]
	targetLane atomic.Pointer[int]
	regen      atomic.Bool
	status     atomic.Pointer[Status]

	mode        string
	buffer      *trajbuf.Buffer
	pid         *control.PID
	ref         *lane.RefSpline
	refLaneSeq  uint64
	lastOdomSeq uint64
	lastTickAt  time.Time
	cycles      uint64
	failures    uint64
}

// New creates a loop in regenerate mode with an empty trajectory.
func New(cfg Config) (*Loop, error) {
	if cfg.Tuning == nil {
		return nil, errors.New("pipeline: tuning config is required")
	}
	if cfg.Inputs == nil {
		return nil, errors.New("pipeline: input store is required")
	}
	if cfg.Planner == nil {
		return nil, errors.New("pipeline: candidate planner is required")
	}
	l := &Loop{
		inputs:    cfg.Inputs,
		planner:   cfg.Planner,
		publisher: cfg.Publisher,
		recorder:  cfg.Recorder,
		mode:      ModeRegenerate,
		buffer:    trajbuf.New(bufferLimits(cfg.Tuning)),
		pid:       control.NewPID(pidConfig(cfg.Tuning)),
	}
	l.tuning.Store(cfg.Tuning)
	l.status.Store(&Status{Mode: ModeRegenerate})
	return l, nil
}

// UpdateTuning swaps in a new tuning config; it takes effect from the next
// cycle. The caller validates before handing it over.
func (l *Loop) UpdateTuning(t *config.TuningConfig) {
	l.tuning.Store(t)
}

// Tuning returns the active tuning config.
func (l *Loop) Tuning() *config.TuningConfig {
	return l.tuning.Load()
}

// RequestRegenerate forces the next cycle to restart sampling from the
// vehicle pose.
func (l *Loop) RequestRegenerate() {
	l.regen.Store(true)
}

// SetTargetLane requests a lane change toward the given lane id. Passing
// the current lane id, or calling ClearTargetLane, returns to lane keeping.
func (l *Loop) SetTargetLane(id int) {
	l.targetLane.Store(&id)
}

// ClearTargetLane drops any pending lane-change request.
func (l *Loop) ClearTargetLane() {
	l.targetLane.Store(nil)
}

// Status returns the latest loop status snapshot.
func (l *Loop) Status() Status {
	return *l.status.Load()
}

// Run drives Tick on the configured cycle interval until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	interval := l.tuning.Load().GetCycleInterval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	Opsf("planning loop started, interval %s", interval)

	for {
		select {
		case <-ctx.Done():
			Opsf("planning loop stopping: %v", ctx.Err())
			return ctx.Err()
		case now := <-ticker.C:
			l.Tick(ctx, now)
		}
	}
}

// Tick runs one planning cycle and returns the emitted output record.
// Exposed so tests and the scenario simulator can drive the loop without a
// ticker.
func (l *Loop) Tick(ctx context.Context, now time.Time) publish.Outputs {
	tuning := l.tuning.Load()
	started := now
	dt := tuning.GetCycleInterval().Seconds()
	if !l.lastTickAt.IsZero() {
		if d := now.Sub(l.lastTickAt).Seconds(); d > 0 {
			dt = d
		}
	}
	l.lastTickAt = now

	out := publish.Outputs{
		CycleID:   uuid.New().String(),
		StartedAt: started,
		Mode:      l.mode,
	}

	snap := l.inputs.Collect()
	if snap.Lane.Lane == nil || snap.Odom.Seq == 0 {
		Tracef("cycle %s: waiting for inputs (lane=%v odom_seq=%d)", out.CycleID, snap.Lane.Lane != nil, snap.Odom.Seq)
		return l.failSafe(ctx, out, FailureInputMissing, time.Since(started))
	}
	if snap.Odom.Seq == l.lastOdomSeq {
		Diagf("cycle %s: odometry stale at seq %d, planning from last-known pose", out.CycleID, snap.Odom.Seq)
	}
	l.lastOdomSeq = snap.Odom.Seq

	if err := l.ensureRefSpline(tuning, snap); err != nil {
		Opsf("cycle %s: no usable reference path: %v", out.CycleID, err)
		return l.failSafe(ctx, out, FailureInputMissing, time.Since(started))
	}
	out.ReferencePath = l.ref.Points()

	vehicleState := snap.Odom.State
	sProj, dProj := l.ref.Project(vehicleState.X, vehicleState.Y)

	nearestWp := l.ref.At(sProj)
	currentLane := laneAt(nearestWp, dProj)
	targetLane := currentLane
	if t := l.targetLane.Load(); t != nil {
		targetLane = *t
	}
	out.CurrentLaneID = currentLane
	out.TargetLaneID = targetLane

	// Mode resolution. A forced request, an empty buffer, or a nearly
	// consumed buffer all restart sampling from the vehicle pose.
	l.buffer.SetLimits(bufferLimits(tuning))
	l.pid.SetConfig(pidConfig(tuning))
	nearestIdx := l.buffer.NearestIndex(vehicleState.X, vehicleState.Y)
	lookahead := tuning.GetReplanLookaheadIndex()
	if l.regen.Swap(false) || l.buffer.Consumed(nearestIdx, lookahead) {
		l.mode = ModeRegenerate
	}
	out.Mode = l.mode

	var start frenet.State
	if l.mode == ModeRegenerate {
		l.buffer.Clear()
		nearestIdx = -1
		start = frenet.State{S: sProj, SDot: math.Max(vehicleState.Speed, 0), D: dProj}
	} else {
		i := nearestIdx + lookahead
		if i > l.buffer.Len()-1 {
			i = l.buffer.Len() - 1
		}
		// The committed trajectory carries the lateral derivatives the next
		// segment must match; reconstruct them rather than restart from zero.
		committed := frenet.Candidate{Points: l.buffer.Points()}
		if st, ok := committed.StateAt(i); ok {
			start = st
		} else {
			p := l.buffer.PointAt(i)
			start = frenet.State{S: p.S, SDot: p.Speed, D: p.D}
		}
	}

	widths := policy.LaneWidths{
		Current: nearestWp.LaneWidth,
		Left:    nearestWp.LeftWidth,
		Right:   nearestWp.RightWidth,
	}
	corridor := policy.ComputeCorridor(currentLane, targetLane, tuning.GetVehicleWidth(), tuning.GetSamplingSafetyMargin(), widths)
	out.Corridor = corridor
	out.Obstacles = snap.Obstacles.Obstacles

	planCtx, cancel := context.WithTimeout(ctx, tuning.GetCycleDeadline())
	candidates, err := l.planner.Plan(planCtx, start, l.ref, corridor, snap.Obstacles.Obstacles)
	cancel()
	if err != nil {
		Opsf("cycle %s: candidate planning failed: %v", out.CycleID, err)
		return l.failSafe(ctx, out, FailureSelectionFailed, time.Since(started))
	}
	out.Candidates = candidates

	best, err := policy.SelectTrajectory(candidates, currentLane, tuning.GetLaneChangeCostMargin())
	if err != nil {
		Diagf("cycle %s: no feasible candidate (%d considered)", out.CycleID, len(candidates))
		return l.failSafe(ctx, out, FailureSelectionFailed, time.Since(started))
	}
	if best.LaneID != currentLane {
		Diagf("cycle %s: lane change %d -> %d at cost %.3f", out.CycleID, currentLane, best.LaneID, best.Cost)
	}
	out.NextCandidate = best.Points

	l.buffer.Append(best.Points)
	nearestIdx = l.buffer.NearestIndex(vehicleState.X, vehicleState.Y)
	nearestIdx = l.buffer.TrimBehind(nearestIdx)
	out.Trajectory = l.buffer.Points()

	steering, err := control.Steering(stanleyConfig(tuning), snap.Odom.FrontAxle, out.Trajectory)
	if err != nil {
		Opsf("cycle %s: steering fault: %v", out.CycleID, err)
		return l.failSafe(ctx, out, FailureControlFault, time.Since(started))
	}
	targetSpeed := l.buffer.TargetSpeedAt(nearestIdx, lookahead)
	accel := l.pid.Acceleration(targetSpeed, vehicleState.Speed, dt)
	out.Command = publish.Command{Acceleration: accel, SteeringAngle: steering}

	l.mode = ModeContinue
	l.cycles++
	out.Duration = time.Since(started)
	Tracef("cycle %s: %s lane=%d target=%d traj=%d accel=%.2f steer=%.3f in %s",
		out.CycleID, out.Mode, currentLane, targetLane, l.buffer.Len(), accel, steering, out.Duration)

	l.emit(ctx, out)
	return out
}

// failSafe emits the stop record for a failed cycle: zero acceleration and
// steering with the stop flag set, no trajectory, and the loop reset so the
// next cycle regenerates from the vehicle pose.
func (l *Loop) failSafe(ctx context.Context, out publish.Outputs, failure string, elapsed time.Duration) publish.Outputs {
	if failure != FailureInputMissing {
		Opsf("fail-safe stop: %s", failure)
	}
	l.buffer.Clear()
	l.pid.Reset()
	l.mode = ModeRegenerate
	l.failures++
	l.cycles++

	out.Failure = failure
	out.Mode = ModeRegenerate
	out.ReferencePath = nil
	out.Trajectory = nil
	out.NextCandidate = nil
	out.Candidates = nil
	out.Command = publish.Command{Stop: true}
	out.Duration = elapsed

	l.emit(ctx, out)
	return out
}

func (l *Loop) emit(ctx context.Context, out publish.Outputs) {
	if l.publisher != nil {
		l.publisher.Publish(out)
	}
	if l.recorder != nil {
		if err := l.recorder.RecordCycle(ctx, out); err != nil {
			Diagf("cycle %s: record failed: %v", out.CycleID, err)
		}
	}
	l.status.Store(&Status{
		Mode:          l.mode,
		Cycles:        l.cycles,
		Failures:      l.failures,
		LastCycleID:   out.CycleID,
		LastDuration:  out.Duration,
		CurrentLaneID: out.CurrentLaneID,
		TargetLaneID:  out.TargetLaneID,
		BufferLen:     l.buffer.Len(),
	})
}

// ensureRefSpline refits the reference spline when the lane was replaced or
// the vehicle is approaching the end of the fitted window. A refit rebases
// arclength, so the committed trajectory is dropped and the next sampling
// restarts from the vehicle pose.
func (l *Loop) ensureRefSpline(tuning *config.TuningConfig, snap ingest.Snapshot) error {
	needFit := l.ref == nil || snap.Lane.Seq != l.refLaneSeq
	if !needFit && l.ref != nil {
		sProj, _ := l.ref.Project(snap.Odom.State.X, snap.Odom.State.Y)
		if l.ref.Length()-sProj < tuning.GetLocalLaneAhead()/4 {
			needFit = true
		}
	}
	if !needFit {
		return nil
	}

	window, err := snap.Lane.Lane.Window(
		snap.Odom.State.X, snap.Odom.State.Y,
		tuning.GetLocalLaneBehind(), tuning.GetLocalLaneAhead(),
		tuning.GetMinLocalWaypoints(),
	)
	if err != nil {
		return fmt.Errorf("extract local lane: %w", err)
	}
	ref, err := lane.FitRefSpline(window, tuning.GetSplineResolution())
	if err != nil {
		return fmt.Errorf("fit reference spline: %w", err)
	}

	l.ref = ref
	l.refLaneSeq = snap.Lane.Seq
	l.buffer.Clear()
	l.mode = ModeRegenerate
	Diagf("reference spline refit: %d waypoints, %.1fm", len(ref.Points()), ref.Length())
	return nil
}

// laneAt maps the reference waypoint under the vehicle plus its lateral
// offset to a lane id. Offsets beyond half the lane width fall into the
// adjacent lane; ids ascend to the right, so a positive (left) offset
// decrements.
func laneAt(wp lane.Waypoint, d float64) int {
	if wp.LaneWidth <= 0 {
		return wp.LaneID
	}
	half := wp.LaneWidth / 2
	switch {
	case d > half:
		return wp.LaneID - 1
	case d < -half:
		return wp.LaneID + 1
	default:
		return wp.LaneID
	}
}

func bufferLimits(t *config.TuningConfig) trajbuf.Limits {
	return trajbuf.Limits{
		MaxSize:       t.GetTrajMaxSize(),
		MinSize:       t.GetTrajMinSize(),
		MaxSeparation: t.GetWpMaxSeparation(),
		MinSeparation: t.GetWpMinSeparation(),
	}
}

func pidConfig(t *config.TuningConfig) control.PIDConfig {
	return control.PIDConfig{
		Kp:              t.GetPIDKp(),
		Ki:              t.GetPIDKi(),
		Kd:              t.GetPIDKd(),
		IntegralLimit:   t.GetPIDIntegralLimit(),
		MaxAcceleration: t.GetMaxAcceleration(),
		MaxDeceleration: t.GetMaxDeceleration(),
	}
}

func stanleyConfig(t *config.TuningConfig) control.StanleyConfig {
	return control.StanleyConfig{
		Gain:             t.GetStanleyGain(),
		MaxLookahead:     t.GetStanleyMaxLookahead(),
		MaxSteeringAngle: t.GetMaxSteeringAngle(),
	}
}
