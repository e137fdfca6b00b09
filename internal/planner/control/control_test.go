package control

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/drive.report/internal/planner/frenet"
	"github.com/banshee-data/drive.report/internal/planner/vehicle"
)

func stanleyConfig() StanleyConfig {
	return StanleyConfig{Gain: 2.5, MaxLookahead: 10, MaxSteeringAngle: 0.61}
}

// straightTraj runs along +X at y=0 with zero heading.
func straightTraj(n int, spacing float64) []frenet.TrajectoryPoint {
	pts := make([]frenet.TrajectoryPoint, n)
	for i := range pts {
		pts[i] = frenet.TrajectoryPoint{X: float64(i) * spacing, S: float64(i) * spacing, Speed: 8}
	}
	return pts
}

func TestSteering(t *testing.T) {
	t.Parallel()

	t.Run("on path with zero heading error steers straight", func(t *testing.T) {
		t.Parallel()
		front := vehicle.State{X: 5, Y: 0, Yaw: 0, Speed: 8}
		steer, err := Steering(stanleyConfig(), front, straightTraj(20, 1))
		require.NoError(t, err)
		assert.InDelta(t, 0, steer, 1e-9)
	})

	t.Run("left offset steers right", func(t *testing.T) {
		t.Parallel()
		front := vehicle.State{X: 5, Y: 0.5, Yaw: 0, Speed: 8}
		steer, err := Steering(stanleyConfig(), front, straightTraj(20, 1))
		require.NoError(t, err)
		assert.Negative(t, steer)
		assert.InDelta(t, math.Atan2(2.5*0.5, 8), -steer, 1e-9)
	})

	t.Run("right offset steers left", func(t *testing.T) {
		t.Parallel()
		front := vehicle.State{X: 5, Y: -0.5, Yaw: 0, Speed: 8}
		steer, err := Steering(stanleyConfig(), front, straightTraj(20, 1))
		require.NoError(t, err)
		assert.Positive(t, steer)
	})

	t.Run("heading error alone steers back toward tangent", func(t *testing.T) {
		t.Parallel()
		front := vehicle.State{X: 5, Y: 0, Yaw: 0.2, Speed: 8}
		steer, err := Steering(stanleyConfig(), front, straightTraj(20, 1))
		require.NoError(t, err)
		assert.InDelta(t, -0.2, steer, 1e-9)
	})

	t.Run("saturates at the steering limit", func(t *testing.T) {
		t.Parallel()
		front := vehicle.State{X: 5, Y: -8, Yaw: 0, Speed: 1}
		steer, err := Steering(stanleyConfig(), front, straightTraj(20, 1))
		require.NoError(t, err)
		assert.Equal(t, 0.61, steer)
	})

	t.Run("fails when the trajectory is out of reach", func(t *testing.T) {
		t.Parallel()
		front := vehicle.State{X: 5, Y: 50, Yaw: 0, Speed: 8}
		_, err := Steering(stanleyConfig(), front, straightTraj(20, 1))
		assert.ErrorIs(t, err, ErrNoReferencePoint)
	})

	t.Run("fails on an empty trajectory", func(t *testing.T) {
		t.Parallel()
		_, err := Steering(stanleyConfig(), vehicle.State{}, nil)
		assert.ErrorIs(t, err, ErrNoReferencePoint)
	})

	t.Run("cross-track term shrinks with speed", func(t *testing.T) {
		t.Parallel()
		slow := vehicle.State{X: 5, Y: 0.5, Yaw: 0, Speed: 2}
		fast := vehicle.State{X: 5, Y: 0.5, Yaw: 0, Speed: 15}
		slowSteer, err := Steering(stanleyConfig(), slow, straightTraj(20, 1))
		require.NoError(t, err)
		fastSteer, err := Steering(stanleyConfig(), fast, straightTraj(20, 1))
		require.NoError(t, err)
		assert.Greater(t, math.Abs(slowSteer), math.Abs(fastSteer))
	})
}

func pidConfig() PIDConfig {
	return PIDConfig{
		Kp: 0.8, Ki: 0.1, Kd: 0.05,
		IntegralLimit:   5,
		MaxAcceleration: 2, MaxDeceleration: 4,
	}
}

func TestPIDAcceleration(t *testing.T) {
	t.Parallel()

	t.Run("accelerates toward a higher target", func(t *testing.T) {
		t.Parallel()
		pid := NewPID(pidConfig())
		a := pid.Acceleration(8, 0, 0.1)
		assert.Positive(t, a)
		assert.LessOrEqual(t, a, 2.0)
	})

	t.Run("brakes toward a lower target within the decel limit", func(t *testing.T) {
		t.Parallel()
		pid := NewPID(pidConfig())
		a := pid.Acceleration(0, 20, 0.1)
		assert.Equal(t, -4.0, a)
	})

	t.Run("zero error holds zero command", func(t *testing.T) {
		t.Parallel()
		pid := NewPID(pidConfig())
		assert.Zero(t, pid.Acceleration(8, 8, 0.1))
	})

	t.Run("integral is clamped during prolonged saturation", func(t *testing.T) {
		t.Parallel()
		pid := NewPID(pidConfig())
		for i := 0; i < 1000; i++ {
			pid.Acceleration(30, 0, 0.1)
		}
		// One cycle of recovery: without anti-windup the accumulated
		// integral would keep the output pinned long after the error flips.
		a := pid.Acceleration(0, 30, 0.1)
		assert.Equal(t, -4.0, a)
		assert.LessOrEqual(t, math.Abs(pid.integral), pidConfig().IntegralLimit)
	})

	t.Run("converges on the target in closed loop", func(t *testing.T) {
		t.Parallel()
		pid := NewPID(pidConfig())
		speed := 0.0
		const dt = 0.1
		for i := 0; i < 400; i++ {
			speed += pid.Acceleration(8, speed, dt) * dt
		}
		assert.InDelta(t, 8, speed, 0.3)
	})

	t.Run("reset clears accumulated state", func(t *testing.T) {
		t.Parallel()
		pid := NewPID(pidConfig())
		for i := 0; i < 50; i++ {
			pid.Acceleration(8, 0, 0.1)
		}
		pid.Reset()
		assert.Zero(t, pid.integral)
		assert.Zero(t, pid.prevErr)
		a := pid.Acceleration(8, 8, 0.1)
		assert.Zero(t, a)
	})

	t.Run("non-positive dt yields no command", func(t *testing.T) {
		t.Parallel()
		pid := NewPID(pidConfig())
		assert.Zero(t, pid.Acceleration(8, 0, 0))
		assert.Zero(t, pid.Acceleration(8, 0, -0.1))
	})
}
