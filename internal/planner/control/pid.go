package control

import "github.com/banshee-data/drive.report/internal/units"

// PIDConfig tunes the longitudinal speed controller.
type PIDConfig struct {
	Kp float64
	Ki float64
	Kd float64
	// IntegralLimit clamps the accumulated integral term, in m/s of
	// accumulated error, so prolonged saturation cannot wind it up.
	IntegralLimit float64
	// MaxAcceleration and MaxDeceleration clamp the output, both positive,
	// m/s^2.
	MaxAcceleration float64
	MaxDeceleration float64
}

// PID tracks a target speed and emits a bounded acceleration command. The
// integrator and previous error survive across cycles; everything else is
// stateless.
type PID struct {
	cfg      PIDConfig
	integral float64
	prevErr  float64
	primed   bool
}

// NewPID creates a controller with zeroed state.
func NewPID(cfg PIDConfig) *PID {
	return &PID{cfg: cfg}
}

// SetConfig applies new gains without disturbing the integrator.
func (c *PID) SetConfig(cfg PIDConfig) { c.cfg = cfg }

// Reset clears the integrator and derivative memory. The fail-safe path
// calls this so a stop does not carry stale wind-up into the restart.
func (c *PID) Reset() {
	c.integral = 0
	c.prevErr = 0
	c.primed = false
}

// Acceleration computes the next acceleration command for the given target
// and measured speed over the elapsed cycle time dt (seconds). The first
// call after a Reset skips the derivative term.
func (c *PID) Acceleration(targetSpeed, currentSpeed, dt float64) float64 {
	if dt <= 0 {
		return 0
	}
	err := targetSpeed - currentSpeed

	c.integral = units.Clamp(c.integral+err*dt, -c.cfg.IntegralLimit, c.cfg.IntegralLimit)

	var deriv float64
	if c.primed {
		deriv = (err - c.prevErr) / dt
	}
	c.prevErr = err
	c.primed = true

	out := c.cfg.Kp*err + c.cfg.Ki*c.integral + c.cfg.Kd*deriv
	return units.Clamp(out, -c.cfg.MaxDeceleration, c.cfg.MaxAcceleration)
}
