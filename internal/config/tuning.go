package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig represents the root configuration for planner tuning
// parameters. The schema matches the /api/planner/params endpoint so the
// same JSON can be used for both startup configuration and runtime updates.
// All fields are pointers so partial configs merge cleanly over defaults.
type TuningConfig struct {
	// Vehicle geometry and actuator limits
	VehicleWidth     *float64 `json:"vehicle_width,omitempty"`      // metres
	Wheelbase        *float64 `json:"wheelbase,omitempty"`          // metres, baselink to front axle
	MaxSteeringAngle *float64 `json:"max_steering_angle,omitempty"` // radians
	MaxAcceleration  *float64 `json:"max_acceleration,omitempty"`   // m/s²
	MaxDeceleration  *float64 `json:"max_deceleration,omitempty"`   // m/s², positive magnitude

	// Sampling corridor params
	SamplingSafetyMargin *float64 `json:"sampling_safety_margin,omitempty"` // metres kept clear of lane boundaries

	// Lane selection params
	LaneChangeCostMargin *float64 `json:"lane_change_cost_margin,omitempty"`

	// Output trajectory buffer params
	TrajMaxSize     *int     `json:"traj_max_size,omitempty"`
	TrajMinSize     *int     `json:"traj_min_size,omitempty"`
	WpMaxSeparation *float64 `json:"wp_max_separation,omitempty"` // metres
	WpMinSeparation *float64 `json:"wp_min_separation,omitempty"` // metres

	// Replan start-state params
	ReplanLookaheadIndex *int `json:"replan_lookahead_index,omitempty"`

	// Local lane window params
	LocalLaneBehind   *float64 `json:"local_lane_behind,omitempty"` // metres
	LocalLaneAhead    *float64 `json:"local_lane_ahead,omitempty"`  // metres
	MinLocalWaypoints *int     `json:"min_local_waypoints,omitempty"`
	SplineResolution  *float64 `json:"spline_resolution,omitempty"` // metres between resampled points

	// Stanley lateral controller params
	StanleyGain         *float64 `json:"stanley_gain,omitempty"`
	StanleyMaxLookahead *float64 `json:"stanley_max_lookahead,omitempty"` // metres

	// Longitudinal PID params
	PIDKp            *float64 `json:"pid_kp,omitempty"`
	PIDKi            *float64 `json:"pid_ki,omitempty"`
	PIDKd            *float64 `json:"pid_kd,omitempty"`
	PIDIntegralLimit *float64 `json:"pid_integral_limit,omitempty"`
	CruiseSpeed      *float64 `json:"cruise_speed,omitempty"` // m/s fallback target when profile is empty

	// Cycle cadence params
	CycleInterval *string `json:"cycle_interval,omitempty"` // duration string like "100ms"
	CycleDeadline *string `json:"cycle_deadline,omitempty"` // duration string like "80ms"

	// Persistence
	PersistCycles *bool `json:"persist_cycles,omitempty"`
}

// Helper functions to create pointers.
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file. The file is
// validated to ensure it has a .json extension and is under the max file
// size. Fields omitted from the JSON retain their default values, so
// partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from
// DefaultConfigPath, searching the current directory and common parent
// directories. Panics if the file cannot be loaded; intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,       // from internal/config/
		"../../../" + DefaultConfigPath,    // from internal/planner/*
		"../../../../" + DefaultConfigPath, // deeper packages
		"../../../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are consistent. Individual
// nonsensical fields are reported rather than silently corrected; callers
// handling live updates reject the whole update and keep running on the
// previous values.
func (c *TuningConfig) Validate() error {
	if c.VehicleWidth != nil && *c.VehicleWidth <= 0 {
		return fmt.Errorf("vehicle_width must be positive, got %f", *c.VehicleWidth)
	}
	if c.Wheelbase != nil && *c.Wheelbase <= 0 {
		return fmt.Errorf("wheelbase must be positive, got %f", *c.Wheelbase)
	}
	if c.MaxSteeringAngle != nil && *c.MaxSteeringAngle <= 0 {
		return fmt.Errorf("max_steering_angle must be positive, got %f", *c.MaxSteeringAngle)
	}
	if c.SamplingSafetyMargin != nil && *c.SamplingSafetyMargin < 0 {
		return fmt.Errorf("sampling_safety_margin must be non-negative, got %f", *c.SamplingSafetyMargin)
	}
	if c.LaneChangeCostMargin != nil && *c.LaneChangeCostMargin < 0 {
		return fmt.Errorf("lane_change_cost_margin must be non-negative, got %f", *c.LaneChangeCostMargin)
	}
	if c.TrajMaxSize != nil && c.TrajMinSize != nil && *c.TrajMinSize > *c.TrajMaxSize {
		return fmt.Errorf("traj_min_size (%d) must not exceed traj_max_size (%d)", *c.TrajMinSize, *c.TrajMaxSize)
	}
	if c.TrajMinSize != nil && *c.TrajMinSize < 2 {
		return fmt.Errorf("traj_min_size must be at least 2, got %d", *c.TrajMinSize)
	}
	// Interpolating an over-long gap must be able to satisfy both separation
	// bounds, which requires max to be at least twice min.
	if c.WpMaxSeparation != nil && c.WpMinSeparation != nil && *c.WpMaxSeparation < 2**c.WpMinSeparation {
		return fmt.Errorf("wp_max_separation (%f) must be at least twice wp_min_separation (%f)", *c.WpMaxSeparation, *c.WpMinSeparation)
	}
	if c.WpMinSeparation != nil && *c.WpMinSeparation <= 0 {
		return fmt.Errorf("wp_min_separation must be positive, got %f", *c.WpMinSeparation)
	}
	if c.ReplanLookaheadIndex != nil && *c.ReplanLookaheadIndex < 1 {
		return fmt.Errorf("replan_lookahead_index must be at least 1, got %d", *c.ReplanLookaheadIndex)
	}
	if c.CruiseSpeed != nil && *c.CruiseSpeed <= 0 {
		return fmt.Errorf("cruise_speed must be positive, got %f", *c.CruiseSpeed)
	}
	if c.StanleyGain != nil && *c.StanleyGain < 0 {
		return fmt.Errorf("stanley_gain must be non-negative, got %f", *c.StanleyGain)
	}
	if c.CycleInterval != nil && *c.CycleInterval != "" {
		if _, err := time.ParseDuration(*c.CycleInterval); err != nil {
			return fmt.Errorf("invalid cycle_interval '%s': %w", *c.CycleInterval, err)
		}
	}
	if c.CycleDeadline != nil && *c.CycleDeadline != "" {
		if _, err := time.ParseDuration(*c.CycleDeadline); err != nil {
			return fmt.Errorf("invalid cycle_deadline '%s': %w", *c.CycleDeadline, err)
		}
	}
	return nil
}

// Merge overlays non-nil fields of other onto a copy of c and returns the
// result. Neither receiver nor argument is mutated. Used by the live params
// endpoint to apply partial updates.
func (c *TuningConfig) Merge(other *TuningConfig) *TuningConfig {
	merged := *c
	if other == nil {
		return &merged
	}
	if other.VehicleWidth != nil {
		merged.VehicleWidth = other.VehicleWidth
	}
	if other.Wheelbase != nil {
		merged.Wheelbase = other.Wheelbase
	}
	if other.MaxSteeringAngle != nil {
		merged.MaxSteeringAngle = other.MaxSteeringAngle
	}
	if other.MaxAcceleration != nil {
		merged.MaxAcceleration = other.MaxAcceleration
	}
	if other.MaxDeceleration != nil {
		merged.MaxDeceleration = other.MaxDeceleration
	}
	if other.SamplingSafetyMargin != nil {
		merged.SamplingSafetyMargin = other.SamplingSafetyMargin
	}
	if other.LaneChangeCostMargin != nil {
		merged.LaneChangeCostMargin = other.LaneChangeCostMargin
	}
	if other.TrajMaxSize != nil {
		merged.TrajMaxSize = other.TrajMaxSize
	}
	if other.TrajMinSize != nil {
		merged.TrajMinSize = other.TrajMinSize
	}
	if other.WpMaxSeparation != nil {
		merged.WpMaxSeparation = other.WpMaxSeparation
	}
	if other.WpMinSeparation != nil {
		merged.WpMinSeparation = other.WpMinSeparation
	}
	if other.ReplanLookaheadIndex != nil {
		merged.ReplanLookaheadIndex = other.ReplanLookaheadIndex
	}
	if other.LocalLaneBehind != nil {
		merged.LocalLaneBehind = other.LocalLaneBehind
	}
	if other.LocalLaneAhead != nil {
		merged.LocalLaneAhead = other.LocalLaneAhead
	}
	if other.MinLocalWaypoints != nil {
		merged.MinLocalWaypoints = other.MinLocalWaypoints
	}
	if other.SplineResolution != nil {
		merged.SplineResolution = other.SplineResolution
	}
	if other.StanleyGain != nil {
		merged.StanleyGain = other.StanleyGain
	}
	if other.StanleyMaxLookahead != nil {
		merged.StanleyMaxLookahead = other.StanleyMaxLookahead
	}
	if other.PIDKp != nil {
		merged.PIDKp = other.PIDKp
	}
	if other.PIDKi != nil {
		merged.PIDKi = other.PIDKi
	}
	if other.PIDKd != nil {
		merged.PIDKd = other.PIDKd
	}
	if other.PIDIntegralLimit != nil {
		merged.PIDIntegralLimit = other.PIDIntegralLimit
	}
	if other.CruiseSpeed != nil {
		merged.CruiseSpeed = other.CruiseSpeed
	}
	if other.CycleInterval != nil {
		merged.CycleInterval = other.CycleInterval
	}
	if other.CycleDeadline != nil {
		merged.CycleDeadline = other.CycleDeadline
	}
	if other.PersistCycles != nil {
		merged.PersistCycles = other.PersistCycles
	}
	return &merged
}

// GetVehicleWidth returns the vehicle_width value or the default.
func (c *TuningConfig) GetVehicleWidth() float64 {
	if c.VehicleWidth == nil {
		return 1.9
	}
	return *c.VehicleWidth
}

// GetWheelbase returns the wheelbase value or the default.
func (c *TuningConfig) GetWheelbase() float64 {
	if c.Wheelbase == nil {
		return 2.85
	}
	return *c.Wheelbase
}

// GetMaxSteeringAngle returns the max_steering_angle value or the default.
func (c *TuningConfig) GetMaxSteeringAngle() float64 {
	if c.MaxSteeringAngle == nil {
		return 0.61 // ~35°
	}
	return *c.MaxSteeringAngle
}

// GetMaxAcceleration returns the max_acceleration value or the default.
func (c *TuningConfig) GetMaxAcceleration() float64 {
	if c.MaxAcceleration == nil {
		return 2.0
	}
	return *c.MaxAcceleration
}

// GetMaxDeceleration returns the max_deceleration value or the default.
func (c *TuningConfig) GetMaxDeceleration() float64 {
	if c.MaxDeceleration == nil {
		return 4.0
	}
	return *c.MaxDeceleration
}

// GetSamplingSafetyMargin returns the sampling_safety_margin value or the default.
func (c *TuningConfig) GetSamplingSafetyMargin() float64 {
	if c.SamplingSafetyMargin == nil {
		return 0.1
	}
	return *c.SamplingSafetyMargin
}

// GetLaneChangeCostMargin returns the lane_change_cost_margin value or the default.
func (c *TuningConfig) GetLaneChangeCostMargin() float64 {
	if c.LaneChangeCostMargin == nil {
		return 0.5
	}
	return *c.LaneChangeCostMargin
}

// GetTrajMaxSize returns the traj_max_size value or the default.
func (c *TuningConfig) GetTrajMaxSize() int {
	if c.TrajMaxSize == nil {
		return 80
	}
	return *c.TrajMaxSize
}

// GetTrajMinSize returns the traj_min_size value or the default.
func (c *TuningConfig) GetTrajMinSize() int {
	if c.TrajMinSize == nil {
		return 20
	}
	return *c.TrajMinSize
}

// GetWpMaxSeparation returns the wp_max_separation value or the default.
func (c *TuningConfig) GetWpMaxSeparation() float64 {
	if c.WpMaxSeparation == nil {
		return 1.0
	}
	return *c.WpMaxSeparation
}

// GetWpMinSeparation returns the wp_min_separation value or the default.
func (c *TuningConfig) GetWpMinSeparation() float64 {
	if c.WpMinSeparation == nil {
		return 0.25
	}
	return *c.WpMinSeparation
}

// GetReplanLookaheadIndex returns the replan_lookahead_index value or the default.
func (c *TuningConfig) GetReplanLookaheadIndex() int {
	if c.ReplanLookaheadIndex == nil {
		return 5
	}
	return *c.ReplanLookaheadIndex
}

// GetLocalLaneBehind returns the local_lane_behind value or the default.
func (c *TuningConfig) GetLocalLaneBehind() float64 {
	if c.LocalLaneBehind == nil {
		return 5.0
	}
	return *c.LocalLaneBehind
}

// GetLocalLaneAhead returns the local_lane_ahead value or the default.
func (c *TuningConfig) GetLocalLaneAhead() float64 {
	if c.LocalLaneAhead == nil {
		return 60.0
	}
	return *c.LocalLaneAhead
}

// GetMinLocalWaypoints returns the min_local_waypoints value or the default.
func (c *TuningConfig) GetMinLocalWaypoints() int {
	if c.MinLocalWaypoints == nil {
		return 5
	}
	return *c.MinLocalWaypoints
}

// GetSplineResolution returns the spline_resolution value or the default.
func (c *TuningConfig) GetSplineResolution() float64 {
	if c.SplineResolution == nil {
		return 0.5
	}
	return *c.SplineResolution
}

// GetStanleyGain returns the stanley_gain value or the default.
func (c *TuningConfig) GetStanleyGain() float64 {
	if c.StanleyGain == nil {
		return 2.5
	}
	return *c.StanleyGain
}

// GetStanleyMaxLookahead returns the stanley_max_lookahead value or the default.
func (c *TuningConfig) GetStanleyMaxLookahead() float64 {
	if c.StanleyMaxLookahead == nil {
		return 10.0
	}
	return *c.StanleyMaxLookahead
}

// GetPIDKp returns the pid_kp value or the default.
func (c *TuningConfig) GetPIDKp() float64 {
	if c.PIDKp == nil {
		return 0.8
	}
	return *c.PIDKp
}

// GetPIDKi returns the pid_ki value or the default.
func (c *TuningConfig) GetPIDKi() float64 {
	if c.PIDKi == nil {
		return 0.1
	}
	return *c.PIDKi
}

// GetPIDKd returns the pid_kd value or the default.
func (c *TuningConfig) GetPIDKd() float64 {
	if c.PIDKd == nil {
		return 0.05
	}
	return *c.PIDKd
}

// GetPIDIntegralLimit returns the pid_integral_limit value or the default.
func (c *TuningConfig) GetPIDIntegralLimit() float64 {
	if c.PIDIntegralLimit == nil {
		return 5.0
	}
	return *c.PIDIntegralLimit
}

// GetCruiseSpeed returns the cruise_speed value or the default.
func (c *TuningConfig) GetCruiseSpeed() float64 {
	if c.CruiseSpeed == nil {
		return 8.0
	}
	return *c.CruiseSpeed
}

// GetCycleInterval parses and returns the CycleInterval as a time.Duration.
func (c *TuningConfig) GetCycleInterval() time.Duration {
	if c.CycleInterval == nil || *c.CycleInterval == "" {
		return 100 * time.Millisecond
	}
	d, err := time.ParseDuration(*c.CycleInterval)
	if err != nil {
		return 100 * time.Millisecond
	}
	return d
}

// GetCycleDeadline parses and returns the CycleDeadline as a time.Duration.
func (c *TuningConfig) GetCycleDeadline() time.Duration {
	if c.CycleDeadline == nil || *c.CycleDeadline == "" {
		return 80 * time.Millisecond
	}
	d, err := time.ParseDuration(*c.CycleDeadline)
	if err != nil {
		return 80 * time.Millisecond
	}
	return d
}

// GetPersistCycles returns the persist_cycles value or the default.
func (c *TuningConfig) GetPersistCycles() bool {
	if c.PersistCycles == nil {
		return false
	}
	return *c.PersistCycles
}
