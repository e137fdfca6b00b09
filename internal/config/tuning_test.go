package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "tuning.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadTuningConfig(t *testing.T) {
	t.Parallel()

	t.Run("partial config keeps defaults for omitted fields", func(t *testing.T) {
		t.Parallel()
		path := writeTempConfig(t, `{"stanley_gain": 3.5, "traj_max_size": 120}`)

		cfg, err := LoadTuningConfig(path)
		require.NoError(t, err)

		assert.Equal(t, 3.5, cfg.GetStanleyGain())
		assert.Equal(t, 120, cfg.GetTrajMaxSize())
		// Omitted fields fall back to defaults.
		assert.Equal(t, 1.9, cfg.GetVehicleWidth())
		assert.Equal(t, 100*time.Millisecond, cfg.GetCycleInterval())
	})

	t.Run("rejects non-json extension", func(t *testing.T) {
		t.Parallel()
		_, err := LoadTuningConfig("tuning.yaml")
		assert.Error(t, err)
	})

	t.Run("rejects missing file", func(t *testing.T) {
		t.Parallel()
		_, err := LoadTuningConfig(filepath.Join(t.TempDir(), "nope.json"))
		assert.Error(t, err)
	})

	t.Run("rejects malformed json", func(t *testing.T) {
		t.Parallel()
		path := writeTempConfig(t, `{"stanley_gain": `)
		_, err := LoadTuningConfig(path)
		assert.Error(t, err)
	})

	t.Run("rejects invalid values", func(t *testing.T) {
		t.Parallel()
		path := writeTempConfig(t, `{"vehicle_width": -2.0}`)
		_, err := LoadTuningConfig(path)
		assert.ErrorContains(t, err, "vehicle_width")
	})
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*TuningConfig)
		wantErr string
	}{
		{"empty config is valid", func(c *TuningConfig) {}, ""},
		{"negative stanley gain", func(c *TuningConfig) { c.StanleyGain = ptrFloat64(-1) }, "stanley_gain"},
		{"min size above max size", func(c *TuningConfig) {
			c.TrajMinSize = ptrInt(50)
			c.TrajMaxSize = ptrInt(10)
		}, "traj_min_size"},
		{"min separation above max separation", func(c *TuningConfig) {
			c.WpMinSeparation = ptrFloat64(2.0)
			c.WpMaxSeparation = ptrFloat64(1.0)
		}, "wp_max_separation"},
		{"max separation under twice min separation", func(c *TuningConfig) {
			c.WpMinSeparation = ptrFloat64(0.6)
			c.WpMaxSeparation = ptrFloat64(1.0)
		}, "wp_max_separation"},
		{"zero min separation", func(c *TuningConfig) { c.WpMinSeparation = ptrFloat64(0) }, "wp_min_separation"},
		{"tiny min size", func(c *TuningConfig) { c.TrajMinSize = ptrInt(1) }, "traj_min_size"},
		{"bad cycle interval", func(c *TuningConfig) { c.CycleInterval = ptrString("fast") }, "cycle_interval"},
		{"bad cycle deadline", func(c *TuningConfig) { c.CycleDeadline = ptrString("80xs") }, "cycle_deadline"},
		{"zero lookahead index", func(c *TuningConfig) { c.ReplanLookaheadIndex = ptrInt(0) }, "replan_lookahead_index"},
		{"negative lane change margin", func(c *TuningConfig) { c.LaneChangeCostMargin = ptrFloat64(-0.1) }, "lane_change_cost_margin"},
		{"zero wheelbase", func(c *TuningConfig) { c.Wheelbase = ptrFloat64(0) }, "wheelbase"},
		{"negative cruise speed", func(c *TuningConfig) { c.CruiseSpeed = ptrFloat64(-3) }, "cruise_speed"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := EmptyTuningConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.ErrorContains(t, err, tt.wantErr)
			}
		})
	}
}

func TestMerge(t *testing.T) {
	t.Parallel()

	t.Run("overlays only non-nil fields", func(t *testing.T) {
		t.Parallel()
		base := &TuningConfig{
			StanleyGain: ptrFloat64(2.5),
			TrajMaxSize: ptrInt(80),
		}
		update := &TuningConfig{StanleyGain: ptrFloat64(4.0)}

		merged := base.Merge(update)
		assert.Equal(t, 4.0, merged.GetStanleyGain())
		assert.Equal(t, 80, merged.GetTrajMaxSize())
		// Base is untouched.
		assert.Equal(t, 2.5, base.GetStanleyGain())
	})

	t.Run("nil update returns copy of base", func(t *testing.T) {
		t.Parallel()
		base := &TuningConfig{PIDKp: ptrFloat64(1.2)}
		merged := base.Merge(nil)
		assert.Equal(t, 1.2, merged.GetPIDKp())
	})

	t.Run("boolean field is overlaid", func(t *testing.T) {
		t.Parallel()
		base := &TuningConfig{PersistCycles: ptrBool(false)}
		merged := base.Merge(&TuningConfig{PersistCycles: ptrBool(true)})
		assert.True(t, merged.GetPersistCycles())
	})
}

func TestDefaultsFileMatchesAccessors(t *testing.T) {
	cfg := MustLoadDefaultConfig()

	// The canonical defaults file should agree with the built-in fallbacks so
	// deployments without a config file behave identically.
	assert.Equal(t, 1.9, cfg.GetVehicleWidth())
	assert.Equal(t, 2.85, cfg.GetWheelbase())
	assert.Equal(t, 0.61, cfg.GetMaxSteeringAngle())
	assert.Equal(t, 0.5, cfg.GetLaneChangeCostMargin())
	assert.Equal(t, 80, cfg.GetTrajMaxSize())
	assert.Equal(t, 20, cfg.GetTrajMinSize())
	assert.Equal(t, 1.0, cfg.GetWpMaxSeparation())
	assert.Equal(t, 0.25, cfg.GetWpMinSeparation())
	assert.Equal(t, 5, cfg.GetReplanLookaheadIndex())
	assert.Equal(t, 2.5, cfg.GetStanleyGain())
	assert.Equal(t, 80*time.Millisecond, cfg.GetCycleDeadline())
	assert.False(t, cfg.GetPersistCycles())
}

func TestGetDurationFallbacks(t *testing.T) {
	t.Parallel()

	cfg := &TuningConfig{CycleInterval: ptrString("not-a-duration")}
	// Parse errors fall back to the default rather than stopping the loop.
	assert.Equal(t, 100*time.Millisecond, cfg.GetCycleInterval())

	empty := &TuningConfig{CycleDeadline: ptrString("")}
	assert.Equal(t, 80*time.Millisecond, empty.GetCycleDeadline())
}
