package am

import (
	"fmt"

	"github.com/spf13/viper"
)

// Default values. Detection thresholds are heuristic policy, not ground truth.
const (
	DefaultJumpThresholdDeg  = 0.5
	DefaultLocationDecimals  = 6
	DefaultInvalidLatitude   = 91.0
	DefaultInvalidLongitude  = 0.0
	DefaultMaxSpeedKnots     = 50.0
	DefaultSpeedJumpKnots    = 5.0
	DefaultMaxRateOfTurn     = 30.0
	DefaultMaxCourseDeltaDeg = 180.0
	DefaultKinematicDecimals = 2
	DefaultCellSizeDeg       = 0.4
	DefaultMinCellPopulation = 6
	DefaultRatioThreshold    = 0.4
	DefaultWorkers           = 4
	DefaultJoinTimeoutSecs   = 15
	DefaultTimestampLayout   = "02/01/2006 15:04:05"
)

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	// Ingest defaults
	v.SetDefault("ingest.path", "")
	v.SetDefault("ingest.chunk_size", 0) // load everything at once
	v.SetDefault("ingest.timestamp_layout", DefaultTimestampLayout)

	// Location (stage A) defaults
	v.SetDefault("location.jump_threshold_deg", DefaultJumpThresholdDeg)
	v.SetDefault("location.round_decimals", DefaultLocationDecimals)
	v.SetDefault("location.invalid_latitude", DefaultInvalidLatitude)
	v.SetDefault("location.invalid_longitude", DefaultInvalidLongitude)

	// Kinematic (stage B) defaults
	v.SetDefault("kinematic.max_speed_knots", DefaultMaxSpeedKnots)
	v.SetDefault("kinematic.speed_jump_knots", DefaultSpeedJumpKnots)
	v.SetDefault("kinematic.max_rate_of_turn", DefaultMaxRateOfTurn)
	v.SetDefault("kinematic.max_course_delta_deg", DefaultMaxCourseDeltaDeg)
	v.SetDefault("kinematic.round_decimals", DefaultKinematicDecimals)

	// Consistency (stage C) defaults
	v.SetDefault("consistency.cell_size_deg", DefaultCellSizeDeg)
	v.SetDefault("consistency.min_cell_population", DefaultMinCellPopulation)
	v.SetDefault("consistency.ratio_threshold", DefaultRatioThreshold)
	v.SetDefault("consistency.ratio_mode", RatioModeCellOverlap)

	// Pulse (workers + join) defaults
	v.SetDefault("pulse.workers", DefaultWorkers)
	v.SetDefault("pulse.join_timeout_seconds", DefaultJoinTimeoutSecs)
	v.SetDefault("pulse.sequential", false)

	// Output defaults
	v.SetDefault("output.dir", "results")
	v.SetDefault("output.save_csv", true)
	v.SetDefault("output.metrics_file", "")

	v.SetDefault("database.path", "aisguard.db")

	v.SetDefault("resources.enabled", false)
	v.SetDefault("resources.sample_interval_ms", 100)
}

// BindEnvVars binds the settings most often overridden per run
func BindEnvVars(v *viper.Viper) {
	v.BindEnv("ingest.path", "AISGUARD_INPUT")
	v.BindEnv("database.path", "AISGUARD_DATABASE_PATH")
	v.BindEnv("pulse.workers", "AISGUARD_WORKERS")
}

// Default returns the configuration built from defaults only
func Default() *Config {
	v := viper.New()
	SetDefaults(v)
	cfg, err := LoadWithViper(v)
	if err != nil {
		// Defaults always unmarshal; reaching this is a programming error
		panic(fmt.Sprintf("am: default config does not unmarshal: %v", err))
	}
	return cfg
}

// String returns a string representation of the config
func (c *Config) String() string {
	return fmt.Sprintf("Config{Input: %s, Workers: %d, JoinTimeout: %ds, Cell: %.2f°, Ratio: %s>=%.2f}",
		c.Ingest.Path, c.Pulse.Workers, c.Pulse.JoinTimeoutSeconds,
		c.Consistency.CellSizeDeg, c.Consistency.RatioMode, c.Consistency.RatioThreshold)
}
