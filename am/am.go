// Package am holds the aisguard configuration ("I am"): detection policy,
// worker/timeout settings, and where results are written.
package am

import "time"

// Config represents the complete aisguard configuration.
// It is built once per invocation and passed explicitly to each component.
type Config struct {
	Ingest      IngestConfig      `mapstructure:"ingest" toml:"ingest"`
	Location    LocationConfig    `mapstructure:"location" toml:"location"`
	Kinematic   KinematicConfig   `mapstructure:"kinematic" toml:"kinematic"`
	Consistency ConsistencyConfig `mapstructure:"consistency" toml:"consistency"`
	Pulse       PulseConfig       `mapstructure:"pulse" toml:"pulse"`
	Output      OutputConfig      `mapstructure:"output" toml:"output"`
	Database    DatabaseConfig    `mapstructure:"database" toml:"database"`
	Resources   ResourcesConfig   `mapstructure:"resources" toml:"resources"`
}

// IngestConfig configures AIS file loading and cleaning
type IngestConfig struct {
	Path            string `mapstructure:"path" toml:"path"`                         // Input CSV (.csv, .csv.gz, .csv.zst)
	ChunkSize       int    `mapstructure:"chunk_size" toml:"chunk_size"`             // Rows per chunk in batch mode (0 = load everything at once)
	TimestampLayout string `mapstructure:"timestamp_layout" toml:"timestamp_layout"` // Go time layout of the "# Timestamp" column
}

// LocationConfig configures the position (jump / invalid fix) detector
type LocationConfig struct {
	JumpThresholdDeg float64 `mapstructure:"jump_threshold_deg" toml:"jump_threshold_deg"` // Max plausible lat/lon step between consecutive fixes
	RoundDecimals    int     `mapstructure:"round_decimals" toml:"round_decimals"`         // Degree differences are rounded before comparison
	InvalidLatitude  float64 `mapstructure:"invalid_latitude" toml:"invalid_latitude"`     // AIS "no position" sentinel latitude
	InvalidLongitude float64 `mapstructure:"invalid_longitude" toml:"invalid_longitude"`   // AIS "no position" sentinel longitude
}

// KinematicConfig configures the speed / course detector
type KinematicConfig struct {
	MaxSpeedKnots     float64 `mapstructure:"max_speed_knots" toml:"max_speed_knots"`           // Absolute SOG ceiling
	SpeedJumpKnots    float64 `mapstructure:"speed_jump_knots" toml:"speed_jump_knots"`         // Max SOG change between consecutive fixes
	MaxRateOfTurn     float64 `mapstructure:"max_rate_of_turn" toml:"max_rate_of_turn"`         // Absolute ROT ceiling
	MaxCourseDeltaDeg float64 `mapstructure:"max_course_delta_deg" toml:"max_course_delta_deg"` // Max shorter-arc COG change (observed as 100 or 180)
	RoundDecimals     int     `mapstructure:"round_decimals" toml:"round_decimals"`
}

// Ratio modes for the consistency checker numerator
const (
	// RatioModeCellOverlap counts anomalous vessels that are members of the cell
	RatioModeCellOverlap = "cell_overlap"
	// RatioModeGlobalCount counts every anomalous vessel in the run, wherever it is
	RatioModeGlobalCount = "global_count"
)

// ConsistencyConfig configures the neighbouring-vessel grid checker
type ConsistencyConfig struct {
	CellSizeDeg       float64 `mapstructure:"cell_size_deg" toml:"cell_size_deg"`             // Grid cell edge in degrees
	MinCellPopulation int     `mapstructure:"min_cell_population" toml:"min_cell_population"` // Cells with fewer records are skipped
	RatioThreshold    float64 `mapstructure:"ratio_threshold" toml:"ratio_threshold"`         // Flag when numerator / cell records >= threshold
	RatioMode         string  `mapstructure:"ratio_mode" toml:"ratio_mode"`                   // cell_overlap | global_count
}

// PulseConfig configures the worker pools and the stage join
type PulseConfig struct {
	Workers            int  `mapstructure:"workers" toml:"workers"`                           // Concurrent workers per stage
	JoinTimeoutSeconds int  `mapstructure:"join_timeout_seconds" toml:"join_timeout_seconds"` // Bound on each of stage A / B (0 = unbounded)
	Sequential         bool `mapstructure:"sequential" toml:"sequential"`                     // Run A, B, C one after another
}

// OutputConfig configures result tables and metrics
type OutputConfig struct {
	Dir         string `mapstructure:"dir" toml:"dir"`                   // Directory for result CSVs
	SaveCSV     bool   `mapstructure:"save_csv" toml:"save_csv"`         // Write result tables
	MetricsFile string `mapstructure:"metrics_file" toml:"metrics_file"` // Prometheus text file ("" = disabled)
}

// DatabaseConfig configures the SQLite run ledger
type DatabaseConfig struct {
	Path string `mapstructure:"path" toml:"path"` // "" disables the ledger
}

// ResourcesConfig configures CPU / memory sampling during a run
type ResourcesConfig struct {
	Enabled          bool `mapstructure:"enabled" toml:"enabled"`
	SampleIntervalMS int  `mapstructure:"sample_interval_ms" toml:"sample_interval_ms"`
}

// JoinTimeout returns the per-stage join bound. Zero means wait indefinitely.
func (p PulseConfig) JoinTimeout() time.Duration {
	return time.Duration(p.JoinTimeoutSeconds) * time.Second
}

// SampleInterval returns the resource sampling period
func (r ResourcesConfig) SampleInterval() time.Duration {
	return time.Duration(r.SampleIntervalMS) * time.Millisecond
}

// File system constants
const (
	DefaultDirPermissions  = 0755
	DefaultFilePermissions = 0644
)

// ProjectConfigName is the file searched for upward from the working directory
const ProjectConfigName = "aisguard.toml"
