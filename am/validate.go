package am

import "github.com/teranos/aisguard/errors"

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if err := c.validate(); err != nil {
		err = errors.Mark(err, errors.ErrInvalidConfig)
		return errors.WithHint(err, "check aisguard.toml or AISGUARD_* environment variables")
	}
	return nil
}

func (c *Config) validate() error {
	// Ingest: 0 = load everything, negative = invalid
	if c.Ingest.ChunkSize < 0 {
		return errors.Newf("ingest.chunk_size must be >= 0, got %d", c.Ingest.ChunkSize)
	}
	if c.Ingest.TimestampLayout == "" {
		return errors.New("ingest.timestamp_layout cannot be empty")
	}

	if c.Location.JumpThresholdDeg <= 0 {
		return errors.Newf("location.jump_threshold_deg must be > 0, got %f", c.Location.JumpThresholdDeg)
	}
	if c.Location.RoundDecimals < 0 || c.Kinematic.RoundDecimals < 0 {
		return errors.New("round_decimals must be >= 0")
	}

	if c.Kinematic.MaxSpeedKnots <= 0 {
		return errors.Newf("kinematic.max_speed_knots must be > 0, got %f", c.Kinematic.MaxSpeedKnots)
	}
	if c.Kinematic.SpeedJumpKnots <= 0 {
		return errors.Newf("kinematic.speed_jump_knots must be > 0, got %f", c.Kinematic.SpeedJumpKnots)
	}
	if c.Kinematic.MaxRateOfTurn <= 0 {
		return errors.Newf("kinematic.max_rate_of_turn must be > 0, got %f", c.Kinematic.MaxRateOfTurn)
	}
	// Shorter-arc deltas never exceed 180
	if c.Kinematic.MaxCourseDeltaDeg <= 0 || c.Kinematic.MaxCourseDeltaDeg > 180 {
		return errors.Newf("kinematic.max_course_delta_deg must be in (0, 180], got %f", c.Kinematic.MaxCourseDeltaDeg)
	}

	if c.Consistency.CellSizeDeg <= 0 {
		return errors.Newf("consistency.cell_size_deg must be > 0, got %f", c.Consistency.CellSizeDeg)
	}
	if c.Consistency.MinCellPopulation < 1 {
		return errors.Newf("consistency.min_cell_population must be >= 1, got %d", c.Consistency.MinCellPopulation)
	}
	if c.Consistency.RatioThreshold <= 0 {
		return errors.Newf("consistency.ratio_threshold must be > 0, got %f", c.Consistency.RatioThreshold)
	}
	switch c.Consistency.RatioMode {
	case RatioModeCellOverlap, RatioModeGlobalCount:
	default:
		return errors.Newf("consistency.ratio_mode must be %q or %q, got %q",
			RatioModeCellOverlap, RatioModeGlobalCount, c.Consistency.RatioMode)
	}

	// Pulse workers: at least one worker per stage
	if c.Pulse.Workers < 1 {
		return errors.Newf("pulse.workers must be >= 1, got %d", c.Pulse.Workers)
	}
	// Join timeout: 0 = unbounded, negative = invalid
	if c.Pulse.JoinTimeoutSeconds < 0 {
		return errors.Newf("pulse.join_timeout_seconds must be >= 0, got %d", c.Pulse.JoinTimeoutSeconds)
	}

	if c.Output.SaveCSV && c.Output.Dir == "" {
		return errors.New("output.dir cannot be empty when output.save_csv is enabled")
	}

	if c.Resources.Enabled && c.Resources.SampleIntervalMS <= 0 {
		return errors.Newf("resources.sample_interval_ms must be > 0 when enabled, got %d", c.Resources.SampleIntervalMS)
	}

	return nil
}
