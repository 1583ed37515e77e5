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

// TuningConfig represents the root configuration for tuning parameters.
// Fields are pointers so an absent key falls through to the Get* default
// instead of a zero value.
type TuningConfig struct {
	// Planner params
	TurnAngleDeg         *float64 `json:"turn_angle_deg,omitempty"`
	CollisionThresholdM  *float64 `json:"collision_threshold_m,omitempty"`
	PlannerStepSize      *int     `json:"planner_step_size,omitempty"`
	ObsDilationRadius    *int     `json:"obs_dilation_radius,omitempty"`
	GoalDilationRadius   *int     `json:"goal_dilation_radius,omitempty"`
	MinObsDilationRadius *int     `json:"min_obs_dilation_radius,omitempty"`
	AgentCellRadius      *int     `json:"agent_cell_radius,omitempty"`
	MapSizeCm            *int     `json:"map_size_cm,omitempty"`
	MapResolutionCm      *int     `json:"map_resolution_cm,omitempty"`
	MinGoalDistanceCm    *float64 `json:"min_goal_distance_cm,omitempty"`
	PlanToDilatedGoal    *bool    `json:"plan_to_dilated_goal,omitempty"`

	// Estimator params
	ProcessNoisePos  *float64 `json:"process_noise_pos,omitempty"`
	ProcessNoiseVel  *float64 `json:"process_noise_vel,omitempty"`
	MeasurementNoise *float64 `json:"measurement_noise,omitempty"`
	OccupiedLogOdds  *float64 `json:"occupied_log_odds,omitempty"`
	FreeLogOdds      *float64 `json:"free_log_odds,omitempty"`

	// Executor params
	MaxEpisodeSteps *int    `json:"max_episode_steps,omitempty"`
	MaxRecoveries   *int    `json:"max_recoveries,omitempty"`
	StepTimeout     *string `json:"step_timeout,omitempty"` // duration string like "5s"

	// Telemetry params
	FlushInterval *string `json:"flush_interval,omitempty"` // duration string like "60s"
}

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the
// max file size. Fields omitted from the JSON file retain their default
// values, so partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse JSON into empty config. The Get* methods provide fallback
	// defaults for any fields not specified in the JSON.
	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // deeper packages
		"../../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if c.TurnAngleDeg != nil {
		if *c.TurnAngleDeg <= 0 || *c.TurnAngleDeg > 180 {
			return fmt.Errorf("turn_angle_deg must be in (0, 180], got %f", *c.TurnAngleDeg)
		}
	}

	if c.CollisionThresholdM != nil && *c.CollisionThresholdM < 0 {
		return fmt.Errorf("collision_threshold_m must be non-negative, got %f", *c.CollisionThresholdM)
	}

	if c.PlannerStepSize != nil && *c.PlannerStepSize < 1 {
		return fmt.Errorf("planner_step_size must be at least 1, got %d", *c.PlannerStepSize)
	}

	if c.MapResolutionCm != nil && *c.MapResolutionCm < 1 {
		return fmt.Errorf("map_resolution_cm must be at least 1, got %d", *c.MapResolutionCm)
	}

	// Map size must divide evenly into cells.
	if c.MapSizeCm != nil {
		res := 5
		if c.MapResolutionCm != nil {
			res = *c.MapResolutionCm
		}
		if *c.MapSizeCm <= 0 || *c.MapSizeCm%res != 0 {
			return fmt.Errorf("map_size_cm must be a positive multiple of map_resolution_cm, got %d", *c.MapSizeCm)
		}
	}

	if c.MinObsDilationRadius != nil && c.ObsDilationRadius != nil {
		if *c.MinObsDilationRadius > *c.ObsDilationRadius {
			return fmt.Errorf("min_obs_dilation_radius %d exceeds obs_dilation_radius %d",
				*c.MinObsDilationRadius, *c.ObsDilationRadius)
		}
	}

	if c.StepTimeout != nil && *c.StepTimeout != "" {
		if _, err := time.ParseDuration(*c.StepTimeout); err != nil {
			return fmt.Errorf("invalid step_timeout '%s': %w", *c.StepTimeout, err)
		}
	}

	if c.FlushInterval != nil && *c.FlushInterval != "" {
		if _, err := time.ParseDuration(*c.FlushInterval); err != nil {
			return fmt.Errorf("invalid flush_interval '%s': %w", *c.FlushInterval, err)
		}
	}

	return nil
}

// GetTurnAngleDeg returns the turn_angle_deg value or the default.
func (c *TuningConfig) GetTurnAngleDeg() float64 {
	if c.TurnAngleDeg == nil {
		return 30.0
	}
	return *c.TurnAngleDeg
}

// GetCollisionThresholdM returns the collision_threshold_m value or the default.
func (c *TuningConfig) GetCollisionThresholdM() float64 {
	if c.CollisionThresholdM == nil {
		return 0.20
	}
	return *c.CollisionThresholdM
}

// GetPlannerStepSize returns the planner_step_size value or the default.
func (c *TuningConfig) GetPlannerStepSize() int {
	if c.PlannerStepSize == nil {
		return 5
	}
	return *c.PlannerStepSize
}

// GetObsDilationRadius returns the obs_dilation_radius value or the default.
func (c *TuningConfig) GetObsDilationRadius() int {
	if c.ObsDilationRadius == nil {
		return 3
	}
	return *c.ObsDilationRadius
}

// GetGoalDilationRadius returns the goal_dilation_radius value or the default.
func (c *TuningConfig) GetGoalDilationRadius() int {
	if c.GoalDilationRadius == nil {
		return 10
	}
	return *c.GoalDilationRadius
}

// GetMinObsDilationRadius returns the min_obs_dilation_radius value or the default.
func (c *TuningConfig) GetMinObsDilationRadius() int {
	if c.MinObsDilationRadius == nil {
		return 1
	}
	return *c.MinObsDilationRadius
}

// GetAgentCellRadius returns the agent_cell_radius value or the default.
func (c *TuningConfig) GetAgentCellRadius() int {
	if c.AgentCellRadius == nil {
		return 1
	}
	return *c.AgentCellRadius
}

// GetMapSizeCm returns the map_size_cm value or the default.
func (c *TuningConfig) GetMapSizeCm() int {
	if c.MapSizeCm == nil {
		return 4800
	}
	return *c.MapSizeCm
}

// GetMapResolutionCm returns the map_resolution_cm value or the default.
func (c *TuningConfig) GetMapResolutionCm() int {
	if c.MapResolutionCm == nil {
		return 5
	}
	return *c.MapResolutionCm
}

// GetMinGoalDistanceCm returns the min_goal_distance_cm value or the default.
func (c *TuningConfig) GetMinGoalDistanceCm() float64 {
	if c.MinGoalDistanceCm == nil {
		return 60.0
	}
	return *c.MinGoalDistanceCm
}

// GetPlanToDilatedGoal returns the plan_to_dilated_goal value or the default.
func (c *TuningConfig) GetPlanToDilatedGoal() bool {
	if c.PlanToDilatedGoal == nil {
		return false
	}
	return *c.PlanToDilatedGoal
}

// GetProcessNoisePos returns the process_noise_pos value or the default.
func (c *TuningConfig) GetProcessNoisePos() float64 {
	if c.ProcessNoisePos == nil {
		return 0.1
	}
	return *c.ProcessNoisePos
}

// GetProcessNoiseVel returns the process_noise_vel value or the default.
func (c *TuningConfig) GetProcessNoiseVel() float64 {
	if c.ProcessNoiseVel == nil {
		return 0.5
	}
	return *c.ProcessNoiseVel
}

// GetMeasurementNoise returns the measurement_noise value or the default.
func (c *TuningConfig) GetMeasurementNoise() float64 {
	if c.MeasurementNoise == nil {
		return 0.3
	}
	return *c.MeasurementNoise
}

// GetOccupiedLogOdds returns the occupied_log_odds value or the default.
func (c *TuningConfig) GetOccupiedLogOdds() float64 {
	if c.OccupiedLogOdds == nil {
		return 0.85
	}
	return *c.OccupiedLogOdds
}

// GetFreeLogOdds returns the free_log_odds value or the default.
func (c *TuningConfig) GetFreeLogOdds() float64 {
	if c.FreeLogOdds == nil {
		return -0.4
	}
	return *c.FreeLogOdds
}

// GetMaxEpisodeSteps returns the max_episode_steps value or the default.
func (c *TuningConfig) GetMaxEpisodeSteps() int {
	if c.MaxEpisodeSteps == nil {
		return 500
	}
	return *c.MaxEpisodeSteps
}

// GetMaxRecoveries returns the max_recoveries value or the default.
func (c *TuningConfig) GetMaxRecoveries() int {
	if c.MaxRecoveries == nil {
		return 3
	}
	return *c.MaxRecoveries
}

// GetStepTimeout parses and returns the StepTimeout as a time.Duration.
func (c *TuningConfig) GetStepTimeout() time.Duration {
	if c.StepTimeout == nil || *c.StepTimeout == "" {
		return 5 * time.Second
	}
	d, err := time.ParseDuration(*c.StepTimeout)
	if err != nil {
		return 5 * time.Second
	}
	return d
}

// GetFlushInterval parses and returns the FlushInterval as a time.Duration.
func (c *TuningConfig) GetFlushInterval() time.Duration {
	if c.FlushInterval == nil || *c.FlushInterval == "" {
		return 60 * time.Second
	}
	d, err := time.ParseDuration(*c.FlushInterval)
	if err != nil {
		return 60 * time.Second
	}
	return d
}
