package hal

import "context"

// BaseState is the mobile base's reported state in the world frame.
// Positions are metres, heading is degrees in (-180, 180].
type BaseState struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	ThetaDeg float64 `json:"theta_deg"`

	Bumper    bool    `json:"bumper"`
	BatteryV  float64 `json:"battery_v"`
	UnixNanos int64   `json:"unix_nanos"`
}

// RangeScan is one planar range sweep. Bearings are relative to the base
// heading; ranges are metres, non-positive meaning no return.
type RangeScan struct {
	Angle0Deg    float64   `json:"angle0_deg"`
	IncrementDeg float64   `json:"increment_deg"`
	RangesM      []float64 `json:"ranges_m"`
}

// Observation pairs the base state with the most recent range scan.
type Observation struct {
	Pose BaseState  `json:"pose"`
	Scan *RangeScan `json:"scan,omitempty"`
}

// RobotClient is the uniform command/state interface over simulated and
// physical robots.
type RobotClient interface {
	// State returns the last known base state.
	State() BaseState
	// Observation returns the current pose plus the latest range scan.
	Observation() (Observation, error)
	// Execute performs one discrete action, blocking until the backend has
	// accepted it or ctx is cancelled.
	Execute(ctx context.Context, action DiscreteAction) error
	// Close releases the backend.
	Close() error
}
