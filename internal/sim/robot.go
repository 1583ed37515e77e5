package sim

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/hearthside-robotics/homerover/internal/hal"
	"github.com/hearthside-robotics/homerover/internal/nav"
)

// RobotConfig sets the simulated robot's motion quanta and sensing.
type RobotConfig struct {
	ForwardStepM float64 // metres per move_forward
	TurnAngleDeg float64 // degrees per turn action
	ScanRays     int     // rays per range scan
	ScanFOVDeg   float64 // total scan field of view, centred on heading
	ScanRangeM   float64 // max scan range
	PoseNoiseM   float64 // per-move gaussian position noise sigma (0 = exact)
	Seed         int64   // noise RNG seed (0 = time-based)
}

// DefaultRobotConfig returns noise-free defaults covering a 180° scan.
func DefaultRobotConfig() RobotConfig {
	return RobotConfig{
		ForwardStepM: 0.25,
		TurnAngleDeg: 30.0,
		ScanRays:     37,
		ScanFOVDeg:   180.0,
		ScanRangeM:   4.0,
	}
}

// Robot is the simulated RobotClient backend.
type Robot struct {
	world  *World
	config RobotConfig
	rng    *rand.Rand

	mu     sync.RWMutex
	pose   nav.Pose
	bumper bool
	mode   hal.DiscreteAction // navigation_mode or manipulation_mode
	closed bool
}

var _ hal.RobotClient = (*Robot)(nil)

// NewRobot places a simulated robot in the world at the given pose.
func NewRobot(world *World, config RobotConfig, start nav.Pose) (*Robot, error) {
	if world == nil {
		return nil, fmt.Errorf("sim: robot needs a world")
	}
	if world.OccupiedAt(start.X, start.Y) {
		return nil, fmt.Errorf("sim: start pose (%.2f, %.2f) is occupied", start.X, start.Y)
	}
	seed := config.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Robot{
		world:  world,
		config: config,
		rng:    rand.New(rand.NewSource(seed)),
		pose:   start,
		mode:   hal.ActionNavigationMode,
	}, nil
}

// State returns the current base state.
func (r *Robot) State() hal.BaseState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return hal.BaseState{
		X:         r.pose.X,
		Y:         r.pose.Y,
		ThetaDeg:  r.pose.ThetaDeg,
		Bumper:    r.bumper,
		BatteryV:  12.6, // simulated base never discharges
		UnixNanos: time.Now().UnixNano(),
	}
}

// Observation returns the pose plus a fresh ray-cast scan.
func (r *Robot) Observation() (hal.Observation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return hal.Observation{}, fmt.Errorf("sim: robot closed")
	}

	scan := &hal.RangeScan{
		Angle0Deg:    -r.config.ScanFOVDeg / 2.0,
		IncrementDeg: r.config.ScanFOVDeg / float64(r.config.ScanRays-1),
		RangesM:      make([]float64, r.config.ScanRays),
	}
	for i := 0; i < r.config.ScanRays; i++ {
		bearing := r.pose.ThetaDeg + scan.Angle0Deg + float64(i)*scan.IncrementDeg
		scan.RangesM[i] = r.world.Raycast(r.pose.X, r.pose.Y, bearing, r.config.ScanRangeM)
	}

	return hal.Observation{
		Pose: hal.BaseState{
			X:         r.pose.X,
			Y:         r.pose.Y,
			ThetaDeg:  r.pose.ThetaDeg,
			Bumper:    r.bumper,
			BatteryV:  12.6,
			UnixNanos: time.Now().UnixNano(),
		},
		Scan: scan,
	}, nil
}

// Execute applies one discrete action to the kinematic model. A forward
// move into an occupied cell leaves the pose unchanged and latches the
// bumper until the next successful action.
func (r *Robot) Execute(ctx context.Context, action hal.DiscreteAction) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !action.Valid() {
		return fmt.Errorf("sim: unknown action %q", action)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return fmt.Errorf("sim: robot closed")
	}

	switch action {
	case hal.ActionMoveForward:
		rad := r.pose.ThetaDeg * math.Pi / 180.0
		nx := r.pose.X + r.config.ForwardStepM*math.Cos(rad)
		ny := r.pose.Y + r.config.ForwardStepM*math.Sin(rad)
		if r.config.PoseNoiseM > 0 {
			nx += r.rng.NormFloat64() * r.config.PoseNoiseM
			ny += r.rng.NormFloat64() * r.config.PoseNoiseM
		}
		if r.world.OccupiedAt(nx, ny) {
			r.bumper = true
			return nil
		}
		r.pose.X = nx
		r.pose.Y = ny
		r.bumper = false
	case hal.ActionTurnLeft:
		r.pose.ThetaDeg = nav.NormalizeAngle(r.pose.ThetaDeg + r.config.TurnAngleDeg)
		r.bumper = false
	case hal.ActionTurnRight:
		r.pose.ThetaDeg = nav.NormalizeAngle(r.pose.ThetaDeg - r.config.TurnAngleDeg)
		r.bumper = false
	case hal.ActionNavigationMode, hal.ActionManipulationMode:
		r.mode = action
	case hal.ActionStop, hal.ActionEmpty:
		// no-op for the base
	case hal.ActionPickObject, hal.ActionPlaceObject, hal.ActionExtendArm:
		if r.mode != hal.ActionManipulationMode {
			return fmt.Errorf("sim: %s requires manipulation mode", action)
		}
	}
	return nil
}

// Mode returns the current control mode.
func (r *Robot) Mode() hal.DiscreteAction {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.mode
}

// Close marks the robot unusable.
func (r *Robot) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}
