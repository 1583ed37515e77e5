package hal

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hearthside-robotics/homerover/internal/hal/basemux"
	"github.com/hearthside-robotics/homerover/internal/monitoring"
)

// SerialRobotConfig sets the motion quanta the serial client translates
// discrete actions into.
type SerialRobotConfig struct {
	ForwardStepM float64 // metres per move_forward
	TurnAngleDeg float64 // degrees per turn action
}

// DefaultSerialRobotConfig returns production-default motion quanta.
func DefaultSerialRobotConfig() SerialRobotConfig {
	return SerialRobotConfig{
		ForwardStepM: 0.25,
		TurnAngleDeg: 30.0,
	}
}

// SerialRobot is the physical RobotClient backend: discrete actions become
// drive commands on the base serial link, telemetry lines become state.
type SerialRobot struct {
	mux    basemux.BaseMuxInterface
	config SerialRobotConfig

	mu    sync.RWMutex
	state BaseState
	scan  *RangeScan
}

var _ RobotClient = (*SerialRobot)(nil)

// NewSerialRobot creates a serial-backed robot client over the given mux.
func NewSerialRobot(mux basemux.BaseMuxInterface, config SerialRobotConfig) *SerialRobot {
	return &SerialRobot{mux: mux, config: config}
}

// Listen consumes base telemetry until ctx is cancelled, updating the
// cached state. Run it in its own goroutine alongside the mux Monitor loop.
func (r *SerialRobot) Listen(ctx context.Context) {
	id, ch := r.mux.Subscribe()
	defer r.mux.Unsubscribe(id)

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-ch:
			if !ok {
				return
			}
			if err := r.handleLine(line); err != nil {
				monitoring.Logf("base telemetry: %v", err)
			}
		}
	}
}

func (r *SerialRobot) handleLine(line string) error {
	switch basemux.ClassifyLine(line) {
	case basemux.EventTypePose:
		ev, err := basemux.ParsePose(line)
		if err != nil {
			return err
		}
		r.mu.Lock()
		r.state.X = ev.X
		r.state.Y = ev.Y
		r.state.ThetaDeg = ev.ThetaDeg
		r.state.UnixNanos = time.Now().UnixNano()
		r.mu.Unlock()
	case basemux.EventTypeBump:
		ev, err := basemux.ParseBump(line)
		if err != nil {
			return err
		}
		r.mu.Lock()
		r.state.Bumper = ev.Pressed
		r.state.UnixNanos = time.Now().UnixNano()
		r.mu.Unlock()
	case basemux.EventTypeScan:
		ev, err := basemux.ParseScan(line)
		if err != nil {
			return err
		}
		r.mu.Lock()
		r.scan = &RangeScan{
			Angle0Deg:    ev.Angle0Deg,
			IncrementDeg: ev.IncrementDeg,
			RangesM:      ev.RangesM,
		}
		r.mu.Unlock()
	case basemux.EventTypeBattery:
		// "V,<volts>"
		var volts float64
		if _, err := fmt.Sscanf(line, "V,%f", &volts); err != nil {
			return fmt.Errorf("malformed battery line %q: %w", line, err)
		}
		r.mu.Lock()
		r.state.BatteryV = volts
		r.mu.Unlock()
	case basemux.EventTypeAck, basemux.EventTypeUnknown:
		// acks are fire-and-forget; unknown lines are firmware chatter
	}
	return nil
}

// State returns the last known base state.
func (r *SerialRobot) State() BaseState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// Observation returns the current pose plus the latest range scan.
func (r *SerialRobot) Observation() (Observation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	obs := Observation{Pose: r.state}
	if r.scan != nil {
		scanCopy := *r.scan
		obs.Scan = &scanCopy
	}
	return obs, nil
}

// Execute translates one discrete action into a drive command.
func (r *SerialRobot) Execute(ctx context.Context, action DiscreteAction) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cmd, err := r.commandFor(action)
	if err != nil {
		return err
	}
	if cmd == "" {
		return nil
	}
	if err := r.mux.SendCommand(cmd); err != nil {
		return fmt.Errorf("send %q for action %s: %w", cmd, action, err)
	}
	return nil
}

func (r *SerialRobot) commandFor(action DiscreteAction) (string, error) {
	switch action {
	case ActionMoveForward:
		return fmt.Sprintf("F,%.3f", r.config.ForwardStepM), nil
	case ActionTurnLeft:
		return fmt.Sprintf("T,%.1f", r.config.TurnAngleDeg), nil
	case ActionTurnRight:
		return fmt.Sprintf("T,%.1f", -r.config.TurnAngleDeg), nil
	case ActionStop:
		return "X", nil
	case ActionPickObject:
		return "M,pick", nil
	case ActionPlaceObject:
		return "M,place", nil
	case ActionExtendArm:
		return "M,extend", nil
	case ActionNavigationMode:
		return "C,nav", nil
	case ActionManipulationMode:
		return "C,manip", nil
	case ActionEmpty:
		return "", nil
	default:
		return "", fmt.Errorf("hal: unknown action %q", action)
	}
}

// Close closes the underlying mux.
func (r *SerialRobot) Close() error {
	return r.mux.Close()
}
