package hal

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/hearthside-robotics/homerover/internal/hal/basemux"
)

func TestParseAction(t *testing.T) {
	a, err := ParseAction("move_forward")
	if err != nil || a != ActionMoveForward {
		t.Errorf("ParseAction(move_forward) = %v, %v", a, err)
	}
	if _, err := ParseAction("teleport"); err == nil {
		t.Error("ParseAction(teleport) succeeded, want error")
	}
}

func TestActionPredicates(t *testing.T) {
	if !ActionMoveForward.IsMotion() || !ActionTurnLeft.IsMotion() || !ActionTurnRight.IsMotion() {
		t.Error("motion actions misclassified")
	}
	if ActionStop.IsMotion() || ActionPickObject.IsMotion() {
		t.Error("non-motion actions classified as motion")
	}
	if !ActionEmpty.Valid() {
		t.Error("empty action should be valid")
	}
}

func TestSerialRobotExecuteCommands(t *testing.T) {
	port := &basemux.MockBasePort{}
	mux := basemux.NewBaseMux[*basemux.MockBasePort](port)
	robot := NewSerialRobot(mux, DefaultSerialRobotConfig())
	ctx := context.Background()

	tests := []struct {
		action DiscreteAction
		want   string
	}{
		{ActionMoveForward, "F,0.250"},
		{ActionTurnLeft, "T,30.0"},
		{ActionTurnRight, "T,-30.0"},
		{ActionStop, "X"},
		{ActionPickObject, "M,pick"},
		{ActionNavigationMode, "C,nav"},
	}
	for _, tt := range tests {
		if err := robot.Execute(ctx, tt.action); err != nil {
			t.Fatalf("Execute(%s): %v", tt.action, err)
		}
	}

	lines := strings.Split(strings.TrimSpace(string(port.Written())), "\n")
	if len(lines) != len(tests) {
		t.Fatalf("wrote %d commands, want %d: %q", len(lines), len(tests), lines)
	}
	for i, tt := range tests {
		if lines[i] != tt.want {
			t.Errorf("command %d = %q, want %q", i, lines[i], tt.want)
		}
	}
}

func TestSerialRobotEmptyActionSendsNothing(t *testing.T) {
	port := &basemux.MockBasePort{}
	mux := basemux.NewBaseMux[*basemux.MockBasePort](port)
	robot := NewSerialRobot(mux, DefaultSerialRobotConfig())

	if err := robot.Execute(context.Background(), ActionEmpty); err != nil {
		t.Fatalf("Execute(empty): %v", err)
	}
	if len(port.Written()) != 0 {
		t.Errorf("empty action wrote %q", port.Written())
	}
}

func TestSerialRobotExecuteCancelled(t *testing.T) {
	mux := basemux.NewMockBaseMux(nil)
	robot := NewSerialRobot(mux, DefaultSerialRobotConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := robot.Execute(ctx, ActionMoveForward); err == nil {
		t.Error("Execute with cancelled context succeeded, want error")
	}
}

func TestSerialRobotListenUpdatesState(t *testing.T) {
	telemetry := "P,1.5,2.5,45.0\nB,1\nV,11.9\nS,-90.0,90.0,1.0;2.0;0.5\n"
	mux := basemux.NewMockBaseMux([]byte(telemetry))
	robot := NewSerialRobot(mux, DefaultSerialRobotConfig())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	go mux.Monitor(ctx)
	go robot.Listen(ctx)

	deadline := time.After(2 * time.Second)
	for {
		st := robot.State()
		obs, err := robot.Observation()
		if err != nil {
			t.Fatalf("Observation: %v", err)
		}
		if st.X == 1.5 && st.Y == 2.5 && st.ThetaDeg == 45.0 && st.Bumper &&
			st.BatteryV == 11.9 && obs.Scan != nil && len(obs.Scan.RangesM) == 3 {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("state never converged: %+v scan=%v", st, obs.Scan)
		case <-time.After(10 * time.Millisecond):
		}
	}
}
