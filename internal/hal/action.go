package hal

import "fmt"

// DiscreteAction is a low-level robot action. The vocabulary covers base
// motion, the two control modes, and the manipulation primitives.
type DiscreteAction string

const (
	ActionStop             DiscreteAction = "stop"
	ActionMoveForward      DiscreteAction = "move_forward"
	ActionTurnLeft         DiscreteAction = "turn_left"
	ActionTurnRight        DiscreteAction = "turn_right"
	ActionPickObject       DiscreteAction = "pick_object"
	ActionPlaceObject      DiscreteAction = "place_object"
	ActionExtendArm        DiscreteAction = "extend_arm"
	ActionNavigationMode   DiscreteAction = "navigation_mode"
	ActionManipulationMode DiscreteAction = "manipulation_mode"
	ActionEmpty            DiscreteAction = "empty"
)

// Valid reports whether a is a known discrete action.
func (a DiscreteAction) Valid() bool {
	switch a {
	case ActionStop, ActionMoveForward, ActionTurnLeft, ActionTurnRight,
		ActionPickObject, ActionPlaceObject, ActionExtendArm,
		ActionNavigationMode, ActionManipulationMode, ActionEmpty:
		return true
	}
	return false
}

// IsMotion reports whether a moves the base.
func (a DiscreteAction) IsMotion() bool {
	switch a {
	case ActionMoveForward, ActionTurnLeft, ActionTurnRight:
		return true
	}
	return false
}

// ParseAction converts a string into a DiscreteAction.
func ParseAction(s string) (DiscreteAction, error) {
	a := DiscreteAction(s)
	if !a.Valid() {
		return "", fmt.Errorf("hal: unknown action %q", s)
	}
	return a, nil
}
