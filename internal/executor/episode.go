package executor

import (
	"fmt"
	"time"

	"github.com/hearthside-robotics/homerover/internal/hal"
)

// GoalKind selects what an episode should do once it reaches the target.
type GoalKind string

const (
	GoalNavigate GoalKind = "navigate"
	GoalPick     GoalKind = "pick"
	GoalPlace    GoalKind = "place"
)

// Valid reports whether k is a known goal kind.
func (k GoalKind) Valid() bool {
	switch k {
	case GoalNavigate, GoalPick, GoalPlace:
		return true
	}
	return false
}

// Goal is a navigation target in world coordinates (metres), optionally
// followed by a manipulation.
type Goal struct {
	Kind GoalKind `json:"kind"`
	X    float64  `json:"x"`
	Y    float64  `json:"y"`
}

// Validate checks the goal against the map extent in metres.
func (g Goal) Validate(mapSizeM float64) error {
	if !g.Kind.Valid() {
		return fmt.Errorf("executor: unknown goal kind %q", g.Kind)
	}
	if g.X < 0 || g.Y < 0 || g.X >= mapSizeM || g.Y >= mapSizeM {
		return fmt.Errorf("executor: goal (%.2f, %.2f) outside the %.1fm map", g.X, g.Y, mapSizeM)
	}
	return nil
}

// EpisodeState is the lifecycle state of one episode.
type EpisodeState string

const (
	EpisodePending   EpisodeState = "pending"
	EpisodeRunning   EpisodeState = "running"
	EpisodeSucceeded EpisodeState = "succeeded"
	EpisodeFailed    EpisodeState = "failed"
	EpisodeAborted   EpisodeState = "aborted"
)

// Terminal reports whether the state is final.
func (s EpisodeState) Terminal() bool {
	switch s {
	case EpisodeSucceeded, EpisodeFailed, EpisodeAborted:
		return true
	}
	return false
}

// Episode is one goal execution attempt.
type Episode struct {
	ID         string       `json:"id"`
	Goal       Goal         `json:"goal"`
	State      EpisodeState `json:"state"`
	Steps      int          `json:"steps"`
	Recoveries int          `json:"recoveries"`
	Error      string       `json:"error,omitempty"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at,omitzero"`
}

// Step is one planner/robot cycle inside an episode.
type Step struct {
	EpisodeID        string             `json:"episode_id"`
	Index            int                `json:"index"`
	Action           hal.DiscreteAction `json:"action"`
	X                float64            `json:"x"`
	Y                float64            `json:"y"`
	ThetaDeg         float64            `json:"theta_deg"`
	DistanceToGoalCm float64            `json:"distance_to_goal_cm"`
	Replanned        bool               `json:"replanned"`
	Bumper           bool               `json:"bumper"`
	At               time.Time          `json:"at"`
}

// Recorder persists episodes and steps. Implementations must tolerate
// being called from the executor goroutine only.
type Recorder interface {
	RecordEpisode(ep Episode) error
	RecordStep(step Step) error
}

// NopRecorder discards everything. Used when the daemon runs without a
// telemetry database.
type NopRecorder struct{}

func (NopRecorder) RecordEpisode(Episode) error { return nil }
func (NopRecorder) RecordStep(Step) error       { return nil }
