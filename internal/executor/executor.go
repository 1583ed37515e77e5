package executor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hearthside-robotics/homerover/internal/config"
	"github.com/hearthside-robotics/homerover/internal/estimator"
	"github.com/hearthside-robotics/homerover/internal/hal"
	"github.com/hearthside-robotics/homerover/internal/monitoring"
	"github.com/hearthside-robotics/homerover/internal/nav"
)

// Config holds executor budgets and the map geometry used to place goals.
type Config struct {
	MaxEpisodeSteps int
	MaxRecoveries   int
	StepTimeout     time.Duration

	MapSizeCm       int
	MapResolutionCm int

	// ScanRangeM bounds occupancy ray clearing; ForwardStepM sizes the
	// obstacle patch painted on bump events.
	ScanRangeM   float64
	ForwardStepM float64
}

// DefaultConfig returns production-default executor parameters.
func DefaultConfig() Config {
	return Config{
		MaxEpisodeSteps: 500,
		MaxRecoveries:   3,
		StepTimeout:     5 * time.Second,
		MapSizeCm:       4800,
		MapResolutionCm: 5,
		ScanRangeM:      4.0,
		ForwardStepM:    0.25,
	}
}

// ConfigFromTuning derives executor config from a TuningConfig.
func ConfigFromTuning(t *config.TuningConfig) Config {
	cfg := DefaultConfig()
	cfg.MaxEpisodeSteps = t.GetMaxEpisodeSteps()
	cfg.MaxRecoveries = t.GetMaxRecoveries()
	cfg.StepTimeout = t.GetStepTimeout()
	cfg.MapSizeCm = t.GetMapSizeCm()
	cfg.MapResolutionCm = t.GetMapResolutionCm()
	return cfg
}

// Executor dequeues goals and runs them as episodes against one robot.
type Executor struct {
	robot     hal.RobotClient
	planner   *nav.DiscretePlanner
	filter    *estimator.PoseEstimator
	occupancy *estimator.OccupancyGrid
	recorder  Recorder
	config    Config

	queue chan Episode

	mu      sync.Mutex
	current *Episode
	last    *Episode
}

// New creates an executor. A nil recorder records nothing.
func New(robot hal.RobotClient, planner *nav.DiscretePlanner, filter *estimator.PoseEstimator,
	occupancy *estimator.OccupancyGrid, recorder Recorder, cfg Config) (*Executor, error) {
	if robot == nil || planner == nil || filter == nil || occupancy == nil {
		return nil, fmt.Errorf("executor: robot, planner, filter, and occupancy are all required")
	}
	if cfg.MaxEpisodeSteps < 1 {
		return nil, fmt.Errorf("executor: max episode steps must be positive, got %d", cfg.MaxEpisodeSteps)
	}
	if recorder == nil {
		recorder = NopRecorder{}
	}
	return &Executor{
		robot:     robot,
		planner:   planner,
		filter:    filter,
		occupancy: occupancy,
		recorder:  recorder,
		config:    cfg,
		queue:     make(chan Episode, 8),
	}, nil
}

// Submit validates and enqueues a goal, returning the pending episode.
func (e *Executor) Submit(goal Goal) (Episode, error) {
	if err := goal.Validate(float64(e.config.MapSizeCm) / 100.0); err != nil {
		return Episode{}, err
	}
	ep := Episode{
		ID:    uuid.NewString(),
		Goal:  goal,
		State: EpisodePending,
	}
	select {
	case e.queue <- ep:
		return ep, nil
	default:
		return Episode{}, fmt.Errorf("executor: goal queue full")
	}
}

// Current returns a copy of the running episode, or nil.
func (e *Executor) Current() *Episode {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current == nil {
		return nil
	}
	ep := *e.current
	return &ep
}

// Last returns a copy of the most recently finished episode, or nil.
func (e *Executor) Last() *Episode {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.last == nil {
		return nil
	}
	ep := *e.last
	return &ep
}

// Run processes the goal queue until ctx is cancelled.
func (e *Executor) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ep := <-e.queue:
			e.runEpisode(ctx, ep)
		}
	}
}

func (e *Executor) runEpisode(ctx context.Context, ep Episode) {
	ep.State = EpisodeRunning
	ep.StartedAt = time.Now()
	e.setCurrent(&ep)
	e.planner.Reset()

	monitoring.Logf("episode %s: %s goal (%.2f, %.2f)", ep.ID, ep.Goal.Kind, ep.Goal.X, ep.Goal.Y)
	if err := e.recorder.RecordEpisode(ep); err != nil {
		monitoring.Logf("episode %s: record: %v", ep.ID, err)
	}

	state, errMsg := e.navigate(ctx, &ep)
	if state == EpisodeSucceeded && ep.Goal.Kind != GoalNavigate {
		state, errMsg = e.manipulate(ctx, &ep)
	}

	ep.State = state
	ep.Error = errMsg
	ep.FinishedAt = time.Now()
	e.finish(&ep)
}

// navigate runs the observe/estimate/plan/execute loop until arrival or a
// terminal condition.
func (e *Executor) navigate(ctx context.Context, ep *Episode) (EpisodeState, string) {
	rows := e.config.MapSizeCm / e.config.MapResolutionCm
	res := float64(e.config.MapResolutionCm)

	goalMap := nav.NewGrid(rows, rows)
	gr, gc := nav.ThresholdCell(int(ep.Goal.Y*100.0/res), int(ep.Goal.X*100.0/res), rows, rows)
	goalMap.Set(gr, gc, 1)

	for ep.Steps < e.config.MaxEpisodeSteps {
		if ctx.Err() != nil {
			return EpisodeAborted, ctx.Err().Error()
		}

		obs, err := e.robot.Observation()
		if err != nil {
			return EpisodeFailed, fmt.Sprintf("observation: %v", err)
		}
		if err := e.filter.Update(obs.Pose.X, obs.Pose.Y, obs.Pose.ThetaDeg, obs.Pose.UnixNanos); err != nil {
			monitoring.Logf("episode %s: dropping pose fix: %v", ep.ID, err)
		}
		est := e.filter.Estimate()
		e.occupancy.UpdateScan(est.Pose, obs.Scan, e.config.ScanRangeM)

		if obs.Pose.Bumper {
			e.occupancy.UpdateBump(est.Pose, e.config.ForwardStepM)
			ep.Recoveries++
			e.setCurrent(ep)
			if ep.Recoveries > e.config.MaxRecoveries {
				return EpisodeFailed, fmt.Sprintf("recoveries exhausted after %d bumps", ep.Recoveries)
			}
			monitoring.Logf("episode %s: bump, recovery %d of %d", ep.ID, ep.Recoveries, e.config.MaxRecoveries)
		}

		result, err := e.planner.Plan(nav.PlanInput{
			ObstacleMap: e.occupancy.ObstacleMap(),
			GoalMap:     goalMap,
			SensorPose: [7]float64{
				est.Pose.X, est.Pose.Y, est.Pose.ThetaDeg,
				0, float64(rows), 0, float64(rows),
			},
			FoundGoal: true,
		})
		if err != nil {
			return EpisodeFailed, fmt.Sprintf("plan: %v", err)
		}

		if err := e.recorder.RecordStep(Step{
			EpisodeID:        ep.ID,
			Index:            ep.Steps,
			Action:           result.Action,
			X:                est.Pose.X,
			Y:                est.Pose.Y,
			ThetaDeg:         est.Pose.ThetaDeg,
			DistanceToGoalCm: result.DistanceToGoal,
			Replanned:        result.Replanned,
			Bumper:           obs.Pose.Bumper,
			At:               time.Now(),
		}); err != nil {
			monitoring.Logf("episode %s: record step: %v", ep.ID, err)
		}

		if result.Stop {
			return EpisodeSucceeded, ""
		}

		if err := e.execute(ctx, result.Action); err != nil {
			if ctx.Err() != nil {
				return EpisodeAborted, ctx.Err().Error()
			}
			return EpisodeFailed, fmt.Sprintf("execute %s: %v", result.Action, err)
		}
		ep.Steps++
		e.setCurrent(ep)
	}
	return EpisodeFailed, fmt.Sprintf("step budget of %d exhausted", e.config.MaxEpisodeSteps)
}

// manipulate performs the pick or place sequence after arrival.
func (e *Executor) manipulate(ctx context.Context, ep *Episode) (EpisodeState, string) {
	grab := hal.ActionPickObject
	if ep.Goal.Kind == GoalPlace {
		grab = hal.ActionPlaceObject
	}
	sequence := []hal.DiscreteAction{
		hal.ActionManipulationMode,
		hal.ActionExtendArm,
		grab,
		hal.ActionNavigationMode,
	}
	for _, action := range sequence {
		if err := e.execute(ctx, action); err != nil {
			if ctx.Err() != nil {
				return EpisodeAborted, ctx.Err().Error()
			}
			return EpisodeFailed, fmt.Sprintf("execute %s: %v", action, err)
		}
		ep.Steps++
		e.setCurrent(ep)
	}
	return EpisodeSucceeded, ""
}

func (e *Executor) execute(ctx context.Context, action hal.DiscreteAction) error {
	stepCtx, cancel := context.WithTimeout(ctx, e.config.StepTimeout)
	defer cancel()
	return e.robot.Execute(stepCtx, action)
}

func (e *Executor) setCurrent(ep *Episode) {
	e.mu.Lock()
	copied := *ep
	e.current = &copied
	e.mu.Unlock()
}

func (e *Executor) finish(ep *Episode) {
	monitoring.Logf("episode %s: %s after %d steps (%s)", ep.ID, ep.State, ep.Steps, ep.Error)
	if err := e.recorder.RecordEpisode(*ep); err != nil {
		monitoring.Logf("episode %s: record: %v", ep.ID, err)
	}
	e.mu.Lock()
	copied := *ep
	e.last = &copied
	e.current = nil
	e.mu.Unlock()
}
