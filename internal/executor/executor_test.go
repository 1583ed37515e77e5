package executor

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hearthside-robotics/homerover/internal/estimator"
	"github.com/hearthside-robotics/homerover/internal/hal"
	"github.com/hearthside-robotics/homerover/internal/nav"
)

// fakeRobot is a deterministic kinematic model with its own clock so pose
// fixes arrive at a fixed cadence regardless of test speed.
type fakeRobot struct {
	mu       sync.Mutex
	pose     nav.Pose
	nanos    int64
	bumper   bool
	wallX    float64 // forward moves crossing this x latch the bumper
	executed []hal.DiscreteAction
}

func newFakeRobot(start nav.Pose) *fakeRobot {
	return &fakeRobot{pose: start, wallX: math.Inf(1)}
}

func (f *fakeRobot) State() hal.BaseState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return hal.BaseState{X: f.pose.X, Y: f.pose.Y, ThetaDeg: f.pose.ThetaDeg, Bumper: f.bumper, UnixNanos: f.nanos}
}

func (f *fakeRobot) Observation() (hal.Observation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nanos += int64(100 * time.Millisecond)
	return hal.Observation{Pose: hal.BaseState{
		X: f.pose.X, Y: f.pose.Y, ThetaDeg: f.pose.ThetaDeg,
		Bumper: f.bumper, UnixNanos: f.nanos,
	}}, nil
}

func (f *fakeRobot) Execute(ctx context.Context, action hal.DiscreteAction) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.executed = append(f.executed, action)
	switch action {
	case hal.ActionMoveForward:
		rad := f.pose.ThetaDeg * math.Pi / 180.0
		nx := f.pose.X + 0.25*math.Cos(rad)
		ny := f.pose.Y + 0.25*math.Sin(rad)
		if nx >= f.wallX {
			f.bumper = true
			return nil
		}
		f.pose.X, f.pose.Y = nx, ny
		f.bumper = false
	case hal.ActionTurnLeft:
		f.pose.ThetaDeg = nav.NormalizeAngle(f.pose.ThetaDeg + 30)
		f.bumper = false
	case hal.ActionTurnRight:
		f.pose.ThetaDeg = nav.NormalizeAngle(f.pose.ThetaDeg - 30)
		f.bumper = false
	}
	return nil
}

func (f *fakeRobot) Close() error { return nil }

// memoryRecorder collects everything in memory.
type memoryRecorder struct {
	mu       sync.Mutex
	episodes []Episode
	steps    []Step
}

func (m *memoryRecorder) RecordEpisode(ep Episode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.episodes = append(m.episodes, ep)
	return nil
}

func (m *memoryRecorder) RecordStep(s Step) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.steps = append(m.steps, s)
	return nil
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.MapSizeCm = 500
	cfg.StepTimeout = time.Second
	return cfg
}

func newTestExecutor(t *testing.T, robot hal.RobotClient, rec Recorder) *Executor {
	t.Helper()
	cfg := testConfig()

	pcfg := nav.DefaultPlannerConfig()
	pcfg.MapSizeCm = cfg.MapSizeCm
	planner, err := nav.NewDiscretePlanner(pcfg)
	require.NoError(t, err)

	// Near pass-through filter so the tests stay kinematically exact.
	filter := estimator.NewPoseEstimator(estimator.EstimatorConfig{
		ProcessNoisePos:  0.1,
		ProcessNoiseVel:  0.5,
		MeasurementNoise: 0.001,
		HeadingGain:      1.0,
	})

	occ, err := estimator.NewOccupancyGrid(cfg.MapSizeCm, cfg.MapResolutionCm, 0.85, -0.4)
	require.NoError(t, err)

	exec, err := New(robot, planner, filter, occ, rec, cfg)
	require.NoError(t, err)
	return exec
}

func TestExecutorNavigateSucceeds(t *testing.T) {
	robot := newFakeRobot(nav.Pose{X: 2.5, Y: 2.5})
	rec := &memoryRecorder{}
	exec := newTestExecutor(t, robot, rec)

	ep, err := exec.Submit(Goal{Kind: GoalNavigate, X: 4.0, Y: 2.5})
	require.NoError(t, err)
	require.Equal(t, EpisodePending, ep.State)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- exec.Run(ctx) }()

	require.Eventually(t, func() bool {
		last := exec.Last()
		return last != nil && last.ID == ep.ID
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)

	last := exec.Last()
	require.Equal(t, EpisodeSucceeded, last.State)
	require.Empty(t, last.Error)
	require.Greater(t, last.Steps, 0)

	// The goal is 1.5m ahead with a 0.6m arrival radius: the robot drives
	// straight and never turns.
	for _, a := range robot.executed {
		require.Equal(t, hal.ActionMoveForward, a)
	}
	require.NotEmpty(t, rec.steps)
	require.Len(t, rec.episodes, 2)
	require.Equal(t, EpisodeRunning, rec.episodes[0].State)
	require.Equal(t, EpisodeSucceeded, rec.episodes[1].State)
}

func TestExecutorPickRunsManipulationSequence(t *testing.T) {
	robot := newFakeRobot(nav.Pose{X: 2.5, Y: 2.5})
	exec := newTestExecutor(t, robot, nil)

	// Goal already inside the arrival radius: navigation stops immediately.
	ep, err := exec.Submit(Goal{Kind: GoalPick, X: 2.8, Y: 2.5})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go exec.Run(ctx)

	require.Eventually(t, func() bool {
		last := exec.Last()
		return last != nil && last.ID == ep.ID
	}, 5*time.Second, 10*time.Millisecond)

	require.Equal(t, EpisodeSucceeded, exec.Last().State)
	require.Equal(t, []hal.DiscreteAction{
		hal.ActionManipulationMode,
		hal.ActionExtendArm,
		hal.ActionPickObject,
		hal.ActionNavigationMode,
	}, robot.executed)
}

func TestExecutorFailsWhenRecoveriesExhausted(t *testing.T) {
	robot := newFakeRobot(nav.Pose{X: 2.5, Y: 2.5})
	robot.wallX = 3.0
	exec := newTestExecutor(t, robot, nil)
	exec.config.MaxRecoveries = 0

	ep, err := exec.Submit(Goal{Kind: GoalNavigate, X: 4.5, Y: 2.5})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go exec.Run(ctx)

	require.Eventually(t, func() bool {
		last := exec.Last()
		return last != nil && last.ID == ep.ID
	}, 5*time.Second, 10*time.Millisecond)

	last := exec.Last()
	require.Equal(t, EpisodeFailed, last.State)
	require.Contains(t, last.Error, "recoveries exhausted")
}

func TestExecutorFailsOnStepBudget(t *testing.T) {
	robot := newFakeRobot(nav.Pose{X: 2.5, Y: 2.5})
	exec := newTestExecutor(t, robot, nil)
	exec.config.MaxEpisodeSteps = 2

	// 1.5m away: unreachable in two forward steps.
	ep, err := exec.Submit(Goal{Kind: GoalNavigate, X: 4.0, Y: 2.5})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go exec.Run(ctx)

	require.Eventually(t, func() bool {
		last := exec.Last()
		return last != nil && last.ID == ep.ID
	}, 5*time.Second, 10*time.Millisecond)

	last := exec.Last()
	require.Equal(t, EpisodeFailed, last.State)
	require.Contains(t, last.Error, "step budget")
	require.Equal(t, 2, last.Steps)
}

func TestExecutorAbortsOnCancelledContext(t *testing.T) {
	robot := newFakeRobot(nav.Pose{X: 2.5, Y: 2.5})
	exec := newTestExecutor(t, robot, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	exec.runEpisode(ctx, Episode{ID: "ep", Goal: Goal{Kind: GoalNavigate, X: 4.0, Y: 2.5}})

	last := exec.Last()
	require.Equal(t, EpisodeAborted, last.State)
	require.Empty(t, robot.executed)
}

func TestSubmitValidation(t *testing.T) {
	robot := newFakeRobot(nav.Pose{X: 2.5, Y: 2.5})
	exec := newTestExecutor(t, robot, nil)

	_, err := exec.Submit(Goal{Kind: "fly", X: 1, Y: 1})
	require.Error(t, err)

	_, err = exec.Submit(Goal{Kind: GoalNavigate, X: 99, Y: 1})
	require.Error(t, err)

	_, err = exec.Submit(Goal{Kind: GoalNavigate, X: -0.1, Y: 1})
	require.Error(t, err)
}

func TestSubmitQueueFull(t *testing.T) {
	robot := newFakeRobot(nav.Pose{X: 2.5, Y: 2.5})
	exec := newTestExecutor(t, robot, nil)

	// Nothing drains the queue: the 9th goal must be rejected.
	for i := 0; i < 8; i++ {
		_, err := exec.Submit(Goal{Kind: GoalNavigate, X: 4, Y: 2.5})
		require.NoError(t, err)
	}
	_, err := exec.Submit(Goal{Kind: GoalNavigate, X: 4, Y: 2.5})
	require.Error(t, err)
}
