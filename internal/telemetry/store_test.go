package telemetry

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hearthside-robotics/homerover/internal/executor"
	"github.com/hearthside-robotics/homerover/internal/hal"
)

const testMigrationsDir = "../../db/migrations"

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "telemetry.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.MigrateUp(testMigrationsDir))
	return s
}

func TestRecordEpisodeUpsert(t *testing.T) {
	s := openTestStore(t)

	ep := executor.Episode{
		ID:        "ep-1",
		Goal:      executor.Goal{Kind: executor.GoalNavigate, X: 3.5, Y: 2.0},
		State:     executor.EpisodeRunning,
		StartedAt: time.Unix(100, 0),
	}
	require.NoError(t, s.RecordEpisode(ep))

	ep.State = executor.EpisodeSucceeded
	ep.Steps = 12
	ep.FinishedAt = time.Unix(130, 0)
	require.NoError(t, s.RecordEpisode(ep))

	got, err := s.Episode("ep-1")
	require.NoError(t, err)
	require.Equal(t, executor.EpisodeSucceeded, got.State)
	require.Equal(t, 12, got.Steps)
	require.Equal(t, executor.GoalNavigate, got.Goal.Kind)
	require.Equal(t, time.Unix(100, 0).UnixNano(), got.StartedAt.UnixNano())
	require.Equal(t, time.Unix(130, 0).UnixNano(), got.FinishedAt.UnixNano())
}

func TestEpisodeNotFound(t *testing.T) {
	s := openTestStore(t)

	_, err := s.Episode("missing")
	require.True(t, errors.Is(err, ErrNotFound))
}

func TestEpisodesNewestFirst(t *testing.T) {
	s := openTestStore(t)

	for i, id := range []string{"old", "mid", "new"} {
		require.NoError(t, s.RecordEpisode(executor.Episode{
			ID:        id,
			Goal:      executor.Goal{Kind: executor.GoalNavigate},
			State:     executor.EpisodeSucceeded,
			StartedAt: time.Unix(int64(100+i), 0),
		}))
	}

	eps, err := s.Episodes(2)
	require.NoError(t, err)
	require.Len(t, eps, 2)
	require.Equal(t, "new", eps[0].ID)
	require.Equal(t, "mid", eps[1].ID)
}

func TestRecordAndQuerySteps(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.RecordEpisode(executor.Episode{
		ID:        "ep-1",
		Goal:      executor.Goal{Kind: executor.GoalNavigate, X: 3, Y: 3},
		State:     executor.EpisodeRunning,
		StartedAt: time.Unix(100, 0),
	}))

	for i := 0; i < 3; i++ {
		require.NoError(t, s.RecordStep(executor.Step{
			EpisodeID:        "ep-1",
			Index:            i,
			Action:           hal.ActionMoveForward,
			X:                2.5 + 0.25*float64(i),
			Y:                2.5,
			DistanceToGoalCm: 150 - 25*float64(i),
			At:               time.Unix(int64(100+i), 0),
		}))
	}

	steps, err := s.Steps("ep-1")
	require.NoError(t, err)
	require.Len(t, steps, 3)
	require.Equal(t, hal.ActionMoveForward, steps[0].Action)
	require.Equal(t, 2, steps[2].Index)
	require.InDelta(t, 3.0, steps[2].X, 1e-9)

	traj, err := s.Trajectory("ep-1")
	require.NoError(t, err)
	require.Len(t, traj, 3)
	require.InDelta(t, 2.5, traj[0][0], 1e-9)
}

func TestRecordStepRequiresEpisode(t *testing.T) {
	s := openTestStore(t)

	err := s.RecordStep(executor.Step{
		EpisodeID: "nonexistent",
		Action:    hal.ActionStop,
		At:        time.Unix(100, 0),
	})
	require.Error(t, err)
}

func TestStoreImplementsRecorder(t *testing.T) {
	var _ executor.Recorder = openTestStore(t)
}
