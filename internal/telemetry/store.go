package telemetry

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hearthside-robotics/homerover/internal/executor"
	"github.com/hearthside-robotics/homerover/internal/hal"
)

// ErrNotFound is returned when a queried episode does not exist.
var ErrNotFound = errors.New("telemetry: not found")

// Store is the episode/step log. It embeds *sql.DB so callers can issue
// ad-hoc queries when needed.
type Store struct {
	*sql.DB
}

// Open opens (or creates) the SQLite database at path. The schema is not
// created here; run MigrateUp first.
func Open(path string) (*Store, error) {
	// Pragmas ride on the DSN so every pooled connection gets them.
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// Single writer keeps modernc's driver away from SQLITE_BUSY loops.
	db.SetMaxOpenConns(1)
	return &Store{db}, nil
}

var _ executor.Recorder = (*Store)(nil)

// RecordEpisode inserts or updates one episode row.
func (s *Store) RecordEpisode(ep executor.Episode) error {
	var finished any
	if !ep.FinishedAt.IsZero() {
		finished = ep.FinishedAt.UnixNano()
	}
	_, err := s.Exec(`
		INSERT INTO episodes (id, goal_kind, goal_x, goal_y, state, steps, recoveries, error, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			state = excluded.state,
			steps = excluded.steps,
			recoveries = excluded.recoveries,
			error = excluded.error,
			finished_at = excluded.finished_at`,
		ep.ID, string(ep.Goal.Kind), ep.Goal.X, ep.Goal.Y, string(ep.State),
		ep.Steps, ep.Recoveries, ep.Error, ep.StartedAt.UnixNano(), finished,
	)
	if err != nil {
		return fmt.Errorf("telemetry: record episode %s: %w", ep.ID, err)
	}
	return nil
}

// RecordStep appends one step row.
func (s *Store) RecordStep(step executor.Step) error {
	_, err := s.Exec(`
		INSERT INTO steps (episode_id, idx, action, x, y, theta_deg, distance_to_goal_cm, replanned, bumper, at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		step.EpisodeID, step.Index, string(step.Action), step.X, step.Y, step.ThetaDeg,
		step.DistanceToGoalCm, step.Replanned, step.Bumper, step.At.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("telemetry: record step %d of %s: %w", step.Index, step.EpisodeID, err)
	}
	return nil
}

// Episodes returns up to limit episodes, newest first.
func (s *Store) Episodes(limit int) ([]executor.Episode, error) {
	if limit < 1 {
		limit = 50
	}
	rows, err := s.Query(`
		SELECT id, goal_kind, goal_x, goal_y, state, steps, recoveries, error, started_at, finished_at
		FROM episodes ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("telemetry: list episodes: %w", err)
	}
	defer rows.Close()

	var out []executor.Episode
	for rows.Next() {
		ep, err := scanEpisode(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ep)
	}
	return out, rows.Err()
}

// Episode returns one episode by id.
func (s *Store) Episode(id string) (executor.Episode, error) {
	rows, err := s.Query(`
		SELECT id, goal_kind, goal_x, goal_y, state, steps, recoveries, error, started_at, finished_at
		FROM episodes WHERE id = ?`, id)
	if err != nil {
		return executor.Episode{}, fmt.Errorf("telemetry: get episode %s: %w", id, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return executor.Episode{}, err
		}
		return executor.Episode{}, ErrNotFound
	}
	return scanEpisode(rows)
}

// Steps returns an episode's steps in execution order.
func (s *Store) Steps(episodeID string) ([]executor.Step, error) {
	rows, err := s.Query(`
		SELECT episode_id, idx, action, x, y, theta_deg, distance_to_goal_cm, replanned, bumper, at
		FROM steps WHERE episode_id = ? ORDER BY idx ASC`, episodeID)
	if err != nil {
		return nil, fmt.Errorf("telemetry: steps of %s: %w", episodeID, err)
	}
	defer rows.Close()

	var out []executor.Step
	for rows.Next() {
		var step executor.Step
		var action string
		var at int64
		if err := rows.Scan(&step.EpisodeID, &step.Index, &action, &step.X, &step.Y,
			&step.ThetaDeg, &step.DistanceToGoalCm, &step.Replanned, &step.Bumper, &at); err != nil {
			return nil, fmt.Errorf("telemetry: scan step: %w", err)
		}
		step.Action = hal.DiscreteAction(action)
		step.At = time.Unix(0, at)
		out = append(out, step)
	}
	return out, rows.Err()
}

// Trajectory returns (x, y) step positions for plotting, oldest first.
func (s *Store) Trajectory(episodeID string) ([][2]float64, error) {
	steps, err := s.Steps(episodeID)
	if err != nil {
		return nil, err
	}
	out := make([][2]float64, len(steps))
	for i, st := range steps {
		out[i] = [2]float64{st.X, st.Y}
	}
	return out, nil
}

func scanEpisode(rows *sql.Rows) (executor.Episode, error) {
	var ep executor.Episode
	var kind, state string
	var started int64
	var finished sql.NullInt64
	if err := rows.Scan(&ep.ID, &kind, &ep.Goal.X, &ep.Goal.Y, &state,
		&ep.Steps, &ep.Recoveries, &ep.Error, &started, &finished); err != nil {
		return executor.Episode{}, fmt.Errorf("telemetry: scan episode: %w", err)
	}
	ep.Goal.Kind = executor.GoalKind(kind)
	ep.State = executor.EpisodeState(state)
	ep.StartedAt = time.Unix(0, started)
	if finished.Valid {
		ep.FinishedAt = time.Unix(0, finished.Int64)
	}
	return ep, nil
}
