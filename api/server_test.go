package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hearthside-robotics/homerover/internal/estimator"
	"github.com/hearthside-robotics/homerover/internal/executor"
	"github.com/hearthside-robotics/homerover/internal/hal"
	"github.com/hearthside-robotics/homerover/internal/nav"
	"github.com/hearthside-robotics/homerover/internal/telemetry"
	"github.com/hearthside-robotics/homerover/internal/testutil"
)

type stubRobot struct {
	executed []hal.DiscreteAction
}

func (s *stubRobot) State() hal.BaseState {
	return hal.BaseState{X: 2.5, Y: 2.5, BatteryV: 12.1, UnixNanos: 1}
}

func (s *stubRobot) Observation() (hal.Observation, error) {
	return hal.Observation{Pose: s.State()}, nil
}

func (s *stubRobot) Execute(ctx context.Context, action hal.DiscreteAction) error {
	s.executed = append(s.executed, action)
	return nil
}

func (s *stubRobot) Close() error { return nil }

func newTestServer(t *testing.T, withStore bool) (*Server, *stubRobot, *telemetry.Store) {
	t.Helper()
	robot := &stubRobot{}

	pcfg := nav.DefaultPlannerConfig()
	pcfg.MapSizeCm = 500
	planner, err := nav.NewDiscretePlanner(pcfg)
	testutil.AssertNoError(t, err)

	filter := estimator.NewPoseEstimator(estimator.DefaultEstimatorConfig())
	occ, err := estimator.NewOccupancyGrid(500, 5, 0.85, -0.4)
	testutil.AssertNoError(t, err)

	var store *telemetry.Store
	if withStore {
		store, err = telemetry.Open(filepath.Join(t.TempDir(), "api.db"))
		testutil.AssertNoError(t, err)
		t.Cleanup(func() { store.Close() })
		testutil.AssertNoError(t, store.MigrateUp("../db/migrations"))
	}

	cfg := executor.DefaultConfig()
	cfg.MapSizeCm = 500
	var rec executor.Recorder
	if store != nil {
		rec = store
	}
	exec, err := executor.New(robot, planner, filter, occ, rec, cfg)
	testutil.AssertNoError(t, err)

	return NewServer(robot, exec, filter, occ, store), robot, store
}

func TestStatusHandler(t *testing.T) {
	s, _, _ := newTestServer(t, false)
	mux := s.ServeMux()

	w := testutil.NewTestRecorder()
	mux.ServeHTTP(w, testutil.NewTestRequest(http.MethodGet, "/status"))
	testutil.AssertStatusCode(t, w.Code, http.StatusOK)

	var body map[string]any
	testutil.AssertNoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	if _, ok := body["base"]; !ok {
		t.Error("status payload missing base state")
	}
	if _, ok := body["estimate"]; !ok {
		t.Error("status payload missing estimate")
	}
}

func TestPoseHandlerMethodNotAllowed(t *testing.T) {
	s, _, _ := newTestServer(t, false)
	mux := s.ServeMux()

	w := testutil.NewTestRecorder()
	mux.ServeHTTP(w, testutil.NewTestRequest(http.MethodPost, "/pose"))
	testutil.AssertStatusCode(t, w.Code, http.StatusMethodNotAllowed)
}

func TestSubmitGoal(t *testing.T) {
	s, _, _ := newTestServer(t, false)
	mux := s.ServeMux()

	req := httptest.NewRequest(http.MethodPost, "/goal", strings.NewReader(`{"kind":"navigate","x":3.0,"y":2.0}`))
	w := testutil.NewTestRecorder()
	mux.ServeHTTP(w, req)
	testutil.AssertStatusCode(t, w.Code, http.StatusAccepted)

	var ep executor.Episode
	testutil.AssertNoError(t, json.Unmarshal(w.Body.Bytes(), &ep))
	if ep.ID == "" {
		t.Error("submitted episode has no id")
	}
	if ep.State != executor.EpisodePending {
		t.Errorf("episode state = %s, want pending", ep.State)
	}
}

func TestSubmitGoalRejectsInvalid(t *testing.T) {
	s, _, _ := newTestServer(t, false)
	mux := s.ServeMux()

	req := httptest.NewRequest(http.MethodPost, "/goal", strings.NewReader(`{"kind":"fly","x":1,"y":1}`))
	w := testutil.NewTestRecorder()
	mux.ServeHTTP(w, req)
	testutil.AssertStatusCode(t, w.Code, http.StatusBadRequest)

	// Outside the map.
	req = httptest.NewRequest(http.MethodPost, "/goal", strings.NewReader(`{"kind":"navigate","x":99,"y":1}`))
	w = testutil.NewTestRecorder()
	mux.ServeHTTP(w, req)
	testutil.AssertStatusCode(t, w.Code, http.StatusBadRequest)
}

func TestSendCommand(t *testing.T) {
	s, robot, _ := newTestServer(t, false)
	mux := s.ServeMux()

	req := httptest.NewRequest(http.MethodPost, "/command", strings.NewReader("command=move_forward"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := testutil.NewTestRecorder()
	mux.ServeHTTP(w, req)
	testutil.AssertStatusCode(t, w.Code, http.StatusOK)

	if len(robot.executed) != 1 || robot.executed[0] != hal.ActionMoveForward {
		t.Errorf("robot executed %v, want [move_forward]", robot.executed)
	}
}

func TestSendCommandRejectsUnknownAction(t *testing.T) {
	s, _, _ := newTestServer(t, false)
	mux := s.ServeMux()

	req := httptest.NewRequest(http.MethodPost, "/command", strings.NewReader("command=levitate"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := testutil.NewTestRecorder()
	mux.ServeHTTP(w, req)
	testutil.AssertStatusCode(t, w.Code, http.StatusBadRequest)
}

func TestEpisodesWithoutStore(t *testing.T) {
	s, _, _ := newTestServer(t, false)
	mux := s.ServeMux()

	w := testutil.NewTestRecorder()
	mux.ServeHTTP(w, testutil.NewTestRequest(http.MethodGet, "/episodes"))
	testutil.AssertStatusCode(t, w.Code, http.StatusServiceUnavailable)
}

func TestEpisodeListAndDetail(t *testing.T) {
	s, _, store := newTestServer(t, true)
	mux := s.ServeMux()

	ep := executor.Episode{
		ID:        "ep-1",
		Goal:      executor.Goal{Kind: executor.GoalNavigate, X: 3, Y: 2},
		State:     executor.EpisodeSucceeded,
		StartedAt: time.Unix(100, 0),
	}
	testutil.AssertNoError(t, store.RecordEpisode(ep))
	testutil.AssertNoError(t, store.RecordStep(executor.Step{
		EpisodeID: "ep-1", Action: hal.ActionMoveForward, X: 2.5, Y: 2.5, At: time.Unix(101, 0),
	}))

	w := testutil.NewTestRecorder()
	mux.ServeHTTP(w, testutil.NewTestRequest(http.MethodGet, "/episodes"))
	testutil.AssertStatusCode(t, w.Code, http.StatusOK)
	var list []executor.Episode
	testutil.AssertNoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	if len(list) != 1 || list[0].ID != "ep-1" {
		t.Errorf("episode list = %+v, want single ep-1", list)
	}

	w = testutil.NewTestRecorder()
	mux.ServeHTTP(w, testutil.NewTestRequest(http.MethodGet, "/episode?id=ep-1"))
	testutil.AssertStatusCode(t, w.Code, http.StatusOK)
	var detail struct {
		Episode executor.Episode `json:"episode"`
		Steps   []executor.Step  `json:"steps"`
	}
	testutil.AssertNoError(t, json.Unmarshal(w.Body.Bytes(), &detail))
	if detail.Episode.ID != "ep-1" || len(detail.Steps) != 1 {
		t.Errorf("detail = %+v, want ep-1 with one step", detail)
	}

	w = testutil.NewTestRecorder()
	mux.ServeHTTP(w, testutil.NewTestRequest(http.MethodGet, "/episode?id=missing"))
	testutil.AssertStatusCode(t, w.Code, http.StatusNotFound)

	w = testutil.NewTestRecorder()
	mux.ServeHTTP(w, testutil.NewTestRequest(http.MethodGet, "/episode"))
	testutil.AssertStatusCode(t, w.Code, http.StatusBadRequest)
}

func TestOccupancyChart(t *testing.T) {
	s, _, _ := newTestServer(t, false)
	mux := s.ServeMux()

	// Empty grid: nothing to draw.
	w := testutil.NewTestRecorder()
	mux.ServeHTTP(w, testutil.NewTestRequest(http.MethodGet, "/charts/occupancy"))
	testutil.AssertStatusCode(t, w.Code, http.StatusNotFound)

	s.occ.UpdateBump(nav.Pose{X: 2.5, Y: 2.5}, 0.25)

	w = testutil.NewTestRecorder()
	mux.ServeHTTP(w, testutil.NewTestRequest(http.MethodGet, "/charts/occupancy"))
	testutil.AssertStatusCode(t, w.Code, http.StatusOK)
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("content type = %s, want text/html", ct)
	}
	if !strings.Contains(w.Body.String(), "Occupancy Grid") {
		t.Error("chart page missing title")
	}
}

func TestTrajectoryChart(t *testing.T) {
	s, _, store := newTestServer(t, true)
	mux := s.ServeMux()

	w := testutil.NewTestRecorder()
	mux.ServeHTTP(w, testutil.NewTestRequest(http.MethodGet, "/charts/trajectory"))
	testutil.AssertStatusCode(t, w.Code, http.StatusBadRequest)

	w = testutil.NewTestRecorder()
	mux.ServeHTTP(w, testutil.NewTestRequest(http.MethodGet, "/charts/trajectory?episode_id=none"))
	testutil.AssertStatusCode(t, w.Code, http.StatusNotFound)

	testutil.AssertNoError(t, store.RecordEpisode(executor.Episode{
		ID: "ep-1", Goal: executor.Goal{Kind: executor.GoalNavigate}, State: executor.EpisodeRunning, StartedAt: time.Unix(100, 0),
	}))
	for i := 0; i < 3; i++ {
		testutil.AssertNoError(t, store.RecordStep(executor.Step{
			EpisodeID: "ep-1", Index: i, Action: hal.ActionMoveForward,
			X: 2.5 + 0.25*float64(i), Y: 2.5, At: time.Unix(int64(100+i), 0),
		}))
	}

	w = testutil.NewTestRecorder()
	mux.ServeHTTP(w, testutil.NewTestRequest(http.MethodGet, "/charts/trajectory?episode_id=ep-1"))
	testutil.AssertStatusCode(t, w.Code, http.StatusOK)
	if !strings.Contains(w.Body.String(), "Episode Trajectory") {
		t.Error("chart page missing title")
	}
}

func TestHomeHandler(t *testing.T) {
	s, _, _ := newTestServer(t, false)
	mux := s.ServeMux()

	w := testutil.NewTestRecorder()
	mux.ServeHTTP(w, testutil.NewTestRequest(http.MethodGet, "/"))
	testutil.AssertStatusCode(t, w.Code, http.StatusOK)
}
