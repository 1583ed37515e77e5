package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/hearthside-robotics/homerover/internal/estimator"
	"github.com/hearthside-robotics/homerover/internal/executor"
	"github.com/hearthside-robotics/homerover/internal/hal"
	"github.com/hearthside-robotics/homerover/internal/telemetry"
	"github.com/hearthside-robotics/homerover/internal/version"
)

type Server struct {
	robot  hal.RobotClient
	exec   *executor.Executor
	filter *estimator.PoseEstimator
	occ    *estimator.OccupancyGrid
	store  *telemetry.Store // nil when running without a database
}

func NewServer(robot hal.RobotClient, exec *executor.Executor, filter *estimator.PoseEstimator,
	occ *estimator.OccupancyGrid, store *telemetry.Store) *Server {
	return &Server{
		robot:  robot,
		exec:   exec,
		filter: filter,
		occ:    occ,
		store:  store,
	}
}

func (s *Server) homeHandler(w http.ResponseWriter, r *http.Request) {
	// Handle the home page
	w.Write([]byte("Welcome to the Rover Server!"))
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/status", s.statusHandler)
	mux.HandleFunc("/pose", s.poseHandler)
	mux.HandleFunc("/episodes", s.listEpisodes)
	mux.HandleFunc("/episode", s.episodeDetail)
	mux.HandleFunc("/goal", s.submitGoal)
	mux.HandleFunc("/command", s.sendCommandHandler)
	mux.HandleFunc("/charts/occupancy", s.occupancyChart)
	mux.HandleFunc("/charts/trajectory", s.trajectoryChart)
	mux.HandleFunc("/", s.homeHandler)
	return mux
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

func (s *Server) writeJSONError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// statusHandler reports the base state, the fused estimate, and the
// current/last episode in one payload.
func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, map[string]any{
		"build":           version.Get(),
		"base":            s.robot.State(),
		"estimate":        s.filter.Estimate(),
		"speed_mps":       s.filter.SpeedMps(),
		"current_episode": s.exec.Current(),
		"last_episode":    s.exec.Last(),
	})
}

func (s *Server) poseHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, s.filter.Estimate())
}

func (s *Server) listEpisodes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.store == nil {
		s.writeJSONError(w, http.StatusServiceUnavailable, "telemetry database not configured")
		return
	}
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 1000 {
			limit = parsed
		}
	}
	episodes, err := s.store.Episodes(limit)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to list episodes: %v", err))
		return
	}
	s.writeJSON(w, episodes)
}

func (s *Server) episodeDetail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.store == nil {
		s.writeJSONError(w, http.StatusServiceUnavailable, "telemetry database not configured")
		return
	}
	id := r.URL.Query().Get("id")
	if id == "" {
		s.writeJSONError(w, http.StatusBadRequest, "id query parameter is required")
		return
	}
	ep, err := s.store.Episode(id)
	if errors.Is(err, telemetry.ErrNotFound) {
		s.writeJSONError(w, http.StatusNotFound, fmt.Sprintf("episode %s not found", id))
		return
	}
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to get episode: %v", err))
		return
	}
	steps, err := s.store.Steps(id)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to get steps: %v", err))
		return
	}
	s.writeJSON(w, map[string]any{"episode": ep, "steps": steps})
}

// submitGoal enqueues a navigation/manipulation goal.
func (s *Server) submitGoal(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var goal executor.Goal
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(&goal); err != nil {
		s.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("invalid goal: %v", err))
		return
	}
	if goal.Kind == "" {
		goal.Kind = executor.GoalNavigate
	}
	ep, err := s.exec.Submit(goal)
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	w.WriteHeader(http.StatusAccepted)
	s.writeJSON(w, ep)
}

// sendCommandHandler injects a single discrete action, bypassing the
// executor. Meant for bench debugging.
func (s *Server) sendCommandHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	action, err := hal.ParseAction(r.FormValue("command"))
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.robot.Execute(r.Context(), action); err != nil {
		http.Error(w, "Failed to send command", http.StatusInternalServerError)
		return
	}
	io.WriteString(w, "Command sent successfully")
}
