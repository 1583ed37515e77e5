package api

import (
	"bytes"
	"fmt"
	"math"
	"net/http"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

const echartsAssetsPrefix = "https://go-echarts.github.io/go-echarts-assets/assets/"

var viridis = []string{"#440154", "#482777", "#3e4989", "#31688e", "#26828e", "#1f9e89", "#35b779", "#6ece58", "#b5de2b", "#fde725"}

// occupancyChart renders the occupancy estimate as a colored scatter (HTML).
// This is a debugging-only endpoint (no auth) to eyeball the map without a UI.
// Query params:
//   - max_points (optional; default 8000) to reduce payload size
func (s *Server) occupancyChart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	maxPoints := 8000
	if mp := r.URL.Query().Get("max_points"); mp != "" {
		if v, err := strconv.Atoi(mp); err == nil && v > 100 && v <= 50000 {
			maxPoints = v
		}
	}

	grid := s.occ.ObstacleMap()
	occupied := 0
	for _, v := range grid.Cells {
		if v != 0 {
			occupied++
		}
	}
	if occupied == 0 {
		s.writeJSONError(w, http.StatusNotFound, "no occupied cells yet")
		return
	}

	// Downsample by stride to stay within maxPoints.
	stride := 1
	if occupied > maxPoints {
		stride = int(math.Ceil(float64(occupied) / float64(maxPoints)))
	}

	cm := s.occ.ResolutionCm()
	res := float64(cm) / 100.0
	data := make([]opts.ScatterData, 0, occupied/stride+1)
	maxAbs := 0.0
	n := 0
	for row := 0; row < grid.Rows; row++ {
		for c := 0; c < grid.Cols; c++ {
			if grid.At(row, c) == 0 {
				continue
			}
			n++
			if n%stride != 0 {
				continue
			}
			x := float64(c) * res
			y := float64(row) * res
			if x > maxAbs {
				maxAbs = x
			}
			if y > maxAbs {
				maxAbs = y
			}
			lo := s.occ.LogOddsAt(x, y)
			data = append(data, opts.ScatterData{Value: []interface{}{x, y, lo}})
		}
	}

	pad := maxAbs * 1.05
	if pad == 0 {
		pad = 1.0
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Occupancy Grid", Theme: "dark", Width: "900px", Height: "900px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{Title: "Occupancy Grid", Subtitle: fmt.Sprintf("occupied=%d stride=%d", occupied, stride)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: 0, Max: pad, Name: "X (m)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: 0, Max: pad, Name: "Y (m)", NameLocation: "middle", NameGap: 30}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        4,
			Dimension:  "2",
			InRange:    &opts.VisualMapInRange{Color: viridis},
		}),
	)
	scatter.AddSeries("occupied", data, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 4}))

	var buf bytes.Buffer
	if err := scatter.Render(&buf); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to render chart: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// trajectoryChart renders one episode's recorded positions as a line (HTML).
// Query params:
//   - episode_id (required)
func (s *Server) trajectoryChart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.store == nil {
		s.writeJSONError(w, http.StatusServiceUnavailable, "telemetry database not configured")
		return
	}
	episodeID := r.URL.Query().Get("episode_id")
	if episodeID == "" {
		s.writeJSONError(w, http.StatusBadRequest, "episode_id query parameter is required")
		return
	}

	traj, err := s.store.Trajectory(episodeID)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to get trajectory: %v", err))
		return
	}
	if len(traj) == 0 {
		s.writeJSONError(w, http.StatusNotFound, "no steps recorded for episode")
		return
	}

	pts := make([]opts.ScatterData, 0, len(traj))
	maxAbs := 0.0
	for i, p := range traj {
		if p[0] > maxAbs {
			maxAbs = p[0]
		}
		if p[1] > maxAbs {
			maxAbs = p[1]
		}
		pts = append(pts, opts.ScatterData{Value: []interface{}{p[0], p[1], i}})
	}
	pad := maxAbs * 1.05
	if pad == 0 {
		pad = 1.0
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Episode Trajectory", Theme: "dark", Width: "900px", Height: "900px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{Title: "Episode Trajectory", Subtitle: fmt.Sprintf("episode=%s steps=%d", episodeID, len(pts))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: 0, Max: pad, Name: "X (m)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: 0, Max: pad, Name: "Y (m)", NameLocation: "middle", NameGap: 30}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        float32(len(pts)),
			Dimension:  "2",
			InRange:    &opts.VisualMapInRange{Color: viridis},
		}),
	)
	scatter.AddSeries("trajectory", pts, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 6}))

	var buf bytes.Buffer
	if err := scatter.Render(&buf); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to render trajectory chart: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
