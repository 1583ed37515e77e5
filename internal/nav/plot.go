package nav

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/hearthside-robotics/homerover/internal/monitoring"
)

// FieldPlotter dumps distance-field heatmaps after each plan for debugging.
// It is nil in normal operation; attach one to DiscretePlanner.Plotter when
// chasing planner behaviour.
type FieldPlotter struct {
	mu        sync.Mutex
	outputDir string
	enabled   bool
}

// NewFieldPlotter creates a plotter writing PNGs under outputDir.
func NewFieldPlotter(outputDir string) (*FieldPlotter, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("nav: create plot dir: %w", err)
	}
	return &FieldPlotter{outputDir: outputDir, enabled: true}, nil
}

// Sample renders the field's distance grid to a heatmap PNG named by
// timestep. Failures are logged, never fatal; plotting must not take the
// planner down.
func (fp *FieldPlotter) Sample(field *DistanceField, state [2]int, timestep int) {
	if fp == nil || !fp.enabled {
		return
	}
	fp.mu.Lock()
	defer fp.mu.Unlock()

	path := filepath.Join(fp.outputDir, fmt.Sprintf("dist_%05d.png", timestep))
	if err := fp.render(field, path); err != nil {
		monitoring.Logf("field plot %s: %v", path, err)
	}
}

func (fp *FieldPlotter) render(field *DistanceField, path string) error {
	p := plot.New()
	p.Title.Text = "geodesic distance field"
	p.X.Label.Text = "col"
	p.Y.Label.Text = "row"

	grid := distGridXYZ{g: field.Dist}
	pal := moreland.SmoothBlueRed().Palette(64)
	hm := plotter.NewHeatMap(grid, pal)
	p.Add(hm)

	if err := p.Save(6*vg.Inch, 6*vg.Inch, path); err != nil {
		return fmt.Errorf("save heatmap: %w", err)
	}
	return nil
}

// distGridXYZ adapts a distance Grid to plotter.GridXYZ. Unreachable cells
// render as a large finite value so the palette stays usable.
type distGridXYZ struct {
	g *Grid
}

func (d distGridXYZ) Dims() (int, int) { return d.g.Cols, d.g.Rows }
func (d distGridXYZ) X(c int) float64  { return float64(c) }
func (d distGridXYZ) Y(r int) float64  { return float64(r) }

func (d distGridXYZ) Z(c, r int) float64 {
	v := d.g.At(r, c)
	if math.IsInf(v, 1) {
		return float64(d.g.Rows + d.g.Cols)
	}
	return v
}
