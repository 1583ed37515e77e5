// Package sim provides the simulated RobotClient backend: a kinematic
// grid-world robot with ray-cast range scans and bump detection. It is the
// dev-mode stand-in for the serial-backed physical base.
package sim

import (
	"fmt"
	"math"

	"github.com/hearthside-robotics/homerover/internal/nav"
)

// World is a static occupancy grid the simulated robot moves through.
// Cell values: 0 free, 1 occupied.
type World struct {
	Grid         *nav.Grid
	ResolutionCm int
}

// NewWorld creates an empty world of sizeCm per side at the given
// resolution.
func NewWorld(sizeCm, resolutionCm int) (*World, error) {
	if resolutionCm < 1 {
		return nil, fmt.Errorf("sim: resolution must be at least 1cm, got %d", resolutionCm)
	}
	if sizeCm <= 0 || sizeCm%resolutionCm != 0 {
		return nil, fmt.Errorf("sim: size %dcm must be a positive multiple of resolution %dcm", sizeCm, resolutionCm)
	}
	cells := sizeCm / resolutionCm
	return &World{Grid: nav.NewGrid(cells, cells), ResolutionCm: resolutionCm}, nil
}

// SizeM returns the world's side length in metres.
func (w *World) SizeM() float64 {
	return float64(w.Grid.Rows*w.ResolutionCm) / 100.0
}

// AddBox marks the axis-aligned box [x1,x2] x [y1,y2] (metres) occupied.
func (w *World) AddBox(x1, y1, x2, y2 float64) {
	res := float64(w.ResolutionCm) / 100.0
	r1 := int(y1 / res)
	r2 := int(y2 / res)
	c1 := int(x1 / res)
	c2 := int(x2 / res)
	for r := r1; r <= r2; r++ {
		for c := c1; c <= c2; c++ {
			if w.Grid.InBounds(r, c) {
				w.Grid.Set(r, c, 1)
			}
		}
	}
}

// OccupiedAt reports whether the world is occupied at (x, y) metres.
// Out-of-bounds positions count as occupied so the robot cannot leave.
func (w *World) OccupiedAt(x, y float64) bool {
	res := float64(w.ResolutionCm) / 100.0
	r := int(y / res)
	c := int(x / res)
	if !w.Grid.InBounds(r, c) {
		return true
	}
	return w.Grid.At(r, c) != 0
}

// Raycast returns the distance (metres) from (x, y) along bearingDeg to the
// first occupied cell, capped at maxRange. The march step is half a cell so
// thin walls are not skipped.
func (w *World) Raycast(x, y, bearingDeg, maxRange float64) float64 {
	step := float64(w.ResolutionCm) / 100.0 / 2.0
	rad := bearingDeg * math.Pi / 180.0
	dx := math.Cos(rad) * step
	dy := math.Sin(rad) * step
	for d := step; d <= maxRange; d += step {
		x += dx
		y += dy
		if w.OccupiedAt(x, y) {
			return d
		}
	}
	return maxRange
}
