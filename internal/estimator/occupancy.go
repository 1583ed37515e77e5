package estimator

import (
	"fmt"
	"math"
	"sync"

	"github.com/hearthside-robotics/homerover/internal/hal"
	"github.com/hearthside-robotics/homerover/internal/nav"
)

// Log-odds clamp bounds. Cells saturate so a long-occupied cell can still
// be freed by a burst of contrary evidence.
const (
	logOddsMin = -4.0
	logOddsMax = 4.0
)

// OccupancyGrid is a log-odds occupancy estimate updated from range scans
// and bump events. Positive log-odds means occupied.
type OccupancyGrid struct {
	resolutionCm int
	occupiedInc  float64
	freeInc      float64

	mu    sync.Mutex
	cells *nav.Grid
}

// NewOccupancyGrid creates an unknown (all-zero) occupancy grid.
func NewOccupancyGrid(sizeCm, resolutionCm int, occupiedInc, freeInc float64) (*OccupancyGrid, error) {
	if resolutionCm < 1 {
		return nil, fmt.Errorf("estimator: resolution must be at least 1cm, got %d", resolutionCm)
	}
	if sizeCm <= 0 || sizeCm%resolutionCm != 0 {
		return nil, fmt.Errorf("estimator: size %dcm must be a positive multiple of resolution %dcm", sizeCm, resolutionCm)
	}
	if occupiedInc <= 0 || freeInc >= 0 {
		return nil, fmt.Errorf("estimator: log-odds increments must satisfy occupied > 0 > free, got %f, %f", occupiedInc, freeInc)
	}
	cells := sizeCm / resolutionCm
	return &OccupancyGrid{
		resolutionCm: resolutionCm,
		occupiedInc:  occupiedInc,
		freeInc:      freeInc,
		cells:        nav.NewGrid(cells, cells),
	}, nil
}

// UpdateScan integrates one range scan taken at pose: cells along each ray
// accumulate free evidence, the hit cell accumulates occupied evidence.
// Rays that reach max range (no return) only clear.
func (o *OccupancyGrid) UpdateScan(pose nav.Pose, scan *hal.RangeScan, maxRangeM float64) {
	if scan == nil {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()

	step := float64(o.resolutionCm) / 100.0 / 2.0
	for i, rng := range scan.RangesM {
		if rng <= 0 {
			continue
		}
		hit := rng < maxRangeM-1e-9
		bearing := pose.ThetaDeg + scan.Angle0Deg + float64(i)*scan.IncrementDeg
		rad := bearing * math.Pi / 180.0
		cos, sin := math.Cos(rad), math.Sin(rad)

		for d := step; d < rng-step; d += step {
			o.bump(pose.X+d*cos, pose.Y+d*sin, o.freeInc)
		}
		if hit {
			o.bump(pose.X+rng*cos, pose.Y+rng*sin, o.occupiedInc)
		}
	}
}

// UpdateBump paints occupied evidence one half-step ahead of the pose.
// Bump events are strong evidence: the increment is doubled.
func (o *OccupancyGrid) UpdateBump(pose nav.Pose, forwardStepM float64) {
	o.mu.Lock()
	defer o.mu.Unlock()

	rad := pose.ThetaDeg * math.Pi / 180.0
	x := pose.X + forwardStepM/2.0*math.Cos(rad)
	y := pose.Y + forwardStepM/2.0*math.Sin(rad)
	o.bump(x, y, 2.0*o.occupiedInc)
}

// cellAt converts metres to a cell index. Floor, not truncate, so slightly
// negative coordinates index cell -1 and fall out of bounds rather than
// aliasing into row/col 0.
func (o *OccupancyGrid) cellAt(x, y float64) (r, c int) {
	res := float64(o.resolutionCm) / 100.0
	return int(math.Floor(y / res)), int(math.Floor(x / res))
}

// bump adds delta to the log-odds at (x, y) metres. Caller holds the lock.
func (o *OccupancyGrid) bump(x, y, delta float64) {
	r, c := o.cellAt(x, y)
	if !o.cells.InBounds(r, c) {
		return
	}
	v := o.cells.At(r, c) + delta
	if v > logOddsMax {
		v = logOddsMax
	} else if v < logOddsMin {
		v = logOddsMin
	}
	o.cells.Set(r, c, v)
}

// ObstacleMap thresholds the log-odds into the binary obstacle map the
// planner consumes.
func (o *OccupancyGrid) ObstacleMap() *nav.Grid {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := nav.NewGrid(o.cells.Rows, o.cells.Cols)
	for i, v := range o.cells.Cells {
		if v > 0 {
			out.Cells[i] = 1
		}
	}
	return out
}

// LogOddsAt returns the raw log-odds at (x, y) metres, for inspection.
func (o *OccupancyGrid) LogOddsAt(x, y float64) float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	r, c := o.cellAt(x, y)
	if !o.cells.InBounds(r, c) {
		return 0
	}
	return o.cells.At(r, c)
}

// ResolutionCm returns the cell size in centimetres.
func (o *OccupancyGrid) ResolutionCm() int {
	return o.resolutionCm
}

// Reset returns every cell to unknown.
func (o *OccupancyGrid) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.cells.Zero()
}
