package nav

import (
	"container/heap"
	"math"
)

// DistanceField computes geodesic distances over traversible space from a
// set of goal cells, expanding a wavefront front-to-back the way a fast
// marching method does. Distances are in cells; diagonal steps cost √2.
type DistanceField struct {
	Traversible *Grid // 1 = free, 0 = blocked
	Dist        *Grid // +Inf until SetMultiGoal runs
	StepSize    int

	// StopCells is the distance (in cells) under which ShortTermGoal
	// reports arrival.
	StopCells float64
}

// NewDistanceField creates a distance field over the traversible grid.
func NewDistanceField(traversible *Grid, stepSize int) *DistanceField {
	dist := NewGrid(traversible.Rows, traversible.Cols)
	dist.Fill(math.Inf(1))
	return &DistanceField{
		Traversible: traversible,
		Dist:        dist,
		StepSize:    stepSize,
		StopCells:   2.0,
	}
}

type wavefrontCell struct {
	r, c int
	dist float64
}

type wavefrontHeap []wavefrontCell

func (h wavefrontHeap) Len() int            { return len(h) }
func (h wavefrontHeap) Less(i, j int) bool  { return h[i].dist < h[j].dist }
func (h wavefrontHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *wavefrontHeap) Push(x interface{}) { *h = append(*h, x.(wavefrontCell)) }
func (h *wavefrontHeap) Pop() interface{} {
	old := *h
	n := len(old)
	out := old[n-1]
	*h = old[:n-1]
	return out
}

var wavefrontSteps = [8][3]float64{
	{-1, 0, 1}, {1, 0, 1}, {0, -1, 1}, {0, 1, 1},
	{-1, -1, math.Sqrt2}, {-1, 1, math.Sqrt2}, {1, -1, math.Sqrt2}, {1, 1, math.Sqrt2},
}

// SetMultiGoal seeds the wavefront at every nonzero cell of goal and
// propagates distances through traversible space. Goal cells are valid
// sources even when they sit on blocked cells, so a goal painted onto an
// obstacle still pulls the field toward its boundary.
func (f *DistanceField) SetMultiGoal(goal *Grid) {
	f.Dist.Fill(math.Inf(1))

	h := &wavefrontHeap{}
	heap.Init(h)
	for r := 0; r < goal.Rows; r++ {
		for c := 0; c < goal.Cols; c++ {
			if goal.At(r, c) != 0 {
				f.Dist.Set(r, c, 0)
				heap.Push(h, wavefrontCell{r: r, c: c})
			}
		}
	}

	for h.Len() > 0 {
		cell := heap.Pop(h).(wavefrontCell)
		if cell.dist > f.Dist.At(cell.r, cell.c) {
			continue // stale entry
		}
		for _, s := range wavefrontSteps {
			rr, cc := cell.r+int(s[0]), cell.c+int(s[1])
			if !f.Dist.InBounds(rr, cc) || f.Traversible.At(rr, cc) == 0 {
				continue
			}
			next := cell.dist + s[2]
			if next < f.Dist.At(rr, cc) {
				f.Dist.Set(rr, cc, next)
				heap.Push(h, wavefrontCell{r: rr, c: cc, dist: next})
			}
		}
	}
}

// NearestToMultiGoal returns the traversible cell closest (euclidean) to
// any nonzero goal cell. It is used to snap an unreachable goal onto
// navigable space before planning.
func (f *DistanceField) NearestToMultiGoal(goal *Grid) (int, int) {
	bestR, bestC := 0, 0
	best := math.Inf(1)
	for gr := 0; gr < goal.Rows; gr++ {
		for gc := 0; gc < goal.Cols; gc++ {
			if goal.At(gr, gc) == 0 {
				continue
			}
			if f.Traversible.InBounds(gr, gc) && f.Traversible.At(gr, gc) != 0 {
				// Goal already navigable; nothing beats distance zero.
				return gr, gc
			}
			for tr := 0; tr < f.Traversible.Rows; tr++ {
				for tc := 0; tc < f.Traversible.Cols; tc++ {
					if f.Traversible.At(tr, tc) == 0 {
						continue
					}
					d := L2Distance(float64(tr), float64(gr), float64(tc), float64(gc))
					if d < best {
						best = d
						bestR, bestC = tr, tc
					}
				}
			}
		}
	}
	return bestR, bestC
}

// ShortTermGoal picks the waypoint the base should head toward next: the
// cell within StepSize of state with the smallest geodesic distance to the
// goal set. It reports stop when the state itself is within StopCells of
// the goal, and replan when the state is cut off or no candidate makes
// progress.
func (f *DistanceField) ShortTermGoal(state [2]int) (stgR, stgC int, replan, stop bool) {
	sr, sc := ThresholdCell(state[0], state[1], f.Dist.Rows, f.Dist.Cols)
	here := f.Dist.At(sr, sc)

	if math.IsInf(here, 1) {
		// No path from the current cell to any goal.
		return sr, sc, true, false
	}
	if here < f.StopCells {
		return sr, sc, false, true
	}

	bestR, bestC := sr, sc
	best := here
	for dr := -f.StepSize; dr <= f.StepSize; dr++ {
		for dc := -f.StepSize; dc <= f.StepSize; dc++ {
			rr, cc := sr+dr, sc+dc
			if !f.Dist.InBounds(rr, cc) {
				continue
			}
			if f.Traversible.At(rr, cc) == 0 {
				continue
			}
			d := f.Dist.At(rr, cc)
			if math.IsInf(d, 1) {
				continue
			}
			// Penalise travel so a distant cell must genuinely shorten the
			// remaining path to win.
			score := d + 0.1*math.Hypot(float64(dr), float64(dc))
			if score < best {
				best = score
				bestR, bestC = rr, cc
			}
		}
	}

	if bestR == sr && bestC == sc {
		// Nothing within the window improves on where we stand.
		return sr, sc, true, false
	}
	return bestR, bestC, false, false
}
