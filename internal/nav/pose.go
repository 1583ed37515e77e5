package nav

import "math"

// Pose is a world-frame base pose: metres and degrees.
type Pose struct {
	X        float64
	Y        float64
	ThetaDeg float64
}

// NormalizeAngle wraps an angle in degrees into (-180, 180].
func NormalizeAngle(deg float64) float64 {
	out := math.Mod(deg, 360.0)
	if out > 180.0 {
		out -= 360.0
	} else if out <= -180.0 {
		out += 360.0
	}
	return out
}

// L2Distance returns the euclidean distance between (x1, y1) and (x2, y2).
func L2Distance(x1, x2, y1, y2 float64) float64 {
	return math.Hypot(x1-x2, y1-y2)
}

// ThresholdCell clamps a grid coordinate into [0, rows) x [0, cols).
func ThresholdCell(r, c, rows, cols int) (int, int) {
	if r < 0 {
		r = 0
	} else if r >= rows {
		r = rows - 1
	}
	if c < 0 {
		c = 0
	} else if c >= cols {
		c = cols - 1
	}
	return r, c
}
