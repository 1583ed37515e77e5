package estimator

import (
	"testing"

	"github.com/hearthside-robotics/homerover/internal/hal"
	"github.com/hearthside-robotics/homerover/internal/nav"
	"github.com/hearthside-robotics/homerover/internal/testutil"
)

func newTestGrid(t *testing.T) *OccupancyGrid {
	t.Helper()
	g, err := NewOccupancyGrid(500, 5, 0.85, -0.4)
	testutil.AssertNoError(t, err)
	return g
}

func TestNewOccupancyGridValidation(t *testing.T) {
	cases := []struct {
		name        string
		sizeCm, res int
		occ, free   float64
	}{
		{"zero resolution", 500, 0, 0.85, -0.4},
		{"size not multiple of resolution", 501, 5, 0.85, -0.4},
		{"negative occupied increment", 500, 5, -0.85, -0.4},
		{"positive free increment", 500, 5, 0.85, 0.4},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewOccupancyGrid(tc.sizeCm, tc.res, tc.occ, tc.free)
			testutil.AssertError(t, err)
		})
	}
}

func TestUpdateScanMarksHitAndClearsRay(t *testing.T) {
	g := newTestGrid(t)

	// Single ray from (1, 2.5) pointing +x, return at 2m.
	pose := nav.Pose{X: 1, Y: 2.5, ThetaDeg: 0}
	scan := &hal.RangeScan{Angle0Deg: 0, IncrementDeg: 0, RangesM: []float64{2.0}}
	g.UpdateScan(pose, scan, 4.0)

	if g.LogOddsAt(3.0, 2.5) <= 0 {
		t.Errorf("hit cell at (3.0, 2.5) = %.2f, want occupied", g.LogOddsAt(3.0, 2.5))
	}
	if g.LogOddsAt(2.0, 2.5) >= 0 {
		t.Errorf("ray cell at (2.0, 2.5) = %.2f, want free", g.LogOddsAt(2.0, 2.5))
	}
	// A cell behind the robot stays unknown.
	testutil.AssertNear(t, g.LogOddsAt(0.5, 2.5), 0, 1e-9)
}

func TestUpdateScanMaxRangeOnlyClears(t *testing.T) {
	g := newTestGrid(t)

	pose := nav.Pose{X: 1, Y: 2.5, ThetaDeg: 0}
	scan := &hal.RangeScan{Angle0Deg: 0, IncrementDeg: 0, RangesM: []float64{4.0}}
	g.UpdateScan(pose, scan, 4.0)

	// No return: nothing along the ray accumulates occupied evidence.
	for x := 1.1; x < 5.0; x += 0.05 {
		if g.LogOddsAt(x, 2.5) > 0 {
			t.Fatalf("max-range ray marked (%.2f, 2.5) occupied", x)
		}
	}
}

func TestUpdateScanRespectsHeading(t *testing.T) {
	g := newTestGrid(t)

	// Ray fired at +90 relative bearing from a robot facing +x lands in +y.
	pose := nav.Pose{X: 2.5, Y: 2.5, ThetaDeg: 0}
	scan := &hal.RangeScan{Angle0Deg: 90, IncrementDeg: 0, RangesM: []float64{1.0}}
	g.UpdateScan(pose, scan, 4.0)

	if g.LogOddsAt(2.5, 3.5) <= 0 {
		t.Errorf("hit cell at (2.5, 3.5) = %.2f, want occupied", g.LogOddsAt(2.5, 3.5))
	}
}

func TestLogOddsSaturation(t *testing.T) {
	g := newTestGrid(t)

	pose := nav.Pose{X: 1, Y: 2.5, ThetaDeg: 0}
	scan := &hal.RangeScan{Angle0Deg: 0, IncrementDeg: 0, RangesM: []float64{1.0}}
	for i := 0; i < 50; i++ {
		g.UpdateScan(pose, scan, 4.0)
	}

	testutil.AssertNear(t, g.LogOddsAt(2.0, 2.5), logOddsMax, 1e-9)

	// Saturated cells recover under contrary evidence.
	far := &hal.RangeScan{Angle0Deg: 0, IncrementDeg: 0, RangesM: []float64{3.0}}
	for i := 0; i < 50; i++ {
		g.UpdateScan(pose, far, 4.0)
	}
	if g.LogOddsAt(2.0, 2.5) > 0 {
		t.Errorf("cell did not recover from saturation: %.2f", g.LogOddsAt(2.0, 2.5))
	}
}

func TestUpdateBumpPaintsAhead(t *testing.T) {
	g := newTestGrid(t)

	g.UpdateBump(nav.Pose{X: 2.5, Y: 2.5, ThetaDeg: 90}, 0.25)

	if g.LogOddsAt(2.5, 2.625) <= 0 {
		t.Errorf("bump cell = %.2f, want occupied", g.LogOddsAt(2.5, 2.625))
	}
}

func TestNegativeCoordinatesStayOutOfBounds(t *testing.T) {
	g := newTestGrid(t)

	// A bump landing at x = -0.025, inside (-res, 0), must not alias into
	// column 0.
	pose := nav.Pose{X: 0.1, Y: 2.5, ThetaDeg: 180}
	g.UpdateBump(pose, 0.25)
	testutil.AssertNear(t, g.LogOddsAt(0.01, 2.5), 0, 1e-9)

	// Same along -y.
	pose = nav.Pose{X: 2.5, Y: 0.1, ThetaDeg: -90}
	g.UpdateBump(pose, 0.25)
	testutil.AssertNear(t, g.LogOddsAt(2.5, 0.01), 0, 1e-9)

	// Reading a negative coordinate reports unknown, not cell (0, 0).
	g.UpdateBump(nav.Pose{X: 0.01, Y: 0.01, ThetaDeg: 0}, 0)
	if g.LogOddsAt(0.01, 0.01) <= 0 {
		t.Fatalf("cell (0, 0) = %.2f, want occupied", g.LogOddsAt(0.01, 0.01))
	}
	testutil.AssertNear(t, g.LogOddsAt(-0.01, 0.01), 0, 1e-9)
}

func TestObstacleMapThreshold(t *testing.T) {
	g := newTestGrid(t)

	pose := nav.Pose{X: 1, Y: 2.5, ThetaDeg: 0}
	scan := &hal.RangeScan{Angle0Deg: 0, IncrementDeg: 0, RangesM: []float64{2.0}}
	g.UpdateScan(pose, scan, 4.0)

	m := g.ObstacleMap()
	hitR, hitC := int(2.5/0.05), int(3.0/0.05)
	if m.At(hitR, hitC) != 1 {
		t.Errorf("obstacle map missing hit cell (%d, %d)", hitR, hitC)
	}
	freeR, freeC := int(2.5/0.05), int(2.0/0.05)
	if m.At(freeR, freeC) != 0 {
		t.Errorf("obstacle map marked free cell (%d, %d)", freeR, freeC)
	}
}

func TestOccupancyReset(t *testing.T) {
	g := newTestGrid(t)

	g.UpdateBump(nav.Pose{X: 2.5, Y: 2.5}, 0.25)
	g.Reset()

	if g.ObstacleMap().Any() {
		t.Error("reset grid still reports obstacles")
	}
}
