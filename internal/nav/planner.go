package nav

import (
	"fmt"
	"math"

	"github.com/hearthside-robotics/homerover/internal/config"
	"github.com/hearthside-robotics/homerover/internal/hal"
	"github.com/hearthside-robotics/homerover/internal/monitoring"
)

// PlannerConfig holds configuration parameters for the discrete planner.
type PlannerConfig struct {
	TurnAngleDeg         float64 // agent turn angle per turn action
	CollisionThresholdM  float64 // forward displacement under which we call it a collision
	StepSize             int     // short-term goal search radius (cells)
	ObsDilationRadius    int     // starting obstacle dilation radius (cells)
	GoalDilationRadius   int     // goal dilation radius for dilated-goal planning
	MinObsDilationRadius int     // floor for the shrinking dilation radius
	AgentCellRadius      int     // cells cleared around the agent in the traversible map
	MapSizeCm            int     // global map size
	MapResolutionCm      int     // cm per map cell
	MinGoalDistanceCm    float64 // metric stop distance
	PlanToDilatedGoal    bool    // plan to the dilated goal set instead of a snapped point
}

// DefaultPlannerConfig returns production-default planner parameters.
func DefaultPlannerConfig() PlannerConfig {
	return PlannerConfig{
		TurnAngleDeg:         30.0,
		CollisionThresholdM:  0.20,
		StepSize:             5,
		ObsDilationRadius:    3,
		GoalDilationRadius:   10,
		MinObsDilationRadius: 1,
		AgentCellRadius:      1,
		MapSizeCm:            4800,
		MapResolutionCm:      5,
		MinGoalDistanceCm:    60.0,
	}
}

// PlannerConfigFromTuning derives planner config from a TuningConfig.
func PlannerConfigFromTuning(t *config.TuningConfig) PlannerConfig {
	return PlannerConfig{
		TurnAngleDeg:         t.GetTurnAngleDeg(),
		CollisionThresholdM:  t.GetCollisionThresholdM(),
		StepSize:             t.GetPlannerStepSize(),
		ObsDilationRadius:    t.GetObsDilationRadius(),
		GoalDilationRadius:   t.GetGoalDilationRadius(),
		MinObsDilationRadius: t.GetMinObsDilationRadius(),
		AgentCellRadius:      t.GetAgentCellRadius(),
		MapSizeCm:            t.GetMapSizeCm(),
		MapResolutionCm:      t.GetMapResolutionCm(),
		MinGoalDistanceCm:    t.GetMinGoalDistanceCm(),
		PlanToDilatedGoal:    t.GetPlanToDilatedGoal(),
	}
}

// PlanInput is one planning request: local maps plus the sensor pose.
type PlanInput struct {
	ObstacleMap *Grid // binary local obstacle map prediction
	GoalMap     *Grid // binary goal location map
	FrontierMap *Grid // binary exploration frontier map

	// SensorPose is (x_m, y_m, theta_deg, gx1, gx2, gy1, gy2): the global
	// pose and the local map's planning window in global grid coordinates.
	SensorPose [7]float64

	// FoundGoal is whether the goal map marks the actual target rather
	// than an exploration objective.
	FoundGoal bool
}

// PlanResult is the planner's output for one step.
type PlanResult struct {
	Action         hal.DiscreteAction
	ClosestGoalMap *Grid  // goal cells closest in geodesic distance
	ShortTermGoal  [2]int // waypoint cell in the local map
	DistanceToGoal float64
	Replanned      bool
	Stop           bool
}

// DiscretePlanner translates planner inputs into a discrete low-level
// action using a geodesic distance field. It learns a collision map from
// forward moves that fail to displace the base.
type DiscretePlanner struct {
	config PlannerConfig

	mapRows int
	mapCols int

	collisionMap *Grid
	visitedMap   *Grid
	colWidth     int

	lastPose   *Pose
	currPose   Pose
	lastAction hal.DiscreteAction
	timestep   int

	currObsDilationRadius int
	obsSelem              [][2]int

	// Plotter, when set, receives the distance field after each plan for
	// debug dumps.
	Plotter *FieldPlotter
}

// NewDiscretePlanner creates a planner with the given configuration.
func NewDiscretePlanner(cfg PlannerConfig) (*DiscretePlanner, error) {
	if cfg.MapResolutionCm < 1 {
		return nil, fmt.Errorf("nav: map resolution must be at least 1cm, got %d", cfg.MapResolutionCm)
	}
	if cfg.MapSizeCm <= 0 || cfg.MapSizeCm%cfg.MapResolutionCm != 0 {
		return nil, fmt.Errorf("nav: map size %dcm must be a positive multiple of resolution %dcm",
			cfg.MapSizeCm, cfg.MapResolutionCm)
	}
	if cfg.MinObsDilationRadius > cfg.ObsDilationRadius {
		return nil, fmt.Errorf("nav: min obs dilation radius %d exceeds start radius %d",
			cfg.MinObsDilationRadius, cfg.ObsDilationRadius)
	}
	p := &DiscretePlanner{
		config:  cfg,
		mapRows: cfg.MapSizeCm / cfg.MapResolutionCm,
		mapCols: cfg.MapSizeCm / cfg.MapResolutionCm,
	}
	p.Reset()
	return p, nil
}

// Reset clears all per-episode planner state.
func (p *DiscretePlanner) Reset() {
	p.collisionMap = NewGrid(p.mapRows, p.mapCols)
	p.visitedMap = NewGrid(p.mapRows, p.mapCols)
	p.colWidth = 1
	p.lastPose = nil
	center := float64(p.config.MapSizeCm) / 100.0 / 2.0
	p.currPose = Pose{X: center, Y: center}
	p.lastAction = ""
	p.timestep = 1
	p.currObsDilationRadius = p.config.ObsDilationRadius
	p.obsSelem = DiskSelem(p.currObsDilationRadius)
}

// CollisionMap exposes the learned collision overlay for the API layer.
func (p *DiscretePlanner) CollisionMap() *Grid {
	return p.collisionMap.Clone()
}

// Plan computes the next low-level action.
func (p *DiscretePlanner) Plan(in PlanInput) (PlanResult, error) {
	if in.ObstacleMap == nil || in.GoalMap == nil {
		return PlanResult{}, fmt.Errorf("nav: plan requires obstacle and goal maps")
	}
	if in.ObstacleMap.Rows != in.GoalMap.Rows || in.ObstacleMap.Cols != in.GoalMap.Cols {
		return PlanResult{}, fmt.Errorf("nav: obstacle map %dx%d and goal map %dx%d differ",
			in.ObstacleMap.Rows, in.ObstacleMap.Cols, in.GoalMap.Rows, in.GoalMap.Cols)
	}

	obstacleMap := in.ObstacleMap.Clone()
	obstacleMap.Round()

	startX, startY, startO := in.SensorPose[0], in.SensorPose[1], in.SensorPose[2]
	gx1, gx2 := int(in.SensorPose[3]), int(in.SensorPose[4])
	gy1, gy2 := int(in.SensorPose[5]), int(in.SensorPose[6])

	res := float64(p.config.MapResolutionCm)
	sr := int(startY*100.0/res) - gx1
	sc := int(startX*100.0/res) - gy1
	sr, sc = ThresholdCell(sr, sc, obstacleMap.Rows, obstacleMap.Cols)
	start := [2]int{sr, sc}

	monitoring.Debugf("planning: goals_found=%v start=%v", in.GoalMap.Any(), start)

	prev := p.currPose
	p.lastPose = &prev
	p.currPose = Pose{X: startX, Y: startY, ThetaDeg: startO}

	// Mark the current cell visited in the global overlay.
	vr, vc := ThresholdCell(gx1+sr, gy1+sc, p.visitedMap.Rows, p.visitedMap.Cols)
	p.visitedMap.Set(vr, vc, 1)

	// Check collisions if we have just moved and are uncertain.
	if p.lastAction == hal.ActionMoveForward {
		p.checkCollision()
	}

	window := [4]int{gx1, gx2, gy1, gy2}
	stg, closestGoalMap, goalPt, replan, stop := p.shortTermGoal(
		obstacleMap, in.GoalMap.Clone(), start, window, p.config.PlanToDilatedGoal)

	foundGoal := in.FoundGoal
	replanned := false

	// We were not able to find a path to the high-level goal.
	if replan && !stop {
		replanned = true
		p.collisionMap.Zero()
		if p.currObsDilationRadius > p.config.MinObsDilationRadius {
			p.currObsDilationRadius--
			p.obsSelem = DiskSelem(p.currObsDilationRadius)
			monitoring.Debugf("reduced obs dilation to %d", p.currObsDilationRadius)
		}

		if foundGoal && in.FrontierMap != nil {
			monitoring.Debugf("no path to goal, replanning to frontier")
			stg, closestGoalMap, goalPt, replan, stop = p.shortTermGoal(
				obstacleMap, in.FrontierMap.Clone(), start, window, true)
			foundGoal = false
		}
	}

	angleSTGoal := math.Atan2(float64(stg[0]-start[0]), float64(stg[1]-start[1])) * 180.0 / math.Pi
	angleAgent := NormalizeAngle(startO)
	relativeAngle := NormalizeAngle(angleAgent - angleSTGoal)

	// Orientation toward the actual goal point, for the arrival policy.
	distanceToGoal := L2Distance(float64(goalPt[0]), float64(start[0]), float64(goalPt[1]), float64(start[1]))
	distanceToGoalCm := distanceToGoal * res
	angleGoal := NormalizeAngle(math.Atan2(float64(goalPt[0]-start[0]), float64(goalPt[1]-start[1])) * 180.0 / math.Pi)
	relativeAngleGoal := NormalizeAngle(angleAgent - angleGoal)

	monitoring.Debugf("found_goal=%v stop=%v dist_cm=%.1f angle_to_goal=%.1f",
		foundGoal, stop, distanceToGoalCm, relativeAngleGoal)

	var action hal.DiscreteAction
	if !(foundGoal && stop) {
		switch {
		case relativeAngle > p.config.TurnAngleDeg/2.0:
			action = hal.ActionTurnRight
		case relativeAngle < -p.config.TurnAngleDeg/2.0:
			action = hal.ActionTurnLeft
		default:
			action = hal.ActionMoveForward
		}
	} else {
		// Orient towards the goal before declaring arrival.
		switch {
		case relativeAngleGoal > 2.0*p.config.TurnAngleDeg/3.0:
			action = hal.ActionTurnRight
		case relativeAngleGoal < -2.0*p.config.TurnAngleDeg/3.0:
			action = hal.ActionTurnLeft
		default:
			action = hal.ActionStop
		}
	}

	p.lastAction = action
	return PlanResult{
		Action:         action,
		ClosestGoalMap: closestGoalMap,
		ShortTermGoal:  stg,
		DistanceToGoal: distanceToGoalCm,
		Replanned:      replanned,
		Stop:           stop && foundGoal,
	}, nil
}

// shortTermGoal prepares the traversible map and extracts the next
// waypoint. Returns the waypoint, the closest-goal map, the closest goal
// cell, and the replan/stop flags.
func (p *DiscretePlanner) shortTermGoal(
	obstacleMap, goalMap *Grid,
	start [2]int,
	window [4]int,
	planToDilatedGoal bool,
) (stg [2]int, closestGoalMap *Grid, goalPt [2]int, replan, stop bool) {
	gx1, gy1 := window[0], window[2]

	dilated := Dilate(obstacleMap, p.obsSelem)

	// Inverse of the obstacles is territory we assume traversible.
	traversible := NewGrid(dilated.Rows, dilated.Cols)
	for r := 0; r < dilated.Rows; r++ {
		for c := 0; c < dilated.Cols; c++ {
			v := 1.0
			if dilated.At(r, c) != 0 {
				v = 0
			}
			// Collision overlay blocks; visited overlay frees.
			cr, cc := gx1+r, gy1+c
			if p.collisionMap.InBounds(cr, cc) {
				if p.collisionMap.At(cr, cc) == 1 {
					v = 0
				}
				if p.visitedMap.At(cr, cc) == 1 {
					v = 1
				}
			}
			traversible.Set(r, c, v)
		}
	}

	// The agent's own footprint is always traversible.
	rad := p.config.AgentCellRadius
	for dr := -rad; dr <= rad; dr++ {
		for dc := -rad; dc <= rad; dc++ {
			rr, cc := start[0]+dr, start[1]+dc
			if traversible.InBounds(rr, cc) {
				traversible.Set(rr, cc, 1)
			}
		}
	}

	traversible = AddBoundary(traversible, 1)
	goal := AddBoundary(goalMap, 0)

	field := NewDistanceField(traversible, p.config.StepSize)

	var navGoal [2]int
	if planToDilatedGoal {
		dilatedGoal := Dilate(goal, DiskSelem(p.config.GoalDilationRadius))
		field.SetMultiGoal(dilatedGoal)
	} else {
		nr, nc := field.NearestToMultiGoal(goal)
		navGoal = [2]int{nr, nc}
		single := NewGrid(goal.Rows, goal.Cols)
		single.Set(nr, nc, 1)
		field.SetMultiGoal(single)
	}
	p.timestep++

	state := [2]int{start[0] + 1, start[1] + 1}
	stgR, stgC, replan, stop := field.ShortTermGoal(state)
	stg = [2]int{stgR - 1, stgC - 1}

	if p.Plotter != nil {
		p.Plotter.Sample(field, state, p.timestep)
	}

	// Closest goal selection: weight goal cells by their geodesic distance
	// from the current location and keep the minimum.
	locField := NewDistanceField(traversible, p.config.StepSize)
	loc := NewGrid(goal.Rows, goal.Cols)
	loc.Set(state[0], state[1], 1)
	locField.SetMultiGoal(loc)

	closestGoalMap = NewGrid(goal.Rows, goal.Cols)
	bestDist := math.Inf(1)
	goalPt = state
	for r := 0; r < goal.Rows; r++ {
		for c := 0; c < goal.Cols; c++ {
			if goal.At(r, c) == 0 {
				continue
			}
			d := locField.Dist.At(r, c)
			if math.IsInf(d, 1) {
				// Unreachable goal cell: fall back to straight-line distance
				// so arrival checks still have something to measure.
				d = 1e4 + L2Distance(float64(r), float64(state[0]), float64(c), float64(state[1]))
			}
			if d < bestDist {
				bestDist = d
				goalPt = [2]int{r, c}
			}
		}
	}
	closestGoalMap.Set(goalPt[0], goalPt[1], 1)
	closestGoalMap = RemoveBoundary(closestGoalMap)
	goalPt = [2]int{goalPt[0] - 1, goalPt[1] - 1}
	gr, gc := ThresholdCell(goalPt[0], goalPt[1], closestGoalMap.Rows, closestGoalMap.Cols)
	goalPt = [2]int{gr, gc}

	if !planToDilatedGoal {
		res := float64(p.config.MapResolutionCm)
		distToGoalCm := L2Distance(float64(start[0]), float64(goalPt[0]), float64(start[1]), float64(goalPt[1])) * res
		distNavToGoalCm := L2Distance(float64(start[0]), float64(navGoal[0]-1), float64(start[1]), float64(navGoal[1]-1)) * res

		monitoring.Debugf("dist_to_goal_cm=%.1f dist_to_nav_cm=%.1f", distToGoalCm, distNavToGoalCm)

		// Stop if we are within reaching distance of the goal; replan if no
		// navigable point was found near it.
		stop = distToGoalCm < p.config.MinGoalDistanceCm
		replan = replan || distNavToGoalCm > math.Max(distToGoalCm, p.config.MinGoalDistanceCm)*2 && !stop
	}

	return stg, closestGoalMap, goalPt, replan, stop
}

// checkCollision compares the last two poses after a forward move and, when
// the base barely displaced, paints a widening obstacle patch ahead of the
// previous pose into the collision map.
func (p *DiscretePlanner) checkCollision() {
	if p.lastPose == nil {
		return
	}
	x1, y1, t1 := p.lastPose.X, p.lastPose.Y, p.lastPose.ThetaDeg
	x2, y2 := p.currPose.X, p.currPose.Y
	buf := 4
	length := 2

	if math.Abs(x1-x2) < 0.05 && math.Abs(y1-y2) < 0.05 {
		p.colWidth += 2
		if p.colWidth == 7 {
			length = 4
			buf = 3
		}
		if p.colWidth > 5 {
			p.colWidth = 5
		}
	} else {
		p.colWidth = 1
	}

	dist := L2Distance(x1, x2, y1, y2)
	if dist >= p.config.CollisionThresholdM {
		return
	}

	// We have a collision: block out cells ahead of the previous pose.
	width := p.colWidth
	res := float64(p.config.MapResolutionCm)
	t1Rad := t1 * math.Pi / 180.0
	for i := 0; i < length; i++ {
		for j := 0; j < width; j++ {
			wx := x1 + 0.05*(float64(i+buf)*math.Cos(t1Rad)+float64(j-width/2)*math.Sin(t1Rad))
			wy := y1 + 0.05*(float64(i+buf)*math.Sin(t1Rad)-float64(j-width/2)*math.Cos(t1Rad))
			r := int(wy * 100.0 / res)
			c := int(wx * 100.0 / res)
			r, c = ThresholdCell(r, c, p.collisionMap.Rows, p.collisionMap.Cols)
			p.collisionMap.Set(r, c, 1)
		}
	}
	monitoring.Debugf("collision at (%.2f, %.2f), width=%d", x1, y1, width)
}
