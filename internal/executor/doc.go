// Package executor sequences high-level goals into discrete robot actions.
//
// One goal at a time is dequeued and run as an episode: each step observes
// the robot, feeds the pose filter and occupancy grid, plans the next
// action, and executes it. Episodes end when the planner declares arrival,
// the step budget runs out, recoveries are exhausted, or the context is
// cancelled.
//
// Depends on internal/hal, internal/estimator, internal/nav,
// internal/config, and internal/monitoring. Must not import api or
// internal/telemetry; persistence is behind the Recorder interface.
package executor
