// Package nav owns discrete navigation planning: translating an obstacle
// map, a goal map, and the current pose into a low-level base action.
//
// Responsibilities: occupancy grid primitives (dilation, boundary padding),
// geodesic distance fields over traversible space, short-term goal
// extraction, collision-map learning from failed forward moves, and the
// turn/move/stop action policy.
//
// No hardware or storage code is allowed in this package; the planner sees
// grids and poses, nothing else.
package nav
