// Package estimator owns state estimation: fusing odometry fixes into a
// consistent pose estimate and maintaining the occupancy map the planner
// consumes.
//
// Key types: PoseEstimator (constant-velocity Kalman filter over
// [x, y, vx, vy] with separately wrapped heading) and OccupancyGrid
// (log-odds cells updated from range scans and bump events).
package estimator
