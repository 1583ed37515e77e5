// Package hal owns the hardware abstraction layer: the uniform
// command/state interface over simulated and physical robots.
//
// Responsibilities: discrete action vocabulary, base state and observation
// types, the RobotClient contract, and the serial-backed physical client.
// Key types: DiscreteAction, BaseState, Observation, RobotClient.
//
// Dependency rule: hal may depend on basemux, but never on the planner,
// estimator, or executor. Backends stay ignorant of what drives them.
package hal
