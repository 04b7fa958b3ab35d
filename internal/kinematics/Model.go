// Package kinematics defines the Model interface for per-tick velocity
// updates, along with built-in implementations.
//
// Adding a new update rule requires only implementing Model and registering
// its discriminator string in the engine's road configuration — the
// simulation loop itself never needs to change.
package kinematics

import "math/rand/v2"

// Model is the velocity-update contract every rule implementation must
// satisfy. All distances are in road cells and velocities in cells per tick.
type Model interface {
	// VMax returns the highest velocity the model will ever produce.
	VMax() int

	// Next returns the velocity for the coming tick, given the current
	// velocity and the forward gap to the next vehicle around the ring.
	// rng must be the run's own stream; exactly one uniform draw is
	// consumed per call, so replays with the same stream are identical.
	Next(velocity, gap int, rng *rand.Rand) int
}
