// Package car defines the Car agent: one vehicle on the ring road, its live
// kinematic state, and the trajectory it has driven so far.
package car

import (
	"math/rand/v2"

	"github.com/Deshray/agent-based-traffic-congestion-simulation/internal/kinematics"
)

// Car is a single vehicle. Position and Velocity are live simulation state;
// the histories record one entry per completed update, indexed by elapsed
// step count. A car is created once per run and never destroyed mid-run.
type Car struct {
	Position int // cell index, always within [0, road length)
	Velocity int // cells/tick, always within [0, VMax]

	model kinematics.Model

	velocityHistory []int
	positionHistory []int
}

// New places a car at position with velocity 0.
func New(position int, model kinematics.Model) *Car {
	return &Car{Position: position, model: model}
}

// VMax returns the car's maximum velocity.
func (c *Car) VMax() int { return c.model.VMax() }

// Update advances the car by one tick. The kinematics model decides the new
// velocity from the forward gap, the car moves by it around the ring, and
// both histories are appended.
//
// distanceToNext must come from a pre-move snapshot of all gaps: Update
// never reads another car's state.
func (c *Car) Update(distanceToNext, roadLength int, rng *rand.Rand) {
	c.Velocity = c.model.Next(c.Velocity, distanceToNext, rng)
	c.Position = (c.Position + c.Velocity) % roadLength
	c.velocityHistory = append(c.velocityHistory, c.Velocity)
	c.positionHistory = append(c.positionHistory, c.Position)
}

// ForceStop zeroes the velocity without recording history. The road applies
// it on every tick a car sits inside an active incident zone; the update
// rule still runs on top of the zeroed velocity within the same tick.
func (c *Car) ForceStop() { c.Velocity = 0 }

// VelocityHistory returns the recorded velocity per step. The slice is owned
// by the car; callers must not modify it.
func (c *Car) VelocityHistory() []int { return c.velocityHistory }

// PositionHistory returns the recorded position per step. The slice is owned
// by the car; callers must not modify it.
func (c *Car) PositionHistory() []int { return c.positionHistory }
