package kinematics

import (
	"fmt"
	"math/rand/v2"
)

// NaschModelName is the JSON discriminator string for the NagelSchreckenberg model.
const NaschModelName = "nasch"

// NagelSchreckenberg implements Model with the classic cellular-automaton
// rule: accelerate toward the speed cap, brake to keep distance, then brake
// one unit at random. This is the default and simplest update rule.
//
// JSON discriminator: "model": "nasch"
type NagelSchreckenberg struct {
	VMaxVal      int     `json:"v_max" yaml:"v_max"`               // maximum velocity, cells/tick
	Acceleration int     `json:"acceleration" yaml:"acceleration"` // velocity gained per tick
	BrakeProb    float64 `json:"brake_prob" yaml:"brake_prob"`     // chance of one unit of random braking per tick
}

// NewNagelSchreckenberg validates the parameter ranges and returns the model.
func NewNagelSchreckenberg(vMax, acceleration int, brakeProb float64) (NagelSchreckenberg, error) {
	m := NagelSchreckenberg{VMaxVal: vMax, Acceleration: acceleration, BrakeProb: brakeProb}
	if err := m.Validate(); err != nil {
		return NagelSchreckenberg{}, err
	}
	return m, nil
}

// Validate checks the parameter ranges.
func (m NagelSchreckenberg) Validate() error {
	if m.VMaxVal < 0 {
		return fmt.Errorf("v_max must be non-negative, got %d", m.VMaxVal)
	}
	if m.Acceleration < 1 {
		return fmt.Errorf("acceleration must be at least 1, got %d", m.Acceleration)
	}
	if m.BrakeProb < 0 || m.BrakeProb > 1 {
		return fmt.Errorf("brake_prob must be within [0,1], got %g", m.BrakeProb)
	}
	return nil
}

func (m NagelSchreckenberg) VMax() int { return m.VMaxVal }

// Next applies the three velocity phases in their fixed order. The order is
// load-bearing: keep-distance must see the already accelerated velocity, and
// random braking must act last.
func (m NagelSchreckenberg) Next(velocity, gap int, rng *rand.Rand) int {
	// Phase 1: accelerate toward the cap.
	v := velocity + m.Acceleration
	if v > m.VMaxVal {
		v = m.VMaxVal
	}

	// Phase 2: keep distance. The safe following distance equals the
	// intended velocity; one empty cell of buffer is always reserved, which
	// is what prevents overlap. A gap of 0 (coinciding positions) stops the
	// vehicle outright.
	if gap <= v {
		v = gap - 1
		if v < 0 {
			v = 0
		}
	}

	// Phase 3: random braking, one independent draw per vehicle per tick.
	if rng.Float64() < m.BrakeProb && v > 0 {
		v--
	}

	return v
}
