package engine

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Deshray/agent-based-traffic-congestion-simulation/internal/car"
	"github.com/Deshray/agent-based-traffic-congestion-simulation/internal/kinematics"
)

// roadWithCars builds a road with cars at explicit positions, bypassing the
// random placement, so tests can pin exact gap geometry.
func roadWithCars(t *testing.T, length, vMax, accel int, brakeProb float64, positions ...int) *Road {
	t.Helper()
	model, err := kinematics.NewNagelSchreckenberg(vMax, accel, brakeProb)
	require.NoError(t, err)

	cars := make([]*car.Car, len(positions))
	for i, pos := range positions {
		cars[i] = car.New(pos, model)
	}
	return &Road{length: length, cars: cars, rng: rand.New(rand.NewPCG(1, 1))}
}

func TestNewRoadValidation(t *testing.T) {
	cases := []struct {
		name string
		cfg  RoadConfig
	}{
		{"zero length", RoadConfig{Length: 0, NCars: 0, VMax: 5, BrakeProb: 0.3}},
		{"negative length", RoadConfig{Length: -10, NCars: 0, VMax: 5, BrakeProb: 0.3}},
		{"negative car count", RoadConfig{Length: 10, NCars: -1, VMax: 5, BrakeProb: 0.3}},
		{"more cars than cells", RoadConfig{Length: 10, NCars: 11, VMax: 5, BrakeProb: 0.3}},
		{"negative v_max", RoadConfig{Length: 10, NCars: 2, VMax: -1, BrakeProb: 0.3}},
		{"negative acceleration", RoadConfig{Length: 10, NCars: 2, VMax: 5, Acceleration: -1, BrakeProb: 0.3}},
		{"brake_prob out of range", RoadConfig{Length: 10, NCars: 2, VMax: 5, BrakeProb: 1.5}},
		{"unknown model", RoadConfig{Length: 10, NCars: 2, VMax: 5, BrakeProb: 0.3, Model: "idm"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewRoad(tc.cfg, rand.New(rand.NewPCG(1, 1)))
			require.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestNewRoadPlacement(t *testing.T) {
	cfg := RoadConfig{Length: 50, NCars: 20, VMax: 5, BrakeProb: 0.3, Model: kinematics.NaschModelName}
	road, err := NewRoad(cfg, rand.New(rand.NewPCG(42, 42)))
	require.NoError(t, err)

	require.Len(t, road.Cars(), 20)
	seen := make(map[int]bool)
	for i, c := range road.Cars() {
		assert.Equal(t, 0, c.Velocity, "cars start from rest")
		assert.GreaterOrEqual(t, c.Position, 0)
		assert.Less(t, c.Position, 50)
		assert.False(t, seen[c.Position], "initial placement is without replacement")
		seen[c.Position] = true
		if i > 0 {
			assert.Greater(t, c.Position, road.Cars()[i-1].Position)
		}
	}

	state := road.State()
	assert.Equal(t, 0, state.Time)
	assert.Equal(t, 0.0, state.Flow, "flow is 0 before any step")
	assert.InDelta(t, 0.4, state.Density, 1e-12)
}

func TestStepEmptyFleet(t *testing.T) {
	road, err := NewRoad(RoadConfig{Length: 10, NCars: 0, VMax: 5, BrakeProb: 0}, rand.New(rand.NewPCG(1, 1)))
	require.NoError(t, err)
	require.ErrorIs(t, road.Step(), ErrEmptyFleet)
}

func TestStepDeterminism(t *testing.T) {
	cfg := RoadConfig{Length: 100, NCars: 10, VMax: 5, BrakeProb: 0.3}

	run := func() *Road {
		road, err := NewRoad(cfg, rand.New(rand.NewPCG(1, 1)))
		require.NoError(t, err)
		for range 50 {
			require.NoError(t, road.Step())
		}
		return road
	}

	a, b := run(), run()
	require.Equal(t, a.AvgVelocityHistory(), b.AvgVelocityHistory())
	require.Equal(t, a.FlowHistory(), b.FlowHistory())
	for i := range a.Cars() {
		require.Equal(t, a.Cars()[i].PositionHistory(), b.Cars()[i].PositionHistory())
		require.Equal(t, a.Cars()[i].VelocityHistory(), b.Cars()[i].VelocityHistory())
	}
}

func TestStepConservationAndBounds(t *testing.T) {
	cfg := RoadConfig{Length: 60, NCars: 25, VMax: 5, BrakeProb: 0.5}
	road, err := NewRoad(cfg, rand.New(rand.NewPCG(9, 9)))
	require.NoError(t, err)

	for range 200 {
		require.NoError(t, road.Step())
		require.Len(t, road.Cars(), 25, "cars are never created or destroyed")
		for _, c := range road.Cars() {
			require.GreaterOrEqual(t, c.Velocity, 0)
			require.LessOrEqual(t, c.Velocity, 5)
			require.GreaterOrEqual(t, c.Position, 0)
			require.Less(t, c.Position, 60)
		}
	}
	assert.Equal(t, 200, road.Time())
	assert.Len(t, road.AvgVelocityHistory(), 200)
	assert.Len(t, road.DensityHistory(), 200)
	assert.Len(t, road.FlowHistory(), 200)
}

func TestSingleCarConvergesToVMax(t *testing.T) {
	cfg := RoadConfig{Length: 50, NCars: 1, VMax: 5, Acceleration: 1, BrakeProb: 0}
	road, err := NewRoad(cfg, rand.New(rand.NewPCG(3, 3)))
	require.NoError(t, err)

	for range 10 {
		require.NoError(t, road.Step())
	}
	// No braking and no neighbour: v_max within v_max steps, then steady.
	assert.Equal(t, []float64{1, 2, 3, 4, 5, 5, 5, 5, 5, 5}, road.AvgVelocityHistory())
}

func TestStepUsesPreMoveGapSnapshot(t *testing.T) {
	// Cars at 0 and 16 on a 20-cell ring, v_max 5, acceleration 5. With the
	// pre-move snapshot the trailing car sees a gap of 4 and clamps to 3;
	// with sequential mutate-then-recompute it would see the leader's new
	// position and overrun it.
	road := roadWithCars(t, 20, 5, 5, 0, 0, 16)
	require.NoError(t, road.Step())

	positions := []int{road.Cars()[0].Position, road.Cars()[1].Position}
	assert.ElementsMatch(t, []int{5, 19}, positions)
}

func TestMetricsFlowIsDensityTimesVelocity(t *testing.T) {
	road := roadWithCars(t, 100, 5, 1, 0, 10, 40, 70)
	require.NoError(t, road.Step())

	state := road.State()
	assert.InDelta(t, 0.03, state.Density, 1e-12)
	assert.InDelta(t, state.Density*state.AvgVelocity, state.Flow, 1e-12)
	assert.Equal(t, road.AvgVelocityHistory()[0], state.AvgVelocity)
}

func TestIncidentForcesNearbyCarsOnly(t *testing.T) {
	// One car at the accident site, one 40 cells away (outside the 20-cell
	// radius). Both cruising at v_max before the incident hits.
	road := roadWithCars(t, 100, 5, 1, 0, 10, 50)
	road.Cars()[0].Velocity = 5
	road.Cars()[1].Velocity = 5

	require.NoError(t, road.IntroduceAccident(50, 2))

	// Active tick 1: the in-zone car is zeroed before its update, so it can
	// only creep by one acceleration unit; the far car is untouched.
	require.NoError(t, road.Step())
	require.Equal(t, 1, road.Incident().Timer)
	inZone, outside := road.Cars()[1], road.Cars()[0]
	assert.Equal(t, 1, inZone.Velocity)
	assert.Equal(t, 51, inZone.Position)
	assert.Equal(t, 5, outside.Velocity)
	assert.Equal(t, 15, outside.Position)

	// Active tick 2: still forced.
	require.NoError(t, road.Step())
	require.Equal(t, 2, road.Incident().Timer)
	assert.Equal(t, 1, road.Cars()[1].Velocity)

	// Duration elapsed: no more forcing, the car accelerates freely and the
	// timer stays where it stopped.
	require.NoError(t, road.Step())
	assert.Equal(t, 2, road.Incident().Timer)
	assert.Equal(t, 2, road.Cars()[1].Velocity)
	assert.False(t, road.Incident().Active())
}

func TestIntroduceAccidentValidation(t *testing.T) {
	road := roadWithCars(t, 100, 5, 1, 0, 10)

	require.ErrorIs(t, road.IntroduceAccident(-1, 5), ErrInvalidConfig)
	require.ErrorIs(t, road.IntroduceAccident(100, 5), ErrInvalidConfig)
	require.ErrorIs(t, road.IntroduceAccident(50, 0), ErrInvalidConfig)
}

func TestIntroduceAccidentOverwrites(t *testing.T) {
	road := roadWithCars(t, 100, 5, 1, 0, 10)

	require.NoError(t, road.IntroduceAccident(30, 5))
	require.NoError(t, road.Step())
	require.Equal(t, 1, road.Incident().Timer)

	// A second call while active silently replaces the incident and resets
	// the timer.
	require.NoError(t, road.IntroduceAccident(60, 7))
	in := road.Incident()
	assert.Equal(t, 60, in.Location)
	assert.Equal(t, 7, in.Duration)
	assert.Equal(t, 0, in.Timer)
	assert.True(t, in.Active())
}

func TestNoOverlapThroughIncident(t *testing.T) {
	// Forced stops pack cars together; the keep-distance clamp must still
	// prevent two cars from sharing a cell on any later tick.
	cfg := RoadConfig{Length: 60, NCars: 20, VMax: 5, BrakeProb: 0.3}
	road, err := NewRoad(cfg, rand.New(rand.NewPCG(11, 11)))
	require.NoError(t, err)

	for range 5 {
		require.NoError(t, road.Step())
	}
	require.NoError(t, road.IntroduceAccident(30, 15))
	for step := range 100 {
		require.NoError(t, road.Step())
		occupied := make(map[int]bool)
		for _, c := range road.Cars() {
			require.False(t, occupied[c.Position], "two cars share cell %d at step %d", c.Position, step)
			occupied[c.Position] = true
		}
	}
}
