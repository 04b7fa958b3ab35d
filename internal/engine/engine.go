// Package engine implements the Nagel-Schreckenberg simulation loop.
//
// The simulation advances in fixed ticks. Each tick has three passes:
//
//  1. Incident pass - while an accident is active, every car within the
//     proximity radius of its location is forced to a stop.
//
//  2. Gap pass - cars are sorted around the ring and every car's forward
//     gap to its leader is computed from the same pre-move snapshot.
//
//  3. Update pass - every car runs the velocity rule against its snapshot
//     gap and moves, then system metrics are recorded.
//
// The snapshot discipline in pass 2 is essential: updates within a tick must
// see a consistent pre-move picture, never partially updated positions.
package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"

	"github.com/Deshray/agent-based-traffic-congestion-simulation/internal/car"
	"github.com/Deshray/agent-based-traffic-congestion-simulation/internal/ring"
)

// Sentinel errors for the failure classes callers branch on.
var (
	// ErrInvalidConfig reports a configuration rejected before any step ran.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmptyFleet reports an operation that needs at least one car.
	ErrEmptyFleet = errors.New("no cars on road")
)

// incidentRadius is the circular distance (cells) within which an active
// accident forces cars to a stop.
const incidentRadius = 20

// Incident is an accident blocking a stretch of road for a bounded time.
type Incident struct {
	Location int `json:"location"` // cell index of the blockage
	Duration int `json:"duration"` // ticks the blockage lasts
	Timer    int `json:"timer"`    // active ticks elapsed so far
}

// Active reports whether the incident is still blocking the road.
func (in *Incident) Active() bool { return in != nil && in.Timer < in.Duration }

// Road is a circular road with periodic boundary conditions. It owns the
// fleet, the run's random stream, and the per-step metric histories.
type Road struct {
	length   int
	cars     []*car.Car
	time     int
	rng      *rand.Rand
	incident *Incident // nil until an accident is introduced

	avgVelocityHistory []float64
	densityHistory     []float64
	flowHistory        []float64
}

// NewRoad builds a road from cfg, placing cfg.NCars cars at distinct random
// cells with velocity 0. rng becomes the road's private stream, used for the
// initial placement and for every stochastic braking draw of the run.
func NewRoad(cfg RoadConfig, rng *rand.Rand) (*Road, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	model, err := cfg.model()
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidConfig, err)
	}
	positions, err := ring.SamplePositions(cfg.NCars, cfg.Length, rng)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidConfig, err)
	}
	cars := make([]*car.Car, len(positions))
	for i, pos := range positions {
		cars[i] = car.New(pos, model)
	}
	return &Road{length: cfg.Length, cars: cars, rng: rng}, nil
}

// Step advances the simulation by exactly one tick.
func (r *Road) Step() error {
	if len(r.cars) == 0 {
		return fmt.Errorf("%w: cannot step", ErrEmptyFleet)
	}

	r.applyIncident()

	// Sort around the ring so neighbouring slice entries are neighbouring cars.
	slices.SortFunc(r.cars, func(a, b *car.Car) int { return a.Position - b.Position })

	// Snapshot every forward gap before any car moves.
	gaps := make([]int, len(r.cars))
	if len(r.cars) == 1 {
		// A lone car's leader is itself, a full lap ahead.
		gaps[0] = r.length
	} else {
		for i, c := range r.cars {
			next := r.cars[(i+1)%len(r.cars)]
			gaps[i] = ring.Gap(c.Position, next.Position, r.length)
		}
	}

	for i, c := range r.cars {
		c.Update(gaps[i], r.length, r.rng)
	}

	r.time++
	r.recordMetrics()
	return nil
}

// applyIncident re-applies the forced stop to every car near an active
// accident and advances the incident timer. The forcing is once per tick:
// the velocity rule still runs on top of the zeroed velocity, so affected
// cars creep at most one acceleration unit while the blockage holds.
func (r *Road) applyIncident() {
	if !r.incident.Active() {
		return
	}
	for _, c := range r.cars {
		if ring.Distance(c.Position, r.incident.Location, r.length) < incidentRadius {
			c.ForceStop()
		}
	}
	r.incident.Timer++
}

func (r *Road) recordMetrics() {
	total := 0
	for _, c := range r.cars {
		total += c.Velocity
	}
	avg := float64(total) / float64(len(r.cars))
	density := float64(len(r.cars)) / float64(r.length)

	r.avgVelocityHistory = append(r.avgVelocityHistory, avg)
	r.densityHistory = append(r.densityHistory, density)
	r.flowHistory = append(r.flowHistory, density*avg)
}

// IntroduceAccident blocks the road around location for duration ticks,
// taking effect on the next Step. Calling it while an incident is already
// active overwrites the previous one and restarts the timer.
func (r *Road) IntroduceAccident(location, duration int) error {
	if location < 0 || location >= r.length {
		return fmt.Errorf("%w: accident location %d outside [0, %d)", ErrInvalidConfig, location, r.length)
	}
	if duration <= 0 {
		return fmt.Errorf("%w: accident duration must be positive, got %d", ErrInvalidConfig, duration)
	}
	r.incident = &Incident{Location: location, Duration: duration}
	return nil
}

// Incident returns the current incident state, or nil if none was ever
// introduced. The returned value is read-only.
func (r *Road) Incident() *Incident { return r.incident }

// Time returns the number of completed steps.
func (r *Road) Time() int { return r.time }

// Length returns the road length in cells.
func (r *Road) Length() int { return r.length }

// Cars returns the fleet, ordered by position as of the latest step. The
// slice and the cars are owned by the road; callers must not modify them.
func (r *Road) Cars() []*car.Car { return r.cars }

// AvgVelocityHistory returns the per-step system average velocity.
func (r *Road) AvgVelocityHistory() []float64 { return r.avgVelocityHistory }

// DensityHistory returns the per-step density (constant for a run).
func (r *Road) DensityHistory() []float64 { return r.densityHistory }

// FlowHistory returns the per-step flow (density x average velocity).
func (r *Road) FlowHistory() []float64 { return r.flowHistory }

// State returns a read-only snapshot of the current road state. Flow is 0
// until the first step has run.
func (r *Road) State() Snapshot {
	s := Snapshot{
		Time:      r.time,
		Positions: make([]int, len(r.cars)),
		Density:   float64(len(r.cars)) / float64(r.length),
	}
	s.Velocities = make([]int, len(r.cars))
	total := 0
	for i, c := range r.cars {
		s.Positions[i] = c.Position
		s.Velocities[i] = c.Velocity
		total += c.Velocity
	}
	if len(r.cars) > 0 {
		s.AvgVelocity = float64(total) / float64(len(r.cars))
	}
	if len(r.flowHistory) > 0 {
		s.Flow = r.flowHistory[len(r.flowHistory)-1]
	}
	return s
}

// Run dispatches input to the matching experiment driver.
func Run(input ExperimentInput) (*ExperimentResult, error) {
	switch input.Experiment {
	case ExperimentSingle:
		if input.Single == nil {
			return nil, fmt.Errorf("%w: missing %q config", ErrInvalidConfig, ExperimentSingle)
		}
		road, err := RunSimulation(*input.Single)
		if err != nil {
			return nil, err
		}
		res := newRunResult(road)
		return &ExperimentResult{Experiment: input.Experiment, Run: &res}, nil

	case ExperimentMonteCarlo:
		if input.MonteCarlo == nil {
			return nil, fmt.Errorf("%w: missing %q config", ErrInvalidConfig, ExperimentMonteCarlo)
		}
		ens, err := RunMonteCarlo(*input.MonteCarlo)
		if err != nil {
			return nil, err
		}
		return &ExperimentResult{Experiment: input.Experiment, Ensemble: ens}, nil

	case ExperimentDensityScan:
		if input.DensityScan == nil {
			return nil, fmt.Errorf("%w: missing %q config", ErrInvalidConfig, ExperimentDensityScan)
		}
		points, err := RunDensityScan(*input.DensityScan)
		if err != nil {
			return nil, err
		}
		return &ExperimentResult{Experiment: input.Experiment, DensityScan: points}, nil

	case ExperimentAccident:
		if input.Accident == nil {
			return nil, fmt.Errorf("%w: missing %q config", ErrInvalidConfig, ExperimentAccident)
		}
		road, err := RunAccidentScenario(*input.Accident)
		if err != nil {
			return nil, err
		}
		res := newRunResult(road)
		return &ExperimentResult{Experiment: input.Experiment, Run: &res}, nil

	default:
		return nil, fmt.Errorf("%w: unknown experiment %q", ErrInvalidConfig, input.Experiment)
	}
}

// RunJSON is the primary entry point for the CLI and WASM targets. It
// accepts a JSON-encoded ExperimentInput, runs the experiment, and returns a
// JSON-encoded ExperimentResult.
func RunJSON(jsonInput string) (string, error) {
	var input ExperimentInput
	if err := json.Unmarshal([]byte(jsonInput), &input); err != nil {
		return "", fmt.Errorf("invalid input JSON: %w", err)
	}

	result, err := Run(input)
	if err != nil {
		return "", err
	}

	out, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("marshaling output: %w", err)
	}
	return string(out), nil
}
