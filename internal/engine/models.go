package engine

import (
	"fmt"

	"github.com/Deshray/agent-based-traffic-congestion-simulation/internal/kinematics"
)

// RoadConfig is the serialisable description of a road and its fleet.
// Model selects the velocity-update rule; empty means the default
// Nagel-Schreckenberg rule.
type RoadConfig struct {
	Length       int     `json:"length" yaml:"length"`                       // cells
	NCars        int     `json:"n_cars" yaml:"n_cars"`                       // 0 <= n_cars <= length
	VMax         int     `json:"v_max" yaml:"v_max"`                         // cells/tick
	Acceleration int     `json:"acceleration,omitempty" yaml:"acceleration"` // cells/tick per tick; 0 means the default of 1
	BrakeProb    float64 `json:"brake_prob" yaml:"brake_prob"`               // within [0,1]
	Model        string  `json:"model,omitempty" yaml:"model"`               // update rule discriminator; "" = "nasch"
}

func (c RoadConfig) accelerationOrDefault() int {
	if c.Acceleration == 0 {
		return 1
	}
	return c.Acceleration
}

// Validate checks field ranges, reporting ErrInvalidConfig violations.
func (c RoadConfig) Validate() error {
	if c.Length <= 0 {
		return fmt.Errorf("%w: road length must be positive, got %d", ErrInvalidConfig, c.Length)
	}
	if c.NCars < 0 || c.NCars > c.Length {
		return fmt.Errorf("%w: car count %d outside [0, %d]", ErrInvalidConfig, c.NCars, c.Length)
	}
	if _, err := c.model(); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, err)
	}
	return nil
}

// model resolves the update-rule discriminator to a kinematics.Model.
func (c RoadConfig) model() (kinematics.Model, error) {
	switch c.Model {
	case "", kinematics.NaschModelName:
		return kinematics.NewNagelSchreckenberg(c.VMax, c.accelerationOrDefault(), c.BrakeProb)
	default:
		return nil, fmt.Errorf("unknown kinematics model %q", c.Model)
	}
}

// SimulationConfig describes a single run: a road stepped a fixed number of
// times. A nil Seed draws one from crypto/rand; either way the run owns a
// private random stream, never a process-wide generator.
type SimulationConfig struct {
	Road  RoadConfig `json:"road" yaml:"road"`
	Steps int        `json:"steps" yaml:"steps"`
	Seed  *int64     `json:"seed,omitempty" yaml:"seed"`
}

// Validate checks the run parameters including the embedded road config.
func (c SimulationConfig) Validate() error {
	if c.Steps < 0 {
		return fmt.Errorf("%w: steps must be non-negative, got %d", ErrInvalidConfig, c.Steps)
	}
	return c.Road.Validate()
}

// EnsembleConfig describes a Monte Carlo ensemble of independent runs.
// Replicates are seeded by run index, so each is individually reproducible
// and their randomness streams never overlap.
type EnsembleConfig struct {
	Road  RoadConfig `json:"road" yaml:"road"`
	Steps int        `json:"steps" yaml:"steps"`
	Runs  int        `json:"runs" yaml:"runs"`
}

// EnsembleResult holds per-run histories, aligned by run index.
type EnsembleResult struct {
	AvgVelocities   [][]float64 `json:"avg_velocities"`
	Flows           [][]float64 `json:"flows"`
	FinalVelocities []float64   `json:"final_velocities"`
	Runs            int         `json:"runs"`
}

// DensityScanConfig describes a sweep across traffic densities. For each
// density the car count is round(density x road length) and Runs replicate
// simulations are aggregated after discarding the BurnIn transient.
type DensityScanConfig struct {
	Densities    []float64 `json:"densities" yaml:"densities"` // cars per cell
	RoadLength   int       `json:"road_length" yaml:"road_length"`
	Steps        int       `json:"steps" yaml:"steps"`
	Runs         int       `json:"runs" yaml:"runs"`       // replicates per density
	BurnIn       int       `json:"burn_in" yaml:"burn_in"` // leading steps discarded as transient
	VMax         int       `json:"v_max" yaml:"v_max"`
	Acceleration int       `json:"acceleration,omitempty" yaml:"acceleration"`
	BrakeProb    float64   `json:"brake_prob" yaml:"brake_prob"`
}

// DensityPoint is the steady-state aggregate for one requested density:
// mean and standard deviation across replicates of the post-burn-in
// average velocity and flow.
type DensityPoint struct {
	Density     float64 `json:"density"`
	AvgVelocity float64 `json:"avg_velocity"`
	StdVelocity float64 `json:"std_velocity"`
	AvgFlow     float64 `json:"avg_flow"`
	StdFlow     float64 `json:"std_flow"`
}

// AccidentConfig describes an incident scenario: normal traffic until
// AccidentStart, then a blockage of AccidentDuration ticks at the road's
// midpoint, then the remainder of the run.
type AccidentConfig struct {
	Road             RoadConfig `json:"road" yaml:"road"`
	Steps            int        `json:"steps" yaml:"steps"`
	AccidentStart    int        `json:"accident_start" yaml:"accident_start"`
	AccidentDuration int        `json:"accident_duration" yaml:"accident_duration"`
	Seed             *int64     `json:"seed,omitempty" yaml:"seed"`
}

// Validate checks the scenario timing against the road config.
func (c AccidentConfig) Validate() error {
	if c.AccidentStart < 0 || c.AccidentStart > c.Steps {
		return fmt.Errorf("%w: accident start %d outside [0, %d]", ErrInvalidConfig, c.AccidentStart, c.Steps)
	}
	if c.AccidentDuration <= 0 {
		return fmt.Errorf("%w: accident duration must be positive, got %d", ErrInvalidConfig, c.AccidentDuration)
	}
	return c.Road.Validate()
}

// Snapshot is a read-only projection of road state at a point in time.
type Snapshot struct {
	Time        int     `json:"time"`
	Positions   []int   `json:"positions"`
	Velocities  []int   `json:"velocities"`
	AvgVelocity float64 `json:"avg_velocity"`
	Density     float64 `json:"density"`
	Flow        float64 `json:"flow"`
}

// CarTrajectory is one car's full recorded trajectory, indexed by step.
type CarTrajectory struct {
	Positions  []int `json:"positions"`
	Velocities []int `json:"velocities"`
}

// RunResult is the serialisable output of a single or accident run: the
// system-level histories, every car's trajectory, and the final state.
type RunResult struct {
	Length             int             `json:"length"`
	AvgVelocityHistory []float64       `json:"avg_velocity_history"`
	DensityHistory     []float64       `json:"density_history"`
	FlowHistory        []float64       `json:"flow_history"`
	Cars               []CarTrajectory `json:"cars"`
	Incident           *Incident       `json:"incident,omitempty"`
	FinalState         Snapshot        `json:"final_state"`
}

func newRunResult(r *Road) RunResult {
	cars := make([]CarTrajectory, len(r.Cars()))
	for i, c := range r.Cars() {
		cars[i] = CarTrajectory{Positions: c.PositionHistory(), Velocities: c.VelocityHistory()}
	}
	return RunResult{
		Length:             r.Length(),
		AvgVelocityHistory: r.AvgVelocityHistory(),
		DensityHistory:     r.DensityHistory(),
		FlowHistory:        r.FlowHistory(),
		Cars:               cars,
		Incident:           r.Incident(),
		FinalState:         r.State(),
	}
}

// Experiment kinds accepted by Run and RunJSON.
const (
	ExperimentSingle      = "single"
	ExperimentMonteCarlo  = "monte_carlo"
	ExperimentDensityScan = "density_scan"
	ExperimentAccident    = "accident"
)

// ExperimentInput is the JSON-serialisable input to the engine. The
// Experiment field selects which of the config payloads applies; the others
// are ignored.
type ExperimentInput struct {
	Experiment  string             `json:"experiment" yaml:"experiment"`
	Single      *SimulationConfig  `json:"single,omitempty" yaml:"single"`
	MonteCarlo  *EnsembleConfig    `json:"monte_carlo,omitempty" yaml:"monte_carlo"`
	DensityScan *DensityScanConfig `json:"density_scan,omitempty" yaml:"density_scan"`
	Accident    *AccidentConfig    `json:"accident,omitempty" yaml:"accident"`
}

// ExperimentResult is the complete output of a Run call. Exactly one of the
// payload fields is set, matching Experiment.
type ExperimentResult struct {
	Experiment  string          `json:"experiment"`
	Run         *RunResult      `json:"run,omitempty"`
	Ensemble    *EnsembleResult `json:"ensemble,omitempty"`
	DensityScan []DensityPoint  `json:"density_scan,omitempty"`
}
