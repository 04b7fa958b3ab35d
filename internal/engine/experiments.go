package engine

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math"
	"math/rand/v2"
	"runtime"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"
)

// newRNG returns a run's private random stream. A nil seed draws one from
// crypto/rand so unseeded runs still use an explicit stream.
func newRNG(seed *int64) *rand.Rand {
	if seed != nil {
		s := uint64(*seed)
		return rand.New(rand.NewPCG(s, s))
	}
	var b [16]byte
	if _, err := crand.Read(b[:]); err != nil {
		panic(fmt.Sprintf("reading random seed: %v", err))
	}
	return rand.New(rand.NewPCG(
		binary.LittleEndian.Uint64(b[:8]),
		binary.LittleEndian.Uint64(b[8:]),
	))
}

// RunSimulation builds a road from cfg and steps it cfg.Steps times,
// returning the fully populated road for downstream consumption.
func RunSimulation(cfg SimulationConfig) (*Road, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	road, err := NewRoad(cfg.Road, newRNG(cfg.Seed))
	if err != nil {
		return nil, err
	}
	for range cfg.Steps {
		if err := road.Step(); err != nil {
			return nil, fmt.Errorf("at t=%d: %w", road.Time(), err)
		}
	}
	return road, nil
}

// RunMonteCarlo executes cfg.Runs independent simulations, seeded by run
// index. Replicates run in parallel; each owns its road and random stream,
// so the result is deterministic regardless of scheduling.
func RunMonteCarlo(cfg EnsembleConfig) (*EnsembleResult, error) {
	if cfg.Runs <= 0 {
		return nil, fmt.Errorf("%w: runs must be positive, got %d", ErrInvalidConfig, cfg.Runs)
	}
	if cfg.Steps <= 0 {
		return nil, fmt.Errorf("%w: steps must be positive, got %d", ErrInvalidConfig, cfg.Steps)
	}
	if err := cfg.Road.Validate(); err != nil {
		return nil, err
	}
	if cfg.Road.NCars == 0 {
		return nil, fmt.Errorf("%w: ensemble needs at least one car per run", ErrEmptyFleet)
	}

	res := &EnsembleResult{
		AvgVelocities:   make([][]float64, cfg.Runs),
		Flows:           make([][]float64, cfg.Runs),
		FinalVelocities: make([]float64, cfg.Runs),
		Runs:            cfg.Runs,
	}

	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for run := 0; run < cfg.Runs; run++ {
		g.Go(func() error {
			seed := int64(run)
			road, err := RunSimulation(SimulationConfig{Road: cfg.Road, Steps: cfg.Steps, Seed: &seed})
			if err != nil {
				return fmt.Errorf("run %d: %w", run, err)
			}
			avg := road.AvgVelocityHistory()
			res.AvgVelocities[run] = avg
			res.Flows[run] = road.FlowHistory()
			res.FinalVelocities[run] = avg[len(avg)-1]
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return res, nil
}

// RunDensityScan sweeps the requested densities in input order. For each
// density it runs cfg.Runs replicates (seed = replicate index), discards the
// burn-in prefix of every history, averages the steady-state velocity and
// flow per replicate, and reports the mean and standard deviation across
// replicates. The result has exactly one entry per requested density.
func RunDensityScan(cfg DensityScanConfig) ([]DensityPoint, error) {
	if cfg.RoadLength <= 0 {
		return nil, fmt.Errorf("%w: road length must be positive, got %d", ErrInvalidConfig, cfg.RoadLength)
	}
	if cfg.Runs <= 0 {
		return nil, fmt.Errorf("%w: runs must be positive, got %d", ErrInvalidConfig, cfg.Runs)
	}
	if cfg.BurnIn < 0 || cfg.BurnIn >= cfg.Steps {
		return nil, fmt.Errorf("%w: burn-in %d leaves no steady-state steps out of %d", ErrInvalidConfig, cfg.BurnIn, cfg.Steps)
	}

	points := make([]DensityPoint, 0, len(cfg.Densities))
	for _, density := range cfg.Densities {
		nCars := int(math.Round(density * float64(cfg.RoadLength)))
		road := RoadConfig{
			Length:       cfg.RoadLength,
			NCars:        nCars,
			VMax:         cfg.VMax,
			Acceleration: cfg.Acceleration,
			BrakeProb:    cfg.BrakeProb,
		}
		if err := road.Validate(); err != nil {
			return nil, fmt.Errorf("density %g: %w", density, err)
		}
		if nCars == 0 {
			return nil, fmt.Errorf("density %g: %w: rounds to zero cars", density, ErrEmptyFleet)
		}

		velocities := make([]float64, cfg.Runs)
		flows := make([]float64, cfg.Runs)

		var g errgroup.Group
		g.SetLimit(runtime.GOMAXPROCS(0))
		for run := 0; run < cfg.Runs; run++ {
			g.Go(func() error {
				seed := int64(run)
				r, err := RunSimulation(SimulationConfig{Road: road, Steps: cfg.Steps, Seed: &seed})
				if err != nil {
					return fmt.Errorf("density %g run %d: %w", density, run, err)
				}
				velocities[run] = stat.Mean(r.AvgVelocityHistory()[cfg.BurnIn:], nil)
				flows[run] = stat.Mean(r.FlowHistory()[cfg.BurnIn:], nil)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}

		points = append(points, DensityPoint{
			Density:     density,
			AvgVelocity: stat.Mean(velocities, nil),
			StdVelocity: stat.PopStdDev(velocities, nil),
			AvgFlow:     stat.Mean(flows, nil),
			StdFlow:     stat.PopStdDev(flows, nil),
		})
	}
	return points, nil
}

// RunAccidentScenario runs cfg.AccidentStart ticks of normal traffic, blocks
// the road at its midpoint for cfg.AccidentDuration ticks, and runs the
// remainder. The returned road's velocity history feeds recovery analysis.
func RunAccidentScenario(cfg AccidentConfig) (*Road, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	road, err := NewRoad(cfg.Road, newRNG(cfg.Seed))
	if err != nil {
		return nil, err
	}

	for range cfg.AccidentStart {
		if err := road.Step(); err != nil {
			return nil, fmt.Errorf("at t=%d: %w", road.Time(), err)
		}
	}

	if err := road.IntroduceAccident(cfg.Road.Length/2, cfg.AccidentDuration); err != nil {
		return nil, err
	}

	for range cfg.Steps - cfg.AccidentStart {
		if err := road.Step(); err != nil {
			return nil, fmt.Errorf("at t=%d: %w", road.Time(), err)
		}
	}
	return road, nil
}
