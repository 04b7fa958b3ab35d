package analysis

import (
	"fmt"
	"io"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
	"gonum.org/v1/gonum/stat"

	"github.com/Deshray/agent-based-traffic-congestion-simulation/internal/engine"
)

// bandColor is the fill used for +/- one standard deviation envelopes.
var bandColor = drawing.Color{R: 120, G: 160, B: 220, A: 255}

func stepAxis(n int) []float64 {
	xs := make([]float64, n)
	for i := range xs {
		xs[i] = float64(i)
	}
	return xs
}

// PlotTimeSeries renders the per-step average velocity as a PNG line chart.
func PlotTimeSeries(avgVelocity []float64, w io.Writer) error {
	if len(avgVelocity) < 2 {
		return fmt.Errorf("%w: need at least 2 steps to plot, have %d", ErrInsufficientData, len(avgVelocity))
	}

	graph := chart.Chart{
		Title: "System-Level Traffic Flow Over Time",
		XAxis: chart.XAxis{Name: "Time Step"},
		YAxis: chart.YAxis{Name: "Average Velocity"},
		Series: []chart.Series{
			chart.ContinuousSeries{
				XValues: stepAxis(len(avgVelocity)),
				YValues: avgVelocity,
				Style:   chart.Style{StrokeColor: chart.ColorBlue, StrokeWidth: 1.5},
			},
		},
	}
	return graph.Render(chart.PNG, w)
}

// PlotFundamentalDiagram renders flow against density from a density scan,
// with +/- one standard deviation envelope lines.
func PlotFundamentalDiagram(points []engine.DensityPoint, w io.Writer) error {
	if len(points) < 2 {
		return fmt.Errorf("%w: need at least 2 density points to plot, have %d", ErrInsufficientData, len(points))
	}

	densities := make([]float64, len(points))
	flows := make([]float64, len(points))
	upper := make([]float64, len(points))
	lower := make([]float64, len(points))
	for i, p := range points {
		densities[i] = p.Density
		flows[i] = p.AvgFlow
		upper[i] = p.AvgFlow + p.StdFlow
		lower[i] = p.AvgFlow - p.StdFlow
	}

	graph := chart.Chart{
		Title: "Fundamental Diagram: Flow vs Density",
		XAxis: chart.XAxis{Name: "Density (cars per cell)"},
		YAxis: chart.YAxis{Name: "Flow (cars per tick)"},
		Series: []chart.Series{
			chart.ContinuousSeries{
				XValues: densities,
				YValues: upper,
				Style:   chart.Style{StrokeColor: bandColor, StrokeWidth: 1.0},
			},
			chart.ContinuousSeries{
				XValues: densities,
				YValues: lower,
				Style:   chart.Style{StrokeColor: bandColor, StrokeWidth: 1.0},
			},
			chart.ContinuousSeries{
				XValues: densities,
				YValues: flows,
				Style:   chart.Style{StrokeColor: chart.ColorBlue, StrokeWidth: 2.0},
			},
		},
	}
	return graph.Render(chart.PNG, w)
}

// PlotEnsemble renders the per-step mean average velocity across an ensemble
// with a +/- one standard deviation band.
func PlotEnsemble(res *engine.EnsembleResult, w io.Writer) error {
	if res == nil || len(res.AvgVelocities) == 0 || len(res.AvgVelocities[0]) < 2 {
		return fmt.Errorf("%w: ensemble too small to plot", ErrInsufficientData)
	}

	steps := len(res.AvgVelocities[0])
	mean := make([]float64, steps)
	upper := make([]float64, steps)
	lower := make([]float64, steps)
	column := make([]float64, len(res.AvgVelocities))
	for t := 0; t < steps; t++ {
		for run, history := range res.AvgVelocities {
			column[run] = history[t]
		}
		m := stat.Mean(column, nil)
		s := stat.PopStdDev(column, nil)
		mean[t] = m
		upper[t] = m + s
		lower[t] = m - s
	}

	graph := chart.Chart{
		Title: fmt.Sprintf("Monte Carlo Trajectories (n=%d)", res.Runs),
		XAxis: chart.XAxis{Name: "Time Step"},
		YAxis: chart.YAxis{Name: "Average Velocity"},
		Series: []chart.Series{
			chart.ContinuousSeries{
				XValues: stepAxis(steps),
				YValues: upper,
				Style:   chart.Style{StrokeColor: bandColor, StrokeWidth: 1.0},
			},
			chart.ContinuousSeries{
				XValues: stepAxis(steps),
				YValues: lower,
				Style:   chart.Style{StrokeColor: bandColor, StrokeWidth: 1.0},
			},
			chart.ContinuousSeries{
				XValues: stepAxis(steps),
				YValues: mean,
				Style:   chart.Style{StrokeColor: chart.ColorBlue, StrokeWidth: 2.0},
			},
		},
	}
	return graph.Render(chart.PNG, w)
}
