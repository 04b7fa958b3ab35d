// Package analysis derives congestion metrics from recorded simulation
// histories and renders them as charts. It only consumes engine output;
// nothing here feeds back into a run.
package analysis

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/stat"
)

// ErrInsufficientData reports a history too short for the requested analysis.
var ErrInsufficientData = errors.New("insufficient data")

// Metrics summarises steady-state congestion for one run.
type Metrics struct {
	AvgVelocity      float64 `json:"avg_velocity"`
	CongestionIndex  float64 `json:"congestion_index"` // 1 - avg/vMax; 0 = free flow, 1 = standstill
	VelocityVariance float64 `json:"velocity_variance"`
	AvgFlow          float64 `json:"avg_flow"`
}

// CongestionMetrics computes steady-state metrics after discarding the first
// burnIn entries of both histories.
func CongestionMetrics(avgVelocity, flow []float64, vMax, burnIn int) (Metrics, error) {
	if vMax <= 0 {
		return Metrics{}, fmt.Errorf("congestion index undefined for v_max %d", vMax)
	}
	if burnIn < 0 || burnIn >= len(avgVelocity) {
		return Metrics{}, fmt.Errorf("%w: burn-in %d leaves none of %d steps", ErrInsufficientData, burnIn, len(avgVelocity))
	}
	if len(flow) != len(avgVelocity) {
		return Metrics{}, fmt.Errorf("%w: velocity and flow histories differ in length (%d vs %d)", ErrInsufficientData, len(avgVelocity), len(flow))
	}

	steady := avgVelocity[burnIn:]
	avg := stat.Mean(steady, nil)
	return Metrics{
		AvgVelocity:      avg,
		CongestionIndex:  1 - avg/float64(vMax),
		VelocityVariance: stat.PopVariance(steady, nil),
		AvgFlow:          stat.Mean(flow[burnIn:], nil),
	}, nil
}

// DetectOnset returns the step at which congestion emerges: the first point
// where the window-smoothed average velocity drops below threshold x vMax,
// adjusted to the window centre. The second return is false when the run
// never congests.
func DetectOnset(avgVelocity []float64, vMax int, threshold float64, window int) (int, bool, error) {
	if window <= 0 {
		return 0, false, fmt.Errorf("window must be positive, got %d", window)
	}
	if len(avgVelocity) < window {
		return 0, false, fmt.Errorf("%w: need at least %d steps, have %d", ErrInsufficientData, window, len(avgVelocity))
	}

	limit := threshold * float64(vMax)

	sum := 0.0
	for _, v := range avgVelocity[:window] {
		sum += v
	}
	for i := 0; ; i++ {
		if sum/float64(window) < limit {
			return i + window/2, true, nil
		}
		if i+window >= len(avgVelocity) {
			return 0, false, nil
		}
		sum += avgVelocity[i+window] - avgVelocity[i]
	}
}

// RecoveryTime returns how many steps after the incident cleared the average
// velocity first regained 90% of its pre-incident level. The pre-incident
// level is measured over the second half of the approach, so startup
// transients do not inflate it. The second return is false when traffic
// never recovered within the history.
func RecoveryTime(avgVelocity []float64, accidentStart, accidentEnd int) (int, bool, error) {
	if accidentStart <= 0 || accidentEnd < accidentStart || accidentEnd >= len(avgVelocity) {
		return 0, false, fmt.Errorf("%w: accident window [%d, %d) does not fit %d steps", ErrInsufficientData, accidentStart, accidentEnd, len(avgVelocity))
	}

	pre := avgVelocity[accidentStart/2 : accidentStart]
	thresholdV := 0.9 * stat.Mean(pre, nil)

	for i, v := range avgVelocity[accidentEnd:] {
		if v >= thresholdV {
			return i, true, nil
		}
	}
	return 0, false, nil
}
