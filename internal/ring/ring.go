// Package ring provides periodic-boundary arithmetic for the circular road.
// The road wraps: the last cell is adjacent to the first, and all distances
// are computed modulo the road length.
package ring

import (
	"fmt"
	"math/rand/v2"
	"slices"
)

// Gap returns the forward (driving-direction) distance from cell a to cell b,
// always within [0, length).
func Gap(a, b, length int) int {
	d := (b - a) % length
	if d < 0 {
		d += length
	}
	return d
}

// Distance returns the shortest circular distance between cells a and b,
// whichever way around is shorter.
func Distance(a, b, length int) int {
	d := a - b
	if d < 0 {
		d = -d
	}
	if length-d < d {
		return length - d
	}
	return d
}

// SamplePositions draws n distinct cells on a ring of the given length and
// returns them sorted ascending. Sampling is without replacement, so it
// fails when more cells are requested than exist.
func SamplePositions(n, length int, rng *rand.Rand) ([]int, error) {
	if n < 0 {
		return nil, fmt.Errorf("cannot place %d cars", n)
	}
	if n > length {
		return nil, fmt.Errorf("cannot place %d cars on %d cells", n, length)
	}
	cells := rng.Perm(length)[:n]
	slices.Sort(cells)
	return cells, nil
}
