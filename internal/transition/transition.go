// Package transition implements the distance-adjusted transition matrix
// (spec.md §4.E): interpolating between a base transition matrix (at
// distance 0) and the prior-row matrix (at distance >= dmax) by a power
// law.
package transition

import "math"

// NumStates is the number of HMM states (CN0..CN3+).
const NumStates = 4

// Matrix is a fixed 4x4 row-stochastic transition matrix.
type Matrix [NumStates][NumStates]float64

// Options configures the interpolation exponent (spec.md §4.E, §9 Open
// Question — resolved in SPEC_FULL.md §4.E.1).
type Options struct {
	// Exponent is the power-law exponent p in alpha = (d/dmax)^p. Defaults to
	// 1.0 (linear interpolation).
	Exponent float64
}

// DefaultOptions returns Exponent: 1.0.
func DefaultOptions() Options {
	return Options{Exponent: 1.0}
}

// Adjust returns the transition matrix for an inter-exon genomic distance d
// (spec.md §4.E):
//   - d <= 0: returns base unchanged.
//   - d >= dmax: returns the rank-1 matrix whose every row equals priors.
//   - otherwise: returns (1-alpha)*base + alpha*priorRows, where
//     alpha = (d/dmax)^Exponent.
func Adjust(base Matrix, priors [NumStates]float64, d, dmax int, opts Options) Matrix {
	if d <= 0 {
		return base
	}
	if d >= dmax {
		var m Matrix
		for r := 0; r < NumStates; r++ {
			m[r] = priors
		}
		return m
	}

	alpha := math.Pow(float64(d)/float64(dmax), opts.Exponent)
	var m Matrix
	for r := 0; r < NumStates; r++ {
		for c := 0; c < NumStates; c++ {
			m[r][c] = (1-alpha)*base[r][c] + alpha*priors[c]
		}
	}
	return m
}
