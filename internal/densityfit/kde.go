// Package densityfit implements the density & threshold estimator
// (spec.md §4.A): a Gaussian KDE of per-exon mean coverage on a fixed grid,
// location of the first local density minimum, a gamma MLE fit of the
// low-coverage tail below that minimum, and the resulting uncovered-exon
// FPM threshold.
package densityfit

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// BinEdges is the fixed FPM grid the KDE is evaluated on: 0.0, 0.1, ..., 10.0
// (spec.md §4.A step 2).
func BinEdges() []float64 {
	edges := make([]float64, 101)
	for i := range edges {
		edges[i] = float64(i) * 0.1
	}
	return edges
}

// BandwidthRule picks a KDE bandwidth from a sample.
type BandwidthRule func(x []float64) float64

// ScottBandwidth implements Scott's rule, bw = 1.06*sigma*n^(-1/5), matching
// the default bandwidth SciPy's gaussian_kde uses (the original Python's
// scipy.stats.gaussian_kde call relies on this default; spec.md §4.A.1/§9
// leaves the exact rule as a parameter).
func ScottBandwidth(x []float64) float64 {
	n := float64(len(x))
	sigma := stat.StdDev(x, nil)
	return 1.06 * sigma * math.Pow(n, -1.0/5.0)
}

// KDE evaluates a Gaussian kernel density estimate of x at each point of
// grid, using the given bandwidth rule.
func KDE(x []float64, grid []float64, bandwidthRule BandwidthRule) []float64 {
	bw := bandwidthRule(x)
	density := make([]float64, len(grid))
	if bw <= 0 || len(x) == 0 {
		return density
	}
	norm := 1.0 / (float64(len(x)) * bw * math.Sqrt(2*math.Pi))
	for gi, g := range grid {
		var sum float64
		for _, xi := range x {
			u := (g - xi) / bw
			sum += math.Exp(-0.5 * u * u)
		}
		density[gi] = norm * sum
	}
	return density
}

// FirstLocalMin returns the index of the first strict local minimum of
// density, scanning left to right for a derivative sign change from
// negative to positive (spec.md §4.A step 3). ok is false if no such index
// exists (the caller should fail the cluster with NoLocalMin).
func FirstLocalMin(density []float64) (idx int, ok bool) {
	for i := 1; i < len(density)-1; i++ {
		if density[i-1] > density[i] && density[i] < density[i+1] {
			return i, true
		}
	}
	return 0, false
}
