package densityfit

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Reason enumerates the per-cluster fit failures from spec.md §7.
type Reason string

const (
	NoLocalMin       Reason = "NO_LOCAL_MIN"
	GammaFitFail     Reason = "GAMMA_FIT_FAIL"
	NoUncovThreshold Reason = "NO_UNCOV_THRESHOLD"
)

// FitError is a ClusterFitFailure (spec.md §7): the cluster produces no
// callable exons, but the pipeline proceeds (its likelihood tensor rows
// stay at the no-call sentinel).
type FitError struct {
	Reason Reason
}

func (e *FitError) Error() string { return "densityfit: " + string(e.Reason) }

var errGammaFitFail = &FitError{Reason: GammaFitFail}

// Result bundles the outputs of component A for one cluster.
type Result struct {
	Gamma          GammaParams
	UncovThreshold float64
}

// Options configures the estimator; the zero value is not usable.
type Options struct {
	BandwidthRule BandwidthRule
}

// DefaultOptions selects Scott's bandwidth rule (spec.md §4.A.1).
func DefaultOptions() Options {
	return Options{BandwidthRule: ScottBandwidth}
}

// Fit runs the full density & threshold estimator (spec.md §4.A) on a
// cluster's per-exon mean coverage vector meanPerExon.
func Fit(meanPerExon []float64, opts Options) (Result, error) {
	grid := BinEdges()
	density := KDE(meanPerExon, grid, opts.BandwidthRule)

	minIdx, ok := FirstLocalMin(density)
	if !ok {
		return Result{}, &FitError{Reason: NoLocalMin}
	}

	threshold := grid[minIdx]
	var lowTail []float64
	for _, v := range meanPerExon {
		if v <= threshold {
			lowTail = append(lowTail, v)
		}
	}
	sort.Float64s(lowTail)

	gammaParams, err := FitGamma(lowTail)
	if err != nil {
		return Result{}, &FitError{Reason: GammaFitFail}
	}

	uncovThreshold, ok := uncovThresholdFromCDF(lowTail, gammaParams)
	if !ok {
		return Result{}, &FitError{Reason: NoUncovThreshold}
	}

	return Result{Gamma: gammaParams, UncovThreshold: uncovThreshold}, nil
}

// uncovThresholdFromCDF implements spec.md §4.A step 6: the largest value in
// lowTail whose fitted-gamma CDF is < 0.95. Fails if every CDF value is
// already >= 0.95.
func uncovThresholdFromCDF(lowTail []float64, gammaParams GammaParams) (float64, bool) {
	found := false
	var threshold float64
	for _, v := range lowTail {
		if gammaParams.CDF(v) < 0.95 {
			threshold = v
			found = true
		}
	}
	return threshold, found
}

// MeanPerExon computes meanPerExon[e] = mean_s countsNorm[e, s] (spec.md
// §4.A step 1) for a cluster's submatrix, exposed via a row accessor so
// callers need not materialize a dense sub-copy of the shared count matrix.
func MeanPerExon(countsNorm func(exonIdx int) []float64, numExons int) []float64 {
	means := make([]float64, numExons)
	for e := 0; e < numExons; e++ {
		means[e] = stat.Mean(countsNorm(e), nil)
	}
	return means
}
