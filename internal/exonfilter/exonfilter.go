// Package exonfilter implements the exon filter cascade (spec.md §4.C): five
// rejection rules applied per exon to decide whether its per-sample FPM
// vector yields a usable Gaussian fit for the emission evaluator.
package exonfilter

import (
	"sort"

	"github.com/grailbio/cnvcore/internal/gaussfit"
	"gonum.org/v1/gonum/stat"
)

// Tag identifies the outcome of the filter cascade for one exon. It is not
// an error (spec.md §7): rejections are accounted for diagnostics, not
// propagated as failures.
type Tag int

const (
	// Callable means the exon produced a usable (μ, σ) pair.
	Callable Tag = iota
	// Med0 means the exon's median FPM across the cluster is zero.
	Med0
	// NoRG means the robust Gaussian fitter failed (a truncation window
	// ended up empty).
	NoRG
	// Mean0 means the fitted mean is exactly zero.
	Mean0
	// LowZ means the fitted mean is too close to the uncovered threshold.
	LowZ
	// LowWeight means too few samples fall within 2σ of the fitted mean.
	LowWeight
)

func (t Tag) String() string {
	switch t {
	case Callable:
		return "CALLABLE"
	case Med0:
		return "MED0"
	case NoRG:
		return "NO_RG"
	case Mean0:
		return "MEAN0"
	case LowZ:
		return "LOW_Z"
	case LowWeight:
		return "LOW_WEIGHT"
	default:
		return "UNKNOWN"
	}
}

// Result is the per-(cluster,exon) outcome: a (μ, σ) pair when Tag ==
// Callable, the zero value otherwise.
type Result struct {
	Tag   Tag
	Mu    float64
	Sigma float64
}

// Filter runs the five-rule cascade of spec.md §4.C against one exon's FPM
// vector v, given the cluster's uncovThreshold from component A.
func Filter(v []float64, uncovThreshold float64) Result {
	if median(v) == 0 {
		return Result{Tag: Med0}
	}

	mu, sigma, err := gaussfit.Fit(v, gaussfit.DefaultOptions())
	if err != nil {
		return Result{Tag: NoRG}
	}

	if mu == 0 {
		return Result{Tag: Mean0}
	}

	if sigma == 0 {
		// Synthetic spread: simulates +/-5% around the mean (spec.md §4.C
		// step 4) when every sample in the cluster has identical coverage.
		sigma = mu / 20
	}

	z := (mu - uncovThreshold) / sigma
	if z < 3 {
		return Result{Tag: LowZ}
	}

	if SampleWeight(v, mu, sigma) < 0.5 {
		return Result{Tag: LowWeight}
	}

	return Result{Tag: Callable, Mu: mu, Sigma: sigma}
}

// SampleWeight returns the fraction of v falling strictly within
// (mu-2*sigma, mu+2*sigma), the "main coverage profile contribution"
// diagnostic from original_source's computeWeight, exposed standalone per
// SPEC_FULL.md §9.1.
func SampleWeight(v []float64, mu, sigma float64) float64 {
	if len(v) == 0 {
		return 0
	}
	lo, hi := mu-2*sigma, mu+2*sigma
	var n int
	for _, x := range v {
		if x > lo && x < hi {
			n++
		}
	}
	return float64(n) / float64(len(v))
}

func median(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	cp := make([]float64, len(v))
	copy(cp, v)
	sort.Float64s(cp)
	return stat.Quantile(0.5, stat.Empirical, cp, nil)
}
