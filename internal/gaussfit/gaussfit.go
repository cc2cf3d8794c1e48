// Package gaussfit implements the robust Gaussian fitter (spec.md §4.B): an
// iterative truncated-window EM-style estimator of a single principal
// Gaussian component inside a 1-D mixture of unknown shape.
//
// Ported from original_source/callCNVs/robustGaussianFit.py, itself adapted
// from https://github.com/hmiemad/robust_Gaussian_fit (MIT license, per that
// file's header).
package gaussfit

import (
	"errors"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// ErrCannotFit is returned when the truncated window around the running
// mean contains no points, or when the starting median is exactly zero.
var ErrCannotFit = errors.New("gaussfit: cannot fit")

// Options configures the iterative fit. The zero value is not usable;
// callers should start from DefaultOptions().
type Options struct {
	// Bandwidth is the half-width, in standard deviations, of the truncation
	// window around the running mean.
	Bandwidth float64
	// Eps is the convergence tolerance on |Δμ| + |Δσ|.
	Eps float64
}

// DefaultOptions returns the parameters used throughout this pipeline:
// bandwidth=2.0, eps=1e-5 (spec.md §4.B).
func DefaultOptions() Options {
	return Options{Bandwidth: 2.0, Eps: 1e-5}
}

// Fit estimates (μ, σ) of the dominant Gaussian component in x, seeding the
// search at the median and std/3 per spec.md §4.B. It returns ErrCannotFit
// if the median is zero or if any truncation window ends up empty.
func Fit(x []float64, opts Options) (mu, sigma float64, err error) {
	mu = median(x)
	if mu == 0 {
		return 0, 0, ErrCannotFit
	}
	sigma = stat.StdDev(x, nil) / 3

	k := truncatedNormalSigmaFactor(opts.Bandwidth)

	prevMu, prevSigma := mu+1, sigma+1
	for math.Abs(mu-prevMu)+math.Abs(sigma-prevSigma) > opts.Eps {
		lo := mu - opts.Bandwidth*sigma
		hi := mu + opts.Bandwidth*sigma

		var window []float64
		for _, v := range x {
			if v > lo && v < hi {
				window = append(window, v)
			}
		}
		if len(window) == 0 {
			return 0, 0, ErrCannotFit
		}

		newMu := stat.Mean(window, nil)
		var sumSq float64
		for _, v := range window {
			d := v - newMu
			sumSq += d * d
		}
		newSigma := math.Sqrt(sumSq/float64(len(window))) / k

		prevMu, prevSigma = mu, sigma
		mu, sigma = newMu, newSigma
	}
	return mu, sigma, nil
}

// median returns the sample median of x without mutating the caller's
// slice.
func median(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	cp := make([]float64, len(x))
	copy(cp, x)
	sort.Float64s(cp)
	return stat.Quantile(0.5, stat.Empirical, cp, nil)
}

// truncatedNormalSigmaFactor computes the standard deviation of a standard
// normal distribution truncated to [-bandwidth, +bandwidth], via the
// normal_erf series expansion (spec.md glossary "normal_erf"): a from-scratch
// series for the standard-normal pdf and erf, avoiding any special-function
// dependency, exactly as the ported Python does.
func truncatedNormalSigmaFactor(bandwidth float64) float64 {
	n, e := normalErf(bandwidth)
	return math.Sqrt(1 - n*bandwidth/e)
}

// normalErf jointly computes, via a Taylor series in x=(x-mu)/sigma:
//   - the standard normal pdf evaluated at x (mu=0, sigma=1 for our use)
//   - the integral ∫[0,x] standardNormalPdf, i.e. erf(x/√2)/2, clipped to
//     [-0.5, 0.5]
//
// matching original_source/callCNVs/robustGaussianFit.py's normal_erf.
func normalErf(x float64) (normalPDF, erfHalf float64) {
	const depth = 50
	ele := 1.0
	normalSum := 1.0
	erfSum := x
	for i := 1; i < depth; i++ {
		ele = -ele * x * x / 2.0 / float64(i)
		normalSum += ele
		erfSum += ele * x / (2.0*float64(i) + 1)
	}
	sqrt2pi := math.Sqrt(2.0 * math.Pi)
	normalPDF = clip(normalSum/sqrt2pi, 0, math.Inf(1))
	erfHalf = clip(erfSum/sqrt2pi, -0.5, 0.5)
	return normalPDF, erfHalf
}

func clip(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
