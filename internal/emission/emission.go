// Package emission implements the per-sample emission evaluator
// (spec.md §4.D): given a cluster's fitted gamma tail, uncovered-exon
// threshold, per-exon robust Gaussian (μ, σ), and the CN priors, it computes
// the normalized 4-vector of CN0..CN3+ pseudo-likelihoods for one FPM
// observation.
package emission

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// NumStates is the number of copy-number hypotheses: CN0, CN1, CN2, CN3+.
const NumStates = 4

// NoCall is the sentinel likelihood value for an exon that never received a
// (μ, σ) from the filter cascade, or for which Σq collapsed to zero
// (spec.md §3, §4.D).
const NoCall = -1

// CN3Model selects which distribution backs the CN3+ (duplication) state.
type CN3Model int

const (
	// CN3Gaussian is the canonical model (spec.md §4.D): Normal(3μ/2, σ).
	CN3Gaussian CN3Model = iota
	// CN3GammaAlt is the alternate empirical model observed in
	// original_source/CNVCalls/likelihoods.py (SPEC_FULL.md §4.D.1): a gamma
	// distribution with shape=8, loc=μ+σ, scale=log10(μ+σ+1).
	CN3GammaAlt
)

// Options configures the evaluator. The zero value selects CN3Gaussian, the
// same as DefaultOptions().
type Options struct {
	CN3Model CN3Model
}

// DefaultOptions selects the canonical Gaussian CN3+ model.
func DefaultOptions() Options {
	return Options{CN3Model: CN3Gaussian}
}

// GammaTail holds the cluster-level fitted gamma parameters used for the
// CN0 state (spec.md §4.A, §4.D).
type GammaTail struct {
	Shape, Loc, Scale float64
	UncovThreshold    float64
}

// Evaluate computes the normalized 4-vector (spec.md §4.D) for one sample
// FPM x at one exon, given the cluster's gamma tail, the exon's robust
// Gaussian (mu, sigma), and the CN priors. It returns (NoCall, NoCall,
// NoCall, NoCall) if the weighted sum collapses to zero.
func Evaluate(x float64, tail GammaTail, mu, sigma float64, priors [NumStates]float64, opts Options) [NumStates]float64 {
	p0 := cn0PDF(x, mu, tail)
	p1 := distuv.Normal{Mu: mu / 2, Sigma: sigma}.Prob(x)
	p2 := distuv.Normal{Mu: mu, Sigma: sigma}.Prob(x)
	p3 := cn3PDF(x, mu, sigma, opts.CN3Model)

	q := [NumStates]float64{p0 * priors[0], p1 * priors[1], p2 * priors[2], p3 * priors[3]}
	var sum float64
	for _, v := range q {
		sum += v
	}
	if sum == 0 {
		return [NumStates]float64{NoCall, NoCall, NoCall, NoCall}
	}
	for i := range q {
		q[i] /= sum
	}
	return q
}

// cn0PDF implements spec.md §4.D's CN0 rule: the fitted gamma pdf truncated
// to x <= mu/2 and renormalized by 1/(1 - gammaCDF(uncovThreshold)), so the
// gamma's heavy tail doesn't bleed into the higher-CN states.
func cn0PDF(x, mu float64, tail GammaTail) float64 {
	if x > mu/2 {
		return 0
	}
	gammaDist := distuv.Gamma{Alpha: tail.Shape, Beta: 1 / tail.Scale}
	pdf := gammaPDFAt(gammaDist, x-tail.Loc)
	denom := 1 - gammaCDFAt(gammaDist, tail.UncovThreshold-tail.Loc)
	if denom <= 0 {
		return 0
	}
	return pdf / denom
}

func gammaPDFAt(d distuv.Gamma, shifted float64) float64 {
	if shifted <= 0 {
		return 0
	}
	return d.Prob(shifted)
}

func gammaCDFAt(d distuv.Gamma, shifted float64) float64 {
	if shifted <= 0 {
		return 0
	}
	return d.CDF(shifted)
}

func cn3PDF(x, mu, sigma float64, model CN3Model) float64 {
	switch model {
	case CN3GammaAlt:
		locAddScale := mu + sigma
		scale := math.Log10(locAddScale + 1)
		if scale <= 0 {
			return 0
		}
		return distuv.Gamma{Alpha: 8, Beta: 1 / scale}.Prob(x - locAddScale)
	default:
		return distuv.Normal{Mu: 1.5 * mu, Sigma: sigma}.Prob(x)
	}
}
