// Package viterbi implements the distance-aware Viterbi decoder
// (spec.md §4.F): a per-sample forward pass over an ordered exon sequence,
// with CN2-rebase numeric stabilization, per-chromosome resets, and
// segmentation of the most likely path into CNV calls with a log-ratio
// quality score.
//
// Ported from original_source/callCNVs/callCNVs.py's callCNVsOneSample and
// buildCNVs, restructured into idiomatic Go: the four parallel Python lists
// (calledExons, path, bestPathProbas, CN2PathProbas) become one chromRun
// buffer struct, reused across chromosomes instead of being rebuilt.
package viterbi

import (
	"math"

	"github.com/grailbio/cnvcore/genome"
	"github.com/grailbio/cnvcore/internal/transition"
)

// NumStates is the number of HMM states (CN0..CN3+). State 2 is CN2 / wild
// type and is never emitted as a CNV.
const NumStates = 4

// CN2 is the wild-type state index.
const CN2 = 2

// NoCall is the sentinel likelihood used by the emission tensor to mark an
// exon with no usable fit (spec.md §3).
const NoCall = -1

// CNV is one called copy-number variant (spec.md §3). CNState is never 2.
type CNV struct {
	CNState      int
	FirstExonIdx int
	LastExonIdx  int
	QualityScore float64
}

// Options configures the decoder.
type Options struct {
	Dmax           int
	TransitionOpts transition.Options
	QualityLog     func(float64) float64
}

// DefaultOptions uses the natural log for quality scores
// (SPEC_FULL.md §4.F.1) and the default transition interpolation exponent.
func DefaultOptions(dmax int) Options {
	return Options{
		Dmax:           dmax,
		TransitionOpts: transition.DefaultOptions(),
		QualityLog:     math.Log,
	}
}

// Likelihoods is one sample's emission slice over an exon sequence:
// Likelihoods[e][c] is the pseudo-likelihood of exon e under state c, or
// NoCall in all four entries if exon e has no usable fit.
type Likelihoods [][NumStates]float64

// Decode runs the Viterbi forward pass + segmentation over exons (assumed
// ordered with contiguous per-chromosome runs, spec.md §3) for one sample,
// returning CNVs sorted by (chromosome order, firstExonIdx) as required by
// spec.md §5.
func Decode(exons []genome.Exon, l Likelihoods, base transition.Matrix, priors [NumStates]float64, opts Options) ([]CNV, error) {
	if len(exons) != len(l) {
		return nil, errShapeMismatch
	}

	var cnvs []CNV
	var run chromRun
	run.reset()

	probsPrev := [NumStates]float64{0, 0, 1, 0}
	prevEnd := -opts.Dmax
	prevChrom := ""
	if len(exons) > 0 {
		prevChrom = exons[0].Chrom
	}

	for e := range exons {
		if l[e][0] == NoCall {
			continue
		}

		if exons[e].Chrom != prevChrom {
			if run.hasNonCN2() {
				cnvs = append(cnvs, run.segment(argmax(run.bestPathProbas[len(run.bestPathProbas)-1]), opts)...)
			}
			run.reset()
			probsPrev = [NumStates]float64{0, 0, 1, 0}
			prevEnd = -opts.Dmax
			prevChrom = exons[e].Chrom
		}

		d := exons[e].Start - prevEnd - 1
		adjusted := transition.Adjust(base, priors, d, opts.Dmax, opts.TransitionOpts)

		var probsCur [NumStates]float64
		var bestPrev [NumStates]int
		var cn2PathProba float64
		for c := 0; c < NumStates; c++ {
			bestPrev[c] = CN2
			probMax := -1.0
			prevStateMax := -1
			for p := 0; p < NumStates; p++ {
				prob := probsPrev[p] * adjusted[p][c] * l[e][c]
				if prob > probMax {
					probMax = prob
					prevStateMax = p
				}
				if c == CN2 && p == CN2 {
					cn2PathProba = prob
				}
			}
			probsCur[c] = probMax
			if probMax > 0 {
				bestPrev[c] = prevStateMax
			}
		}

		if allCN2(bestPrev) {
			if run.hasNonCN2() {
				cnvs = append(cnvs, run.segment(CN2, opts)...)
			}
			if run.len() > 0 {
				denom := probsPrev[CN2]
				probsCur = divOrZero(probsCur, denom)
				cn2Denom := run.cn2PathProbas[len(run.cn2PathProbas)-1]
				cn2PathProba = divOrZeroScalar(cn2PathProba, cn2Denom)
				run.reset()
			}
		}

		run.append(e, bestPrev, probsCur, cn2PathProba)
		probsPrev = probsCur
		prevEnd = exons[e].End
	}

	if run.hasNonCN2() {
		cnvs = append(cnvs, run.segment(argmax(run.bestPathProbas[len(run.bestPathProbas)-1]), opts)...)
	}

	return cnvs, nil
}

func allCN2(bestPrev [NumStates]int) bool {
	for _, p := range bestPrev {
		if p != CN2 {
			return false
		}
	}
	return true
}

func argmax(v [NumStates]float64) int {
	best := 0
	for i := 1; i < NumStates; i++ {
		if v[i] > v[best] {
			best = i
		}
	}
	return best
}

func divOrZero(v [NumStates]float64, denom float64) [NumStates]float64 {
	if denom == 0 {
		return [NumStates]float64{}
	}
	var out [NumStates]float64
	for i, x := range v {
		out[i] = x / denom
	}
	return out
}

func divOrZeroScalar(x, denom float64) float64 {
	if denom == 0 {
		return 0
	}
	return x / denom
}
