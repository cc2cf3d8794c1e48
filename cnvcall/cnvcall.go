// Package cnvcall is the orchestrator (spec.md §2 component G): it iterates
// clusters to fit per-exon distributions and populate the likelihood
// tensor (components A-D), then iterates samples to decode CNVs over the
// autosome and gonosome exon subsets (components E-F).
package cnvcall

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"

	"github.com/grailbio/cnvcore/genome"
	"github.com/grailbio/cnvcore/internal/densityfit"
	"github.com/grailbio/cnvcore/internal/emission"
	"github.com/grailbio/cnvcore/internal/exonfilter"
	"github.com/grailbio/cnvcore/internal/transition"
	"github.com/grailbio/cnvcore/internal/viterbi"
)

// NumStates is the number of CN hypotheses (CN0..CN3+).
const NumStates = emission.NumStates

// NoCall mirrors the likelihood-tensor sentinel used by internal/emission
// and internal/viterbi.
const NoCall = emission.NoCall

// Caller is cnvcore's single exported entry point, gluing components A-G
// (SPEC_FULL.md §6.1). Collaborator-supplied fields mirror spec.md §6's
// external interface exactly; zero value is not usable.
type Caller struct {
	// Exons is the full ordered exon list; per-chromosome groups must be
	// contiguous (spec.md §3).
	Exons []genome.Exon
	// ExonChromType partitions Exons into autosomal and gonosomal subsets
	// (len(ExonChromType) == len(Exons)). Gender/chromosome discrimination is
	// an out-of-scope collaborator concern (spec.md §1); this is its output.
	ExonChromType []genome.ChromType
	// CountsNorm is the E x S matrix of non-negative FPM values,
	// CountsNorm[e][s].
	CountsNorm [][]float64
	SampleIDs  []string

	// ClusterSamples maps a cluster ID to the ordered sample indices it
	// calls. ClusterControls maps a cluster ID to other cluster IDs whose
	// samples augment the fit only (never the call set). ClusterType gives
	// each cluster ID its autosome/gonosome restriction.
	ClusterSamples  map[string][]int
	ClusterControls map[string][]string
	ClusterType     map[string]genome.ChromType

	Priors          [NumStates]float64
	TransMatrixBase transition.Matrix
	Dmax            int

	// Jobs bounds worker-pool size for both the per-cluster fit stage and
	// the per-sample decode stage (SPEC_FULL.md §5.1).
	Jobs int

	DensityOptions  densityfit.Options
	EmissionOptions emission.Options
	ViterbiOptions  *viterbi.Options // nil selects viterbi.DefaultOptions(Dmax)
}

// CNV is one emitted call (spec.md §3), widened with the sample it belongs
// to.
type CNV struct {
	SampleID     string  `json:"sampleId"`
	CNState      int     `json:"cnState"`
	FirstExonIdx int     `json:"firstExonIdx"`
	LastExonIdx  int     `json:"lastExonIdx"`
	QualityScore float64 `json:"qualityScore"`
}

// FilterCounters tallies the exon filter cascade's outcomes for one cluster
// (SPEC_FULL.md §9.1), used for orchestrator-level diagnostics (spec.md §7).
type FilterCounters struct {
	Callable  int `json:"callable"`
	Med0      int `json:"med0"`
	NoRG      int `json:"noRg"`
	Mean0     int `json:"mean0"`
	LowZ      int `json:"lowZ"`
	LowWeight int `json:"lowWeight"`
}

func (f *FilterCounters) add(tag exonfilter.Tag) {
	switch tag {
	case exonfilter.Callable:
		f.Callable++
	case exonfilter.Med0:
		f.Med0++
	case exonfilter.NoRG:
		f.NoRG++
	case exonfilter.Mean0:
		f.Mean0++
	case exonfilter.LowZ:
		f.LowZ++
	case exonfilter.LowWeight:
		f.LowWeight++
	}
}

// SampleDecodeFailure records a per-sample Viterbi failure that does not
// abort the batch (spec.md §7).
type SampleDecodeFailure struct {
	SampleID string
	Cause    error
}

func (f SampleDecodeFailure) Error() string {
	return "cnvcall: sample " + f.SampleID + " decode failed: " + f.Cause.Error()
}

func (f SampleDecodeFailure) Unwrap() error { return f.Cause }

// Result bundles everything Run produces.
type Result struct {
	// Likelihoods is L[e][s], the per-exon per-sample 4-vector
	// (spec.md §3); NoCall in every entry marks a non-callable cell.
	Likelihoods [][][NumStates]float64
	// FilterCounters is keyed by cluster ID.
	FilterCounters map[string]FilterCounters
	// ClusterFitFailures is keyed by cluster ID, populated only for clusters
	// that failed component A entirely (spec.md §7 ClusterFitFailure).
	ClusterFitFailures map[string]error
	// CNVs is keyed by sample ID; each list is sorted by
	// (chromosome order, firstExonIdx) per spec.md §5.
	CNVs map[string][]CNV
	// SampleFailures collects per-sample decode errors without aborting the
	// batch.
	SampleFailures []SampleDecodeFailure
}

// ErrShapeMismatch is the fatal ShapeMismatch error (spec.md §7): the
// collaborator-supplied matrices disagree in shape. It aborts Run
// immediately, before any cluster or sample work is dispatched.
var ErrShapeMismatch = errors.New("cnvcall: mismatched input shapes")

// Run executes the whole pipeline: fitting (A-C) and emission (D) per
// cluster, then decoding (E-F) per sample. Cluster-level fit failures are
// non-fatal and recorded in Result.ClusterFitFailures; sample-level decode
// failures are non-fatal and recorded in Result.SampleFailures. Only a
// shape mismatch aborts immediately. ctx is checked at each cluster and
// sample loop head (SPEC_FULL.md §5.1); on cancellation, units already
// dispatched finish and no new ones start.
func (c *Caller) Run(ctx context.Context) (Result, error) {
	if err := c.validateShapes(); err != nil {
		return Result{}, err
	}

	numExons := len(c.Exons)
	numSamples := len(c.SampleIDs)

	result := Result{
		Likelihoods:        make([][][NumStates]float64, numExons),
		FilterCounters:     make(map[string]FilterCounters),
		ClusterFitFailures: make(map[string]error),
		CNVs:               make(map[string][]CNV, numSamples),
	}
	for e := 0; e < numExons; e++ {
		result.Likelihoods[e] = make([][NumStates]float64, numSamples)
		for s := 0; s < numSamples; s++ {
			result.Likelihoods[e][s] = [NumStates]float64{NoCall, NoCall, NoCall, NoCall}
		}
	}

	c.fitClusters(ctx, &result)
	c.decodeSamples(ctx, &result)

	return result, nil
}

func (c *Caller) validateShapes() error {
	if len(c.ExonChromType) != len(c.Exons) {
		return ErrShapeMismatch
	}
	if len(c.CountsNorm) != len(c.Exons) {
		return ErrShapeMismatch
	}
	for _, row := range c.CountsNorm {
		if len(row) != len(c.SampleIDs) {
			return ErrShapeMismatch
		}
	}
	// The decoder's per-chromosome reset (internal/viterbi) depends on
	// spec.md §3's "per-chromosome groups are contiguous in the list"
	// invariant; reject up front rather than let it silently mis-segment.
	if _, err := genome.ChromRuns(c.Exons); err != nil {
		return errors.E(err, "cnvcall: exon list violates chromosome contiguity")
	}
	return nil
}

// workerCount mirrors original_source/callCNVs/callCNVs.py's
// paraSample = min(ceil(jobs/2), n), and the teacher's shard-worker pool
// sizing in mark_duplicates.go.
func workerCount(jobs, n int) int {
	if n == 0 {
		return 0
	}
	w := int(math.Ceil(float64(jobs) / 2))
	if w < 1 {
		w = 1
	}
	if w > n {
		w = n
	}
	return w
}

// fitClusters runs components A-D for every cluster, writing into
// result.Likelihoods. Clusters write to disjoint (exon, sample) slots
// (their own call samples, restricted to their own chromosome-type exon
// subset), so no locking is required (spec.md §5).
func (c *Caller) fitClusters(ctx context.Context, result *Result) {
	clusterIDs := make([]string, 0, len(c.ClusterSamples))
	for id := range c.ClusterSamples {
		clusterIDs = append(clusterIDs, id)
	}
	sort.Strings(clusterIDs)

	var mu sync.Mutex
	workers := workerCount(c.Jobs, len(clusterIDs))
	clusterCh := make(chan string, len(clusterIDs))
	for _, id := range clusterIDs {
		clusterCh <- id
	}
	close(clusterCh)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for clusterID := range clusterCh {
				if ctx.Err() != nil {
					continue
				}
				counters, fitErr := c.fitOneCluster(clusterID, result)
				mu.Lock()
				result.FilterCounters[clusterID] = counters
				if fitErr != nil {
					result.ClusterFitFailures[clusterID] = fitErr
					log.Debug.Printf("cluster %s fit failed: %v", clusterID, fitErr)
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
}

// fitOneCluster runs A-D for one cluster and writes emission vectors
// directly into result.Likelihoods at that cluster's own call-sample
// columns, restricted to its own chromosome-type exon subset.
func (c *Caller) fitOneCluster(clusterID string, result *Result) (FilterCounters, error) {
	var counters FilterCounters

	chromType := c.ClusterType[clusterID]
	exonIdx := c.exonIndicesFor(chromType)

	fitSamples := append([]int(nil), c.ClusterSamples[clusterID]...)
	for _, controlID := range c.ClusterControls[clusterID] {
		fitSamples = append(fitSamples, c.ClusterSamples[controlID]...)
	}

	meanPerExon := densityfit.MeanPerExon(func(i int) []float64 {
		e := exonIdx[i]
		return rowAt(c.CountsNorm[e], fitSamples)
	}, len(exonIdx))

	densityOpts := c.DensityOptions
	if densityOpts.BandwidthRule == nil {
		densityOpts = densityfit.DefaultOptions()
	}
	fit, err := densityfit.Fit(meanPerExon, densityOpts)
	if err != nil {
		return counters, err
	}

	tail := emission.GammaTail{
		Shape:          fit.Gamma.Shape,
		Loc:            fit.Gamma.Loc,
		Scale:          fit.Gamma.Scale,
		UncovThreshold: fit.UncovThreshold,
	}

	callSamples := c.ClusterSamples[clusterID]
	for _, e := range exonIdx {
		fitVec := rowAt(c.CountsNorm[e], fitSamples)
		filterResult := exonfilter.Filter(fitVec, fit.UncovThreshold)
		counters.add(filterResult.Tag)
		if filterResult.Tag != exonfilter.Callable {
			continue
		}
		for _, s := range callSamples {
			x := c.CountsNorm[e][s]
			result.Likelihoods[e][s] = emission.Evaluate(x, tail, filterResult.Mu, filterResult.Sigma, c.Priors, c.EmissionOptions)
		}
	}
	return counters, nil
}

// exonIndicesFor returns the global exon indices restricted to one
// chromosome type, in ascending (list) order.
func (c *Caller) exonIndicesFor(t genome.ChromType) []int {
	var idx []int
	for e, ct := range c.ExonChromType {
		if ct == t {
			idx = append(idx, e)
		}
	}
	return idx
}

func rowAt(row []float64, samples []int) []float64 {
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = row[s]
	}
	return out
}

// decodeSamples runs the Viterbi decoder (E-F) for every sample, over the
// autosome and gonosome exon subsets independently, merging and sorting the
// resulting CNV lists.
func (c *Caller) decodeSamples(ctx context.Context, result *Result) {
	autoIdx := c.exonIndicesFor(genome.Autosome)
	gonoIdx := c.exonIndicesFor(genome.Gonosome)
	autoExons := subsetExons(c.Exons, autoIdx)
	gonoExons := subsetExons(c.Exons, gonoIdx)

	opts := viterbi.DefaultOptions(c.Dmax)
	if c.ViterbiOptions != nil {
		opts = *c.ViterbiOptions
	}

	numSamples := len(c.SampleIDs)
	workers := workerCount(c.Jobs, numSamples)
	sampleCh := make(chan int, numSamples)
	for s := 0; s < numSamples; s++ {
		sampleCh <- s
	}
	close(sampleCh)

	type outcome struct {
		sampleID string
		cnvs     []CNV
		err      error
	}
	outCh := make(chan outcome, numSamples)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for s := range sampleCh {
				if ctx.Err() != nil {
					continue
				}
				sampleID := c.SampleIDs[s]
				cnvs, err := decodeOneSample(sampleID, s, autoExons, autoIdx, gonoExons, gonoIdx, result.Likelihoods, c.TransMatrixBase, c.Priors, opts)
				outCh <- outcome{sampleID: sampleID, cnvs: cnvs, err: err}
			}
		}()
	}
	wg.Wait()
	close(outCh)

	for o := range outCh {
		if o.err != nil {
			result.SampleFailures = append(result.SampleFailures, SampleDecodeFailure{SampleID: o.sampleID, Cause: o.err})
			log.Debug.Printf("sample %s decode failed: %v", o.sampleID, o.err)
			continue
		}
		result.CNVs[o.sampleID] = o.cnvs
	}
}

func decodeOneSample(sampleID string, s int, autoExons []genome.Exon, autoIdx []int, gonoExons []genome.Exon, gonoIdx []int, likelihoods [][][NumStates]float64, base transition.Matrix, priors [NumStates]float64, opts viterbi.Options) ([]CNV, error) {
	var cnvs []CNV

	autoCNVs, err := viterbi.Decode(autoExons, sampleLikelihoods(likelihoods, autoIdx, s), base, priors, opts)
	if err != nil {
		return nil, err
	}
	for _, v := range autoCNVs {
		cnvs = append(cnvs, toCallerCNV(sampleID, v, autoIdx))
	}

	gonoCNVs, err := viterbi.Decode(gonoExons, sampleLikelihoods(likelihoods, gonoIdx, s), base, priors, opts)
	if err != nil {
		return nil, err
	}
	for _, v := range gonoCNVs {
		cnvs = append(cnvs, toCallerCNV(sampleID, v, gonoIdx))
	}

	sort.Slice(cnvs, func(i, j int) bool { return cnvs[i].FirstExonIdx < cnvs[j].FirstExonIdx })
	return cnvs, nil
}

func toCallerCNV(sampleID string, v viterbi.CNV, idx []int) CNV {
	return CNV{
		SampleID:     sampleID,
		CNState:      v.CNState,
		FirstExonIdx: idx[v.FirstExonIdx],
		LastExonIdx:  idx[v.LastExonIdx],
		QualityScore: v.QualityScore,
	}
}

func subsetExons(exons []genome.Exon, idx []int) []genome.Exon {
	out := make([]genome.Exon, len(idx))
	for i, e := range idx {
		out[i] = exons[e]
	}
	return out
}

func sampleLikelihoods(likelihoods [][][NumStates]float64, idx []int, s int) viterbi.Likelihoods {
	out := make(viterbi.Likelihoods, len(idx))
	for i, e := range idx {
		out[i] = likelihoods[e][s]
	}
	return out
}
