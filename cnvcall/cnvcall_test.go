package cnvcall

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grailbio/cnvcore/genome"
	"github.com/grailbio/cnvcore/internal/transition"
)

// buildBaseline constructs one cluster's worth of exons and a CountsNorm
// matrix with the bimodal structure component A's KDE relies on: nLow
// poorly-captured exons near 0.3 FPM and nGood well-captured exons near 20
// FPM (internal/densityfit/densityfit_test.go's bimodalSample uses the same two
// distributions). All exons sit on one chromosome.
func buildBaseline(rng *rand.Rand, nSamples, nGood, nLow int) ([]genome.Exon, [][]float64, []string) {
	total := nGood + nLow
	exons := make([]genome.Exon, total)
	countsNorm := make([][]float64, total)
	for e := 0; e < total; e++ {
		exons[e] = genome.Exon{Chrom: "chr1", Start: e * 1000, End: e*1000 + 200, ExonID: "e"}
		row := make([]float64, nSamples)
		for s := 0; s < nSamples; s++ {
			if e < nGood {
				row[s] = 20 + rng.NormFloat64()*2
			} else {
				row[s] = rng.ExpFloat64() * 0.3
			}
		}
		countsNorm[e] = row
	}
	sampleIDs := make([]string, nSamples)
	for s := range sampleIDs {
		sampleIDs[s] = "sample" + string(rune('A'+s))
	}
	return exons, countsNorm, sampleIDs
}

func copyMatrix(m [][]float64) [][]float64 {
	out := make([][]float64, len(m))
	for i, row := range m {
		out[i] = append([]float64(nil), row...)
	}
	return out
}

func standardCaller(exons []genome.Exon, countsNorm [][]float64, sampleIDs []string) *Caller {
	exonChromType := make([]genome.ChromType, len(exons))

	return &Caller{
		Exons:         exons,
		ExonChromType: exonChromType,
		CountsNorm:    countsNorm,
		SampleIDs:     sampleIDs,
		ClusterSamples: map[string][]int{
			"c0": indices(len(sampleIDs)),
		},
		ClusterControls: map[string][]string{},
		ClusterType: map[string]genome.ChromType{
			"c0": genome.Autosome,
		},
		Priors: [NumStates]float64{0.001, 0.01, 0.978, 0.011},
		TransMatrixBase: transition.Matrix{
			{0.97, 0.01, 0.01, 0.01},
			{0.01, 0.96, 0.02, 0.01},
			{0.001, 0.01, 0.978, 0.011},
			{0.01, 0.01, 0.02, 0.96},
		},
		Dmax: 10000000,
		Jobs: 4,
	}
}

func indices(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func TestRunAllWildTypeEmitsNoCNVs(t *testing.T) {
	// S1: one cluster, 20 samples, 350 well-covered + 150 decoy exons, all
	// samples drawn from the same distribution at every exon.
	rng := rand.New(rand.NewSource(1))
	exons, countsNorm, sampleIDs := buildBaseline(rng, 20, 350, 150)
	caller := standardCaller(exons, countsNorm, sampleIDs)

	result, err := caller.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, result.ClusterFitFailures, "expected component A to find the bimodal threshold")
	assert.Greater(t, result.FilterCounters["c0"].Callable, 0)

	for _, cnvs := range result.CNVs {
		assert.Empty(t, cnvs)
	}
}

func TestRunPlantedCN1SegmentIsRecovered(t *testing.T) {
	// S2: sample 0 has a block of exons drawn from half the cluster mean.
	rng := rand.New(rand.NewSource(2))
	exons, baseCounts, sampleIDs := buildBaseline(rng, 20, 350, 150)
	countsNorm := copyMatrix(baseCounts)
	for e := 100; e <= 120; e++ {
		countsNorm[e][0] = 10 + rng.NormFloat64()*1
	}
	caller := standardCaller(exons, countsNorm, sampleIDs)

	result, err := caller.Run(context.Background())
	require.NoError(t, err)
	require.Empty(t, result.ClusterFitFailures)

	sample0 := sampleIDs[0]
	require.NotEmpty(t, result.CNVs[sample0], "expected sample 0 to carry at least one CNV")
	found := false
	for _, c := range result.CNVs[sample0] {
		if c.CNState == 1 && c.FirstExonIdx >= 95 && c.LastExonIdx <= 125 {
			found = true
			assert.Greater(t, c.QualityScore, 0.0)
		}
	}
	assert.True(t, found, "expected a CN1 call overlapping exons [100,120], got %+v", result.CNVs[sample0])

	for s := 1; s < len(sampleIDs); s++ {
		assert.Empty(t, result.CNVs[sampleIDs[s]], "unrelated sample %s should carry no CNVs", sampleIDs[s])
	}
}

func TestRunPlantedCN3SegmentIsRecovered(t *testing.T) {
	// S4: a block of exons drawn from 1.5x the cluster mean (duplication).
	rng := rand.New(rand.NewSource(3))
	exons, baseCounts, sampleIDs := buildBaseline(rng, 20, 350, 150)
	countsNorm := copyMatrix(baseCounts)
	for e := 200; e <= 205; e++ {
		countsNorm[e][0] = 30 + rng.NormFloat64()*2
	}
	caller := standardCaller(exons, countsNorm, sampleIDs)

	result, err := caller.Run(context.Background())
	require.NoError(t, err)
	require.Empty(t, result.ClusterFitFailures)

	sample0 := sampleIDs[0]
	found := false
	for _, c := range result.CNVs[sample0] {
		if c.CNState == 3 && c.FirstExonIdx >= 195 && c.LastExonIdx <= 210 {
			found = true
		}
	}
	assert.True(t, found, "expected a CN3+ call overlapping exons [200,205], got %+v", result.CNVs[sample0])
}

func TestRunTwoBackToBackRegionsProduceTwoSeparateCNVs(t *testing.T) {
	// S5: a CN1 block immediately followed (with a short normal gap) by a
	// CN3+ block must decode as two distinct calls, not one merged run.
	rng := rand.New(rand.NewSource(4))
	exons, baseCounts, sampleIDs := buildBaseline(rng, 20, 350, 150)
	countsNorm := copyMatrix(baseCounts)
	for e := 150; e <= 155; e++ {
		countsNorm[e][0] = 10 + rng.NormFloat64()*1
	}
	for e := 160; e <= 165; e++ {
		countsNorm[e][0] = 30 + rng.NormFloat64()*2
	}
	caller := standardCaller(exons, countsNorm, sampleIDs)

	result, err := caller.Run(context.Background())
	require.NoError(t, err)
	require.Empty(t, result.ClusterFitFailures)

	var states []int
	for _, c := range result.CNVs[sampleIDs[0]] {
		states = append(states, c.CNState)
	}
	assert.Contains(t, states, 1)
	assert.Contains(t, states, 3)
}

func TestRunShapeMismatchIsFatal(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	exons, countsNorm, sampleIDs := buildBaseline(rng, 5, 10, 5)
	caller := standardCaller(exons, countsNorm, sampleIDs)
	caller.CountsNorm = caller.CountsNorm[:len(caller.CountsNorm)-1]

	_, err := caller.Run(context.Background())
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestWorkerCount(t *testing.T) {
	assert.Equal(t, 0, workerCount(4, 0))
	assert.Equal(t, 1, workerCount(1, 10))
	assert.Equal(t, 2, workerCount(4, 10))
	assert.Equal(t, 5, workerCount(100, 5))
}
