package exonfilter

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterMed0(t *testing.T) {
	v := []float64{0, 0, 0, 0, 1}
	res := Filter(v, 0.5)
	assert.Equal(t, Med0, res.Tag)
}

func TestFilterCallable(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	v := make([]float64, 200)
	for i := range v {
		v[i] = 10 + rng.NormFloat64()
	}
	res := Filter(v, 1.0)
	assert.Equal(t, Callable, res.Tag)
	assert.InDelta(t, 10, res.Mu, 0.5)
	assert.InDelta(t, 1, res.Sigma, 0.3)
}

func TestFilterLowZ(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	v := make([]float64, 200)
	for i := range v {
		v[i] = 2 + rng.NormFloat64()*0.2
	}
	// uncovThreshold close to the fitted mean => low z-score.
	res := Filter(v, 1.9)
	assert.Equal(t, LowZ, res.Tag)
}

func TestFilterLowWeight(t *testing.T) {
	// Three equal-sized, well-separated clusters at 5, 10 and 15: the overall
	// median sits inside the middle cluster, so the robust fit locks onto it
	// alone, leaving only a third of the samples within its 2-sigma window.
	v := make([]float64, 0, 99)
	for i := 0; i < 33; i++ {
		v = append(v, 5+float64(i%3)*0.001)
		v = append(v, 10+float64(i%3)*0.001)
		v = append(v, 15+float64(i%3)*0.001)
	}
	res := Filter(v, 1.0)
	assert.Equal(t, LowWeight, res.Tag)
}

func TestSampleWeight(t *testing.T) {
	v := []float64{9, 9.5, 10, 10.5, 11, 100}
	w := SampleWeight(v, 10, 1)
	assert.InDelta(t, 5.0/6.0, w, 1e-9)
}
