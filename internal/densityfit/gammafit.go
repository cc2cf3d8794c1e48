package densityfit

import (
	"math"

	"gonum.org/v1/gonum/mathext"
	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat/distuv"
)

// GammaParams holds the fitted 3-parameter gamma distribution: shape, loc,
// scale, equivalent in semantics to SciPy's gamma.fit with free loc
// (spec.md §4.A step 5).
type GammaParams struct {
	Shape float64
	Loc   float64
	Scale float64
}

// CDF evaluates the fitted gamma's cumulative distribution function at x.
func (p GammaParams) CDF(x float64) float64 {
	if x <= p.Loc {
		return 0
	}
	return distuv.Gamma{Alpha: p.Shape, Beta: 1 / p.Scale}.CDF(x - p.Loc)
}

// PDF evaluates the fitted gamma's probability density function at x.
func (p GammaParams) PDF(x float64) float64 {
	if x <= p.Loc {
		return 0
	}
	return distuv.Gamma{Alpha: p.Shape, Beta: 1 / p.Scale}.Prob(x - p.Loc)
}

// shapeScaleMLE solves the gamma MLE equations for shape and scale given
// already-shifted, strictly positive data y (i.e. loc already subtracted
// out): the standard two-equation system
//
//	ln(shape) - digamma(shape) = ln(mean(y)) - mean(ln(y))
//	scale = mean(y) / shape
//
// gonum's mathext package provides Digamma but not its derivative
// (Trigamma), so the root of the first equation is found by damped Newton
// iteration using a centered finite-difference derivative of
// ln(shape)-digamma(shape) — a small, self-contained numerical routine
// rather than a stdlib fallback for something the pack could otherwise
// supply (see DESIGN.md).
func shapeScaleMLE(y []float64) (shape, scale float64) {
	n := float64(len(y))
	var sum, sumLog float64
	for _, v := range y {
		sum += v
		sumLog += math.Log(v)
	}
	mean := sum / n
	s := math.Log(mean) - sumLog/n
	if s <= 1e-12 {
		s = 1e-12
	}

	// Minka's initial approximation for the MLE shape.
	a := (3 - s + math.Sqrt((s-3)*(s-3)+24*s)) / (12 * s)
	if a <= 0 || math.IsNaN(a) {
		a = 1
	}

	f := func(x float64) float64 { return math.Log(x) - mathext.Digamma(x) - s }
	for iter := 0; iter < 50; iter++ {
		h := a * 1e-6
		if h == 0 {
			h = 1e-9
		}
		fa := f(a)
		df := (f(a+h) - f(a-h)) / (2 * h)
		if df == 0 || math.IsNaN(df) {
			break
		}
		next := a - fa/df
		if next <= 0 {
			next = a / 2
		}
		if math.Abs(next-a) < 1e-10 {
			a = next
			break
		}
		a = next
	}
	return a, mean / a
}

// FitGamma fits a 3-parameter gamma distribution (shape, loc, scale) to x by
// maximum likelihood, with loc free to vary below min(x) (spec.md §4.A
// step 5). The location search uses gonum's Brent method over a bracket
// just below the minimum observation, profiling out shape and scale at
// each candidate loc via shapeScaleMLE.
func FitGamma(x []float64) (GammaParams, error) {
	if len(x) < 2 {
		return GammaParams{}, errGammaFitFail
	}
	minX, maxX := x[0], x[0]
	for _, v := range x {
		if v < minX {
			minX = v
		}
		if v > maxX {
			maxX = v
		}
	}
	spread := maxX - minX
	if spread == 0 {
		spread = math.Max(math.Abs(minX), 1)
	}

	negLogLik := func(loc float64) float64 {
		shifted := make([]float64, len(x))
		for i, v := range x {
			shifted[i] = v - loc
		}
		shape, scale := shapeScaleMLE(shifted)
		if shape <= 0 || scale <= 0 || math.IsNaN(shape) || math.IsNaN(scale) {
			return math.Inf(1)
		}
		dist := distuv.Gamma{Alpha: shape, Beta: 1 / scale}
		var nll float64
		for _, v := range shifted {
			p := dist.Prob(v)
			if p <= 0 {
				return math.Inf(1)
			}
			nll -= math.Log(p)
		}
		return nll
	}

	problem := optimize.Problem{
		Func: func(p []float64) float64 { return negLogLik(p[0]) },
	}
	settings := &optimize.Settings{}
	method := &optimize.Brent{
		Min: minX - 10*spread,
		Max: minX - 1e-9*spread - 1e-12,
	}
	result, err := optimize.Minimize(problem, []float64{minX - 1e-6*spread}, settings, method)
	if err != nil || math.IsInf(result.F, 1) {
		return GammaParams{}, errGammaFitFail
	}

	loc := result.X[0]
	shifted := make([]float64, len(x))
	for i, v := range x {
		shifted[i] = v - loc
	}
	shape, scale := shapeScaleMLE(shifted)
	if shape <= 0 || scale <= 0 || math.IsNaN(shape) || math.IsNaN(scale) {
		return GammaParams{}, errGammaFitFail
	}
	return GammaParams{Shape: shape, Loc: loc, Scale: scale}, nil
}
