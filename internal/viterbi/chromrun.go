package viterbi

// chromRun holds the per-chromosome forward-pass buffers the decoder
// accumulates between resets: one entry per called (non-no-call) exon.
// This bundles the four parallel lists (calledExons, path, bestPathProbas,
// CN2PathProbas) that original_source/callCNVs/callCNVs.py keeps as four
// loose Python lists reset together at every chromosome boundary and every
// CN2-rebase.
type chromRun struct {
	calledExons    []int
	path           [][NumStates]int
	bestPathProbas [][NumStates]float64
	cn2PathProbas  []float64
}

func (r *chromRun) reset() {
	r.calledExons = nil
	r.path = nil
	r.bestPathProbas = nil
	r.cn2PathProbas = nil
}

func (r *chromRun) append(e int, bestPrev [NumStates]int, probsCur [NumStates]float64, cn2PathProba float64) {
	r.calledExons = append(r.calledExons, e)
	r.path = append(r.path, bestPrev)
	r.bestPathProbas = append(r.bestPathProbas, probsCur)
	r.cn2PathProbas = append(r.cn2PathProbas, cn2PathProba)
}

func (r *chromRun) len() int { return len(r.calledExons) }

// hasNonCN2 reports whether any called exon's best path into CN2 came from
// a non-CN2 predecessor — the signal that a genuine excursion away from CN2
// happened somewhere in this run and must be segmented before the buffers
// are cleared (spec.md §4.F step 6).
func (r *chromRun) hasNonCN2() bool {
	for _, p := range r.path {
		if p[CN2] != CN2 {
			return true
		}
	}
	return false
}

// segment recovers the most-likely state path by backtracking through r and
// emits one CNV per maximal non-CN2 run (spec.md §4.F.seg). lastState is the
// state the backtrack starts from at the final called exon in r: the state
// with maximum probability there at a chromosome change or at the end of the
// exon list, and CN2 at a CN2-rebase. When it isn't CN2, a virtual sentinel tail exon is appended forcing the
// backtracked path to end in CN2, matching original_source's buildCNVs.
func (r *chromRun) segment(lastState int, opts Options) []CNV {
	calledExons := append([]int(nil), r.calledExons...)
	path := append([][NumStates]int(nil), r.path...)
	bestPathProbas := append([][NumStates]float64(nil), r.bestPathProbas...)
	cn2PathProbas := append([]float64(nil), r.cn2PathProbas...)

	if lastState != CN2 {
		n := len(calledExons)
		var tailPath [NumStates]int
		tailPath[CN2] = lastState
		var tailProbas [NumStates]float64
		tailProbas[CN2] = bestPathProbas[n-1][lastState]
		calledExons = append(calledExons, -1)
		path = append(path, tailPath)
		bestPathProbas = append(bestPathProbas, tailProbas)
		cn2PathProbas = append(cn2PathProbas, cn2PathProbas[n-1])
	}

	n := len(calledExons)
	mostLikely := make([]int, n)
	mostLikely[n-1] = CN2
	cur := CN2
	for cei := n - 1; cei > 0; cei-- {
		cur = path[cei][cur]
		mostLikely[cei-1] = cur
	}

	var cnvs []CNV
	currentState := mostLikely[0]
	firstIdx := 0
	for cei := 1; cei < n; cei++ {
		if mostLikely[cei] == currentState {
			continue
		}
		if currentState != CN2 {
			q := bestPathProbas[cei][mostLikely[cei]] / cn2PathProbas[cei]
			if firstIdx > 0 {
				q /= bestPathProbas[firstIdx-1][mostLikely[firstIdx-1]]
				q *= cn2PathProbas[firstIdx-1]
			}
			cnvs = append(cnvs, CNV{
				CNState:      currentState,
				FirstExonIdx: calledExons[firstIdx],
				LastExonIdx:  calledExons[cei-1],
				QualityScore: opts.QualityLog(q),
			})
		}
		currentState = mostLikely[cei]
		firstIdx = cei
	}
	return cnvs
}
