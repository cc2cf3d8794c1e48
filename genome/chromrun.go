package genome

import (
	"fmt"
	"sort"
)

// ChromBoundary marks the first exon index of a contiguous per-chromosome
// run within an ordered exon list.
type ChromBoundary struct {
	Chrom      string
	StartIndex int
}

// ChromRuns scans an ordered exon list and returns the index boundaries of
// each contiguous chromosome run. It fails if the same chromosome name
// appears in two non-adjacent runs, which would violate spec.md §3's
// "per-chromosome groups are contiguous in the list" invariant that the
// Viterbi decoder (internal/viterbi) relies on to detect chromosome
// transitions and reset its forward-pass state.
//
// Adapted from the sorted-boundary scanning idiom of the teacher's
// interval.EndpointIndex (see grailbio-bio/interval/endpoint_index.go),
// which locates the BED interval-union run containing a query position via
// binary search over sorted endpoints; here the same shape of index is
// built over chromosome runs instead of BED interval endpoints.
func ChromRuns(exons []Exon) ([]ChromBoundary, error) {
	if len(exons) == 0 {
		return nil, nil
	}
	var runs []ChromBoundary
	seen := make(map[string]bool, 8)
	runs = append(runs, ChromBoundary{Chrom: exons[0].Chrom, StartIndex: 0})
	seen[exons[0].Chrom] = true
	for i := 1; i < len(exons); i++ {
		if exons[i].Chrom == exons[i-1].Chrom {
			continue
		}
		if seen[exons[i].Chrom] {
			return nil, fmt.Errorf("genome: chromosome %q reappears non-contiguously at exon index %d", exons[i].Chrom, i)
		}
		seen[exons[i].Chrom] = true
		runs = append(runs, ChromBoundary{Chrom: exons[i].Chrom, StartIndex: i})
	}
	return runs, nil
}

// BoundaryIndex returns the index into runs of the chromosome run containing
// exon index exonIdx, via binary search over the sorted StartIndex values —
// the same sort.Search-based lookup as interval.SearchPosTypes performs over
// sorted interval endpoints.
func BoundaryIndex(runs []ChromBoundary, exonIdx int) int {
	return sort.Search(len(runs), func(k int) bool { return runs[k].StartIndex > exonIdx }) - 1
}
