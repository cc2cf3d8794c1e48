// Package genome holds the small, dependency-free data types shared by every
// stage of the CNV calling pipeline: exon coordinates and chromosome typing.
package genome

import "fmt"

// ChromType distinguishes the two kinds of clusters a sample can belong to.
// A gonosomal cluster only ever sees gonosomal exons, and vice versa
// (spec.md §3).
type ChromType int

const (
	// Autosome marks clusters and exon lists restricted to autosomes.
	Autosome ChromType = iota
	// Gonosome marks clusters and exon lists restricted to sex chromosomes.
	Gonosome
)

func (t ChromType) String() string {
	switch t {
	case Autosome:
		return "A"
	case Gonosome:
		return "G"
	default:
		return fmt.Sprintf("ChromType(%d)", int(t))
	}
}

// Exon is an immutable genomic interval, half-open [Start, End) in 0-based
// coordinates. ExonIdx values elsewhere in this module are indexes into a
// caller-supplied slice of Exon and are stable across every array the
// pipeline computes (likelihood tensor, per-cluster metrics, CNV calls).
type Exon struct {
	Chrom  string
	Start  int
	End    int
	ExonID string
}

// Len returns the interval length in base pairs.
func (e Exon) Len() int { return e.End - e.Start }

// Validate checks the single-exon invariants from spec.md §3: a strictly
// positive-length half-open interval.
func (e Exon) Validate() error {
	if e.End <= e.Start {
		return fmt.Errorf("genome: exon %s has non-positive length [%d, %d)", e.ExonID, e.Start, e.End)
	}
	return nil
}
