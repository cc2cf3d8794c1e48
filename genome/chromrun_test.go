package genome

import "testing"

func TestChromRuns(t *testing.T) {
	exons := []Exon{
		{Chrom: "chr1", Start: 0, End: 5, ExonID: "e0"},
		{Chrom: "chr1", Start: 10, End: 15, ExonID: "e1"},
		{Chrom: "chr2", Start: 0, End: 5, ExonID: "e2"},
	}
	runs, err := ChromRuns(exons)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(runs) != 2 || runs[0].Chrom != "chr1" || runs[0].StartIndex != 0 ||
		runs[1].Chrom != "chr2" || runs[1].StartIndex != 2 {
		t.Fatalf("unexpected runs: %+v", runs)
	}
	if idx := BoundaryIndex(runs, 1); idx != 0 {
		t.Errorf("BoundaryIndex(1) = %d, want 0", idx)
	}
	if idx := BoundaryIndex(runs, 2); idx != 1 {
		t.Errorf("BoundaryIndex(2) = %d, want 1", idx)
	}
}

func TestChromRunsNonContiguous(t *testing.T) {
	exons := []Exon{
		{Chrom: "chr1", Start: 0, End: 5, ExonID: "e0"},
		{Chrom: "chr2", Start: 0, End: 5, ExonID: "e1"},
		{Chrom: "chr1", Start: 20, End: 25, ExonID: "e2"},
	}
	if _, err := ChromRuns(exons); err == nil {
		t.Fatal("expected an error for non-contiguous chromosome runs")
	}
}
