package viterbi

import "errors"

// errShapeMismatch is the fatal ShapeMismatch error from spec.md §7: the
// likelihood slice passed to Decode does not have one entry per exon. It is
// a programmer error and Decode returns it before decoding anything.
var errShapeMismatch = errors.New("viterbi: likelihoods length does not match exon list length")
