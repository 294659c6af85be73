// Package seqcodec maps ASCII residues to a reduced alphabet and iterates
// k-mers, contiguous or spaced-seed, over a residue payload.
package seqcodec

import (
	"github.com/biogo/biogo/alphabet"
)

// Alphabet is a reduced residue alphabet: a dense mapping from ASCII byte to
// a small non-negative index, built on top of biogo's canonical protein
// alphabet so that validity checks and letter iteration reuse biogo's
// table rather than a hand-rolled one.
type Alphabet struct {
	size     int
	toIndex  [256]int8 // -1 for invalid bytes
	toLetter []byte
}

// NewProteinAlphabet builds the default 20-letter-plus-ambiguity protein
// alphabet used throughout the core.
func NewProteinAlphabet() *Alphabet {
	a := &Alphabet{}
	for i := range a.toIndex {
		a.toIndex[i] = -1
	}

	letters := alphabet.Protein.Letters()
	idx := int8(0)
	for _, l := range letters {
		b := byte(l)
		if a.toIndex[b] != -1 {
			continue
		}
		a.toIndex[b] = idx
		a.toLetter = append(a.toLetter, b)
		idx++
	}
	a.size = len(a.toLetter)
	return a
}

// Size returns |Σ|.
func (a *Alphabet) Size() int { return a.size }

// Index returns the reduced-alphabet index for an ASCII residue byte, or
// -1 if b is not part of the alphabet.
func (a *Alphabet) Index(b byte) int8 { return a.toIndex[b] }

// Encode maps a residue string to alphabet indices in place, returning the
// number of bytes that were outside the alphabet (treated as "X" ambiguity
// by the caller if desired).
func (a *Alphabet) Encode(seq []byte, out []int8) int {
	invalid := 0
	for i, b := range seq {
		idx := a.toIndex[b]
		if idx < 0 {
			invalid++
		}
		out[i] = idx
	}
	return invalid
}

// Valid reports whether every byte in seq is part of the alphabet.
func (a *Alphabet) Valid(seq []byte) bool {
	for _, b := range seq {
		if a.toIndex[b] < 0 {
			return false
		}
	}
	return true
}
