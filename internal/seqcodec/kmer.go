package seqcodec

import (
	"github.com/chmduquesne/rollinghash/buzhash32"
)

// SpacedMask selects which positions within a window of len(mask) are
// informative. Exactly k positions must be true, where k is the k-mer size
// the mask is used with. A nil mask means contiguous k-mers.
type SpacedMask []bool

// DefaultSpacedMask6 is an example ~50%-informative mask for k=6 over a
// window of 11, chosen to reduce correlation between adjacent k-mers while
// preserving the |Σ|^6 code range. Deployments are expected to supply their
// own mask via config.Options.SeedMask; this is a convenience default only.
var DefaultSpacedMask6 = SpacedMask{true, false, true, true, false, true, false, true, false, false, true}

func (m SpacedMask) window() int { return len(m) }

func (m SpacedMask) informative() int {
	n := 0
	for _, b := range m {
		if b {
			n++
		}
	}
	return n
}

// KmerIter is a lazy, finite, non-restartable iterator over the k-mer codes
// of one encoded sequence. Codes are dense integers in [0, alphaSize^k).
type KmerIter struct {
	enc       []int8
	k         int
	alphaSize int
	mask      SpacedMask
	pos       int
	window    int
}

// NewKmerIter returns an iterator over enc (already alphabet-encoded
// residues). If mask is nil, k-mers are contiguous substrings of length k;
// otherwise mask.window() bytes are consumed per step and only the
// informative positions contribute to the code.
func NewKmerIter(enc []int8, k, alphaSize int, mask SpacedMask) *KmerIter {
	window := k
	if mask != nil {
		window = mask.window()
	}
	return &KmerIter{enc: enc, k: k, alphaSize: alphaSize, mask: mask, window: window}
}

// Len returns the number of k-mer positions this iterator will produce.
func Len(seqLen, k int, mask SpacedMask) int {
	window := k
	if mask != nil {
		window = mask.window()
	}
	n := seqLen - window + 1
	if n < 0 {
		return 0
	}
	return n
}

// Next returns the next k-mer code and its starting position, or
// ok == false when the sequence is exhausted.
func (it *KmerIter) Next() (code uint64, pos int, ok bool) {
	if it.pos+it.window > len(it.enc) {
		return 0, 0, false
	}
	window := it.enc[it.pos : it.pos+it.window]

	var c uint64
	if it.mask == nil {
		for _, idx := range window {
			if idx < 0 {
				it.pos++
				return it.Next()
			}
			c = c*uint64(it.alphaSize) + uint64(idx)
		}
	} else {
		for i, keep := range it.mask {
			if !keep {
				continue
			}
			idx := window[i]
			if idx < 0 {
				it.pos++
				return it.Next()
			}
			c = c*uint64(it.alphaSize) + uint64(idx)
		}
	}

	pos = it.pos
	it.pos++
	return c, pos, true
}

// NotEmpty reports, for a sequence of length seqLen, whether it produces at
// least one k-mer under (k, mask).
func NotEmpty(seqLen, k int, mask SpacedMask) bool {
	return Len(seqLen, k, mask) > 0
}

// Deduplicator filters repeated k-mers within a single long query, so that
// highly repetitive low-complexity runs do not dominate the Query Matcher's
// scratch table. Each window passed to Skip is hashed from scratch with
// buzhash32. It mirrors kmcp's "--kmer-dedup-threshold" behavior: once the
// same window hash has been seen `threshold` times, every further
// occurrence is skipped until Reset.
type Deduplicator struct {
	threshold int
	hash      *buzhash32.Buzhash32
	seen      map[uint32]int
	window    int
	buf       []byte
}

// NewDeduplicator returns a Deduplicator that allows each distinct
// window-hash to occur at most threshold times. threshold <= 0 disables
// deduplication (Skip always returns false).
func NewDeduplicator(window, threshold int) *Deduplicator {
	return &Deduplicator{
		threshold: threshold,
		hash:      buzhash32.New(),
		seen:      make(map[uint32]int),
		window:    window,
	}
}

// Reset clears the seen-window counts, starting a fresh dedup pass. Callers
// that reuse one Deduplicator across multiple queries must call this between
// queries so that one query's repeats don't suppress another's distinct
// k-mers.
func (d *Deduplicator) Reset() {
	for h := range d.seen {
		delete(d.seen, h)
	}
}

// Skip counts one occurrence of windowBytes and reports whether it should be
// skipped, i.e. whether the same window hash has now been seen more than
// threshold times since the last Reset.
func (d *Deduplicator) Skip(windowBytes []byte) bool {
	if d.threshold <= 0 {
		return false
	}
	d.hash.Reset()
	_, _ = d.hash.Write(windowBytes)
	h := d.hash.Sum32()
	d.seen[h]++
	return d.seen[h] > d.threshold
}
