// Package kmerindex builds and queries the inverted k-mer index: a dense
// mapping from k-mer code to an ordered list of (target-id, position)
// occurrences.
package kmerindex

import (
	"sync"

	"github.com/vbauerster/mpb/v5"

	"github.com/mmsearch/core/internal/seqcodec"
)

// Entry is one posting-list occurrence. Diagonal is only meaningful when
// the table was built with diagonal scoring enabled; it holds
// position mod 256.
type Entry struct {
	TargetID uint32
	Pos      uint32
	Diagonal uint8
}

// Table is a two-array inverted index: a bucket-offset array of length
// |Σ|^k + 1 and a flat entries array.
type Table struct {
	k, alphaSize int
	mask         seqcodec.SpacedMask
	diagonal     bool

	offsets []uint64 // len numCodes+1
	entries []Entry
}

// NumCodes returns |Σ|^k, the dense code space size.
func (t *Table) NumCodes() int { return len(t.offsets) - 1 }

// List returns the posting list for k-mer code c in O(1).
func (t *Table) List(c uint64) []Entry {
	return t.entries[t.offsets[c]:t.offsets[c+1]]
}

// TotalEntries returns the sum of informative k-mer positions across every
// target sequence in the split.
func (t *Table) TotalEntries() int { return len(t.entries) }

// Build constructs a Table over targets[from:to) (target ids in that
// range), using the classic two-pass counting algorithm: pass 1 counts
// occurrences per bucket, pass 2 fills the entries array using per-bucket
// write cursors.
//
// targets holds every target's alphabet-encoded residues, indexed by
// target id; from/to select the split this Table covers.
func Build(targets [][]int8, from, to, k, alphaSize int, mask seqcodec.SpacedMask, diagonal bool, bar *mpb.Bar) *Table {
	numCodes := 1
	for i := 0; i < k; i++ {
		numCodes *= alphaSize
	}

	t := &Table{k: k, alphaSize: alphaSize, mask: mask, diagonal: diagonal}
	t.offsets = make([]uint64, numCodes+1)

	// Pass 1: count.
	counts := make([]uint64, numCodes)
	for id := from; id < to; id++ {
		it := seqcodec.NewKmerIter(targets[id], k, alphaSize, mask)
		for {
			c, _, ok := it.Next()
			if !ok {
				break
			}
			counts[c]++
		}
		if bar != nil {
			bar.Increment()
		}
	}

	var sum uint64
	for c := 0; c < numCodes; c++ {
		t.offsets[c] = sum
		sum += counts[c]
	}
	t.offsets[numCodes] = sum

	// Pass 2: fill, using a copy of offsets as per-bucket write cursors.
	cursors := make([]uint64, numCodes)
	copy(cursors, t.offsets)
	t.entries = make([]Entry, sum)

	for id := from; id < to; id++ {
		it := seqcodec.NewKmerIter(targets[id], k, alphaSize, mask)
		for {
			c, pos, ok := it.Next()
			if !ok {
				break
			}
			cur := cursors[c]
			e := Entry{TargetID: uint32(id), Pos: uint32(pos)}
			if diagonal {
				e.Diagonal = uint8(pos % 256)
			}
			t.entries[cur] = e
			cursors[c]++
		}
	}

	return t
}

// BuildParallel shards [from,to) across numWorkers goroutines for pass 1
// (the read-only counting pass), then performs a single-threaded pass 2
// fill — pass 2's write cursors are inherently sequential per bucket, so
// only the counting pass benefits from parallelism.
func BuildParallel(targets [][]int8, from, to, k, alphaSize int, mask seqcodec.SpacedMask, diagonal bool, numWorkers int) *Table {
	numCodes := 1
	for i := 0; i < k; i++ {
		numCodes *= alphaSize
	}
	if numWorkers < 1 {
		numWorkers = 1
	}

	partials := make([][]uint64, numWorkers)
	var wg sync.WaitGroup
	chunk := (to - from + numWorkers - 1) / numWorkers
	for w := 0; w < numWorkers; w++ {
		lo := from + w*chunk
		hi := lo + chunk
		if hi > to {
			hi = to
		}
		if lo >= hi {
			partials[w] = make([]uint64, numCodes)
			continue
		}
		wg.Add(1)
		go func(w, lo, hi int) {
			defer wg.Done()
			counts := make([]uint64, numCodes)
			for id := lo; id < hi; id++ {
				it := seqcodec.NewKmerIter(targets[id], k, alphaSize, mask)
				for {
					c, _, ok := it.Next()
					if !ok {
						break
					}
					counts[c]++
				}
			}
			partials[w] = counts
		}(w, lo, hi)
	}
	wg.Wait()

	t := &Table{k: k, alphaSize: alphaSize, mask: mask, diagonal: diagonal}
	t.offsets = make([]uint64, numCodes+1)
	var sum uint64
	for c := 0; c < numCodes; c++ {
		t.offsets[c] = sum
		for w := 0; w < numWorkers; w++ {
			sum += partials[w][c]
		}
	}
	t.offsets[numCodes] = sum

	cursors := make([]uint64, numCodes)
	copy(cursors, t.offsets)
	t.entries = make([]Entry, sum)
	for id := from; id < to; id++ {
		it := seqcodec.NewKmerIter(targets[id], k, alphaSize, mask)
		for {
			c, pos, ok := it.Next()
			if !ok {
				break
			}
			cur := cursors[c]
			e := Entry{TargetID: uint32(id), Pos: uint32(pos)}
			if diagonal {
				e.Diagonal = uint8(pos % 256)
			}
			t.entries[cur] = e
			cursors[c]++
		}
	}

	return t
}
