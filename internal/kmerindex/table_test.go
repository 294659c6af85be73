package kmerindex

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmsearch/core/internal/seqcodec"
)

func encode(t *testing.T, a *seqcodec.Alphabet, s string) []int8 {
	t.Helper()
	out := make([]int8, len(s))
	a.Encode([]byte(s), out)
	return out
}

func TestBuildBucketInvariant(t *testing.T) {
	a := seqcodec.NewProteinAlphabet()
	targets := [][]int8{
		encode(t, a, "AAAA"),
		encode(t, a, "CCCC"),
		encode(t, a, "AAAC"),
	}
	k := 4
	tbl := Build(targets, 0, len(targets), k, a.Size(), nil, false, nil)

	// Recompute expected counts by brute force.
	expected := make(map[uint64]int)
	for _, seq := range targets {
		it := seqcodec.NewKmerIter(seq, k, a.Size(), nil)
		for {
			c, _, ok := it.Next()
			if !ok {
				break
			}
			expected[c]++
		}
	}

	total := 0
	for c := 0; c < tbl.NumCodes(); c++ {
		got := len(tbl.List(uint64(c)))
		assert.Equal(t, expected[uint64(c)], got, "bucket %d", c)
		total += got
	}
	assert.Equal(t, tbl.TotalEntries(), total)
	assert.Equal(t, 3, tbl.TotalEntries()) // one k-mer per 4-residue target
}

func TestBuildParallelMatchesSerial(t *testing.T) {
	a := seqcodec.NewProteinAlphabet()
	targets := [][]int8{
		encode(t, a, "MKTIILKSA"),
		encode(t, a, "MKTLLKSAC"),
		encode(t, a, "AAAAAAAAA"),
		encode(t, a, "CCCCCCCCC"),
	}
	k := 5
	serial := Build(targets, 0, len(targets), k, a.Size(), nil, true, nil)
	parallel := BuildParallel(targets, 0, len(targets), k, a.Size(), nil, true, 3)

	require.Equal(t, serial.NumCodes(), parallel.NumCodes())
	for c := 0; c < serial.NumCodes(); c++ {
		sList := serial.List(uint64(c))
		pList := parallel.List(uint64(c))
		assert.ElementsMatch(t, sList, pList, "bucket %d", c)
	}
}

func TestSplitOnlyCoversRange(t *testing.T) {
	a := seqcodec.NewProteinAlphabet()
	targets := [][]int8{
		encode(t, a, "AAAA"),
		encode(t, a, "CCCC"),
	}
	k := 4
	tbl := Build(targets, 1, 2, k, a.Size(), nil, false, nil)
	assert.Equal(t, 1, tbl.TotalEntries())
}
