package seqcodec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeString(t *testing.T, a *Alphabet, s string) []int8 {
	t.Helper()
	out := make([]int8, len(s))
	a.Encode([]byte(s), out)
	return out
}

func TestKmerInjectivity(t *testing.T) {
	a := NewProteinAlphabet()
	seen := make(map[uint64]string)

	for _, s := range []string{"MKTII", "MKTLL", "AAAAAA", "AAAAAC", "CAAAAA"} {
		enc := encodeString(t, a, s)
		it := NewKmerIter(enc, 4, a.Size(), nil)
		for {
			code, pos, ok := it.Next()
			if !ok {
				break
			}
			kmer := s[pos : pos+4]
			if prev, dup := seen[code]; dup && prev != kmer {
				// two distinct k-mers must never share a code
				t.Fatalf("collision: %q and %q both code to %d", prev, kmer, code)
			}
			seen[code] = kmer
		}
	}
}

func TestShortSequenceIsEmpty(t *testing.T) {
	a := NewProteinAlphabet()
	enc := encodeString(t, a, "AAA")
	assert.False(t, NotEmpty(len(enc), 4, nil))
	it := NewKmerIter(enc, 4, a.Size(), nil)
	_, _, ok := it.Next()
	assert.False(t, ok)
}

func TestContiguousKmerCount(t *testing.T) {
	a := NewProteinAlphabet()
	enc := encodeString(t, a, "AAAA") // k=4 -> exactly one position
	require.Equal(t, 1, Len(len(enc), 4, nil))
	it := NewKmerIter(enc, 4, a.Size(), nil)
	_, pos, ok := it.Next()
	require.True(t, ok)
	assert.Equal(t, 0, pos)
	_, _, ok = it.Next()
	assert.False(t, ok)
}

func TestSpacedMaskPreservesCodeRange(t *testing.T) {
	a := NewProteinAlphabet()
	mask := DefaultSpacedMask6
	enc := encodeString(t, a, "MKTIILKSAAC")
	it := NewKmerIter(enc, 6, a.Size(), mask)
	maxCode := uint64(1)
	for i := 0; i < mask.informative(); i++ {
		maxCode *= uint64(a.Size())
	}
	for {
		code, _, ok := it.Next()
		if !ok {
			break
		}
		assert.Less(t, code, maxCode)
	}
}

func TestDeduplicatorThreshold(t *testing.T) {
	d := NewDeduplicator(4, 2)
	window := []byte("AAAA")
	assert.False(t, d.Skip(window))
	assert.False(t, d.Skip(window))
	assert.True(t, d.Skip(window))
}

func TestDeduplicatorDisabled(t *testing.T) {
	d := NewDeduplicator(4, 0)
	window := []byte("AAAA")
	for i := 0; i < 10; i++ {
		assert.False(t, d.Skip(window))
	}
}

func TestDeduplicatorResetAllowsFreshCounting(t *testing.T) {
	d := NewDeduplicator(4, 2)
	window := []byte("AAAA")
	assert.False(t, d.Skip(window))
	assert.False(t, d.Skip(window))
	assert.True(t, d.Skip(window), "third occurrence within the same pass must be skipped")

	d.Reset()
	assert.False(t, d.Skip(window), "a fresh pass must not inherit the previous pass's counts")
}
