package matcher

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmsearch/core/internal/config"
	"github.com/mmsearch/core/internal/kmerindex"
	"github.com/mmsearch/core/internal/seqcodec"
	"github.com/mmsearch/core/internal/submat"
)

func toyAlphabet() (func(byte) int8, int) {
	letters := "ACDMKTIL"
	return func(b byte) int8 {
		idx := strings.IndexByte(letters, b)
		if idx < 0 {
			return -1
		}
		return int8(idx)
	}, len(letters)
}

func identityMatrix(size int, self int16) *submat.Matrix {
	scores := make([]int16, size*size)
	for i := 0; i < size; i++ {
		for j := 0; j < size; j++ {
			if i == j {
				scores[i*size+j] = self
			} else {
				scores[i*size+j] = -5
			}
		}
	}
	return &submat.Matrix{Size: size, Scores: scores}
}

func encode(t *testing.T, toIndex func(byte) int8, s string) []int8 {
	t.Helper()
	out := make([]int8, len(s))
	for i := 0; i < len(s); i++ {
		out[i] = toIndex(s[i])
	}
	return out
}

func buildMatcher(t *testing.T, targets map[uint32]string, opt config.Options) *Matcher {
	t.Helper()
	toIndex, size := toyAlphabet()
	opt.AlphabetSize = size

	keys := make([]uint32, 0, len(targets))
	encoded := make([][]int8, 0, len(targets))
	for k, seq := range targets {
		keys = append(keys, k)
		encoded = append(encoded, encode(t, toIndex, seq))
	}

	idx := kmerindex.Build(encoded, 0, len(encoded), opt.KmerSize, size, nil, opt.ScoreMode == config.ScoreDiagonal, nil)
	m := identityMatrix(size, 4)

	byOrder := map[int]*submat.Extended{
		2: submat.BuildExtended(m, 2, size, size*size),
		3: submat.BuildExtended(m, 3, size, size*size*size),
	}

	scratch := NewScratchTable(opt.ScoreMode, len(encoded))
	return NewMatcher(opt, scratch, idx, byOrder, keys, nil)
}

func TestTinyDBExactlyOneHit(t *testing.T) {
	opt := config.DefaultOptions()
	opt.KmerSize = 4
	opt.ScoreMode = config.ScoreCount
	opt.MaxHitsPerQuery = 10

	m := buildMatcher(t, map[uint32]string{1: "AAAA", 2: "CCCC"}, opt)
	toIndex, _ := toyAlphabet()
	query := encode(t, toIndex, "AAAA")

	hits := m.Match(query, 0, false, 0)
	require.Len(t, hits, 1)
	assert.Equal(t, uint32(1), hits[0].TargetKey)
}

func TestEmptyFilterOnDissimilarTarget(t *testing.T) {
	opt := config.DefaultOptions()
	opt.KmerSize = 4
	opt.ScoreMode = config.ScoreCount
	opt.MaxHitsPerQuery = 10

	m := buildMatcher(t, map[uint32]string{1: "CCCC"}, opt)
	toIndex, _ := toyAlphabet()
	query := encode(t, toIndex, "AAAA")

	hits := m.Match(query, 100, false, 0)
	assert.Empty(t, hits)
}

func TestSelfHitSuppressed(t *testing.T) {
	opt := config.DefaultOptions()
	opt.KmerSize = 4
	opt.ScoreMode = config.ScoreCount
	opt.MaxHitsPerQuery = 10
	opt.IncludeIdentical = false

	m := buildMatcher(t, map[uint32]string{10: "MKTII", 20: "MKTLL"}, opt)
	toIndex, _ := toyAlphabet()
	query := encode(t, toIndex, "MKTII")

	hits := m.Match(query, 0, true, 10)
	for _, h := range hits {
		assert.NotEqual(t, uint32(10), h.TargetKey)
	}
}

func TestTieBreakAscendingTargetKey(t *testing.T) {
	opt := config.DefaultOptions()
	opt.KmerSize = 4
	opt.ScoreMode = config.ScoreCount
	opt.MaxHitsPerQuery = 10

	m := buildMatcher(t, map[uint32]string{5: "AAAA", 3: "AAAA", 9: "AAAA"}, opt)
	toIndex, _ := toyAlphabet()
	query := encode(t, toIndex, "AAAA")

	hits := m.Match(query, 0, false, 0)
	require.Len(t, hits, 3)
	assert.Equal(t, []uint32{3, 5, 9}, []uint32{hits[0].TargetKey, hits[1].TargetKey, hits[2].TargetKey})
}

func TestKmerDedupThresholdCapsRepeatedLowComplexityWindows(t *testing.T) {
	opt := config.DefaultOptions()
	opt.KmerSize = 4
	opt.ScoreMode = config.ScoreCount
	opt.MaxHitsPerQuery = 10

	// "AAAAAAAAAAAA" is a single 4-mer repeated across every window; without
	// dedup each of the 9 positions adds to target 1's score.
	m := buildMatcher(t, map[uint32]string{1: "AAAAAAAAAAAA"}, opt)
	toIndex, _ := toyAlphabet()
	query := encode(t, toIndex, "AAAAAAAAAAAA")

	undeduped := m.Match(query, 0, false, 0)
	require.Len(t, undeduped, 1)

	opt.KmerDedupThreshold = 2
	deduped := buildMatcher(t, map[uint32]string{1: "AAAAAAAAAAAA"}, opt)
	limited := deduped.Match(query, 0, false, 0)
	require.Len(t, limited, 1)
	assert.Less(t, limited[0].Score, undeduped[0].Score, "dedup must cap how many repeated windows feed the scratch table")
}

func TestThresholdMonotonicitySubset(t *testing.T) {
	opt := config.DefaultOptions()
	opt.KmerSize = 4
	opt.ScoreMode = config.ScoreCount
	opt.MaxHitsPerQuery = 1000
	opt.BiasCorrection = false

	m := buildMatcher(t, map[uint32]string{1: "AAAA", 2: "AAAC", 3: "CCCC"}, opt)
	toIndex, _ := toyAlphabet()
	query := encode(t, toIndex, "AAAA")

	low := m.Match(query, -10, false, 0)
	high := m.Match(query, 2, false, 0)

	highSet := make(map[uint32]bool, len(high))
	for _, h := range high {
		highSet[h.TargetKey] = true
	}
	lowSet := make(map[uint32]bool, len(low))
	for _, h := range low {
		lowSet[h.TargetKey] = true
	}
	for key := range highSet {
		assert.True(t, lowSet[key], "hit set at higher threshold must be a subset of lower threshold's")
	}
}
