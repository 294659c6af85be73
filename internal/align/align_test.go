package align

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmsearch/core/internal/config"
	"github.com/mmsearch/core/internal/matcher"
	"github.com/mmsearch/core/internal/submat"
)

func toyAlphabet() (func(byte) int8, int) {
	letters := "ACDMKTILS"
	return func(b byte) int8 {
		idx := strings.IndexByte(letters, b)
		if idx < 0 {
			return -1
		}
		return int8(idx)
	}, len(letters)
}

func encode(t *testing.T, toIndex func(byte) int8, s string) []int8 {
	t.Helper()
	out := make([]int8, len(s))
	for i := 0; i < len(s); i++ {
		out[i] = toIndex(s[i])
	}
	return out
}

func identityMatrix(size int, self int16, mismatch int16) *submat.Matrix {
	scores := make([]int16, size*size)
	bg := make([]float64, size)
	for i := 0; i < size; i++ {
		bg[i] = 1.0 / float64(size)
		for j := 0; j < size; j++ {
			if i == j {
				scores[i*size+j] = self
			} else {
				scores[i*size+j] = mismatch
			}
		}
	}
	return &submat.Matrix{Size: size, Scores: scores, Background: bg}
}

func TestBandedAlignmentFindsExactMatch(t *testing.T) {
	toIndex, size := toyAlphabet()
	m := identityMatrix(size, 5, -4)
	a := NewAligner(m, 10, 1, 8)

	query := encode(t, toIndex, "MKTILKSA")
	target := encode(t, toIndex, "MKTILKSA")

	res := a.Align(query, target, 0)
	require.Greater(t, res.RawScore, 0)
	assert.Equal(t, 1.0, res.Identity)
	assert.Equal(t, 0, res.QueryStart)
	assert.Equal(t, len(query), res.QueryEnd)
	assert.Equal(t, 40, res.RawScore) // 8 residues * self-score 5
}

func TestBandedAlignmentToleratesGap(t *testing.T) {
	toIndex, size := toyAlphabet()
	m := identityMatrix(size, 5, -4)
	a := NewAligner(m, 6, 1, 8)

	query := encode(t, toIndex, "MKTIILKSA")
	target := encode(t, toIndex, "MKTLKSA") // query has two extra residues

	res := a.Align(query, target, 0)
	require.Greater(t, res.RawScore, 0)
	assert.Greater(t, res.GapOpens+res.GapExtends, 0)
	assert.Contains(t, res.Backtrace, "I")
}

func TestBandedAlignmentNoSimilarityScoresZero(t *testing.T) {
	toIndex, size := toyAlphabet()
	m := identityMatrix(size, 1, -10)
	a := NewAligner(m, 10, 2, 8)

	query := encode(t, toIndex, "AAAA")
	target := encode(t, toIndex, "LLLL")

	res := a.Align(query, target, 0)
	assert.Equal(t, 0, res.RawScore)
}

func TestBandedAlignmentHandlesNegativeDiagonal(t *testing.T) {
	toIndex, size := toyAlphabet()
	m := identityMatrix(size, 5, -4)
	a := NewAligner(m, 10, 1, 4)

	// target carries a 2-residue prefix the query doesn't have, so the
	// matching region sits at queryPos - targetPos == -2 for every residue.
	query := encode(t, toIndex, "MKTILKSA")
	target := encode(t, toIndex, "AAMKTILKSA")

	res := a.Align(query, target, -2)
	require.Greater(t, res.RawScore, 0)
	assert.Equal(t, 1.0, res.Identity)
}

func TestBandedAlignmentClampsWildCenterDiagonal(t *testing.T) {
	toIndex, size := toyAlphabet()
	m := identityMatrix(size, 5, -4)
	a := NewAligner(m, 10, 1, 4)

	query := encode(t, toIndex, "MKTILKSA")
	target := encode(t, toIndex, "MKTILKSA")

	// A center diagonal far outside [-len(target), len(query)] must not
	// panic even though it finds nothing useful.
	assert.NotPanics(t, func() {
		a.Align(query, target, -10000)
	})
	assert.NotPanics(t, func() {
		a.Align(query, target, 10000)
	})
}

func TestWalkReinterpretsDiagonalByteAsSigned(t *testing.T) {
	toIndex, size := toyAlphabet()
	m := identityMatrix(size, 5, -4)
	a := NewAligner(m, 10, 1, 4)
	stats := EstimateStatistics(m)

	query := encode(t, toIndex, "MKTILKSA")
	targets := map[uint32][]int8{1: encode(t, toIndex, "AAMKTILKSA")}

	// True diagonal is -2; matcher.Hit stores it as the low byte of the
	// signed value, i.e. uint8(int8(-2)) == 254.
	hits := []matcher.Hit{{TargetKey: 1, Score: 40, Diagonal: 254}}

	opt := config.DefaultOptions()
	opt.MaxAccept = 10
	opt.MaxRejected = 10
	opt.MinScore = 10
	opt.MinSeqID = 0.9
	opt.MinCoverage = 0.9
	opt.MaxEvalue = 0

	results := a.Walk(query, hits, func(k uint32) []int8 { return targets[k] }, stats, opt)
	require.Len(t, results, 1, "a band correctly centered on diagonal -2 must find the match")
}

func TestKarlinAltschulStatisticsRankConsistently(t *testing.T) {
	_, size := toyAlphabet()
	m := identityMatrix(size, 5, -4)
	stats := EstimateStatistics(m)

	require.Greater(t, stats.Lambda, 0.0)
	require.Greater(t, stats.K, 0.0)

	lowScore := stats.BitScore(5)
	highScore := stats.BitScore(40)
	assert.Greater(t, highScore, lowScore)

	lowE := stats.Evalue(5, 100, 100)
	highE := stats.Evalue(40, 100, 100)
	assert.Greater(t, lowE, highE, "a weaker raw score must have a larger e-value")
}

func TestAcceptanceCapStopsEarly(t *testing.T) {
	toIndex, size := toyAlphabet()
	m := identityMatrix(size, 5, -4)
	a := NewAligner(m, 10, 1, 8)
	stats := EstimateStatistics(m)

	query := encode(t, toIndex, "MKTILKSA")
	targets := make(map[uint32][]int8, 10)
	hits := make([]matcher.Hit, 0, 10)
	for key := uint32(1); key <= 10; key++ {
		targets[key] = encode(t, toIndex, "CCCCCCCC") // shares nothing with query -> always rejected
		hits = append(hits, matcher.Hit{TargetKey: key, Score: 1})
	}

	opt := config.DefaultOptions()
	opt.MaxAccept = 100
	opt.MaxRejected = 3
	opt.MinScore = 1
	opt.MinSeqID = 0
	opt.MinCoverage = 0
	opt.MaxEvalue = 0 // disabled

	lookups := 0
	results := a.Walk(query, hits, func(k uint32) []int8 { lookups++; return targets[k] }, stats, opt)
	assert.Empty(t, results)
	// Walk must stop after exactly MaxRejected rejections, not run all 10.
	assert.Equal(t, opt.MaxRejected, lookups)
}

func TestAcceptanceWalkAcceptsPassingHits(t *testing.T) {
	toIndex, size := toyAlphabet()
	m := identityMatrix(size, 5, -4)
	a := NewAligner(m, 10, 1, 8)
	stats := EstimateStatistics(m)

	query := encode(t, toIndex, "MKTILKSA")
	targets := map[uint32][]int8{
		1: encode(t, toIndex, "MKTILKSA"),
		2: encode(t, toIndex, "AAAAAAAA"),
	}
	hits := []matcher.Hit{{TargetKey: 1, Score: 40}, {TargetKey: 2, Score: 1}}

	opt := config.DefaultOptions()
	opt.MaxAccept = 10
	opt.MaxRejected = 10
	opt.MinScore = 10
	opt.MinSeqID = 0.5
	opt.MinCoverage = 0.5
	opt.MaxEvalue = 0

	results := a.Walk(query, hits, func(k uint32) []int8 { return targets[k] }, stats, opt)
	require.Len(t, results, 1)
	assert.Equal(t, uint32(1), results[0].TargetKey)
}
