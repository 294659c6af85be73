package prefilter

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmsearch/core/internal/config"
	"github.com/mmsearch/core/internal/idb"
	"github.com/mmsearch/core/internal/submat"
)

func TestRankRangeCoversEveryUnitExactlyOnce(t *testing.T) {
	lens := []int{10, 1, 7, 3, 20, 5, 2, 9}
	world := 3

	covered := make([]int, len(lens))
	for rank := 0; rank < world; rank++ {
		from, to := RankRange(lens, rank, world)
		assert.True(t, from <= to)
		for i := from; i < to; i++ {
			covered[i]++
		}
	}
	for i, c := range covered {
		assert.Equal(t, 1, c, "unit %d covered %d times", i, c)
	}
}

func TestRankRangeBalancesResidueLoad(t *testing.T) {
	lens := make([]int, 100)
	for i := range lens {
		lens[i] = 1
	}
	world := 4
	for rank := 0; rank < world; rank++ {
		from, to := RankRange(lens, rank, world)
		assert.InDelta(t, 25, to-from, 1)
	}
}

func TestRankRangeSingleWorldIsIdentity(t *testing.T) {
	lens := []int{4, 4, 4}
	from, to := RankRange(lens, 0, 1)
	assert.Equal(t, 0, from)
	assert.Equal(t, 3, to)
}

func TestRankRangeEmptyResiduesSplitsByCount(t *testing.T) {
	lens := []int{0, 0, 0, 0}
	from0, to0 := RankRange(lens, 0, 2)
	from1, to1 := RankRange(lens, 1, 2)
	assert.Equal(t, []int{0, 2}, []int{from0, to0})
	assert.Equal(t, []int{2, 4}, []int{from1, to1})
}

func TestNumSplitsRespectsBudget(t *testing.T) {
	// Small alphabet/k so the offsets array (alphaSize^k * 8 bytes) is a
	// minor term next to the entries term, letting the budget actually
	// bite by forcing more splits.
	alphaSize, k := 4, 4
	totalResidues := 1_000_000

	unbounded := NumSplits(totalResidues, alphaSize, k, 0)
	assert.Equal(t, 1, unbounded)

	budget := int64(200_000)
	tight := NumSplits(totalResidues, alphaSize, k, budget)
	assert.Greater(t, tight, 1)
	assert.LessOrEqual(t, EstimateIndexBytes(totalResidues/tight+1, alphaSize, k), budget)
}

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

func encode(t *testing.T, toIndex func(byte) int8, s string) []int8 {
	t.Helper()
	out := make([]int8, len(s))
	for i := 0; i < len(s); i++ {
		out[i] = toIndex(s[i])
	}
	return out
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

// TestDriverRunEndToEnd exercises the whole split -> build -> match -> write
// path over a tiny in-process database, then reads the result back through
// an idb.Reader and checks it matches a direct matcher.Match call.
func TestDriverRunEndToEnd(t *testing.T) {
	toIndex, size := toyAlphabet()
	m := identityMatrix(size, 4)
	byOrder := map[int]*submat.Extended{
		2: submat.BuildExtended(m, 2, size, size*size),
		3: submat.BuildExtended(m, 3, size, size*size*size),
	}

	opt := config.DefaultOptions()
	opt.KmerSize = 4
	opt.AlphabetSize = size
	opt.ScoreMode = config.ScoreCount
	opt.Threads = 2
	opt.MaxHitsPerQuery = 10
	opt.MaxMemoryBytes = 0 // unbounded: exactly one split

	targets := [][]int8{
		encode(t, toIndex, "AAAA"),
		encode(t, toIndex, "CCCC"),
	}
	targetKeys := []uint32{1, 2}
	queries := [][]int8{
		encode(t, toIndex, "AAAA"),
		encode(t, toIndex, "CCCC"),
		encode(t, toIndex, "MKTI"),
	}
	queryKeys := []uint32{100, 200, 300}

	dir := t.TempDir()
	dataPath := dir + "/out.db"
	idxPath := dir + "/out.idx"

	d := &Driver{
		Opt:           opt,
		Targets:       targets,
		TargetKeys:    targetKeys,
		Queries:       queries,
		QueryKeys:     queryKeys,
		ByOrder:       byOrder,
		KmerThreshold: 0,
	}
	require.NoError(t, d.Run(dataPath, idxPath))

	r, err := idb.Open(dataPath, idxPath, idb.NOSORT)
	require.NoError(t, err)
	defer r.Close()

	assert.True(t, r.Has(100))
	assert.True(t, r.Has(200))
	assert.False(t, r.Has(300), "MKTI shares no k-mer with either target, so it should be absent")

	data, err := r.Data(100)
	require.NoError(t, err)
	hits := decodeHits(data)
	require.Len(t, hits, 1)
	assert.Equal(t, uint32(1), hits[0].TargetKey)
}
