package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmsearch/core/internal/config"
)

func TestCountAboveThresholdCountsDiagonalMode(t *testing.T) {
	s := NewScratchTable(config.ScoreDiagonal, 8)
	for target := uint32(0); target < 8; target++ {
		for i := uint32(0); i <= target; i++ {
			s.AddDiagonal(target, i, i)
		}
	}
	// maxCount per target is target+1: {1,2,...,8}.
	// Non-power-of-two cutoffs take the exact linear-scan path.
	assert.Equal(t, 6, s.CountAboveThreshold(3))
	assert.Equal(t, 3, s.CountAboveThreshold(6))
	assert.Equal(t, 0, s.CountAboveThreshold(9))
}

func TestCountAboveThresholdCountsCountMode(t *testing.T) {
	s := NewScratchTable(config.ScoreCount, 3)
	s.AddCount(0, 10)
	s.AddCount(1, 20)
	s.AddCount(2, 30)

	assert.Equal(t, 2, s.CountAboveThreshold(15))
	assert.Equal(t, 0, s.CountAboveThreshold(30))
}

func TestEstimateCutoffAdmitsAtLeastWant(t *testing.T) {
	s := NewScratchTable(config.ScoreDiagonal, 10)
	for target := uint32(0); target < 10; target++ {
		for i := uint32(0); i <= target; i++ {
			s.AddDiagonal(target, i, i)
		}
	}
	// maxCount per target is target+1: {1,2,...,10}

	cutoff := s.EstimateCutoff(3)
	require.Greater(t, int(cutoff), 0)
	assert.GreaterOrEqual(t, s.CountAboveThreshold(cutoff), 3)
}

func TestEstimateCutoffNoFilterWhenTouchedBelowWant(t *testing.T) {
	s := NewScratchTable(config.ScoreDiagonal, 4)
	s.AddDiagonal(0, 1, 0)
	s.AddDiagonal(1, 1, 0)

	assert.Equal(t, uint8(0), s.EstimateCutoff(10))
}
