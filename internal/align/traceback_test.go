package align

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunLengthEncodeCompressesRuns(t *testing.T) {
	ops := []byte("MMMIIDMM")
	assert.Equal(t, "3M2I1D2M", runLengthEncode(ops))
}

func TestAlignmentLengthSumsRuns(t *testing.T) {
	assert.Equal(t, 7, AlignmentLength("3M2I1D1M"))
	assert.Equal(t, 0, AlignmentLength(""))
}

func TestAlignmentLengthMatchesBacktraceFromAlign(t *testing.T) {
	toIndex, size := toyAlphabet()
	m := identityMatrix(size, 5, -4)
	a := NewAligner(m, 6, 1, 8)

	query := encode(t, toIndex, "MKTIILKSA")
	target := encode(t, toIndex, "MKTLKSA")

	res := a.Align(query, target, 0)
	assert.Greater(t, AlignmentLength(res.Backtrace), 0)
	assert.GreaterOrEqual(t, AlignmentLength(res.Backtrace), res.QueryEnd-res.QueryStart)
}
