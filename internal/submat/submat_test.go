package submat

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func toyAlphabet() (func(byte) int8, int) {
	letters := "ACD"
	return func(b byte) int8 {
		for i := 0; i < len(letters); i++ {
			if letters[i] == b {
				return int8(i)
			}
		}
		return -1
	}, len(letters)
}

func TestParseAndValidate(t *testing.T) {
	toIndex, size := toyAlphabet()
	text := `   A  C  D
A  4 -1 -2
C -1  9 -3
D -2 -3  6
`
	m, err := Parse(strings.NewReader(text), toIndex, size)
	require.NoError(t, err)
	assert.Equal(t, int16(4), m.At(0, 0))
	assert.Equal(t, int16(-1), m.At(0, 1))
	assert.NoError(t, m.Validate())
}

func TestValidateRejectsBadSelfSimilarity(t *testing.T) {
	m := &Matrix{Size: 2, Scores: []int16{1, 5, 5, 1}}
	assert.Error(t, m.Validate())
}

func TestBuildExtendedTopNAndThreshold(t *testing.T) {
	toIndex, size := toyAlphabet()
	text := `   A  C  D
A  4 -1 -2
C -1  9 -3
D -2 -3  6
`
	m, err := Parse(strings.NewReader(text), toIndex, size)
	require.NoError(t, err)

	ext := BuildExtended(m, 2, size, 4)
	// "AA" = code 0: self-similarity score 8, should rank first.
	above := ext.Above(0, 8)
	require.NotEmpty(t, above)
	assert.Equal(t, uint64(0), above[0].Code)
	assert.Equal(t, int16(8), above[0].Score)

	// raising the threshold above every neighbor's score yields nothing.
	assert.Empty(t, ext.Above(0, 100))
}
