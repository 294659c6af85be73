// Package submat loads a residue scoring matrix and derives the extended
// 2-mer/3-mer similarity tables the Query Matcher uses to expand a query
// k-mer into the set of "sufficiently similar" k-mers.
package submat

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Matrix is a square, symmetric short-integer scoring table indexed by
// reduced-alphabet index. Self-similarity is always >= cross-similarity.
type Matrix struct {
	Size   int
	Scores []int16 // row-major, Size*Size

	// Background residue frequencies, used by internal/align for
	// Karlin-Altschul lambda/K estimation when matrix metadata doesn't
	// supply them directly.
	Background []float64

	// Lambda/K are the Karlin-Altschul statistical parameters for this
	// matrix, when known a priori (e.g. the published constants for a
	// standard BLOSUM matrix at its usual gap costs). Zero means unset;
	// internal/align then estimates them numerically from Background.
	Lambda float64
	K      float64
}

// At returns the score for substituting residue i with residue j.
func (m *Matrix) At(i, j int) int16 { return m.Scores[i*m.Size+j] }

// Validate checks that the diagonal (self-similarity) is never smaller than
// any off-diagonal entry in its row.
func (m *Matrix) Validate() error {
	for i := 0; i < m.Size; i++ {
		diag := m.At(i, i)
		for j := 0; j < m.Size; j++ {
			if m.At(i, j) > diag {
				return errors.Errorf("submat: self-similarity at %d (%d) smaller than cross-similarity to %d (%d)", i, diag, j, m.At(i, j))
			}
		}
	}
	return nil
}

// Parse reads a whitespace-delimited scoring matrix in the common
// "# comment lines, header row of letters, then one row per letter"
// layout (BLOSUM/PAM style), mapping letters through toIndex.
func Parse(r io.Reader, toIndex func(byte) int8, size int) (*Matrix, error) {
	sc := bufio.NewScanner(r)
	var headerCols []int8
	scores := make([]int16, size*size)
	filled := make([]bool, size*size)

	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if headerCols == nil {
			headerCols = make([]int8, len(fields))
			for i, f := range fields {
				if len(f) != 1 {
					return nil, errors.Errorf("submat: bad header column %q", f)
				}
				headerCols[i] = toIndex(f[0])
			}
			continue
		}
		if len(fields) != len(headerCols)+1 {
			return nil, errors.Errorf("submat: row %q has %d fields, want %d", line, len(fields), len(headerCols)+1)
		}
		rowIdx := toIndex(fields[0][0])
		if rowIdx < 0 {
			continue
		}
		for c, f := range fields[1:] {
			colIdx := headerCols[c]
			if colIdx < 0 {
				continue
			}
			v, err := strconv.ParseInt(f, 10, 16)
			if err != nil {
				return nil, errors.Wrapf(err, "submat: parse score %q", f)
			}
			pos := int(rowIdx)*size + int(colIdx)
			scores[pos] = int16(v)
			filled[pos] = true
		}
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, "submat: scan matrix")
	}
	for i, ok := range filled {
		if !ok {
			return nil, errors.Errorf("submat: incomplete matrix, entry %d never set", i)
		}
	}

	m := &Matrix{Size: size, Scores: scores}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}
