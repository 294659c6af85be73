// Package align computes, for one (query, target) pair surviving the
// prefilter, a banded Smith-Waterman local alignment with affine gap costs,
// its Karlin-Altschul statistics, and the per-query acceptance walk that
// bounds how many alignments a query may spend work on.
package align

import "github.com/mmsearch/core/internal/submat"

const negInf = -1 << 30

// Result is one accepted or rejected alignment. Coordinates are 0-based,
// half-open (end is exclusive).
type Result struct {
	TargetKey uint32

	RawScore   int
	BitScore   float64
	Evalue     float64
	Identity   float64 // in [0,1]
	Coverage   float64 // query coverage, in [0,1]

	QueryStart, QueryEnd   int
	TargetStart, TargetEnd int

	GapOpens   int
	GapExtends int

	Backtrace string // compact CIGAR-like string: M/I/D run-length encoded
}

type cell struct {
	m, ix, iy int32
}

// Aligner runs banded affine-gap Smith-Waterman against one in-memory
// scoring matrix, reused across every (query, target) pair in a run.
type Aligner struct {
	Matrix    *submat.Matrix
	GapOpen   int
	GapExtend int
	BandWidth int
}

// NewAligner builds an Aligner over m with the given affine gap costs and
// half-band width (the DP only visits cells within BandWidth of the query's
// prefilter-reported diagonal).
func NewAligner(m *submat.Matrix, gapOpen, gapExtend, bandWidth int) *Aligner {
	return &Aligner{Matrix: m, GapOpen: gapOpen, GapExtend: gapExtend, BandWidth: bandWidth}
}

// Align computes the best local alignment of query against target, banding
// the DP around centerDiagonal = queryPos - targetPos. Callers pass a
// BandWidth covering the full matrix width when diagonal scoring is off and
// no single diagonal is trustworthy.
func (a *Aligner) Align(query, target []int8, centerDiagonal int) Result {
	qn, tn := len(query), len(target)
	band := a.BandWidth

	// grid[i] holds the band of j values [lo(i), hi(i)) around
	// i - centerDiagonal, stored densely with an offset.
	lo := make([]int, qn+1)
	hi := make([]int, qn+1)
	for i := 0; i <= qn; i++ {
		c := i - centerDiagonal
		l := c - band
		h := c + band + 1
		if l < 0 {
			l = 0
		}
		if h > tn+1 {
			h = tn + 1
		}
		if l > tn+1 {
			l = tn + 1
		}
		if h < l {
			h = l
		}
		lo[i], hi[i] = l, h
	}

	rows := make([][]cell, qn+1)
	for i := range rows {
		rows[i] = make([]cell, hi[i]-lo[i])
		for k := range rows[i] {
			rows[i][k] = cell{m: 0, ix: int32(negInf), iy: int32(negInf)}
		}
	}

	get := func(i, j int) (cell, bool) {
		if i < 0 || i > qn || j < lo[i] || j >= hi[i] {
			return cell{}, false
		}
		return rows[i][j-lo[i]], true
	}

	bestScore := 0
	bestI, bestJ := 0, 0

	for i := 1; i <= qn; i++ {
		for j := lo[i]; j < hi[i]; j++ {
			if j == 0 {
				continue
			}

			var diagM, diagIx, diagIy int32 = int32(negInf), int32(negInf), int32(negInf)
			if d, ok := get(i-1, j-1); ok {
				diagM, diagIx, diagIy = d.m, d.ix, d.iy
			}
			sub := int32(a.Matrix.At(int(query[i-1]), int(target[j-1])))
			mScore := max3(diagM, diagIx, diagIy) + sub
			if mScore < 0 {
				mScore = 0
			}

			var upM, upIx int32 = int32(negInf), int32(negInf)
			if u, ok := get(i-1, j); ok {
				upM, upIx = u.m, u.ix
			}
			ixScore := max2(upM-int32(a.GapOpen), upIx-int32(a.GapExtend))

			var leftM, leftIy int32 = int32(negInf), int32(negInf)
			if l, ok := get(i, j-1); ok {
				leftM, leftIy = l.m, l.iy
			}
			iyScore := max2(leftM-int32(a.GapOpen), leftIy-int32(a.GapExtend))

			c := cell{m: mScore, ix: ixScore, iy: iyScore}
			rows[i][j-lo[i]] = c

			best := max3(c.m, c.ix, c.iy)
			if int(best) > bestScore {
				bestScore = int(best)
				bestI, bestJ = i, j
			}
		}
	}

	if bestScore == 0 {
		return Result{}
	}

	return a.traceback(rows, lo, hi, query, target, bestI, bestJ, bestScore)
}

func max2(a, b int32) int32 {
	if a > b {
		return a
	}
	return b
}

func max3(a, b, c int32) int32 {
	return max2(max2(a, b), c)
}
