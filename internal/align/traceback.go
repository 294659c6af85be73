package align

import (
	"fmt"
	"strings"
)

type lane int

const (
	laneM lane = iota
	laneIx
	laneIy
)

// traceback walks back from (i, j) in whichever lane produced bestScore
// until it reaches a cell scoring 0 (the local-alignment restart boundary),
// reconstructing coordinates, identity, gap counts and a run-length encoded
// M/I/D backtrace string.
func (a *Aligner) traceback(rows [][]cell, lo, hi []int, query, target []int8, i, j, bestScore int) Result {
	get := func(i, j int) cell {
		if i < 0 || j < 0 || i >= len(rows) || j < lo[i] || j >= hi[i] {
			return cell{}
		}
		return rows[i][j-lo[i]]
	}

	c := get(i, j)
	cur := laneM
	switch int32(bestScore) {
	case c.ix:
		cur = laneIx
	case c.iy:
		cur = laneIy
	}

	qEnd, tEnd := i, j
	var ops []byte // 'M', 'I' (gap in target), 'D' (gap in query), walked backward
	matches := 0
	alnLen := 0
	gapOpens, gapExtends := 0, 0

	for i > 0 || j > 0 {
		switch cur {
		case laneM:
			cc := get(i, j)
			if cc.m == 0 {
				goto done
			}
			if query[i-1] == target[j-1] {
				matches++
			}
			ops = append(ops, 'M')
			alnLen++
			prev := get(i-1, j-1)
			switch cc.m - int32(a.Matrix.At(int(query[i-1]), int(target[j-1]))) {
			case prev.ix:
				cur = laneIx
			case prev.iy:
				cur = laneIy
			default:
				cur = laneM
			}
			i--
			j--
		case laneIx:
			cc := get(i, j)
			ops = append(ops, 'I')
			alnLen++
			up := get(i-1, j)
			if cc.ix == up.m-int32(a.GapOpen) {
				gapOpens++
				cur = laneM
			} else {
				gapExtends++
				cur = laneIx
			}
			i--
		case laneIy:
			cc := get(i, j)
			ops = append(ops, 'D')
			alnLen++
			left := get(i, j-1)
			if cc.iy == left.m-int32(a.GapOpen) {
				gapOpens++
				cur = laneM
			} else {
				gapExtends++
				cur = laneIy
			}
			j--
		}
	}
done:

	qStart, tStart := i, j

	// ops was built walking backward; reverse for a left-to-right backtrace.
	for l, r := 0, len(ops)-1; l < r; l, r = l+1, r-1 {
		ops[l], ops[r] = ops[r], ops[l]
	}

	identity := 0.0
	if alnLen > 0 {
		identity = float64(matches) / float64(alnLen)
	}
	coverage := 0.0
	if len(query) > 0 {
		coverage = float64(qEnd-qStart) / float64(len(query))
	}

	return Result{
		RawScore:    bestScore,
		Identity:    identity,
		Coverage:    coverage,
		QueryStart:  qStart,
		QueryEnd:    qEnd,
		TargetStart: tStart,
		TargetEnd:   tEnd,
		GapOpens:    gapOpens,
		GapExtends:  gapExtends,
		Backtrace:   runLengthEncode(ops),
	}
}

// runLengthEncode compresses a flat op string into "12M3I4M"-style CIGAR.
func runLengthEncode(ops []byte) string {
	if len(ops) == 0 {
		return ""
	}
	var sb strings.Builder
	run := 1
	for i := 1; i <= len(ops); i++ {
		if i < len(ops) && ops[i] == ops[i-1] {
			run++
			continue
		}
		fmt.Fprintf(&sb, "%d%c", run, ops[i-1])
		run = 1
	}
	return sb.String()
}

// AlignmentLength sums the run lengths in a runLengthEncode-produced
// backtrace string, recovering the number of aligned columns (matches,
// mismatches, and gaps alike) without re-running the traceback.
func AlignmentLength(backtrace string) int {
	total, run := 0, 0
	for i := 0; i < len(backtrace); i++ {
		c := backtrace[i]
		if c >= '0' && c <= '9' {
			run = run*10 + int(c-'0')
			continue
		}
		total += run
		run = 0
	}
	return total
}
