package matcher

import (
	"github.com/clausecker/pospop"

	"github.com/mmsearch/core/internal/config"
)

const maxDiagonal = 256

// ScratchTable is the per-thread Query Score Table: saturating 16-bit
// counters indexed by target id, plus either a single accumulator (count
// mode) or an 8-bit diagonal buffer (diagonal mode).
// One instance is allocated per worker thread and cleared between queries,
// never between k-mers within a query.
type ScratchTable struct {
	mode config.ScoreMode

	// count mode
	scores []uint16

	// diagonal mode: maxCount[target] is the best of the 256 diagonal
	// buckets for that target; diagBuf is reused scratch space for the
	// per-target diagonal histogram, touched lazily via `touched`.
	maxCount []uint8
	diagBuf  [][maxDiagonal]uint8
	touched  []bool
	touchedList []uint32
}

// NewScratchTable allocates a scratch table sized for numTargets target
// ids. Allocation happens once per worker thread at prefilter start.
func NewScratchTable(mode config.ScoreMode, numTargets int) *ScratchTable {
	s := &ScratchTable{mode: mode}
	switch mode {
	case config.ScoreCount:
		s.scores = make([]uint16, numTargets)
	case config.ScoreDiagonal:
		s.maxCount = make([]uint8, numTargets)
		s.diagBuf = make([][maxDiagonal]uint8, numTargets)
		s.touched = make([]bool, numTargets)
	}
	return s
}

// Clear resets only the entries touched since the last Clear, keeping the
// per-query reset cheap even when numTargets is large (a dense zero-fill
// would dominate runtime for small hit sets).
func (s *ScratchTable) Clear() {
	switch s.mode {
	case config.ScoreCount:
		for _, id := range s.touchedList {
			s.scores[id] = 0
		}
	case config.ScoreDiagonal:
		for _, id := range s.touchedList {
			s.maxCount[id] = 0
			s.touched[id] = false
			s.diagBuf[id] = [maxDiagonal]uint8{}
		}
	}
	s.touchedList = s.touchedList[:0]
}

// AddCount performs saturating 16-bit addition of score to target's
// accumulator (count scoring mode).
func (s *ScratchTable) AddCount(target uint32, score int16) {
	cur := s.scores[target]
	if cur == 0 {
		s.touchedList = append(s.touchedList, target)
	}
	sum := uint32(cur) + uint32(score)
	if sum > 0xFFFF {
		sum = 0xFFFF
	}
	s.scores[target] = uint16(sum)
}

// AddDiagonal records one k-mer hit on the diagonal implied by
// (queryPos - targetPos) mod 256, saturating at 255, and keeps the
// per-target maximum diagonal count (diagonal scoring mode).
func (s *ScratchTable) AddDiagonal(target uint32, queryPos, targetPos uint32) {
	if !s.touched[target] {
		s.touched[target] = true
		s.touchedList = append(s.touchedList, target)
	}
	diag := uint8((queryPos - targetPos) % maxDiagonal)
	buf := &s.diagBuf[target]
	if buf[diag] < 255 {
		buf[diag]++
	}
	if buf[diag] > s.maxCount[target] {
		s.maxCount[target] = buf[diag]
	}
}

// CountAboveThreshold uses clausecker/pospop's vectorized byte-threshold
// population count to estimate, over the touched subset of the scratch
// table, how many targets currently score above cutoff. EstimateCutoff
// drives this with a binary search so selectHits can skip building Hit
// entries for targets MaxHitsPerQuery would truncate away anyway.
func (s *ScratchTable) CountAboveThreshold(cutoff uint8) int {
	var bytes []uint8
	switch s.mode {
	case config.ScoreCount:
		return s.countAboveThresholdCounts(cutoff)
	case config.ScoreDiagonal:
		bytes = s.maxCount
	}
	if len(bytes) == 0 {
		return 0
	}

	// pospop.Count8 expects up to 8 equal-length byte slices and returns,
	// for each of the 8 bit positions, how many bytes had that bit set.
	// We approximate "count of bytes >= cutoff" via the top bits when
	// cutoff is a power of two boundary; for arbitrary cutoffs we fall
	// back to a direct scan, which is still O(touched) rather than
	// O(numTargets).
	if cutoff&(cutoff-1) != 0 || cutoff == 0 {
		n := 0
		for _, id := range s.touchedList {
			if s.maxCount[id] >= cutoff {
				n++
			}
		}
		return n
	}

	counts := pospop.Count8(bytes)
	bit := 0
	for c := cutoff; c > 1; c >>= 1 {
		bit++
	}
	return int(counts[bit])
}

// EstimateCutoff uses CountAboveThreshold to binary-search the highest byte
// cutoff that still admits at least want touched targets, so selectHits can
// skip building and sorting Hit entries for targets that MaxHitsPerQuery
// would truncate away anyway. Returns 0 (no filtering) if want <= 0 or the
// touched set is already no larger than want.
func (s *ScratchTable) EstimateCutoff(want int) uint8 {
	if want <= 0 || len(s.touchedList) <= want {
		return 0
	}

	lo, hi := uint8(0), uint8(255)
	best := uint8(0)
	for {
		mid := lo + (hi-lo)/2
		if s.CountAboveThreshold(mid) >= want {
			best = mid
			if mid == 255 {
				break
			}
			lo = mid + 1
		} else {
			if mid == 0 {
				break
			}
			hi = mid - 1
		}
		if lo > hi {
			break
		}
	}
	return best
}

func (s *ScratchTable) countAboveThresholdCounts(cutoff uint8) int {
	n := 0
	for _, id := range s.touchedList {
		if s.scores[id] > uint16(cutoff) {
			n++
		}
	}
	return n
}

// Touched returns the target ids that received at least one hit since the
// last Clear.
func (s *ScratchTable) Touched() []uint32 { return s.touchedList }

// ScoreOf returns the current raw score for target, in whichever mode the
// table was built for (diagonal mode returns the best diagonal count).
func (s *ScratchTable) ScoreOf(target uint32) int {
	switch s.mode {
	case config.ScoreCount:
		return int(s.scores[target])
	case config.ScoreDiagonal:
		return int(s.maxCount[target])
	}
	return 0
}

// BestDiagonal returns the diagonal bucket holding the maximum count for
// target, used by internal/align to center its band.
func (s *ScratchTable) BestDiagonal(target uint32) uint8 {
	buf := &s.diagBuf[target]
	best := uint8(0)
	bestCount := uint8(0)
	for d := 0; d < maxDiagonal; d++ {
		if buf[d] > bestCount {
			bestCount = buf[d]
			best = uint8(d)
		}
	}
	return best
}
