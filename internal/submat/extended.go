package submat

import (
	"sort"

	"github.com/twotwotwo/sorts/sortutil"
)

// Neighbor is one entry in an extended similarity table: a similar k-mer
// code and its similarity score against the original k-mer.
type Neighbor struct {
	Code  uint64
	Score int16
}

// Extended holds, for every 2-mer or 3-mer code, the top-N most similar
// k-mers of the same order and their scores. A full k-mer (k in [6,7]) is
// never enumerated directly — |Σ|^k x |Σ|^k is intractable for |Σ|≈21,
// k=7 — instead a k-mer's expansion is built by combining these small
// per-block tables (see CombineBlocks / BlockSchema).
type Extended struct {
	Order     int // 2 or 3
	alphaSize int
	topN      int
	table     [][]Neighbor
}

// BuildExtended enumerates all alphaSize^order k-mers of the given order
// against the scoring matrix, keeping for each the topN highest-scoring
// neighbors (including itself). order must be 2 or 3, keeping the table
// size (alphaSize^order)^2 tractable for real alphabets.
func BuildExtended(m *Matrix, order, alphaSize, topN int) *Extended {
	numCodes := 1
	for i := 0; i < order; i++ {
		numCodes *= alphaSize
	}

	digits := make([][]int, numCodes)
	for c := 0; c < numCodes; c++ {
		digits[c] = decompose(c, order, alphaSize)
	}

	e := &Extended{Order: order, alphaSize: alphaSize, topN: topN, table: make([][]Neighbor, numCodes)}
	for c := 0; c < numCodes; c++ {
		neighbors := make([]Neighbor, numCodes)
		for d := 0; d < numCodes; d++ {
			neighbors[d] = Neighbor{Code: uint64(d), Score: scoreMer(m, digits[c], digits[d])}
		}
		sortutil.Sort(byScoreDesc(neighbors))
		if len(neighbors) > topN {
			neighbors = neighbors[:topN]
		}
		e.table[c] = neighbors
	}
	return e
}

func decompose(code, order, alphaSize int) []int {
	out := make([]int, order)
	for i := order - 1; i >= 0; i-- {
		out[i] = code % alphaSize
		code /= alphaSize
	}
	return out
}

func scoreMer(m *Matrix, a, b []int) int16 {
	var s int16
	for i := range a {
		s += m.At(a[i], b[i])
	}
	return s
}

type byScoreDesc []Neighbor

func (b byScoreDesc) Len() int           { return len(b) }
func (b byScoreDesc) Less(i, j int) bool { return b[i].Score > b[j].Score }
func (b byScoreDesc) Swap(i, j int)      { b[i], b[j] = b[j], b[i] }
func (b byScoreDesc) Key(i int) uint64   { return uint64(int64(b[i].Score) + 1<<15) }

// Neighbors returns the stored top-N neighbors of code, sorted descending
// by score.
func (e *Extended) Neighbors(code uint64) []Neighbor { return e.table[code] }

// Above returns the neighbors of code scoring at least threshold, already
// sorted descending by score (a prefix of the stored top-N list).
func (e *Extended) Above(code uint64, threshold int16) []Neighbor {
	all := e.table[code]
	n := sort.Search(len(all), func(i int) bool { return all[i].Score < threshold })
	return all[:n]
}

// BlockSchema splits a k-mer of length k (k in [6,7]) into a sequence of
// 2-mer/3-mer block sizes that sum to k. k=6 -> [3,3]; k=7 -> [3,2,2].
func BlockSchema(k int) []int {
	switch k {
	case 6:
		return []int{3, 3}
	case 7:
		return []int{3, 2, 2}
	default:
		// Any other configured k: even k is covered exactly by 2-mer
		// blocks; odd k takes one 3-mer block and the rest 2-mers.
		var blocks []int
		rem := k
		if rem%2 != 0 {
			blocks = append(blocks, 3)
			rem -= 3
		}
		for rem > 0 {
			blocks = append(blocks, 2)
			rem -= 2
		}
		return blocks
	}
}

// CombineBlocks expands a full k-mer, given as a flat digit slice over the
// reduced alphabet, into the set of similar k-mers scoring at least
// threshold, by combining each block's Extended table. Scores are additive
// across blocks because the scoring matrix is a sum of independent
// per-position substitution scores, so this produces exactly the same
// ranking a full k-mer table would, without ever materializing it.
//
// byOrder must have an entry for every distinct block size BlockSchema(k)
// produces (2 and/or 3).
func CombineBlocks(digits []int, blocks []int, alphaSize int, byOrder map[int]*Extended, threshold int16) []Neighbor {
	type partial struct {
		codeDigits []int // combined digits so far, in block order
		score      int16
	}

	combined := []partial{{codeDigits: nil, score: 0}}
	offset := 0
	for _, blockSize := range blocks {
		ext, ok := byOrder[blockSize]
		if !ok {
			panic("submat: CombineBlocks missing Extended table for block size")
		}
		blockDigits := digits[offset : offset+blockSize]
		code := packDigits(blockDigits, alphaSize)
		blockNeighbors := ext.Neighbors(uint64(code))

		next := make([]partial, 0, len(combined)*len(blockNeighbors))
		for _, p := range combined {
			for _, nb := range blockNeighbors {
				nbDigits := decompose(int(nb.Code), blockSize, alphaSize)
				merged := make([]int, 0, len(p.codeDigits)+blockSize)
				merged = append(merged, p.codeDigits...)
				merged = append(merged, nbDigits...)
				next = append(next, partial{codeDigits: merged, score: p.score + nb.Score})
			}
		}
		sort.Slice(next, func(i, j int) bool { return next[i].score > next[j].score })
		if cap := ext.topN; cap > 0 && len(next) > cap*cap {
			next = next[:cap*cap]
		}
		combined = next
		offset += blockSize
	}

	out := make([]Neighbor, 0, len(combined))
	for _, p := range combined {
		if p.score < threshold {
			continue
		}
		out = append(out, Neighbor{Code: packDigits(p.codeDigits, alphaSize), Score: p.score})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

func packDigits(digits []int, alphaSize int) uint64 {
	var c uint64
	for _, d := range digits {
		c = c*uint64(alphaSize) + uint64(d)
	}
	return c
}
