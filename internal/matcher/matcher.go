// Package matcher implements the per-query hot path: walking similar
// k-mers, accumulating diagonal scores, and selecting the top hits.
package matcher

import (
	"sort"

	"github.com/mmsearch/core/internal/config"
	"github.com/mmsearch/core/internal/kmerindex"
	"github.com/mmsearch/core/internal/seqcodec"
	"github.com/mmsearch/core/internal/submat"
)

// Hit is one surviving (query, target) candidate emitted by the matcher.
type Hit struct {
	TargetKey uint32
	Score     int
	Diagonal  uint8
	EvalueSurrogate float64
}

// Matcher is the per-thread scorer. One instance is allocated per worker
// thread at prefilter start and reused across queries; Scratch is cleared
// between queries but never reallocated.
type Matcher struct {
	Opt     config.Options
	Scratch *ScratchTable
	Index   *kmerindex.Table
	// ByOrder holds one Extended table per block size (2 and/or 3) that
	// submat.BlockSchema(Opt.KmerSize) names; a full k-mer is expanded by
	// combining these via submat.CombineBlocks.
	ByOrder map[int]*submat.Extended
	Blocks  []int

	// TargetKeys maps internal target-id (as stored in the Index Table)
	// to the externally visible target key.
	TargetKeys []uint32

	// background is the per-residue expectation subtracted during bias
	// correction; nil disables bias correction.
	background []float64

	// dedup suppresses repeated low-complexity k-mer windows within one
	// query; disabled (always false) when Opt.KmerDedupThreshold <= 0.
	dedup    *seqcodec.Deduplicator
	dedupBuf []byte
}

// NewMatcher builds a Matcher over idx, reusing scratch across queries.
func NewMatcher(opt config.Options, scratch *ScratchTable, idx *kmerindex.Table, byOrder map[int]*submat.Extended, targetKeys []uint32, background []float64) *Matcher {
	return &Matcher{
		Opt:        opt,
		Scratch:    scratch,
		Index:      idx,
		ByOrder:    byOrder,
		Blocks:     submat.BlockSchema(opt.KmerSize),
		TargetKeys: targetKeys,
		background: background,
		dedup:      seqcodec.NewDeduplicator(opt.KmerSize, opt.KmerDedupThreshold),
		dedupBuf:   make([]byte, opt.KmerSize),
	}
}

// Match scores one query against the index and returns up to
// Opt.MaxHitsPerQuery hits, sorted descending by score with ties broken by
// ascending target key for deterministic output.
//
// selfKey, when selfSearch is true, is excluded from the results so a
// query never reports itself as a hit against its own database.
func (m *Matcher) Match(queryEnc []int8, kmerThr int16, selfSearch bool, selfKey uint32) []Hit {
	m.Scratch.Clear()
	m.dedup.Reset()

	if !seqcodec.NotEmpty(len(queryEnc), m.Opt.KmerSize, m.Opt.SeedMask) {
		return nil
	}

	it := seqcodec.NewKmerIter(queryEnc, m.Opt.KmerSize, m.Opt.AlphabetSize, m.Opt.SeedMask)
	window := m.Opt.KmerSize
	if m.Opt.SeedMask != nil {
		window = len(m.Opt.SeedMask)
	}
	digits := make([]int, m.Opt.KmerSize)
	for {
		_, qpos, ok := it.Next()
		if !ok {
			break
		}

		// CombineBlocks operates on the k informative positions in
		// window order; for a spaced mask this is the masked subset,
		// for a contiguous k-mer it is the whole window.
		d := 0
		if m.Opt.SeedMask == nil {
			for i := 0; i < window; i++ {
				digits[d] = int(queryEnc[qpos+i])
				d++
			}
		} else {
			for i, keep := range m.Opt.SeedMask {
				if !keep {
					continue
				}
				digits[d] = int(queryEnc[qpos+i])
				d++
			}
		}

		for i, v := range digits {
			m.dedupBuf[i] = byte(v)
		}
		if m.dedup.Skip(m.dedupBuf) {
			continue
		}

		neighbors := submat.CombineBlocks(digits, m.Blocks, m.Opt.AlphabetSize, m.ByOrder, kmerThr)
		for _, nb := range neighbors {
			for _, entry := range m.Index.List(nb.Code) {
				switch m.Opt.ScoreMode {
				case config.ScoreCount:
					m.Scratch.AddCount(entry.TargetID, nb.Score)
				case config.ScoreDiagonal:
					m.Scratch.AddDiagonal(entry.TargetID, uint32(qpos), entry.Pos)
				}
			}
		}
	}

	return m.selectHits(selfSearch, selfKey)
}

func (m *Matcher) selectHits(selfSearch bool, selfKey uint32) []Hit {
	touched := m.Scratch.Touched()
	hits := make([]Hit, 0, len(touched))

	// Bias correction perturbs ScoreOf after the fact, so a cutoff taken
	// from the raw scratch table wouldn't reliably predict which targets
	// survive; skip the estimate in that case and fall back to a full scan.
	var scoreCutoff uint8
	if !m.Opt.BiasCorrection {
		scoreCutoff = m.Scratch.EstimateCutoff(m.Opt.MaxHitsPerQuery)
	}

	backgroundAvg := 0.0
	if m.background != nil && len(touched) > 0 {
		for _, v := range m.background {
			backgroundAvg += v
		}
		backgroundAvg /= float64(len(m.background))
	}

	for _, id := range touched {
		key := m.TargetKeys[id]
		if selfSearch && key == selfKey && !m.Opt.IncludeIdentical {
			continue
		}

		score := m.Scratch.ScoreOf(id)
		if m.Opt.BiasCorrection && m.background != nil {
			score -= int(backgroundAvg)
			if score < 0 {
				score = 0
			}
		}
		if score <= 0 {
			continue
		}
		if scoreCutoff > 0 && score < int(scoreCutoff) {
			continue
		}

		var diag uint8
		if m.Opt.ScoreMode == config.ScoreDiagonal {
			diag = m.Scratch.BestDiagonal(id)
		}

		hits = append(hits, Hit{
			TargetKey:       key,
			Score:           score,
			Diagonal:        diag,
			EvalueSurrogate: evalueSurrogate(score),
		})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].TargetKey < hits[j].TargetKey
	})

	if m.Opt.MaxHitsPerQuery > 0 && len(hits) > m.Opt.MaxHitsPerQuery {
		hits = hits[:m.Opt.MaxHitsPerQuery]
	}
	return hits
}

// evalueSurrogate is a cheap monotonically-decreasing-in-score stand-in
// for a full e-value, used only to rank/filter prefilter hits before the
// aligner computes the real Karlin-Altschul e-value.
func evalueSurrogate(score int) float64 {
	return 1.0 / float64(1+score)
}
