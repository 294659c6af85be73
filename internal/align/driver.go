package align

import (
	"github.com/mmsearch/core/internal/config"
	"github.com/mmsearch/core/internal/matcher"
)

// TargetLookup resolves a target key to its alphabet-encoded residues,
// decoupling the acceptance walk from any particular storage backend (an
// idb.Reader in the CLI driver, a plain map in tests).
type TargetLookup func(key uint32) []int8

// Walk aligns query against each prefilter hit in rank order, maintaining
// accepted/rejected counters and stopping as soon as either reaches its
// configured cap, so a query never spends more than maxAccept+maxRejected
// alignments of work.
func (a *Aligner) Walk(query []int8, hits []matcher.Hit, lookup TargetLookup, stats Statistics, opt config.Options) []Result {
	out := make([]Result, 0, opt.MaxAccept)
	accepted, rejected := 0, 0

	for _, h := range hits {
		if accepted >= opt.MaxAccept || rejected >= opt.MaxRejected {
			break
		}

		target := lookup(h.TargetKey)
		if target == nil {
			rejected++
			continue
		}

		res := a.Align(query, target, int(int8(h.Diagonal)))
		res.TargetKey = h.TargetKey
		res.BitScore = stats.BitScore(res.RawScore)
		res.Evalue = stats.Evalue(res.RawScore, len(query), len(target))

		if passesThresholds(res, opt) {
			accepted++
			out = append(out, res)
		} else {
			rejected++
		}
	}
	return out
}

func passesThresholds(r Result, opt config.Options) bool {
	if float64(r.RawScore) < opt.MinScore {
		return false
	}
	if r.Identity < opt.MinSeqID {
		return false
	}
	if r.Coverage < opt.MinCoverage {
		return false
	}
	if opt.MaxEvalue > 0 && r.Evalue > opt.MaxEvalue {
		return false
	}
	return true
}
