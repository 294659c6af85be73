package align

import (
	"math"

	"github.com/mmsearch/core/internal/submat"
)

// Statistics holds the Karlin-Altschul parameters used to turn a raw score
// into a bit score and e-value via the scoring matrix's own lambda/K, or an
// estimate of them.
type Statistics struct {
	Lambda float64
	K      float64
}

// EstimateStatistics returns m's own Lambda/K if both are set (the usual
// case for a published matrix at a known gap cost), otherwise estimates them
// numerically from the matrix and its background frequencies.
func EstimateStatistics(m *submat.Matrix) Statistics {
	if m.Lambda > 0 && m.K > 0 {
		return Statistics{Lambda: m.Lambda, K: m.K}
	}
	lambda := solveLambda(m)
	h := relativeEntropy(m, lambda)
	k := lambda / h // cheap surrogate: see doc comment on relativeEntropy
	if k <= 0 || math.IsNaN(k) || math.IsInf(k, 0) {
		k = 0.1 // Altschul's commonly cited BLOSUM62 default, used as a floor
	}
	return Statistics{Lambda: lambda, K: k}
}

// solveLambda finds the unique positive root of
// sum_i sum_j p_i p_j exp(lambda * s_ij) = 1
// by bisection — the defining equation for the Karlin-Altschul lambda
// parameter of a local scoring scheme with per-residue background p.
func solveLambda(m *submat.Matrix) float64 {
	p := m.Background
	if len(p) != m.Size {
		// No usable background: fall back to uniform, which still gives a
		// self-consistent (if less accurate) lambda.
		p = make([]float64, m.Size)
		for i := range p {
			p[i] = 1.0 / float64(m.Size)
		}
	}

	f := func(lambda float64) float64 {
		var sum float64
		for i := 0; i < m.Size; i++ {
			for j := 0; j < m.Size; j++ {
				sum += p[i] * p[j] * math.Exp(lambda*float64(m.At(i, j)))
			}
		}
		return sum - 1
	}

	lo, hi := 1e-6, 2.0
	for f(hi) < 0 && hi < 100 {
		hi *= 2
	}
	for iter := 0; iter < 100; iter++ {
		mid := (lo + hi) / 2
		if f(mid) > 0 {
			hi = mid
		} else {
			lo = mid
		}
	}
	return (lo + hi) / 2
}

// relativeEntropy computes H = lambda * E[S * exp(lambda*S)] under the
// background distribution, the Karlin-Altschul relative-entropy parameter.
// K is then approximated as lambda/H, a widely used cheap surrogate for the
// true K (whose exact value requires the full score-distribution sum) that
// is good enough to rank e-values consistently within one run.
func relativeEntropy(m *submat.Matrix, lambda float64) float64 {
	p := m.Background
	if len(p) != m.Size {
		p = make([]float64, m.Size)
		for i := range p {
			p[i] = 1.0 / float64(m.Size)
		}
	}
	var sum float64
	for i := 0; i < m.Size; i++ {
		for j := 0; j < m.Size; j++ {
			s := float64(m.At(i, j))
			sum += p[i] * p[j] * s * math.Exp(lambda*s)
		}
	}
	return lambda * sum
}

// BitScore converts a raw alignment score to a normalized bit score.
func (s Statistics) BitScore(rawScore int) float64 {
	return (s.Lambda*float64(rawScore) - math.Log(s.K)) / math.Ln2
}

// Evalue computes the expected number of alignments with at least rawScore
// in a search space of the given query and database (target) lengths.
func (s Statistics) Evalue(rawScore, queryLen, dbLen int) float64 {
	return s.K * float64(queryLen) * float64(dbLen) * math.Exp(-s.Lambda*float64(rawScore))
}
