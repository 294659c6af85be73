// Package calibrate maps a user-facing sensitivity and base k-mer score to
// a short-integer k-mer threshold, deterministically.
package calibrate

import (
	"math/rand"

	"gonum.org/v1/gonum/stat"

	"github.com/mmsearch/core/internal/kmerindex"
	"github.com/mmsearch/core/internal/seqcodec"
)

// Target is the acceptable band of mean hits-per-query that calibration
// searches for.
type Target struct {
	Min, Max float64
}

// SampleFn runs one query's k-mers against idx at the candidate threshold
// and returns the number of hits produced — the caller (internal/matcher,
// wired up by internal/prefilter) supplies this so calibrate stays free of
// a dependency on the full matcher package.
type SampleFn func(queryEnc []int8, threshold int16) int

// Result records the chosen threshold and the measurements that produced
// it, for logging/diagnostics.
type Result struct {
	Threshold      int16
	HitsPerQuery   float64
	HitsPerQueryBy map[int16]float64
}

// Calibrate deterministically tries candidateThresholds in the given order
// and returns the one whose mean hits-per-query over the sampled queries
// falls in target, or else lies closest to it. Among equally close
// candidates the earliest one wins, so a descending list yields the highest
// in-band threshold. Determinism follows from seed: the same (queries, seed)
// pair always draws the same sample and therefore the same result.
func Calibrate(queries [][]int8, candidateThresholds []int16, sample SampleFn, target Target, seed int64, sampleSize int) Result {
	rng := rand.New(rand.NewSource(seed))

	sampled := queries
	if sampleSize > 0 && sampleSize < len(queries) {
		perm := rng.Perm(len(queries))[:sampleSize]
		sampled = make([][]int8, sampleSize)
		for i, idx := range perm {
			sampled[i] = queries[idx]
		}
	}

	res := Result{HitsPerQueryBy: make(map[int16]float64, len(candidateThresholds))}
	best := int16(0)
	bestDist := -1.0
	bestMean := 0.0

	for _, thr := range candidateThresholds {
		counts := make([]float64, len(sampled))
		for i, q := range sampled {
			counts[i] = float64(sample(q, thr))
		}
		mean := stat.Mean(counts, nil)
		res.HitsPerQueryBy[thr] = mean

		dist := distanceToBand(mean, target)
		if bestDist < 0 || dist < bestDist {
			bestDist = dist
			best = thr
			bestMean = mean
		}
	}

	res.Threshold = best
	res.HitsPerQuery = bestMean
	return res
}

func distanceToBand(v float64, t Target) float64 {
	if v < t.Min {
		return t.Min - v
	}
	if v > t.Max {
		return v - t.Max
	}
	return 0
}

// VarianceOfHits exposes the sampled hits-per-query variance at a given
// threshold, useful for diagnostics/logging around how stable a threshold
// choice is.
func VarianceOfHits(counts []float64) float64 {
	if len(counts) < 2 {
		return 0
	}
	return stat.Variance(counts, nil)
}

// ReversedIndex builds an Index Table over a byte-reversed copy of the
// target residues, used by calibration to measure the random-match rate
// against a randomized target index.
func ReversedIndex(targets [][]int8, k, alphaSize int, mask seqcodec.SpacedMask) *kmerindex.Table {
	reversed := make([][]int8, len(targets))
	for i, t := range targets {
		r := make([]int8, len(t))
		for j, v := range t {
			r[len(t)-1-j] = v
		}
		reversed[i] = r
	}
	return kmerindex.Build(reversed, 0, len(reversed), k, alphaSize, mask, false, nil)
}
