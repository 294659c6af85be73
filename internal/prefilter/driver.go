package prefilter

import (
	"fmt"
	"sync"

	"github.com/pkg/errors"
	"github.com/vbauerster/mpb/v5"
	"github.com/vbauerster/mpb/v5/decor"

	"github.com/mmsearch/core/internal/config"
	"github.com/mmsearch/core/internal/idb"
	"github.com/mmsearch/core/internal/kmerindex"
	"github.com/mmsearch/core/internal/matcher"
	"github.com/mmsearch/core/internal/submat"
)

// entryBytes approximates the in-memory size of one kmerindex.Entry: two
// uint32s and a uint8, rounded up to Go's struct alignment.
const entryBytes = 12

// offsetBytes is the per-bucket cost of the Index Table's offsets array.
const offsetBytes = 8

// EstimateIndexBytes approximates the resident size of an Index Table built
// over numEntries k-mer occurrences with the given alphabet/k-mer shape,
// matching the role of Prefiltering::computeMemoryNeeded in deciding how
// many splits a database needs to fit a configured memory budget.
func EstimateIndexBytes(numEntries, alphaSize, k int) int64 {
	numCodes := int64(1)
	for i := 0; i < k; i++ {
		numCodes *= int64(alphaSize)
	}
	return numCodes*offsetBytes + int64(numEntries)*entryBytes
}

// NumSplits returns the smallest split count such that each split's Index
// Table, built over roughly totalResidues/splits k-mer occurrences, fits
// within budget. budget <= 0 disables the budget check (one split).
func NumSplits(totalResidues, alphaSize, k int, budget int64) int {
	if budget <= 0 || totalResidues == 0 {
		return 1
	}
	for splits := 1; ; splits++ {
		perSplit := totalResidues/splits + 1
		if EstimateIndexBytes(perSplit, alphaSize, k) <= budget || splits >= totalResidues {
			return splits
		}
	}
}

// Driver runs the prefilter over a database: it partitions the target range
// into memory-bounded splits, builds an Index Table per split, and scores
// every query against each split using a pool of matcher.Matcher worker
// goroutines.
type Driver struct {
	Opt        config.Options
	Targets    [][]int8
	TargetKeys []uint32
	Queries    [][]int8
	QueryKeys  []uint32

	// ByOrder / Background are threaded straight into every worker's
	// matcher.Matcher; see internal/matcher for their meaning.
	ByOrder       map[int]*submat.Extended
	Background    []float64
	KmerThreshold int16

	// SelfSearch marks an all-vs-all run where a query must not match
	// itself; QueryKeys[i] is compared against each candidate's target key.
	SelfSearch bool

	// Progress, when non-nil, receives one bar per split. Left nil in
	// tests that don't care about terminal output.
	Progress *mpb.Progress
}

// Run executes every split in sequence (splits are memory-bounded
// specifically so that only one Index Table needs to be resident at a time)
// and streams all (query, hits) results into a single output database.
func (d *Driver) Run(outDataPath, outIdxPath string) error {
	targetLens := make([]int, len(d.Targets))
	total := 0
	for i, t := range d.Targets {
		targetLens[i] = len(t)
		total += len(t)
	}

	numSplits := NumSplits(total, d.Opt.AlphabetSize, d.Opt.KmerSize, d.Opt.MaxMemoryBytes)

	threads := d.Opt.Threads
	if threads < 1 {
		threads = 1
	}
	writer, err := idb.NewWriter(outDataPath, outIdxPath, threads)
	if err != nil {
		return err
	}

	for split := 0; split < numSplits; split++ {
		from, to := RankRange(targetLens, split, numSplits)
		if from >= to {
			continue
		}

		var bar *mpb.Bar
		if d.Progress != nil {
			bar = d.Progress.AddBar(int64(to-from),
				mpb.PrependDecorators(decor.Name(fmt.Sprintf("split %d/%d", split+1, numSplits))),
				mpb.AppendDecorators(decor.Percentage(decor.WC{W: 5})),
			)
		}

		var idx *kmerindex.Table
		if threads > 1 {
			idx = kmerindex.BuildParallel(d.Targets, from, to, d.Opt.KmerSize, d.Opt.AlphabetSize,
				d.Opt.SeedMask, d.Opt.ScoreMode == config.ScoreDiagonal, threads)
			if bar != nil {
				bar.SetCurrent(int64(to - from))
			}
		} else {
			idx = kmerindex.Build(d.Targets, from, to, d.Opt.KmerSize, d.Opt.AlphabetSize,
				d.Opt.SeedMask, d.Opt.ScoreMode == config.ScoreDiagonal, bar)
		}

		if err := d.runQueriesAgainstSplit(idx, threads, writer); err != nil {
			return err
		}
	}

	if d.Progress != nil {
		d.Progress.Wait()
	}
	return writer.Close()
}

// runQueriesAgainstSplit shards the query set across threads worker
// goroutines, one matcher.Matcher and one idb.Writer shard each, so no
// worker ever contends with another for either the scratch table or the
// output stream.
func (d *Driver) runQueriesAgainstSplit(idx *kmerindex.Table, threads int, writer *idb.Writer) error {
	var wg sync.WaitGroup
	errs := make([]error, threads)

	for t := 0; t < threads; t++ {
		wg.Add(1)
		go func(thread int) {
			defer wg.Done()
			scratch := matcher.NewScratchTable(d.Opt.ScoreMode, len(d.Targets))
			m := matcher.NewMatcher(d.Opt, scratch, idx, d.ByOrder, d.TargetKeys, d.Background)
			spill := newSpillBuffer()

			for qi := thread; qi < len(d.Queries); qi += threads {
				var selfKey uint32
				if d.SelfSearch {
					selfKey = d.QueryKeys[qi]
				}
				hits := m.Match(d.Queries[qi], d.KmerThreshold, d.SelfSearch, selfKey)
				if len(hits) == 0 {
					continue
				}

				spill.Reset()
				if err := spill.Write(encodeHits(hits)); err != nil {
					errs[thread] = err
					return
				}
				data, err := spill.Bytes()
				if err != nil {
					errs[thread] = err
					return
				}
				if err := writer.Write(thread, d.QueryKeys[qi], data); err != nil {
					errs[thread] = err
					return
				}
			}
		}(t)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
