// Package config holds the immutable run-time configuration shared by the
// prefilter, alignment and index-build phases.
package config

// ScoreMode selects the Query Matcher's scoring variant.
type ScoreMode int

const (
	// ScoreCount accumulates plain k-mer similarity scores per target.
	ScoreCount ScoreMode = iota
	// ScoreDiagonal additionally buckets hits by diagonal and keeps the
	// per-target maximum diagonal count.
	ScoreDiagonal
)

// SplitMode names a way of partitioning prefilter work across splits.
// prefilter.Driver does not read it: it always splits the target database
// into disjoint id ranges.
type SplitMode int

const (
	// SplitByTarget partitions the target database into disjoint id ranges.
	SplitByTarget SplitMode = iota
	// SplitByQuery names partitioning the query database instead, keeping
	// one Index Table resident for the whole run; no driver implements it.
	SplitByQuery
)

// Options is the immutable configuration record threaded through the core.
// It is built once by the CLI driver (mmsearch/cmd) from parsed flags and a
// database's YAML sidecar, then passed by value/pointer to every phase.
type Options struct {
	// Alphabet / k-mer shape.
	AlphabetSize int
	KmerSize     int
	SeedMask     []bool // nil means contiguous k-mers

	// Scoring.
	ScoringMatrixPath string
	Sensitivity       float64
	KmerScore         int16
	ScoreMode         ScoreMode
	BiasCorrection    bool
	IncludeIdentical  bool

	// KmerDedupThreshold caps how many times the same k-mer window (by
	// window hash) may feed the scratch table within one query before
	// further occurrences are skipped; <= 0 disables dedup. Guards against
	// low-complexity runs dominating a query's hit list.
	KmerDedupThreshold int

	// Resource budget.
	Threads        int
	MaxMemoryBytes int64
	MaxScratchBytes int64

	// Prefilter.
	SplitMode       SplitMode
	MaxHitsPerQuery int
	SampleSeed      int64

	// Alignment.
	GapOpen      int16
	GapExtend    int16
	BandWidth    int
	MinScore     float64
	MinSeqID     float64
	MinCoverage  float64
	MaxEvalue    float64
	MaxAccept    int
	MaxRejected  int

	// Distributed execution, set from --rank/--world. prefilter.Driver does
	// not read these; every run covers the whole target database.
	Rank  int
	World int
}

// DefaultOptions returns sane defaults for a small test database.
func DefaultOptions() Options {
	return Options{
		AlphabetSize:    21,
		KmerSize:        6,
		Sensitivity:     5.7,
		KmerScore:       0,
		ScoreMode:       ScoreDiagonal,
		Threads:         1,
		MaxMemoryBytes:  1 << 32,
		MaxScratchBytes: 1 << 26,
		SplitMode:       SplitByTarget,
		MaxHitsPerQuery: 300,
		SampleSeed:      42,
		GapOpen:         11,
		GapExtend:       1,
		BandWidth:       32,
		MaxAccept:       300,
		MaxRejected:     2000,
		Rank:            0,
		World:           1,
	}
}
