// Package prefilter implements the Prefilter Driver: it partitions the
// target database into memory-bounded splits, builds an Index
// Table per split, and dispatches a pool of matcher.Matcher worker threads
// over the query set.
package prefilter

import "sort"

// RankRange partitions lens — one residue-length entry per split unit, in
// on-disk order — into world contiguous, disjoint ranges whose residue-count
// sums are as close to equal as a prefix-sum cut allows, and returns the
// [from, to) range owned by rank.
//
// Driver.Run uses it to split the target database across memory-bounded
// prefilter splits (rank is the split index, world the split count). It is
// kept as a pure function of (lens, rank, world) so tests never need an
// actual distributed runtime.
func RankRange(lens []int, rank, world int) (from, to int) {
	n := len(lens)
	if world <= 1 {
		if rank == 0 {
			return 0, n
		}
		return n, n
	}
	if rank < 0 || rank >= world {
		return n, n
	}

	prefix := make([]int64, n+1)
	for i, v := range lens {
		prefix[i+1] = prefix[i] + int64(v)
	}
	total := prefix[n]

	if total == 0 {
		// No residues to balance on (e.g. an all-empty split unit list):
		// fall back to splitting evenly by count.
		chunk := (n + world - 1) / world
		from = rank * chunk
		to = from + chunk
		if from > n {
			from = n
		}
		if to > n {
			to = n
		}
		return from, to
	}

	boundary := func(r int) int {
		target := total * int64(r) / int64(world)
		return sort.Search(n+1, func(i int) bool { return prefix[i] >= target })
	}

	from = boundary(rank)
	if rank == world-1 {
		to = n
	} else {
		to = boundary(rank + 1)
	}
	if to < from {
		to = from
	}
	return from, to
}
