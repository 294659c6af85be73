// Package merge implements the Result Merger: it streams the union of keys
// across N per-split result databases into one output database,
// concatenating each key's per-split records in split order, and a
// result2stats-style per-query summary statistics reduction.
package merge

import (
	"github.com/twotwotwo/sorts/sortutil"

	"github.com/mmsearch/core/internal/idb"
)

// Merge streams every key present in any of readers, in ascending key
// order, into writer: each key's record is the byte-for-byte concatenation
// of that key's record across readers, in the order readers are given,
// skipping any reader that has no record for that key.
//
// thread selects which of writer's shards to append to; callers merging
// with more than one worker should give each worker a disjoint key range
// and its own thread index.
func Merge(readers []*idb.Reader, writer *idb.Writer, thread int, keys []uint32) error {
	for _, key := range keys {
		var data []byte
		for _, r := range readers {
			if !r.Has(key) {
				continue
			}
			part, err := r.Data(key)
			if err != nil {
				return err
			}
			data = append(data, part...)
		}
		if err := writer.Write(thread, key, data); err != nil {
			return err
		}
	}
	return nil
}

// UnionKeys returns every key present in any of readers, sorted ascending.
func UnionKeys(readers []*idb.Reader) []uint32 {
	seen := make(map[uint32]struct{})
	for _, r := range readers {
		for _, k := range r.Keys() {
			seen[k] = struct{}{}
		}
	}
	keys := make(uint32Slice, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sortutil.Sort(keys)
	return keys
}

type uint32Slice []uint32

func (s uint32Slice) Len() int           { return len(s) }
func (s uint32Slice) Less(i, j int) bool { return s[i] < s[j] }
func (s uint32Slice) Swap(i, j int)      { s[i], s[j] = s[j], s[i] }
func (s uint32Slice) Key(i int) uint64   { return uint64(s[i]) }
