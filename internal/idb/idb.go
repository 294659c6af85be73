// Package idb implements the indexed database: an immutable (data, index)
// file pair with memory-mapped zero-copy reads and append-only,
// multi-shard writes.
//
// The data file is a concatenation of records each terminated by a single
// NUL byte; the index file is one whitespace-separated "key offset length"
// line per record, sorted by key.
package idb

import (
	"bufio"
	"fmt"
	"os"
	"sort"

	"github.com/pkg/errors"
	"github.com/twotwotwo/sorts/sortutil"
)

// OpenMode controls how Reader.Open orders its in-memory ordinal table.
type OpenMode int

const (
	// NOSORT preserves on-disk order: ordinal i is the i-th index line.
	NOSORT OpenMode = iota
	// LinearAccess reorders the ordinal table so that ordinal order
	// matches monotonically increasing data-file offsets, for streaming.
	LinearAccess
	// SortByLength reorders the ordinal table by descending payload
	// length, for load-balanced splitting across workers.
	SortByLength
	// UseIndex loads only the index file, never mmaps the data file.
	UseIndex
)

// Record is one (key, offset, length) triple from the index file.
type Record struct {
	Key    uint32
	Offset int64
	Length int64
}

// ErrKeyNotFound is returned by Reader.Data when a key has no record.
var ErrKeyNotFound = errors.New("idb: key not found")

// ErrMalformedIndex is returned when an index line cannot be parsed.
var ErrMalformedIndex = errors.New("idb: malformed index line")

func readIndexFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "idb: open index %s", path)
	}
	defer f.Close()

	var records []Record
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var key uint32
		var offset, length int64
		if _, err := fmt.Sscanf(string(line), "%d %d %d", &key, &offset, &length); err != nil {
			return nil, errors.Wrapf(ErrMalformedIndex, "%s:%d", path, lineNo)
		}
		records = append(records, Record{Key: key, Offset: offset, Length: length})
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrapf(err, "idb: scan index %s", path)
	}
	return records, nil
}

// validate checks that keys are unique and every offset+length falls within
// the data file.
func validate(records []Record, dataSize int64) error {
	seen := make(map[uint32]struct{}, len(records))
	byOffset := make([]Record, len(records))
	copy(byOffset, records)
	sort.Slice(byOffset, func(i, j int) bool { return byOffset[i].Offset < byOffset[j].Offset })

	var lastOffset int64 = -1
	for _, r := range byOffset {
		if _, dup := seen[r.Key]; dup {
			return errors.Wrapf(fmt.Errorf("duplicate key %d", r.Key), "idb: validate")
		}
		seen[r.Key] = struct{}{}
		if r.Offset < lastOffset {
			return errors.New("idb: offsets not monotonic")
		}
		lastOffset = r.Offset
		if r.Offset < 0 || r.Offset+r.Length > dataSize {
			return errors.Wrapf(fmt.Errorf("record for key %d out of bounds", r.Key), "idb: validate")
		}
	}
	return nil
}

func sortRecordsByKey(records []Record) {
	sortutil.Sort(byKey(records))
}

type byKey []Record

func (b byKey) Len() int           { return len(b) }
func (b byKey) Less(i, j int) bool { return b[i].Key < b[j].Key }
func (b byKey) Swap(i, j int)      { b[i], b[j] = b[j], b[i] }
func (b byKey) Key(i int) uint64   { return uint64(b[i].Key) }
