package idb

import (
	"os"
	"sort"

	"github.com/edsrzf/mmap-go"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Reader is a read-only, concurrency-safe view over an indexed database.
// It is safe to share a *Reader across any number of goroutines once Open
// has returned.
type Reader struct {
	mode OpenMode

	data mmap.MMap // nil when opened with UseIndex
	path string

	byKey   map[uint32]Record
	ordinal []Record // ordinal lookup order, shaped by mode
}

// Open memory-maps dataPath (unless mode is UseIndex) and loads idxPath,
// arranging the ordinal table according to mode.
func Open(dataPath, idxPath string, mode OpenMode) (*Reader, error) {
	records, err := readIndexFile(idxPath)
	if err != nil {
		return nil, err
	}

	r := &Reader{mode: mode, path: dataPath}
	r.byKey = make(map[uint32]Record, len(records))
	for _, rec := range records {
		r.byKey[rec.Key] = rec
	}

	if mode != UseIndex {
		f, err := os.Open(dataPath)
		if err != nil {
			return nil, errors.Wrapf(err, "idb: open data %s", dataPath)
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil {
			return nil, errors.Wrapf(err, "idb: stat %s", dataPath)
		}
		if err := validate(records, info.Size()); err != nil {
			return nil, err
		}

		m, err := mmap.Map(f, mmap.RDONLY, 0)
		if err != nil {
			return nil, errors.Wrapf(err, "idb: mmap %s", dataPath)
		}
		r.data = m

		advice := unix.MADV_RANDOM
		if mode == LinearAccess {
			advice = unix.MADV_SEQUENTIAL
		}
		// Best effort: a failed madvise never affects correctness.
		_ = unix.Madvise(m, advice)
	}

	r.ordinal = make([]Record, len(records))
	copy(r.ordinal, records)
	switch mode {
	case NOSORT, UseIndex:
		// preserve on-disk (index-file) order
	case LinearAccess:
		sort.Slice(r.ordinal, func(i, j int) bool { return r.ordinal[i].Offset < r.ordinal[j].Offset })
	case SortByLength:
		sort.Slice(r.ordinal, func(i, j int) bool { return r.ordinal[i].Length > r.ordinal[j].Length })
	}

	return r, nil
}

// Close unmaps the data file.
func (r *Reader) Close() error {
	if r.data != nil {
		return r.data.Unmap()
	}
	return nil
}

// Size returns the number of records.
func (r *Reader) Size() int { return len(r.ordinal) }

// Keys returns every key present, in ordinal order.
func (r *Reader) Keys() []uint32 {
	keys := make([]uint32, len(r.ordinal))
	for i, rec := range r.ordinal {
		keys[i] = rec.Key
	}
	return keys
}

// RecordAt returns the (key, offset, length) triple at ordinal position i.
func (r *Reader) RecordAt(i int) (Record, bool) {
	if i < 0 || i >= len(r.ordinal) {
		return Record{}, false
	}
	return r.ordinal[i], true
}

// Data returns the bytes for key, excluding the trailing NUL terminator.
// The returned slice aliases the mmap'd region and must not outlive the
// Reader.
func (r *Reader) Data(key uint32) ([]byte, error) {
	rec, ok := r.byKey[key]
	if !ok {
		return nil, errors.Wrapf(ErrKeyNotFound, "key %d", key)
	}
	if r.data == nil {
		return nil, errors.New("idb: reader opened with UseIndex, data unavailable")
	}
	return r.data[rec.Offset : rec.Offset+rec.Length], nil
}

// DataAt returns the bytes for the record at ordinal position i.
func (r *Reader) DataAt(i int) ([]byte, error) {
	rec, ok := r.RecordAt(i)
	if !ok {
		return nil, errors.Errorf("idb: ordinal %d out of range", i)
	}
	if r.data == nil {
		return nil, errors.New("idb: reader opened with UseIndex, data unavailable")
	}
	return r.data[rec.Offset : rec.Offset+rec.Length], nil
}

// Has reports whether key has a record.
func (r *Reader) Has(key uint32) bool {
	_, ok := r.byKey[key]
	return ok
}
