package idb

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/cespare/xxhash"
	farm "github.com/dgryski/go-farm"
	"github.com/pkg/errors"
)

type shard struct {
	dataFile *os.File
	dataW    *bufio.Writer
	idxFile  *os.File
	idxW     *bufio.Writer
	offset   int64
}

// Writer appends (key, bytes) pairs across W disjoint, single-producer
// shards and concatenates them into a final (data, index) pair on Close.
//
// Each shard is backed by its own temp file and buffer, so concurrent
// writer threads never share an output stream. They do share the checksum
// map, which every Write updates under a single mutex.
type Writer struct {
	dataPath string
	idxPath  string
	shards   []*shard

	mu        sync.Mutex
	checksums map[uint32][2]uint64 // key -> (xxhash64, farm64), for post-concat corruption checks
}

// NewWriter creates a Writer with numShards independent shards, indexed
// [0, numShards).
func NewWriter(dataPath, idxPath string, numShards int) (*Writer, error) {
	if numShards < 1 {
		return nil, errors.New("idb: NewWriter requires numShards >= 1")
	}
	w := &Writer{
		dataPath:  dataPath,
		idxPath:   idxPath,
		shards:    make([]*shard, numShards),
		checksums: make(map[uint32][2]uint64),
	}
	for i := 0; i < numShards; i++ {
		df, err := os.CreateTemp("", "idb-shard-data-*")
		if err != nil {
			return nil, errors.Wrap(err, "idb: create data shard")
		}
		xf, err := os.CreateTemp("", "idb-shard-idx-*")
		if err != nil {
			return nil, errors.Wrap(err, "idb: create index shard")
		}
		w.shards[i] = &shard{
			dataFile: df,
			dataW:    bufio.NewWriter(df),
			idxFile:  xf,
			idxW:     bufio.NewWriter(xf),
		}
	}
	return w, nil
}

// Write appends bytes under key to shard thread. thread must be in
// [0, numShards).
func (w *Writer) Write(thread int, key uint32, data []byte) error {
	if thread < 0 || thread >= len(w.shards) {
		return errors.Errorf("idb: thread %d out of range [0,%d)", thread, len(w.shards))
	}
	s := w.shards[thread]

	n, err := s.dataW.Write(data)
	if err != nil || n != len(data) {
		return errors.Wrap(err, "idb: short write, disk full?")
	}
	if err := s.dataW.WriteByte(0); err != nil {
		return errors.Wrap(err, "idb: write sentinel")
	}

	// Two independent hashes recorded for corruption detection after
	// shard concatenation; neither is trusted alone as collision-proof
	// for a content-addressed store.
	w.mu.Lock()
	w.checksums[key] = [2]uint64{xxhash.Sum64(data), farm.Hash64(data)}
	w.mu.Unlock()

	if _, err := fmt.Fprintf(s.idxW, "%d %d %d\n", key, s.offset, len(data)); err != nil {
		return errors.Wrap(err, "idb: write index shard")
	}

	s.offset += int64(len(data)) + 1
	return nil
}

// Close concatenates shards in thread order, rewrites offsets to the
// global data file, and writes the index file sorted by key.
func (w *Writer) Close() error {
	for _, s := range w.shards {
		if err := s.dataW.Flush(); err != nil {
			return errors.Wrap(err, "idb: flush shard data")
		}
		if err := s.idxW.Flush(); err != nil {
			return errors.Wrap(err, "idb: flush shard index")
		}
	}

	outData, err := os.Create(w.dataPath)
	if err != nil {
		return errors.Wrap(err, "idb: create output data")
	}
	defer outData.Close()
	bw := bufio.NewWriter(outData)

	var records []Record
	var base int64
	for _, s := range w.shards {
		shardRecords, err := readIndexFile(s.idxFile.Name())
		if err != nil {
			return err
		}
		for _, rec := range shardRecords {
			records = append(records, Record{Key: rec.Key, Offset: rec.Offset + base, Length: rec.Length})
		}

		if _, err := s.dataFile.Seek(0, io.SeekStart); err != nil {
			return errors.Wrap(err, "idb: seek shard data")
		}
		n, err := io.Copy(bw, s.dataFile)
		if err != nil {
			return errors.Wrap(err, "idb: concatenate shard data")
		}
		base += n

		s.dataFile.Close()
		s.idxFile.Close()
		os.Remove(s.dataFile.Name())
		os.Remove(s.idxFile.Name())
	}
	if err := bw.Flush(); err != nil {
		return errors.Wrap(err, "idb: flush output data")
	}

	if err := w.verifyChecksums(records); err != nil {
		return err
	}

	sortRecordsByKey(records)

	outIdx, err := os.Create(w.idxPath)
	if err != nil {
		return errors.Wrap(err, "idb: create output index")
	}
	defer outIdx.Close()
	biw := bufio.NewWriter(outIdx)
	for _, rec := range records {
		if _, err := fmt.Fprintf(biw, "%d %d %d\n", rec.Key, rec.Offset, rec.Length); err != nil {
			return errors.Wrap(err, "idb: write final index")
		}
	}
	return biw.Flush()
}

// verifyChecksums re-reads every record from the freshly concatenated data
// file and compares its two hashes against what was recorded at Write time,
// catching truncation or misalignment introduced by shard concatenation.
func (w *Writer) verifyChecksums(records []Record) error {
	f, err := os.Open(w.dataPath)
	if err != nil {
		return errors.Wrap(err, "idb: reopen data for verification")
	}
	defer f.Close()

	buf := make([]byte, 0, 4096)
	for _, rec := range records {
		want, ok := w.checksums[rec.Key]
		if !ok {
			continue // only present for keys written through this Writer
		}
		if int64(cap(buf)) < rec.Length {
			buf = make([]byte, rec.Length)
		}
		buf = buf[:rec.Length]
		if _, err := f.ReadAt(buf, rec.Offset); err != nil {
			return errors.Wrapf(err, "idb: read back key %d for verification", rec.Key)
		}
		if xxhash.Sum64(buf) != want[0] || farm.Hash64(buf) != want[1] {
			return errors.Errorf("idb: checksum mismatch for key %d after shard concatenation", rec.Key)
		}
	}
	return nil
}
