package prefilter

import (
	"bytes"
	"io"
	"io/ioutil"
	"os"

	"github.com/golang/snappy"
	"github.com/pkg/errors"
)

// spillThreshold is the in-memory size, per worker thread, above which an
// encoded hit batch is pushed out to a snappy-compressed temp file instead
// of growing the thread's resident buffer. A pathologically promiscuous
// query (most targets pass the k-mer filter) is the only realistic way to
// hit this on a well-calibrated threshold.
const spillThreshold = 1 << 20

// spillBuffer accumulates one worker thread's encoded hit batches, spilling
// to disk once its resident size would exceed spillThreshold. Bytes always
// returns the full, uncompressed concatenation regardless of whether any
// spilling happened, so callers never need to know which path was taken.
type spillBuffer struct {
	mem     bytes.Buffer
	spilled bool
	file    *os.File
	sw      *snappy.Writer
}

func newSpillBuffer() *spillBuffer {
	return &spillBuffer{}
}

// Write appends chunk, transparently spilling to a snappy-compressed temp
// file if the buffer has grown past spillThreshold.
func (s *spillBuffer) Write(chunk []byte) error {
	if !s.spilled && s.mem.Len()+len(chunk) > spillThreshold {
		if err := s.beginSpill(); err != nil {
			return err
		}
	}
	if s.spilled {
		if _, err := s.sw.Write(chunk); err != nil {
			return errors.Wrap(err, "prefilter: write spill chunk")
		}
		return nil
	}
	s.mem.Write(chunk)
	return nil
}

func (s *spillBuffer) beginSpill() error {
	f, err := ioutil.TempFile("", "prefilter-spill-*")
	if err != nil {
		return errors.Wrap(err, "prefilter: create spill file")
	}
	s.file = f
	s.sw = snappy.NewBufferedWriter(f)
	if s.mem.Len() > 0 {
		if _, err := s.sw.Write(s.mem.Bytes()); err != nil {
			return errors.Wrap(err, "prefilter: flush resident buffer to spill")
		}
		s.mem.Reset()
	}
	s.spilled = true
	return nil
}

// Bytes returns the full accumulated content and releases any spill file.
func (s *spillBuffer) Bytes() ([]byte, error) {
	if !s.spilled {
		return s.mem.Bytes(), nil
	}
	if err := s.sw.Close(); err != nil {
		return nil, errors.Wrap(err, "prefilter: close spill writer")
	}
	if _, err := s.file.Seek(0, io.SeekStart); err != nil {
		return nil, errors.Wrap(err, "prefilter: rewind spill file")
	}
	defer func() {
		s.file.Close()
		os.Remove(s.file.Name())
	}()
	out, err := ioutil.ReadAll(snappy.NewReader(s.file))
	if err != nil {
		return nil, errors.Wrap(err, "prefilter: read back spill file")
	}
	return out, nil
}

// Reset clears the buffer for reuse by the next query, closing and removing
// any spill file from the previous one.
func (s *spillBuffer) Reset() {
	if s.spilled {
		s.sw.Close()
		s.file.Close()
		os.Remove(s.file.Name())
	}
	s.mem.Reset()
	s.spilled = false
	s.file = nil
	s.sw = nil
}
