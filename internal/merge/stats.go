package merge

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/mmsearch/core/internal/idb"
)

// Stat selects which summary result2stats.cpp-equivalent computes over a
// result database's records.
type Stat int

const (
	StatLineCount Stat = iota
	StatMean
	StatSum
)

// Compute writes one summary line per key in reader into writer, using
// thread as writer's shard index. warn, if non-nil, is called once per
// malformed numeric line encountered.
func Compute(stat Stat, reader *idb.Reader, writer *idb.Writer, thread int, warn func(string)) error {
	for i := 0; i < reader.Size(); i++ {
		rec, ok := reader.RecordAt(i)
		if !ok {
			continue
		}
		data, err := reader.DataAt(i)
		if err != nil {
			return err
		}

		var line string
		switch stat {
		case StatLineCount:
			line = strconv.Itoa(bytes.Count(data, []byte{'\n'}))
		case StatMean:
			sum, n := sumLines(data, warn, rec.Key)
			if n == 0 {
				line = "0"
			} else {
				line = strconv.FormatFloat(sum/float64(n), 'g', -1, 64)
			}
		case StatSum:
			sum, _ := sumLines(data, warn, rec.Key)
			line = strconv.FormatFloat(sum, 'g', -1, 64)
		}

		if err := writer.Write(thread, rec.Key, []byte(line+"\n")); err != nil {
			return err
		}
	}
	return nil
}

// sumLines walks data line by line, parsing each as a float64 and
// accumulating it into sum, returning the count of successfully parsed
// lines alongside it so callers can compute either a sum or a mean.
//
// The original result2stats.cpp meanValue()/sumValue() `continue` on a
// malformed line without ever advancing its read cursor, looping forever on
// the same bytes; here the cursor (pos) always moves past the current line
// before the parse-failure check runs, so a malformed line is skipped
// exactly once.
func sumLines(data []byte, warn func(string), key uint32) (sum float64, n int) {
	pos := 0
	for pos < len(data) {
		nl := bytes.IndexByte(data[pos:], '\n')
		var line []byte
		if nl < 0 {
			line = data[pos:]
			pos = len(data)
		} else {
			line = data[pos : pos+nl]
			pos += nl + 1
		}

		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}

		v, err := strconv.ParseFloat(string(line), 64)
		if err != nil {
			if warn != nil {
				warn(fmt.Sprintf("merge: invalid numeric value for key %d: %q", key, line))
			}
			continue
		}

		sum += v
		n++
	}
	return sum, n
}
