package merge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmsearch/core/internal/idb"
)

func writeDB(t *testing.T, dir, name string, records map[uint32]string) (dataPath, idxPath string) {
	t.Helper()
	dataPath = dir + "/" + name + ".db"
	idxPath = dir + "/" + name + ".idx"
	w, err := idb.NewWriter(dataPath, idxPath, 1)
	require.NoError(t, err)
	for k, v := range records {
		require.NoError(t, w.Write(0, k, []byte(v)))
	}
	require.NoError(t, w.Close())
	return dataPath, idxPath
}

func TestMergeConcatenatesInSplitOrder(t *testing.T) {
	dir := t.TempDir()
	d1, i1 := writeDB(t, dir, "split1", map[uint32]string{1: "a\n", 2: "x\n"})
	d2, i2 := writeDB(t, dir, "split2", map[uint32]string{1: "b\n"})

	r1, err := idb.Open(d1, i1, idb.NOSORT)
	require.NoError(t, err)
	defer r1.Close()
	r2, err := idb.Open(d2, i2, idb.NOSORT)
	require.NoError(t, err)
	defer r2.Close()

	readers := []*idb.Reader{r1, r2}
	keys := UnionKeys(readers)
	assert.Equal(t, []uint32{1, 2}, keys)

	outData := dir + "/out.db"
	outIdx := dir + "/out.idx"
	w, err := idb.NewWriter(outData, outIdx, 1)
	require.NoError(t, err)
	require.NoError(t, Merge(readers, w, 0, keys))
	require.NoError(t, w.Close())

	out, err := idb.Open(outData, outIdx, idb.NOSORT)
	require.NoError(t, err)
	defer out.Close()

	data1, err := out.Data(1)
	require.NoError(t, err)
	assert.Equal(t, "a\nb\n", string(data1))

	data2, err := out.Data(2)
	require.NoError(t, err)
	assert.Equal(t, "x\n", string(data2))
}

func TestMergeSingleInputIsByteEqual(t *testing.T) {
	dir := t.TempDir()
	d1, i1 := writeDB(t, dir, "only", map[uint32]string{1: "hello\n", 7: "world\n"})

	r1, err := idb.Open(d1, i1, idb.NOSORT)
	require.NoError(t, err)
	defer r1.Close()

	readers := []*idb.Reader{r1}
	keys := UnionKeys(readers)

	outData := dir + "/out.db"
	outIdx := dir + "/out.idx"
	w, err := idb.NewWriter(outData, outIdx, 1)
	require.NoError(t, err)
	require.NoError(t, Merge(readers, w, 0, keys))
	require.NoError(t, w.Close())

	out, err := idb.Open(outData, outIdx, idb.NOSORT)
	require.NoError(t, err)
	defer out.Close()

	for _, k := range keys {
		want, err := r1.Data(k)
		require.NoError(t, err)
		got, err := out.Data(k)
		require.NoError(t, err)
		assert.Equal(t, string(want), string(got))
	}
}

func TestComputeMeanSkipsMalformedLinesWithoutHanging(t *testing.T) {
	dir := t.TempDir()
	d1, i1 := writeDB(t, dir, "in", map[uint32]string{
		1: "1.0\nbogus\n3.0\n",
	})
	r1, err := idb.Open(d1, i1, idb.NOSORT)
	require.NoError(t, err)
	defer r1.Close()

	outData := dir + "/stats.db"
	outIdx := dir + "/stats.idx"
	w, err := idb.NewWriter(outData, outIdx, 1)
	require.NoError(t, err)

	var warnings []string
	done := make(chan error, 1)
	go func() {
		done <- Compute(StatMean, r1, w, 0, func(msg string) { warnings = append(warnings, msg) })
	}()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Compute(StatMean) hung on a malformed line, the meanValue() bug this fixes")
	}
	require.NoError(t, w.Close())

	assert.Len(t, warnings, 1)

	out, err := idb.Open(outData, outIdx, idb.NOSORT)
	require.NoError(t, err)
	defer out.Close()

	data, err := out.Data(1)
	require.NoError(t, err)
	assert.Equal(t, "2\n", string(data)) // (1.0+3.0)/2, bogus skipped
}

func TestComputeLineCount(t *testing.T) {
	dir := t.TempDir()
	d1, i1 := writeDB(t, dir, "in", map[uint32]string{1: "a\nb\nc\n"})
	r1, err := idb.Open(d1, i1, idb.NOSORT)
	require.NoError(t, err)
	defer r1.Close()

	outData := dir + "/stats.db"
	outIdx := dir + "/stats.idx"
	w, err := idb.NewWriter(outData, outIdx, 1)
	require.NoError(t, err)
	require.NoError(t, Compute(StatLineCount, r1, w, 0, nil))
	require.NoError(t, w.Close())

	out, err := idb.Open(outData, outIdx, idb.NOSORT)
	require.NoError(t, err)
	defer out.Close()

	data, err := out.Data(1)
	require.NoError(t, err)
	assert.Equal(t, "3\n", string(data))
}
