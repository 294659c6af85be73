// Copyright © 2020-2021 Wei Shen <shenwei356@gmail.com>
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

package cmd

import (
	"bytes"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/mmsearch/core/internal/align"
	"github.com/mmsearch/core/internal/idb"
	"github.com/mmsearch/core/internal/prefilter"
	"github.com/mmsearch/core/internal/seqcodec"
)

// encodeAlignments serializes one query's accepted results into the
// alignment record text format: zero or more
// "target-key\tbit-score\tseq-id\te-value\tq-start\tq-end\tt-start\tt-end\t
// alignment-length\tbacktrace\n" lines, in the order Walk returned them.
func encodeAlignments(results []align.Result) []byte {
	var buf bytes.Buffer
	for _, r := range results {
		buf.WriteString(strconv.FormatUint(uint64(r.TargetKey), 10))
		buf.WriteByte('\t')
		buf.WriteString(strconv.FormatFloat(r.BitScore, 'f', 2, 64))
		buf.WriteByte('\t')
		buf.WriteString(strconv.FormatFloat(r.Identity, 'f', 3, 64))
		buf.WriteByte('\t')
		buf.WriteString(strconv.FormatFloat(r.Evalue, 'g', 3, 64))
		buf.WriteByte('\t')
		buf.WriteString(strconv.Itoa(r.QueryStart))
		buf.WriteByte('\t')
		buf.WriteString(strconv.Itoa(r.QueryEnd))
		buf.WriteByte('\t')
		buf.WriteString(strconv.Itoa(r.TargetStart))
		buf.WriteByte('\t')
		buf.WriteString(strconv.Itoa(r.TargetEnd))
		buf.WriteByte('\t')
		buf.WriteString(strconv.Itoa(align.AlignmentLength(r.Backtrace)))
		buf.WriteByte('\t')
		buf.WriteString(r.Backtrace)
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

var alignCmd = &cobra.Command{
	Use:   "align",
	Short: "extend prefilter hits into banded Smith-Waterman alignments",
	Long: `align reads a prefilter result database, walks each query's hits in
rank order, and extends the surviving ones into banded affine-gap local
alignments, applying the accept/reject cap and score/identity/coverage/
e-value thresholds before writing an indexed alignment record database
(data + .idx, one entry per query key) that mergedbs can combine like any
other subcommand's output.`,
	Run: func(cmd *cobra.Command, args []string) {
		stopProfile := startProfileIfRequested(cmd)
		defer stopProfile()

		targetDir := getFlagString(cmd, "target-db")
		queryDir := getFlagString(cmd, "query-db")
		prefilterFile := getFlagString(cmd, "prefilter-result")
		outFile := getFlagString(cmd, "out-file")
		if targetDir == "" {
			checkError(fmt.Errorf("flag --target-db needed"))
		}
		if prefilterFile == "" {
			checkError(fmt.Errorf("flag --prefilter-result needed"))
		}
		if outFile == "" {
			checkError(fmt.Errorf("flag -o/--out-file needed"))
		}

		opt := getOptions(cmd)

		log.Infof("loading target database: %s", targetDir)
		targets, err := openDB(targetDir)
		checkError(err)
		defer targets.Close()
		opt.KmerSize = targets.meta.KmerSize
		opt.AlphabetSize = targets.meta.AlphabetSize

		var queries *loadedDB
		if queryDir == "" || queryDir == targetDir {
			queries = targets
		} else {
			log.Infof("loading query database: %s", queryDir)
			queries, err = openDB(queryDir)
			checkError(err)
			defer queries.Close()
		}
		queryByKey := make(map[uint32][]int8, len(queries.keys))
		for i, k := range queries.keys {
			queryByKey[k] = queries.seqs[i]
		}

		alphabet := seqcodec.NewProteinAlphabet()
		matrixPath := targets.meta.ScoringMatrixPath
		matrix, err := parseScoringMatrix(matrixPath, alphabet)
		checkError(err)
		if len(matrix.Background) == 0 {
			matrix.Background = backgroundFrequencies(targets.seqs, opt.AlphabetSize)
		}
		stats := align.EstimateStatistics(matrix)
		log.Infof("Karlin-Altschul lambda=%.4f K=%.4f", stats.Lambda, stats.K)

		targetByKey := make(map[uint32][]int8, len(targets.keys))
		for i, k := range targets.keys {
			targetByKey[k] = targets.seqs[i]
		}
		lookup := align.TargetLookup(func(key uint32) []int8 { return targetByKey[key] })

		reader, err := idb.Open(prefilterFile, prefilterFile+".idx", idb.LinearAccess)
		checkError(err)
		defer reader.Close()

		aligner := align.NewAligner(matrix, int(opt.GapOpen), int(opt.GapExtend), opt.BandWidth)

		threads := opt.Threads
		if threads < 1 {
			threads = 1
		}
		writer, err := idb.NewWriter(outFile, outFile+".idx", threads)
		checkError(err)

		var wg sync.WaitGroup
		errs := make([]error, threads)
		timeStart := time.Now()
		for t := 0; t < threads; t++ {
			wg.Add(1)
			go func(thread int) {
				defer wg.Done()
				for i := thread; i < reader.Size(); i += threads {
					rec, ok := reader.RecordAt(i)
					if !ok {
						continue
					}
					data, err := reader.DataAt(i)
					if err != nil {
						errs[thread] = err
						return
					}
					query, ok := queryByKey[rec.Key]
					if !ok {
						continue
					}
					hits := prefilter.DecodeHitStream(data)
					results := aligner.Walk(query, hits, lookup, stats, opt)
					if len(results) == 0 {
						continue
					}

					if err := writer.Write(thread, rec.Key, encodeAlignments(results)); err != nil {
						errs[thread] = err
						return
					}
				}
			}(t)
		}
		wg.Wait()

		for _, err := range errs {
			checkError(errors.Wrap(err, "align"))
		}
		checkError(writer.Close())

		log.Infof("alignment done: %s", outFile)
		log.Infof("elapsed time: %s", time.Since(timeStart))
	},
}

func init() {
	alignCmd.Flags().String("target-db", "", "target database directory (from createdb)")
	alignCmd.Flags().String("query-db", "", "query database directory, defaults to --target-db")
	alignCmd.Flags().String("prefilter-result", "", "prefilter result database produced by the prefilter subcommand")
	alignCmd.Flags().StringP("out-file", "o", "", "output alignment database path (paired with an .idx file, like createdb/prefilter)")
	addCommonOptionFlags(alignCmd)
}
