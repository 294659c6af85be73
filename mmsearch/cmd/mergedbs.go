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
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mmsearch/core/internal/idb"
	"github.com/mmsearch/core/internal/merge"
)

var mergedbsCmd = &cobra.Command{
	Use:   "mergedbs",
	Short: "merge per-split result databases, optionally into statistics",
	Long: `mergedbs streams the union of keys across several per-split result
databases into one output database, concatenating each key's records in
split order. With --stats, it instead reduces each key's concatenated
records to a single summary line (line count, mean, or sum).`,
	Run: func(cmd *cobra.Command, args []string) {
		stopProfile := startProfileIfRequested(cmd)
		defer stopProfile()

		if len(args) < 1 {
			checkError(fmt.Errorf("mergedbs needs at least one input database (data file path)"))
		}
		outFile := getFlagString(cmd, "out-file")
		if outFile == "" {
			checkError(fmt.Errorf("flag -o/--out-file needed"))
		}
		statsName := getFlagString(cmd, "stats")

		var readers []*idb.Reader
		for _, path := range args {
			r, err := idb.Open(path, path+".idx", idb.NOSORT)
			checkError(err)
			defer r.Close()
			readers = append(readers, r)
		}

		writer, err := idb.NewWriter(outFile, outFile+".idx", 1)
		checkError(err)

		timeStart := time.Now()
		if statsName == "" {
			log.Infof("merging %d database(s) into %s", len(readers), outFile)
			keys := merge.UnionKeys(readers)
			checkError(merge.Merge(readers, writer, 0, keys))
		} else {
			if len(readers) != 1 {
				checkError(fmt.Errorf("--stats takes exactly one input database, got %d", len(readers)))
			}
			stat, err := parseStat(statsName)
			checkError(err)
			log.Infof("computing %s statistics into %s", statsName, outFile)
			var warnings int
			checkError(merge.Compute(stat, readers[0], writer, 0, func(msg string) {
				warnings++
				log.Warning(msg)
			}))
			if warnings > 0 {
				log.Warningf("%d malformed line(s) skipped", warnings)
			}
		}
		checkError(writer.Close())

		log.Infof("done: %s", outFile)
		log.Infof("elapsed time: %s", time.Since(timeStart))
	},
}

func parseStat(name string) (merge.Stat, error) {
	switch strings.ToLower(name) {
	case "linecount", "count":
		return merge.StatLineCount, nil
	case "mean":
		return merge.StatMean, nil
	case "sum":
		return merge.StatSum, nil
	default:
		return 0, fmt.Errorf("unknown --stats value %q, available: linecount/mean/sum", name)
	}
}

func init() {
	mergedbsCmd.Flags().StringP("out-file", "o", "", "output merged database")
	mergedbsCmd.Flags().String("stats", "", "reduce a single input database to summary lines instead of merging: linecount/mean/sum")
}
