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
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/vbauerster/mpb/v5"

	"github.com/mmsearch/core/internal/calibrate"
	"github.com/mmsearch/core/internal/config"
	"github.com/mmsearch/core/internal/matcher"
	"github.com/mmsearch/core/internal/prefilter"
	"github.com/mmsearch/core/internal/seqcodec"
	"github.com/mmsearch/core/internal/submat"
)

var prefilterCmd = &cobra.Command{
	Use:   "prefilter",
	Short: "find candidate target hits per query via k-mer matching",
	Long: `prefilter scores every query against every target database split's
Index Table and writes one result record per query (the surviving target
keys, scores, and diagonals) into an intermediate database that the align
subcommand then extends into full alignments.`,
	Run: func(cmd *cobra.Command, args []string) {
		stopProfile := startProfileIfRequested(cmd)
		defer stopProfile()

		targetDir := getFlagString(cmd, "target-db")
		queryDir := getFlagString(cmd, "query-db")
		outFile := getFlagString(cmd, "out-file")
		if targetDir == "" {
			checkError(fmt.Errorf("flag --target-db needed"))
		}
		if queryDir == "" {
			queryDir = targetDir // all-vs-all over one database
		}
		if outFile == "" {
			checkError(fmt.Errorf("flag -o/--out-file needed"))
		}
		topN := getFlagPositiveInt(cmd, "extended-top-n")

		opt := getOptions(cmd)

		log.Infof("loading target database: %s", targetDir)
		targets, err := openDB(targetDir)
		checkError(err)
		defer targets.Close()
		opt.KmerSize = targets.meta.KmerSize
		opt.AlphabetSize = targets.meta.AlphabetSize

		var queries *loadedDB
		selfSearch := queryDir == targetDir
		if selfSearch {
			queries = targets
		} else {
			log.Infof("loading query database: %s", queryDir)
			queries, err = openDB(queryDir)
			checkError(err)
			defer queries.Close()
		}

		alphabet := seqcodec.NewProteinAlphabet()
		matrixPath := targets.meta.ScoringMatrixPath
		log.Infof("loading scoring matrix: %s", matrixPath)
		matrix, byOrder, err := loadScoringMatrix(matrixPath, alphabet, opt.KmerSize, topN)
		checkError(err)
		if len(matrix.Background) == 0 {
			matrix.Background = backgroundFrequencies(targets.seqs, opt.AlphabetSize)
		}

		kmerThreshold := opt.KmerScore
		if kmerThreshold == 0 {
			log.Infof("calibrating k-mer threshold for sensitivity %.2f ...", opt.Sensitivity)
			kmerThreshold = calibrateKmerThreshold(opt, targets.seqs, queries.seqs, byOrder, matrix.Background)
		}
		log.Infof("k-mer threshold: %d", kmerThreshold)

		var progress *mpb.Progress
		if !getFlagBool(cmd, "no-progress") {
			progress = mpb.New(mpb.WithOutput(os.Stderr))
		}

		driver := &prefilter.Driver{
			Opt:           opt,
			Targets:       targets.seqs,
			TargetKeys:    targets.keys,
			Queries:       queries.seqs,
			QueryKeys:     queries.keys,
			ByOrder:       byOrder,
			Background:    matrix.Background,
			KmerThreshold: kmerThreshold,
			SelfSearch:    selfSearch,
			Progress:      progress,
		}

		timeStart := time.Now()
		checkError(driver.Run(outFile, outFile+".idx"))
		log.Infof("prefilter done: %s", outFile)
		log.Infof("elapsed time: %s", time.Since(timeStart))
	},
}

// calibrateKmerThreshold searches a short list of candidate thresholds for
// the one whose mean hits-per-query falls in a sensitivity-derived band,
// sampling against a small reversed index the way internal/calibrate's
// SampleFn hook is designed to be driven.
func calibrateKmerThreshold(opt config.Options, targets, queries [][]int8, byOrder map[int]*submat.Extended, background []float64) int16 {
	reversed := calibrate.ReversedIndex(targets, opt.KmerSize, opt.AlphabetSize, seqcodec.SpacedMask(opt.SeedMask))

	candidates := make([]int16, 0, 9)
	for t := int16(40); t >= 0; t -= 5 {
		candidates = append(candidates, t)
	}

	sample := func(queryEnc []int8, threshold int16) int {
		scratch := matcher.NewScratchTable(opt.ScoreMode, len(targets))
		m := matcher.NewMatcher(opt, scratch, reversed, byOrder, identityKeys(len(targets)), background)
		return len(m.Match(queryEnc, threshold, false, 0))
	}

	target := calibrate.Target{Min: opt.Sensitivity * 0.5, Max: opt.Sensitivity * 2}
	result := calibrate.Calibrate(queries, candidates, sample, target, opt.SampleSeed, 50)
	log.Infof("  sampled mean hits/query: %.2f", result.HitsPerQuery)
	return result.Threshold
}

func identityKeys(n int) []uint32 {
	keys := make([]uint32, n)
	for i := range keys {
		keys[i] = uint32(i)
	}
	return keys
}

func init() {
	prefilterCmd.Flags().String("target-db", "", "target database directory (from createdb)")
	prefilterCmd.Flags().String("query-db", "", "query database directory, defaults to --target-db for all-vs-all")
	prefilterCmd.Flags().StringP("out-file", "o", "", "output prefilter result database")
	prefilterCmd.Flags().Int("extended-top-n", 400, "neighbors kept per entry in the extended similarity tables")
	prefilterCmd.Flags().Bool("no-progress", false, "disable progress bars")
	addCommonOptionFlags(prefilterCmd)
}
