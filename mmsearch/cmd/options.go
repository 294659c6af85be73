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
	"io/ioutil"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"

	"github.com/mmsearch/core/internal/config"
)

func addCommonOptionFlags(cmd *cobra.Command) {
	cmd.Flags().IntP("alphabet-size", "a", 21, "reduced protein alphabet size")
	cmd.Flags().IntP("kmer-size", "k", 6, "k-mer size")
	cmd.Flags().Float64P("sensitivity", "s", 5.7, "prefilter sensitivity, higher finds more distant hits")
	cmd.Flags().Int("kmer-score", 0, "minimum single k-mer score, 0 lets sensitivity pick a calibrated threshold")
	cmd.Flags().Bool("score-diagonal", true, "bucket k-mer hits by diagonal instead of plain counting")
	cmd.Flags().Bool("bias-correction", false, "apply composition bias correction to k-mer scores")
	cmd.Flags().Int("kmer-dedup-threshold", 0, "cap how many times a repeated low-complexity k-mer window may feed the scratch table per query, 0 disables")
	cmd.Flags().String("max-memory", "4G", "memory budget for a resident k-mer index split")
	cmd.Flags().Int("gap-open", 11, "gap open penalty")
	cmd.Flags().Int("gap-extend", 1, "gap extend penalty")
	cmd.Flags().Int("band-width", 32, "alignment band half-width around the prefilter diagonal")
	cmd.Flags().Float64("min-score", 0, "minimum raw alignment score to report an alignment")
	cmd.Flags().Float64("min-seqid", 0, "minimum fractional sequence identity to report an alignment")
	cmd.Flags().Float64("min-coverage", 0, "minimum query coverage to report an alignment")
	cmd.Flags().Float64("max-evalue", 0.001, "maximum e-value to report an alignment, 0 disables the filter")
	cmd.Flags().Int("max-accept", 300, "stop after accepting this many alignments for a query")
	cmd.Flags().Int("max-rejected", 2000, "stop after rejecting this many hits for a query")
	cmd.Flags().Int("max-hits-per-query", 300, "maximum prefilter hits kept per query")
	cmd.Flags().Int64("sample-seed", 42, "deterministic seed for k-mer threshold calibration sampling")
	cmd.Flags().Int("rank", 0, "this process's rank in a distributed run")
	cmd.Flags().Int("world", 1, "total number of ranks in a distributed run")
}

// getOptions builds an Options from cmd's flags; cmd must have called
// addCommonOptionFlags.
func getOptions(cmd *cobra.Command) config.Options {
	opt := config.DefaultOptions()

	opt.AlphabetSize = getFlagPositiveInt(cmd, "alphabet-size")
	opt.KmerSize = getFlagPositiveInt(cmd, "kmer-size")
	opt.Sensitivity = getFlagFloat64(cmd, "sensitivity")
	opt.KmerScore = int16(getFlagNonNegativeInt(cmd, "kmer-score"))
	if getFlagBool(cmd, "score-diagonal") {
		opt.ScoreMode = config.ScoreDiagonal
	} else {
		opt.ScoreMode = config.ScoreCount
	}
	opt.BiasCorrection = getFlagBool(cmd, "bias-correction")
	opt.KmerDedupThreshold = getFlagNonNegativeInt(cmd, "kmer-dedup-threshold")
	opt.MaxMemoryBytes = getFlagByteSize(cmd, "max-memory")
	opt.GapOpen = int16(getFlagNonNegativeInt(cmd, "gap-open"))
	opt.GapExtend = int16(getFlagNonNegativeInt(cmd, "gap-extend"))
	opt.BandWidth = getFlagPositiveInt(cmd, "band-width")
	opt.MinScore = getFlagFloat64(cmd, "min-score")
	opt.MinSeqID = getFlagFloat64(cmd, "min-seqid")
	opt.MinCoverage = getFlagFloat64(cmd, "min-coverage")
	opt.MaxEvalue = getFlagFloat64(cmd, "max-evalue")
	opt.MaxAccept = getFlagPositiveInt(cmd, "max-accept")
	opt.MaxRejected = getFlagPositiveInt(cmd, "max-rejected")
	opt.MaxHitsPerQuery = getFlagPositiveInt(cmd, "max-hits-per-query")
	opt.SampleSeed = getFlagInt64(cmd, "sample-seed")
	opt.Rank = getFlagNonNegativeInt(cmd, "rank")
	opt.World = getFlagPositiveInt(cmd, "world")
	opt.Threads = getFlagPositiveInt(cmd, "threads")

	return opt
}

// dbMeta is the YAML sidecar written next to a database's data/index files
// by createdb, carrying everything a later prefilter/align run needs to
// reproduce the k-mer shape the database was built with.
type dbMeta struct {
	AlphabetSize      int    `yaml:"alphabet-size"`
	KmerSize          int    `yaml:"kmer-size"`
	ScoringMatrixPath string `yaml:"scoring-matrix"`
	SeedMaskName      string `yaml:"seed-mask,omitempty"`
	NumSequences      int    `yaml:"num-sequences"`
	TotalResidues     int64  `yaml:"total-residues"`
}

func writeDBMeta(path string, meta dbMeta) error {
	data, err := yaml.Marshal(meta)
	if err != nil {
		return errors.Wrap(err, "marshal database metadata")
	}
	return errors.Wrap(ioutil.WriteFile(path, data, 0644), path)
}

func readDBMeta(path string) (dbMeta, error) {
	var meta dbMeta
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return meta, errors.Wrap(err, path)
	}
	if err := yaml.Unmarshal(data, &meta); err != nil {
		return meta, errors.Wrap(err, "parse database metadata "+path)
	}
	return meta, nil
}

func dbMetaPath(dbDir string) string {
	return fmt.Sprintf("%s/db.yaml", dbDir)
}

func mustExist(path string) {
	if _, err := os.Stat(path); err != nil {
		checkError(errors.Wrap(err, path))
	}
}
