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

// Package cmd is the command-line front end: createdb builds an indexed
// database from FASTA, prefilter runs the k-mer prefilter driver against it,
// align extends surviving hits into full alignments, and mergedbs combines
// per-split result databases (optionally into summary statistics).
package cmd

import (
	"fmt"
	"os"
	"runtime"

	"github.com/mitchellh/go-homedir"
	"github.com/pkg/profile"
	"github.com/spf13/cobra"
)

// VERSION is set at release time; "dev" covers local builds.
var VERSION = "dev"

var rootCmd = &cobra.Command{
	Use:   "mmsearch",
	Short: "many-vs-many protein similarity search",
	Long: `mmsearch - k-mer prefiltered, Smith-Waterman verified protein search

  createdb    build an indexed database from FASTA sequences
  prefilter   find candidate target hits per query via k-mer matching
  align       extend prefilter hits into banded Smith-Waterman alignments
  mergedbs    merge per-split result databases, optionally into statistics
`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setLogLevel(getFlagBool(cmd, "verbose"))
	},
}

// Execute runs the root command; main calls this and nothing else.
func Execute() {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("%v", r)
			os.Exit(1)
		}
	}()

	if err := rootCmd.Execute(); err != nil {
		checkError(err)
	}
}

func init() {
	cobra.EnableCommandSorting = false

	home, err := homedir.Dir()
	if err != nil {
		home = "."
	}

	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "print verbose information")
	rootCmd.PersistentFlags().IntP("threads", "j", runtime.NumCPU(), "number of worker threads")
	rootCmd.PersistentFlags().String("config-dir", fmt.Sprintf("%s/.mmsearch", home), "directory for cached configuration")
	rootCmd.PersistentFlags().Bool("cpu-profile", false, "write a pprof CPU profile for this run")

	rootCmd.AddCommand(createdbCmd)
	rootCmd.AddCommand(prefilterCmd)
	rootCmd.AddCommand(alignCmd)
	rootCmd.AddCommand(mergedbsCmd)
}

// startProfileIfRequested implements the --cpu-profile toggle via
// pkg/profile, stopped via the returned func in a defer at the call site.
func startProfileIfRequested(cmd *cobra.Command) func() {
	if !getFlagBool(cmd, "cpu-profile") {
		return func() {}
	}
	stopper := profile.Start(profile.CPUProfile, profile.ProfilePath("."))
	return stopper.Stop
}
