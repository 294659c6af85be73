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
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/iafan/cwalk"
	"github.com/pkg/errors"
	"github.com/shenwei356/bio/seqio/fastx"
	"github.com/shenwei356/util/pathutil"
	"github.com/spf13/cobra"

	"github.com/mmsearch/core/internal/idb"
	"github.com/mmsearch/core/internal/seqcodec"
)

var createdbCmd = &cobra.Command{
	Use:   "createdb",
	Short: "build an indexed database from FASTA sequences",
	Long: `createdb reads one or more FASTA files (or directories of them) and
writes an indexed database: sequences.db/.idx holds the reduced-alphabet
residue payload keyed by a dense uint32 id, names.db/.idx holds the original
record id for the same key, and db.yaml records the alphabet/k-mer shape so
prefilter and align reproduce it without being told again.`,
	Run: func(cmd *cobra.Command, args []string) {
		stopProfile := startProfileIfRequested(cmd)
		defer stopProfile()

		if len(args) == 0 {
			checkError(fmt.Errorf("createdb needs at least one FASTA file or directory"))
		}
		dbDir := getFlagString(cmd, "db-dir")
		if dbDir == "" {
			checkError(fmt.Errorf("flag -d/--db-dir needed"))
		}
		matrixPath := getFlagString(cmd, "scoring-matrix")
		if matrixPath == "" {
			checkError(fmt.Errorf("flag --scoring-matrix needed"))
		}
		mustExist(matrixPath)

		opt := getOptions(cmd)

		if err := os.MkdirAll(dbDir, 0755); err != nil {
			checkError(errors.Wrap(err, dbDir))
		}

		log.Infof("collecting input files ...")
		files, err := collectFastaFiles(args)
		checkError(err)
		if len(files) == 0 {
			checkError(fmt.Errorf("no input files found under %s", strings.Join(args, ", ")))
		}
		log.Infof("  %d file(s) found", len(files))

		alphabet := seqcodec.NewProteinAlphabet()
		if alphabet.Size() != opt.AlphabetSize {
			log.Warningf("requested alphabet size %d, protein alphabet has %d letters; using %d",
				opt.AlphabetSize, alphabet.Size(), alphabet.Size())
		}

		seqWriter, err := idb.NewWriter(filepath.Join(dbDir, "sequences.db"), filepath.Join(dbDir, "sequences.idx"), 1)
		checkError(err)
		nameWriter, err := idb.NewWriter(filepath.Join(dbDir, "names.db"), filepath.Join(dbDir, "names.idx"), 1)
		checkError(err)

		timeStart := time.Now()
		var key uint32
		var totalResidues int64
		for _, file := range files {
			log.Infof("reading sequence file: %s", file)
			reader, err := fastx.NewDefaultReader(file)
			checkError(errors.Wrap(err, file))
			for {
				record, err := reader.Read()
				if err != nil {
					if err == io.EOF {
						break
					}
					checkError(errors.Wrap(err, file))
				}

				enc := make([]int8, len(record.Seq.Seq))
				alphabet.Encode(record.Seq.Seq, enc)

				checkError(seqWriter.Write(0, key, encodedToBytes(enc)))
				checkError(nameWriter.Write(0, key, record.ID))

				totalResidues += int64(len(enc))
				key++
			}
		}
		checkError(seqWriter.Close())
		checkError(nameWriter.Close())

		meta := dbMeta{
			AlphabetSize:      alphabet.Size(),
			KmerSize:          opt.KmerSize,
			ScoringMatrixPath: matrixPath,
			NumSequences:      int(key),
			TotalResidues:     totalResidues,
		}
		checkError(writeDBMeta(dbMetaPath(dbDir), meta))

		log.Infof("database built: %s", dbDir)
		log.Infof("  %d sequences, %d residues", key, totalResidues)
		log.Infof("elapsed time: %s", time.Since(timeStart))
	},
}

// collectFastaFiles expands args (files or directories) into a flat file
// list, walking directories concurrently with cwalk.
func collectFastaFiles(args []string) ([]string, error) {
	var mu sync.Mutex
	var files []string

	for _, arg := range args {
		isDir, err := pathutil.IsDir(arg)
		if err != nil {
			return nil, errors.Wrap(err, arg)
		}
		if !isDir {
			files = append(files, arg)
			continue
		}
		err = cwalk.Walk(arg, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if info.IsDir() {
				return nil
			}
			mu.Lock()
			files = append(files, filepath.Join(arg, path))
			mu.Unlock()
			return nil
		})
		if err != nil {
			return nil, errors.Wrap(err, arg)
		}
	}
	return files, nil
}

func encodedToBytes(enc []int8) []byte {
	out := make([]byte, len(enc))
	for i, v := range enc {
		out[i] = byte(v)
	}
	return out
}

func init() {
	createdbCmd.Flags().StringP("db-dir", "d", "", "output database directory")
	createdbCmd.Flags().String("scoring-matrix", "", "path to the substitution matrix used by this database")
	addCommonOptionFlags(createdbCmd)
}
