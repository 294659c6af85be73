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
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/mmsearch/core/internal/idb"
)

// loadedDB is the in-memory form of a createdb output directory: every
// sequence decoded back to reduced-alphabet indices, its dense key, and a
// key->name reader kept open for Name lookups (no subcommand calls Name).
type loadedDB struct {
	dir     string
	meta    dbMeta
	seqs    [][]int8
	keys    []uint32
	namesR  *idb.Reader
	closers []func() error
}

func openDB(dir string) (*loadedDB, error) {
	meta, err := readDBMeta(dbMetaPath(dir))
	if err != nil {
		return nil, err
	}

	seqR, err := idb.Open(filepath.Join(dir, "sequences.db"), filepath.Join(dir, "sequences.idx"), idb.LinearAccess)
	if err != nil {
		return nil, err
	}
	namesR, err := idb.Open(filepath.Join(dir, "names.db"), filepath.Join(dir, "names.idx"), idb.NOSORT)
	if err != nil {
		seqR.Close()
		return nil, err
	}

	db := &loadedDB{dir: dir, meta: meta, namesR: namesR}
	db.closers = []func() error{seqR.Close, namesR.Close}

	for i := 0; i < seqR.Size(); i++ {
		rec, ok := seqR.RecordAt(i)
		if !ok {
			continue
		}
		data, err := seqR.DataAt(i)
		if err != nil {
			db.Close()
			return nil, errors.Wrapf(err, "read sequence for key %d", rec.Key)
		}
		db.seqs = append(db.seqs, bytesToEncoded(data))
		db.keys = append(db.keys, rec.Key)
	}
	return db, nil
}

func (db *loadedDB) Close() error {
	var first error
	for _, c := range db.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (db *loadedDB) Name(key uint32) string {
	data, err := db.namesR.Data(key)
	if err != nil {
		return ""
	}
	return string(data)
}

func bytesToEncoded(data []byte) []int8 {
	out := make([]int8, len(data))
	for i, b := range data {
		out[i] = int8(b)
	}
	return out
}

// backgroundFrequencies computes amino-acid composition over seqs, used when
// the scoring matrix file doesn't ship its own background distribution.
func backgroundFrequencies(seqs [][]int8, alphaSize int) []float64 {
	counts := make([]float64, alphaSize)
	var total float64
	for _, s := range seqs {
		for _, c := range s {
			if c >= 0 && int(c) < alphaSize {
				counts[c]++
				total++
			}
		}
	}
	if total == 0 {
		for i := range counts {
			counts[i] = 1.0 / float64(alphaSize)
		}
		return counts
	}
	for i := range counts {
		counts[i] /= total
	}
	return counts
}
