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
	"os"

	"github.com/pkg/errors"

	"github.com/mmsearch/core/internal/seqcodec"
	"github.com/mmsearch/core/internal/submat"
)

// parseScoringMatrix parses and validates the matrix at path, with no
// extended-table construction — what align needs for the DP core and
// Karlin-Altschul estimation.
func parseScoringMatrix(path string, alphabet *seqcodec.Alphabet) (*submat.Matrix, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, path)
	}
	defer f.Close()

	m, err := submat.Parse(f, alphabet.Index, alphabet.Size())
	if err != nil {
		return nil, errors.Wrap(err, "parse scoring matrix "+path)
	}
	if err := m.Validate(); err != nil {
		return nil, errors.Wrap(err, "validate scoring matrix "+path)
	}
	return m, nil
}

// loadScoringMatrix additionally builds the extended similarity tables
// BlockSchema(k) needs, keyed by block order (2 and/or 3), ready for
// submat.CombineBlocks — the Query Matcher's hot path, wired by prefilter.
func loadScoringMatrix(path string, alphabet *seqcodec.Alphabet, k, topN int) (*submat.Matrix, map[int]*submat.Extended, error) {
	m, err := parseScoringMatrix(path, alphabet)
	if err != nil {
		return nil, nil, err
	}

	byOrder := make(map[int]*submat.Extended)
	seen := make(map[int]bool)
	for _, order := range submat.BlockSchema(k) {
		if seen[order] {
			continue
		}
		seen[order] = true
		byOrder[order] = submat.BuildExtended(m, order, alphabet.Size(), topN)
	}
	return m, byOrder, nil
}
