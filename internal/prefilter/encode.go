package prefilter

import (
	"bufio"
	"bytes"
	"strconv"
	"strings"

	"github.com/mmsearch/core/internal/matcher"
)

// encodeHits serializes one query's hit list into the prefilter record
// text format: zero or more lines, each "target-key\tscore\tdiagonal\n",
// in the order given. matcher.Match already returns hits sorted descending
// by score, ties broken by ascending target key, so callers don't need to
// re-sort before writing.
func encodeHits(hits []matcher.Hit) []byte {
	var buf bytes.Buffer
	for _, h := range hits {
		buf.WriteString(strconv.FormatUint(uint64(h.TargetKey), 10))
		buf.WriteByte('\t')
		buf.WriteString(strconv.Itoa(h.Score))
		buf.WriteByte('\t')
		buf.WriteString(strconv.Itoa(int(int8(h.Diagonal))))
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// decodeHits is encodeHits's inverse.
func decodeHits(data []byte) []matcher.Hit {
	return DecodeHitStream(data)
}

// DecodeHitStream parses the prefilter record text format: zero or more
// "target-key\tscore\tdiagonal\n" lines. Because each hit is its own line,
// this also handles the Result Merger's output directly — concatenating
// several splits' records byte-for-byte just appends more lines, no
// block-length bookkeeping needed. Malformed lines are skipped. Exported
// for mmsearch/cmd's align subcommand.
func DecodeHitStream(data []byte) []matcher.Hit {
	var hits []matcher.Hit
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		fields := strings.SplitN(line, "\t", 3)
		if len(fields) != 3 {
			continue
		}
		targetKey, err1 := strconv.ParseUint(fields[0], 10, 32)
		score, err2 := strconv.Atoi(fields[1])
		diagonal, err3 := strconv.Atoi(fields[2])
		if err1 != nil || err2 != nil || err3 != nil {
			continue
		}
		hits = append(hits, matcher.Hit{
			TargetKey: uint32(targetKey),
			Score:     score,
			Diagonal:  byte(int8(diagonal)),
		})
	}
	return hits
}
