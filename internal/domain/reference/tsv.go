// Package reference builds the read-only lookup tables that both passes join
// against: ChEBI id → name and EC number ↔ Rhea id.
package reference

import (
	"bufio"
	"io"
	"strings"

	"github.com/turtacn/rxn-reconciler/pkg/errors"
)

const maxLineBytes = 1 << 20

// LoadStats summarises one table load.
type LoadStats struct {
	Lines   int
	Entries int
	Skipped int
	// Overwritten counts keys that appeared more than once; the last row wins.
	Overwritten int
}

// scanTSV calls fn with the tab-separated columns of every non-blank line.
// Lines with fewer than minCols columns are counted as skipped.
func scanTSV(r io.Reader, minCols int, stats *LoadStats, fn func(cols []string)) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		stats.Lines++
		cols := strings.Split(line, "\t")
		if len(cols) < minCols {
			stats.Skipped++
			continue
		}
		for i := range cols {
			cols[i] = strings.TrimSpace(cols[i])
		}
		fn(cols)
	}
	if err := sc.Err(); err != nil {
		return errors.Wrap(err, errors.ErrCodeSourceParseError, "read tab-separated table")
	}
	return nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
