// Package enzyme reads the ExPASy ENZYME flat file (enzyme.dat) and splits
// its catalytic-activity field into individual reaction equations.
package enzyme

import (
	"bufio"
	"context"
	"io"
	"strings"

	"github.com/turtacn/rxn-reconciler/pkg/errors"
)

const (
	codeID          = "ID"
	codeDescription = "DE"
	codeCatalytic   = "CA"
	terminator      = "//"
)

// Entry is one ENZYME record reduced to the fields the reconciler uses.
// Multi-line fields are joined with single spaces.
type Entry struct {
	ECNumber    string
	Description string
	// Catalytic is the raw CA text; see Reactions.
	Catalytic string
}

// Reader yields entries one at a time. Header records that carry no ID line
// (the licence and release notes at the top of the file) are skipped.
type Reader struct {
	sc   *bufio.Scanner
	line int
	done bool
}

func NewReader(r io.Reader) *Reader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	return &Reader{sc: sc}
}

// Line returns the number of lines consumed so far.
func (r *Reader) Line() int { return r.line }

// Next returns the next entry or io.EOF. A trailing entry without a "//"
// terminator is still returned.
func (r *Reader) Next() (*Entry, error) {
	if r.done {
		return nil, io.EOF
	}
	var (
		id      string
		de, cas []string
	)
	for r.sc.Scan() {
		r.line++
		code, value := splitLine(r.sc.Text())
		switch code {
		case terminator:
			if id != "" {
				return buildEntry(id, de, cas), nil
			}
			de, cas = nil, nil
		case codeID:
			id = value
		case codeDescription:
			de = append(de, value)
		case codeCatalytic:
			cas = append(cas, value)
		}
	}
	r.done = true
	if err := r.sc.Err(); err != nil {
		return nil, errors.Wrapf(err, errors.ErrCodeSourceParseError, "read enzyme.dat at line %d", r.line)
	}
	if id != "" {
		return buildEntry(id, de, cas), nil
	}
	return nil, io.EOF
}

// Walk calls fn for every entry in r until EOF, a read error, a callback
// error or cancellation of ctx.
func Walk(ctx context.Context, r io.Reader, fn func(context.Context, *Entry) error) error {
	rd := NewReader(r)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		e, err := rd.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if err := fn(ctx, e); err != nil {
			return err
		}
	}
}

// splitLine cuts "CA   text" into its two-letter code and trimmed value.
func splitLine(line string) (code, value string) {
	line = strings.TrimRight(line, " \t\r")
	if len(line) < 2 {
		return "", ""
	}
	return line[:2], strings.TrimSpace(line[2:])
}

func buildEntry(id string, de, ca []string) *Entry {
	return &Entry{
		ECNumber:    id,
		Description: NormalizeDescription(strings.Join(de, " ")),
		Catalytic:   strings.Join(ca, " "),
	}
}

// NormalizeDescription strips surrounding whitespace and periods.
func NormalizeDescription(de string) string {
	return strings.TrimSpace(strings.Trim(strings.TrimSpace(de), "."))
}
