package reaction

import (
	"strings"

	"github.com/turtacn/rxn-reconciler/pkg/errors"
)

const (
	sideSeparator        = '='
	constituentSeparator = '+'
)

// SplitEquation parses "A + B(+) = C" into ordered left and right sides.
// Separators inside parentheses are part of the surrounding token, so "B(+)"
// is one constituent. Anything other than exactly one top-level "=" is a
// malformed equation.
func SplitEquation(text string) (ReactionEquation, error) {
	sides := splitTopLevel(text, sideSeparator)
	if len(sides) != 2 {
		return ReactionEquation{}, errors.Newf(errors.ErrCodeMalformedEquation,
			"expected exactly one '%c' separator, found %d", sideSeparator, len(sides)-1).
			WithDetail(text)
	}
	return ReactionEquation{
		Text:  strings.TrimSpace(text),
		Left:  SplitSide(sides[0]),
		Right: SplitSide(sides[1]),
	}, nil
}

// SplitSide splits one side of an equation on top-level "+", trimming each
// token and dropping empty ones.
func SplitSide(side string) []string {
	parts := splitTopLevel(side, constituentSeparator)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// splitTopLevel cuts s at every sep that is not enclosed in parentheses.
// A stray ")" never drives the depth below zero.
func splitTopLevel(s string, sep rune) []string {
	var (
		parts []string
		depth int
		start int
	)
	for i, r := range s {
		switch {
		case r == '(':
			depth++
		case r == ')':
			if depth > 0 {
				depth--
			}
		case r == sep && depth == 0:
			parts = append(parts, s[start:i])
			start = i + len(string(sep))
		}
	}
	return append(parts, s[start:])
}
