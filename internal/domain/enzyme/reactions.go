package enzyme

import (
	"regexp"
	"strings"
)

var (
	// A sentence ends at a period followed by whitespace or the end of the
	// field, so "2.7.1.1" or "Fe(3+)" inside a name never splits.
	sentenceEnd   = regexp.MustCompile(`\.(?:\s+|$)`)
	ordinalPrefix = regexp.MustCompile(`^\(\d+\)\s*`)
)

// Reaction is one equation text from a CA field with its 1-based position.
type Reaction struct {
	Ordinal int
	Text    string
}

// Reactions splits a CA field into its equations in source order. When the
// field holds more than one equation the leading "(n)" ordinal is removed.
// Ordinals count every non-empty sentence, so a sentence that later fails
// to parse still occupies its position.
func Reactions(ca string) []Reaction {
	var parts []string
	for _, p := range sentenceEnd.Split(ca, -1) {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	out := make([]Reaction, 0, len(parts))
	for i, p := range parts {
		if len(parts) > 1 {
			p = strings.TrimSpace(ordinalPrefix.ReplaceAllString(p, ""))
		}
		out = append(out, Reaction{Ordinal: i + 1, Text: p})
	}
	return out
}
