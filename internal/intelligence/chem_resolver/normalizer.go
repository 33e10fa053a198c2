// Package chem_resolver maps free-text compound names from enzyme reaction
// equations to ChEBI identifiers through the BioPortal annotator.
package chem_resolver

// builtinSubstitutions rewrites the formula-style spellings used in ENZYME
// equations into the names the annotator recognises.
var builtinSubstitutions = map[string]string{
	"H(2)O":               "water",
	"CO(2)":               "carbon dioxide",
	"An alcohol":          "alcohol",
	"A secondary alcohol": "secondary alcohol",
	"O(2)":                "dioxygen",
	"H(+)":                "hydron",
	"a ketone":            "ketone",
}

// Normalize applies the built-in substitution table. Matching is exact and
// case-sensitive; anything not in the table is returned unchanged.
func Normalize(name string) string {
	if sub, ok := builtinSubstitutions[name]; ok {
		return sub
	}
	return name
}

// Normalizer layers configured substitutions over the built-in table.
type Normalizer struct {
	table map[string]string
}

// NewNormalizer returns a Normalizer where extra entries take precedence over
// the built-in ones. Entries with an empty key or value are ignored.
func NewNormalizer(extra map[string]string) *Normalizer {
	table := make(map[string]string, len(builtinSubstitutions)+len(extra))
	for k, v := range builtinSubstitutions {
		table[k] = v
	}
	for k, v := range extra {
		if k != "" && v != "" {
			table[k] = v
		}
	}
	return &Normalizer{table: table}
}

func (n *Normalizer) Normalize(name string) string {
	if n == nil {
		return Normalize(name)
	}
	if sub, ok := n.table[name]; ok {
		return sub
	}
	return name
}

func (n *Normalizer) Len() int { return len(n.table) }
