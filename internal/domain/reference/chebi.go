package reference

import (
	"io"
	"strings"

	"github.com/turtacn/rxn-reconciler/internal/domain/reaction"
)

const chebiPrefix = "CHEBI:"

// ChEBITable maps "CHEBI:<n>" to its canonical name.
type ChEBITable struct {
	names map[string]string
	stats LoadStats
}

// LoadChEBITable reads the chebiId_name table. The first column is the id and
// the last column is the name, whatever sits in between.
func LoadChEBITable(r io.Reader) (*ChEBITable, error) {
	t := &ChEBITable{names: make(map[string]string)}
	err := scanTSV(r, 2, &t.stats, func(cols []string) {
		id := NormalizeChEBIID(cols[0])
		name := cols[len(cols)-1]
		if id == "" || name == "" {
			t.stats.Skipped++
			return
		}
		if _, dup := t.names[id]; dup {
			t.stats.Overwritten++
		}
		t.names[id] = name
	})
	if err != nil {
		return nil, err
	}
	t.stats.Entries = len(t.names)
	return t, nil
}

// NewChEBITable builds a table from an in-memory map.
func NewChEBITable(names map[string]string) *ChEBITable {
	t := &ChEBITable{names: make(map[string]string, len(names))}
	for id, name := range names {
		if id = NormalizeChEBIID(id); id != "" {
			t.names[id] = name
		}
	}
	t.stats.Entries = len(t.names)
	return t
}

// Lookup resolves an id; "15377" and "CHEBI:15377" are equivalent.
func (t *ChEBITable) Lookup(id string) reaction.Resolution {
	if name, ok := t.names[NormalizeChEBIID(id)]; ok {
		return reaction.Found(name)
	}
	return reaction.NotFound()
}

func (t *ChEBITable) Len() int { return len(t.names) }

func (t *ChEBITable) Stats() LoadStats { return t.stats }

// NormalizeChEBIID returns the canonical "CHEBI:<digits>" form, or "" when id
// is not a ChEBI identifier.
func NormalizeChEBIID(id string) string {
	id = strings.TrimSpace(id)
	if len(id) >= len(chebiPrefix) && strings.EqualFold(id[:len(chebiPrefix)], chebiPrefix) {
		id = id[len(chebiPrefix):]
	}
	if !isDigits(id) {
		return ""
	}
	return chebiPrefix + id
}
