package reference

import (
	"io"
	"sort"
	"strings"

	"github.com/turtacn/rxn-reconciler/internal/domain/reaction"
)

// ECRheaTable is the bidirectional EC ↔ Rhea mapping. One EC number may
// govern many Rhea reactions; each Rhea id maps to one EC number.
type ECRheaTable struct {
	ecByRhea map[string]string
	rheaByEC map[string][]string
	stats    LoadStats
}

// LoadECRheaTable reads the ec-rhea-dir table: column one is the EC number,
// column two the Rhea id. Rows whose Rhea column is not numeric (a header,
// for instance) are skipped.
func LoadECRheaTable(r io.Reader) (*ECRheaTable, error) {
	t := newECRheaTable()
	err := scanTSV(r, 2, &t.stats, func(cols []string) {
		ec, rhea := cols[0], NormalizeRheaID(cols[1])
		if ec == "" || rhea == "" {
			t.stats.Skipped++
			return
		}
		t.add(ec, rhea)
	})
	if err != nil {
		return nil, err
	}
	t.finish()
	return t, nil
}

// NewECRheaTable builds a table from rhea → EC pairs.
func NewECRheaTable(ecByRhea map[string]string) *ECRheaTable {
	t := newECRheaTable()
	for rhea, ec := range ecByRhea {
		if rhea = NormalizeRheaID(rhea); rhea != "" {
			t.add(ec, rhea)
		}
	}
	t.finish()
	return t
}

func newECRheaTable() *ECRheaTable {
	return &ECRheaTable{
		ecByRhea: make(map[string]string),
		rheaByEC: make(map[string][]string),
	}
}

func (t *ECRheaTable) add(ec, rhea string) {
	if prev, dup := t.ecByRhea[rhea]; dup {
		t.stats.Overwritten++
		if prev == ec {
			return
		}
		t.rheaByEC[prev] = remove(t.rheaByEC[prev], rhea)
		if len(t.rheaByEC[prev]) == 0 {
			delete(t.rheaByEC, prev)
		}
	}
	t.ecByRhea[rhea] = ec
	t.rheaByEC[ec] = append(t.rheaByEC[ec], rhea)
}

func (t *ECRheaTable) finish() {
	for _, ids := range t.rheaByEC {
		sort.Slice(ids, func(i, j int) bool {
			if len(ids[i]) != len(ids[j]) {
				return len(ids[i]) < len(ids[j])
			}
			return ids[i] < ids[j]
		})
	}
	t.stats.Entries = len(t.ecByRhea)
}

// ECForRhea resolves by exact Rhea id.
func (t *ECRheaTable) ECForRhea(rheaID string) reaction.Resolution {
	if ec, ok := t.ecByRhea[NormalizeRheaID(rheaID)]; ok {
		return reaction.Found(ec)
	}
	return reaction.NotFound()
}

// RheaForEC returns the Rhea ids mapped to ec in ascending numeric order.
func (t *ECRheaTable) RheaForEC(ec string) []string {
	ids := t.rheaByEC[ec]
	out := make([]string, len(ids))
	copy(out, ids)
	return out
}

func (t *ECRheaTable) Len() int { return len(t.ecByRhea) }

func (t *ECRheaTable) Stats() LoadStats { return t.stats }

// NormalizeRheaID strips an optional "RHEA:" prefix and returns "" for
// anything that is not a numeric id.
func NormalizeRheaID(id string) string {
	id = strings.TrimSpace(id)
	if len(id) >= 5 && strings.EqualFold(id[:5], "RHEA:") {
		id = id[5:]
	}
	if !isDigits(id) {
		return ""
	}
	return id
}

func remove(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
