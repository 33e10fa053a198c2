package rhea

import (
	"time"

	"github.com/turtacn/rxn-reconciler/internal/domain/reaction"
	"github.com/turtacn/rxn-reconciler/internal/domain/reference"
)

// NameLookup resolves a ChEBI id to its canonical name.
type NameLookup interface {
	Lookup(id string) reaction.Resolution
}

// ECLookup resolves a Rhea id to its EC number.
type ECLookup interface {
	ECForRhea(rheaID string) reaction.Resolution
}

var (
	_ NameLookup = (*reference.ChEBITable)(nil)
	_ ECLookup   = (*reference.ECRheaTable)(nil)
)

// BuildRecord assembles the document for one reaction. Unknown ChEBI ids get
// reaction.NoName; a missing EC mapping leaves ECNumber unresolved.
func BuildRecord(e Entry, names NameLookup, ecs ECLookup, now time.Time) *reaction.RheaReactionRecord {
	chebi := make(map[string]string, len(e.ChEBIIDs))
	for _, id := range e.ChEBIIDs {
		chebi[id] = names.Lookup(id).OrElse(reaction.NoName)
	}
	return &reaction.RheaReactionRecord{
		RheaID:    e.RheaID,
		ChEBI:     chebi,
		ECNumber:  ecs.ECForRhea(e.RheaID),
		Timestamp: now.UTC().Truncate(time.Second),
	}
}
