package reaction

import (
	"github.com/turtacn/rxn-reconciler/pkg/types/common"
)

// DocumentKind names the collection a document belongs to.
type DocumentKind string

const (
	KindRhea   DocumentKind = "rhea"
	KindExpasy DocumentKind = "expasy"
)

func (k DocumentKind) Valid() bool {
	return k == KindRhea || k == KindExpasy
}

// DocumentUpsertedEvent announces that a document was replaced or inserted.
type DocumentUpsertedEvent struct {
	common.BaseEvent
	Kind       DocumentKind `json:"kind"`
	RunID      string       `json:"run_id,omitempty"`
	ECNumber   string       `json:"ecnumber,omitempty"`
	ChEBIIDs   []string     `json:"chebi_ids,omitempty"`
	Reactions  int          `json:"reactions,omitempty"`
	Unresolved int          `json:"unresolved,omitempty"`
}

func (e *DocumentUpsertedEvent) EventType() string {
	return "reaction.document.upserted"
}

func NewRheaUpsertedEvent(rec *RheaReactionRecord, runID string) *DocumentUpsertedEvent {
	return &DocumentUpsertedEvent{
		BaseEvent: common.NewBaseEvent(rec.RheaID),
		Kind:      KindRhea,
		RunID:     runID,
		ECNumber:  rec.ECNumber.OrElse(""),
		ChEBIIDs:  rec.ChEBIIDs(),
	}
}

func NewEnzymeUpsertedEvent(rec *ExpasyEnzymeRecord, runID string) *DocumentUpsertedEvent {
	unresolved := 0
	for _, rx := range rec.Reactions {
		unresolved += rx.Unresolved()
	}
	return &DocumentUpsertedEvent{
		BaseEvent:  common.NewBaseEvent(rec.ECNumber),
		Kind:       KindExpasy,
		RunID:      runID,
		ECNumber:   rec.ECNumber,
		Reactions:  len(rec.Reactions),
		Unresolved: unresolved,
	}
}
