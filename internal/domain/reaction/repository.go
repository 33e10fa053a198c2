package reaction

import "context"

// DocumentStore persists reconciled documents. Each Upsert is a single atomic
// replace-or-insert by key; a record is only handed over once fully built.
type DocumentStore interface {
	UpsertRhea(ctx context.Context, rec *RheaReactionRecord) error
	UpsertEnzyme(ctx context.Context, rec *ExpasyEnzymeRecord) error

	// GetRhea returns errors.ErrCodeRheaNotFound for an unknown id.
	GetRhea(ctx context.Context, rheaID string) (*RheaReactionRecord, error)
	// GetEnzyme returns errors.ErrCodeEnzymeNotFound for an unknown EC number.
	GetEnzyme(ctx context.Context, ecnumber string) (*ExpasyEnzymeRecord, error)

	ListRheaByEC(ctx context.Context, ecnumber string) ([]*RheaReactionRecord, error)
	Count(ctx context.Context, kind DocumentKind) (int64, error)
}

// Sink receives every persisted document after the store accepted it:
// change events, graph projection, search indexing.
type Sink interface {
	Name() string
	RheaUpserted(ctx context.Context, rec *RheaReactionRecord) error
	EnzymeUpserted(ctx context.Context, rec *ExpasyEnzymeRecord) error
}
