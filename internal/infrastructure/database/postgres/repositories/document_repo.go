package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"time"

	"github.com/turtacn/rxn-reconciler/internal/domain/reaction"
	"github.com/turtacn/rxn-reconciler/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/rxn-reconciler/pkg/errors"
)

const (
	upsertRheaSQL = `
		INSERT INTO rhea_reactions (id, ecnumber, document, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (id) DO UPDATE SET
			ecnumber = EXCLUDED.ecnumber,
			document = EXCLUDED.document,
			updated_at = NOW()`

	upsertEnzymeSQL = `
		INSERT INTO expasy_enzymes (id, description, document, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (id) DO UPDATE SET
			description = EXCLUDED.description,
			document = EXCLUDED.document,
			updated_at = NOW()`

	getRheaSQL   = `SELECT document FROM rhea_reactions WHERE id = $1`
	getEnzymeSQL = `SELECT document FROM expasy_enzymes WHERE id = $1`

	listRheaByECSQL = `
		SELECT document FROM rhea_reactions
		WHERE ecnumber = $1
		ORDER BY length(id), id`

	countRheaSQL   = `SELECT COUNT(*) FROM rhea_reactions`
	countEnzymeSQL = `SELECT COUNT(*) FROM expasy_enzymes`
)

// DocumentRepository is the PostgreSQL implementation of reaction.DocumentStore.
// Each document is one JSONB row; an upsert replaces the whole row.
type DocumentRepository struct {
	db      queryExecutor
	logger  logging.Logger
	metrics StoreMetrics
}

// NewDocumentRepository accepts a *sql.DB or *sql.Tx. metrics may be nil.
func NewDocumentRepository(db queryExecutor, log logging.Logger, metrics StoreMetrics) *DocumentRepository {
	if log == nil {
		log = logging.NewNopLogger()
	}
	if metrics == nil {
		metrics = noopStoreMetrics{}
	}
	return &DocumentRepository{db: db, logger: log.Named("document_repo"), metrics: metrics}
}

var _ reaction.DocumentStore = (*DocumentRepository)(nil)

func (r *DocumentRepository) UpsertRhea(ctx context.Context, rec *reaction.RheaReactionRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	doc, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "encode rhea document").WithDetail(rec.RheaID)
	}
	var ec sql.NullString
	if v, ok := rec.ECNumber.Get(); ok {
		ec = sql.NullString{String: v, Valid: true}
	}

	defer r.observe("upsert_rhea", time.Now())
	if _, err := r.db.ExecContext(ctx, upsertRheaSQL, rec.RheaID, ec, doc); err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "upsert rhea document").WithDetail(rec.RheaID)
	}
	r.logger.Debug("rhea document upserted", logging.RheaID(rec.RheaID))
	return nil
}

func (r *DocumentRepository) UpsertEnzyme(ctx context.Context, rec *reaction.ExpasyEnzymeRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	doc, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "encode enzyme document").WithDetail(rec.ECNumber)
	}

	defer r.observe("upsert_enzyme", time.Now())
	if _, err := r.db.ExecContext(ctx, upsertEnzymeSQL, rec.ECNumber, rec.Description, doc); err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "upsert enzyme document").WithDetail(rec.ECNumber)
	}
	r.logger.Debug("enzyme document upserted", logging.ECNumber(rec.ECNumber))
	return nil
}

func (r *DocumentRepository) GetRhea(ctx context.Context, rheaID string) (*reaction.RheaReactionRecord, error) {
	defer r.observe("get_rhea", time.Now())
	rec := &reaction.RheaReactionRecord{}
	if err := r.getDocument(ctx, getRheaSQL, rheaID, rec); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.Newf(errors.ErrCodeRheaNotFound, "rhea reaction %s not found", rheaID)
		}
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "get rhea document").WithDetail(rheaID)
	}
	return rec, nil
}

func (r *DocumentRepository) GetEnzyme(ctx context.Context, ecnumber string) (*reaction.ExpasyEnzymeRecord, error) {
	defer r.observe("get_enzyme", time.Now())
	rec := &reaction.ExpasyEnzymeRecord{}
	if err := r.getDocument(ctx, getEnzymeSQL, ecnumber, rec); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.Newf(errors.ErrCodeEnzymeNotFound, "enzyme %s not found", ecnumber)
		}
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "get enzyme document").WithDetail(ecnumber)
	}
	return rec, nil
}

func (r *DocumentRepository) ListRheaByEC(ctx context.Context, ecnumber string) ([]*reaction.RheaReactionRecord, error) {
	defer r.observe("list_rhea_by_ec", time.Now())
	rows, err := r.db.QueryContext(ctx, listRheaByECSQL, ecnumber)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "list rhea documents").WithDetail(ecnumber)
	}
	defer rows.Close()

	var out []*reaction.RheaReactionRecord
	for rows.Next() {
		rec := &reaction.RheaReactionRecord{}
		if err := scanDocument(rows, rec); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "scan rhea document").WithDetail(ecnumber)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "iterate rhea documents").WithDetail(ecnumber)
	}
	return out, nil
}

func (r *DocumentRepository) Count(ctx context.Context, kind reaction.DocumentKind) (int64, error) {
	var query string
	switch kind {
	case reaction.KindRhea:
		query = countRheaSQL
	case reaction.KindExpasy:
		query = countEnzymeSQL
	default:
		return 0, errors.Newf(errors.ErrCodeBadRequest, "unknown document kind %q", kind)
	}
	var n int64
	if err := r.db.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeDatabaseError, "count documents").WithDetail(string(kind))
	}
	return n, nil
}

func (r *DocumentRepository) getDocument(ctx context.Context, query, key string, dst json.Unmarshaler) error {
	return scanDocument(r.db.QueryRowContext(ctx, query, key), dst)
}

func scanDocument(s scanner, dst json.Unmarshaler) error {
	var raw []byte
	if err := s.Scan(&raw); err != nil {
		return err
	}
	return dst.UnmarshalJSON(raw)
}

func (r *DocumentRepository) observe(op string, start time.Time) {
	r.metrics.ObserveStore(op, time.Since(start))
}
