package repositories

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/rxn-reconciler/internal/domain/reaction"
	pkgerrors "github.com/turtacn/rxn-reconciler/pkg/errors"
)

var fixedTime = time.Date(2026, 10, 16, 10, 0, 0, 0, time.UTC)

// jsonField matches a JSONB argument whose top-level key equals want.
type jsonField struct {
	key  string
	want interface{}
}

func (j jsonField) Match(v driver.Value) bool {
	raw, ok := v.([]byte)
	if !ok {
		return false
	}
	var doc map[string]interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return false
	}
	got, present := doc[j.key]
	if j.want == nil {
		return !present
	}
	return present && assert.ObjectsAreEqual(j.want, got)
}

type storeTimings struct {
	ops []string
}

func (s *storeTimings) ObserveStore(op string, _ time.Duration) { s.ops = append(s.ops, op) }

func newRepo(t *testing.T) (*DocumentRepository, sqlmock.Sqlmock, *storeTimings) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	timings := &storeTimings{}
	return NewDocumentRepository(db, nil, timings), mock, timings
}

func rheaRecord() *reaction.RheaReactionRecord {
	return &reaction.RheaReactionRecord{
		RheaID:    "10000",
		ChEBI:     map[string]string{"CHEBI:15377": "water"},
		ECNumber:  reaction.Found("3.5.1.50"),
		Timestamp: fixedTime,
	}
}

func TestUpsertRhea_Success(t *testing.T) {
	repo, mock, timings := newRepo(t)

	mock.ExpectExec(regexp.QuoteMeta(upsertRheaSQL)).
		WithArgs("10000", "3.5.1.50", jsonField{"_id", "10000"}).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpsertRhea(context.Background(), rheaRecord()))
	assert.NoError(t, mock.ExpectationsWereMet())
	assert.Equal(t, []string{"upsert_rhea"}, timings.ops)
}

func TestUpsertRhea_NoECStoresNull(t *testing.T) {
	repo, mock, _ := newRepo(t)
	rec := rheaRecord()
	rec.ECNumber = reaction.NotFound()

	mock.ExpectExec(regexp.QuoteMeta(upsertRheaSQL)).
		WithArgs("10000", nil, jsonField{"ecnumber", nil}).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpsertRhea(context.Background(), rec))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertRhea_IsIdempotent(t *testing.T) {
	repo, mock, _ := newRepo(t)
	for i := 0; i < 2; i++ {
		mock.ExpectExec(regexp.QuoteMeta(upsertRheaSQL)).
			WithArgs("10000", "3.5.1.50", sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}

	require.NoError(t, repo.UpsertRhea(context.Background(), rheaRecord()))
	require.NoError(t, repo.UpsertRhea(context.Background(), rheaRecord()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertRhea_InvalidRecordNeverReachesDatabase(t *testing.T) {
	repo, mock, _ := newRepo(t)
	rec := rheaRecord()
	rec.RheaID = "RHEA:10000"

	err := repo.UpsertRhea(context.Background(), rec)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeInvalidRheaID))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertRhea_DatabaseError(t *testing.T) {
	repo, mock, _ := newRepo(t)
	mock.ExpectExec(regexp.QuoteMeta(upsertRheaSQL)).WillReturnError(errors.New("connection reset"))

	err := repo.UpsertRhea(context.Background(), rheaRecord())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeDatabaseError))
}

func TestUpsertEnzyme_Success(t *testing.T) {
	repo, mock, _ := newRepo(t)
	rec := &reaction.ExpasyEnzymeRecord{
		ECNumber:    "1.1.1.1",
		Description: "Alcohol dehydrogenase",
		Reactions: []reaction.ResolvedReaction{{
			Ordinal: 1,
			Text:    "a primary alcohol + NAD(+) = an aldehyde + NADH + H(+)",
			Left:    []reaction.Constituent{{Name: "a primary alcohol"}, {Name: "NAD(+)", ChEBI: reaction.Found("57540")}},
			Right:   []reaction.Constituent{{Name: "an aldehyde"}, {Name: "NADH"}, {Name: "H(+)", ChEBI: reaction.Found("15378")}},
		}},
		Timestamp: fixedTime,
	}

	mock.ExpectExec(regexp.QuoteMeta(upsertEnzymeSQL)).
		WithArgs("1.1.1.1", "Alcohol dehydrogenase", jsonField{"timestamp", "2026-10-16 10:00:00"}).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpsertEnzyme(context.Background(), rec))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertEnzyme_InvalidEC(t *testing.T) {
	repo, _, _ := newRepo(t)
	err := repo.UpsertEnzyme(context.Background(), &reaction.ExpasyEnzymeRecord{ECNumber: "1.1.1", Timestamp: fixedTime})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeInvalidECNumber))
}

func TestGetRhea(t *testing.T) {
	repo, mock, _ := newRepo(t)
	mock.ExpectQuery(regexp.QuoteMeta(getRheaSQL)).
		WithArgs("10000").
		WillReturnRows(sqlmock.NewRows([]string{"document"}).
			AddRow([]byte(`{"_id":"10000","chebi_id":{"CHEBI:15377":"water"},"ecnumber":"3.5.1.50","timestamp":"2026-10-16 10:00:00"}`)))

	rec, err := repo.GetRhea(context.Background(), "10000")
	require.NoError(t, err)
	assert.Equal(t, "10000", rec.RheaID)
	assert.Equal(t, "water", rec.ChEBI["CHEBI:15377"])
	assert.Equal(t, reaction.Found("3.5.1.50"), rec.ECNumber)
	assert.True(t, fixedTime.Equal(rec.Timestamp))
}

func TestGetRhea_NotFound(t *testing.T) {
	repo, mock, _ := newRepo(t)
	mock.ExpectQuery(regexp.QuoteMeta(getRheaSQL)).
		WithArgs("99999").
		WillReturnRows(sqlmock.NewRows([]string{"document"}))

	_, err := repo.GetRhea(context.Background(), "99999")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeRheaNotFound))
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestGetEnzyme(t *testing.T) {
	repo, mock, _ := newRepo(t)
	doc := `{"_id":"1.1.1.1","description":"Alcohol dehydrogenase","reaction(s)":{` +
		`"rxn_1":{"reaction":"A = B","left":{"A":null},"right":{"B":"15377"},` +
		`"constituents":{"left":[{"name":"A","chebi":null}],"right":[{"name":"B","chebi":"15377"}]}}},` +
		`"timestamp":"2026-10-16 10:00:00"}`
	mock.ExpectQuery(regexp.QuoteMeta(getEnzymeSQL)).
		WithArgs("1.1.1.1").
		WillReturnRows(sqlmock.NewRows([]string{"document"}).AddRow([]byte(doc)))

	rec, err := repo.GetEnzyme(context.Background(), "1.1.1.1")
	require.NoError(t, err)
	require.Len(t, rec.Reactions, 1)
	assert.Equal(t, "rxn_1", rec.Reactions[0].Key())
	assert.Equal(t, reaction.Found("15377"), rec.Reactions[0].Right[0].ChEBI)
	assert.False(t, rec.Reactions[0].Left[0].ChEBI.IsFound())
}

func TestGetEnzyme_NotFound(t *testing.T) {
	repo, mock, _ := newRepo(t)
	mock.ExpectQuery(regexp.QuoteMeta(getEnzymeSQL)).
		WithArgs("9.9.9.9").
		WillReturnRows(sqlmock.NewRows([]string{"document"}))

	_, err := repo.GetEnzyme(context.Background(), "9.9.9.9")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeEnzymeNotFound))
}

func TestListRheaByEC(t *testing.T) {
	repo, mock, _ := newRepo(t)
	mock.ExpectQuery(regexp.QuoteMeta(listRheaByECSQL)).
		WithArgs("1.1.1.1").
		WillReturnRows(sqlmock.NewRows([]string{"document"}).
			AddRow([]byte(`{"_id":"9999","chebi_id":{},"ecnumber":"1.1.1.1","timestamp":"2026-10-16 10:00:00"}`)).
			AddRow([]byte(`{"_id":"10000","chebi_id":{},"ecnumber":"1.1.1.1","timestamp":"2026-10-16 10:00:00"}`)))

	recs, err := repo.ListRheaByEC(context.Background(), "1.1.1.1")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "9999", recs[0].RheaID)
	assert.Equal(t, "10000", recs[1].RheaID)
}

func TestListRheaByEC_BadDocument(t *testing.T) {
	repo, mock, _ := newRepo(t)
	mock.ExpectQuery(regexp.QuoteMeta(listRheaByECSQL)).
		WithArgs("1.1.1.1").
		WillReturnRows(sqlmock.NewRows([]string{"document"}).AddRow([]byte(`not json`)))

	_, err := repo.ListRheaByEC(context.Background(), "1.1.1.1")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeDatabaseError))
}

func TestCount(t *testing.T) {
	repo, mock, _ := newRepo(t)
	mock.ExpectQuery(regexp.QuoteMeta(countRheaSQL)).WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(42)))
	mock.ExpectQuery(regexp.QuoteMeta(countEnzymeSQL)).WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(7)))

	n, err := repo.Count(context.Background(), reaction.KindRhea)
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)

	n, err = repo.Count(context.Background(), reaction.KindExpasy)
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)

	_, err = repo.Count(context.Background(), reaction.DocumentKind("chebi"))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeBadRequest))
}
