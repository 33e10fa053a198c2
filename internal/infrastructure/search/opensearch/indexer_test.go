package opensearch

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/rxn-reconciler/internal/domain/reaction"
	"github.com/turtacn/rxn-reconciler/internal/infrastructure/monitoring/logging"
	apperrors "github.com/turtacn/rxn-reconciler/pkg/errors"
)

type capturedRequest struct {
	method string
	path   string
	query  string
	body   string
}

type fakeCluster struct {
	mu       sync.Mutex
	existing map[string]bool
	requests []capturedRequest
	status   int
}

func (f *fakeCluster) handler(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, capturedRequest{method: r.Method, path: r.URL.Path, query: r.URL.RawQuery, body: string(body)})

	w.Header().Set("Content-Type", "application/json")
	if f.status != 0 {
		w.WriteHeader(f.status)
		_, _ = w.Write([]byte(`{"error":{"type":"x","reason":"boom"},"status":500}`))
		return
	}
	index := strings.Split(strings.TrimPrefix(r.URL.Path, "/"), "/")[0]
	switch r.Method {
	case http.MethodHead:
		if f.existing[index] {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	case http.MethodPut, http.MethodPost:
		if strings.Contains(r.URL.Path, "/_doc/") {
			_, _ = w.Write([]byte(`{"_index":"` + index + `","_id":"x","result":"created","_version":1}`))
			return
		}
		_, _ = w.Write([]byte(`{"acknowledged":true,"shards_acknowledged":true,"index":"` + index + `"}`))
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (f *fakeCluster) find(method, pathPart string) *capturedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.requests {
		if f.requests[i].method == method && strings.Contains(f.requests[i].path, pathPart) {
			return &f.requests[i]
		}
	}
	return nil
}

var indexedAt = time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC)

func TestDocumentIndexer_EnsureIndices_CreatesMissingOnly(t *testing.T) {
	fc := &fakeCluster{existing: map[string]bool{"test-rhea": true}}
	idx := NewDocumentIndexer(newTestClient(t, fc.handler), false, logging.NewNopLogger())

	require.NoError(t, idx.EnsureIndices(context.Background()))
	assert.Nil(t, fc.find(http.MethodPut, "/test-rhea"))
	created := fc.find(http.MethodPut, "/test-expasy")
	require.NotNil(t, created)
	assert.Contains(t, created.body, `"chebi_ids":{"type":"keyword"}`)
}

func TestDocumentIndexer_RheaUpserted(t *testing.T) {
	fc := &fakeCluster{}
	idx := NewDocumentIndexer(newTestClient(t, fc.handler), true, logging.NewNopLogger())

	rec := &reaction.RheaReactionRecord{
		RheaID:    "10000",
		ChEBI:     map[string]string{"CHEBI:15377": "H2O", "CHEBI:99999": reaction.NoName},
		ECNumber:  reaction.Found("3.1.1.1"),
		Timestamp: indexedAt,
	}
	require.NoError(t, idx.RheaUpserted(context.Background(), rec))

	req := fc.find(http.MethodPut, "/test-rhea/_doc/10000")
	if req == nil {
		req = fc.find(http.MethodPost, "/test-rhea/_doc/10000")
	}
	require.NotNil(t, req)
	assert.Contains(t, req.query, "refresh=true")

	var doc SearchDocument
	require.NoError(t, json.Unmarshal([]byte(req.body), &doc))
	assert.Equal(t, []string{"H2O"}, doc.Compounds)
	assert.Equal(t, []string{"CHEBI:15377", "CHEBI:99999"}, doc.ChEBIIDs)
	assert.Equal(t, "3.1.1.1", doc.ECNumber)
	assert.Equal(t, "2024-02-03 04:05:06", doc.Timestamp)
}

func TestDocumentIndexer_IndexFailure(t *testing.T) {
	fc := &fakeCluster{status: http.StatusBadRequest}
	idx := NewDocumentIndexer(newTestClient(t, fc.handler), false, logging.NewNopLogger())

	err := idx.RheaUpserted(context.Background(), &reaction.RheaReactionRecord{RheaID: "1", Timestamp: indexedAt})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeSearchIndex))
}

func TestEnzymeSearchDocument(t *testing.T) {
	rec := &reaction.ExpasyEnzymeRecord{
		ECNumber:    "1.1.1.1",
		Description: "Alcohol dehydrogenase",
		Reactions: []reaction.ResolvedReaction{
			{
				Ordinal: 1,
				Text:    "a primary alcohol + NAD(+) = an aldehyde + NADH",
				Left:    []reaction.Constituent{{Name: "a primary alcohol"}, {Name: "NAD(+)", ChEBI: reaction.Found("CHEBI:57540")}},
				Right:   []reaction.Constituent{{Name: "an aldehyde"}, {Name: "NADH", ChEBI: reaction.Found("CHEBI:57945")}},
			},
			{
				Ordinal: 2,
				Text:    "a secondary alcohol + NAD(+) = a ketone + NADH",
				Left:    []reaction.Constituent{{Name: "a secondary alcohol"}, {Name: "NAD(+)", ChEBI: reaction.Found("CHEBI:57540")}},
				Right:   []reaction.Constituent{{Name: "a ketone"}, {Name: "NADH", ChEBI: reaction.Found("CHEBI:57945")}},
			},
		},
		Timestamp: indexedAt,
	}

	doc := EnzymeSearchDocument(rec)
	assert.Equal(t, reaction.KindExpasy, doc.Kind)
	assert.Len(t, doc.Equations, 2)
	assert.Equal(t, []string{"CHEBI:57540", "CHEBI:57945"}, doc.ChEBIIDs)
	assert.Equal(t, 4, doc.Unresolved)
	assert.Equal(t, []string{
		"a primary alcohol", "NAD(+)", "an aldehyde", "NADH",
		"a secondary alcohol", "a ketone",
	}, doc.Compounds)
}
