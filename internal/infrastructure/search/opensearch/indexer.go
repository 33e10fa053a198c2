package opensearch

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"sort"

	"github.com/opensearch-project/opensearch-go/v3/opensearchapi"

	"github.com/turtacn/rxn-reconciler/internal/domain/reaction"
	"github.com/turtacn/rxn-reconciler/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/rxn-reconciler/pkg/errors"
)

var (
	ErrIndexCreationFailed = errors.New(errors.ErrCodeSearchIndex, "index creation failed")
	ErrDocumentIndexFailed = errors.New(errors.ErrCodeSearchIndex, "document index failed")
)

// SearchDocument is the flattened, analyzer-friendly form of either
// document kind.
type SearchDocument struct {
	Kind        reaction.DocumentKind `json:"kind"`
	ID          string                `json:"id"`
	ECNumber    string                `json:"ecnumber,omitempty"`
	Description string                `json:"description,omitempty"`
	Equations   []string              `json:"equations,omitempty"`
	Compounds   []string              `json:"compounds"`
	ChEBIIDs    []string              `json:"chebi_ids"`
	Unresolved  int                   `json:"unresolved"`
	Timestamp   string                `json:"timestamp"`
}

var documentMapping = map[string]any{
	"settings": map[string]any{
		"number_of_shards":   1,
		"number_of_replicas": 0,
	},
	"mappings": map[string]any{
		"properties": map[string]any{
			"kind":        map[string]any{"type": "keyword"},
			"id":          map[string]any{"type": "keyword"},
			"ecnumber":    map[string]any{"type": "keyword"},
			"description": map[string]any{"type": "text"},
			"equations":   map[string]any{"type": "text"},
			"compounds":   map[string]any{"type": "text", "fields": map[string]any{"raw": map[string]any{"type": "keyword"}}},
			"chebi_ids":   map[string]any{"type": "keyword"},
			"unresolved":  map[string]any{"type": "integer"},
			"timestamp":   map[string]any{"type": "date", "format": "yyyy-MM-dd HH:mm:ss"},
		},
	},
}

// DocumentIndexer is the search sink.
type DocumentIndexer struct {
	client  *Client
	refresh bool
	logger  logging.Logger
}

var _ reaction.Sink = (*DocumentIndexer)(nil)

// NewDocumentIndexer indexes without forcing a refresh unless refresh is
// set; tests and the CLI single-record commands set it.
func NewDocumentIndexer(client *Client, refresh bool, logger logging.Logger) *DocumentIndexer {
	return &DocumentIndexer{client: client, refresh: refresh, logger: logger}
}

func (i *DocumentIndexer) Name() string { return "opensearch" }

// EnsureIndices creates both document indices when missing.
func (i *DocumentIndexer) EnsureIndices(ctx context.Context) error {
	for _, kind := range []reaction.DocumentKind{reaction.KindRhea, reaction.KindExpasy} {
		name := i.client.IndexName(kind)
		exists, err := i.indexExists(ctx, name)
		if err != nil {
			return err
		}
		if exists {
			continue
		}
		body, err := json.Marshal(documentMapping)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeSerialization, "failed to marshal index mapping")
		}
		if _, err := i.client.api.Indices.Create(ctx, opensearchapi.IndicesCreateReq{
			Index: name,
			Body:  bytes.NewReader(body),
		}); err != nil {
			return ErrIndexCreationFailed.WithCause(err).WithDetail(name)
		}
		i.logger.Info("search index created", logging.String("index", name))
	}
	return nil
}

func (i *DocumentIndexer) indexExists(ctx context.Context, name string) (bool, error) {
	resp, err := i.client.api.Indices.Exists(ctx, opensearchapi.IndicesExistsReq{Indices: []string{name}})
	if resp != nil && resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, errors.ErrCodeSearchIndex, "index existence check failed").WithDetail(name)
	}
	return true, nil
}

func (i *DocumentIndexer) RheaUpserted(ctx context.Context, rec *reaction.RheaReactionRecord) error {
	return i.index(ctx, reaction.KindRhea, RheaSearchDocument(rec))
}

func (i *DocumentIndexer) EnzymeUpserted(ctx context.Context, rec *reaction.ExpasyEnzymeRecord) error {
	return i.index(ctx, reaction.KindExpasy, EnzymeSearchDocument(rec))
}

func (i *DocumentIndexer) index(ctx context.Context, kind reaction.DocumentKind, doc SearchDocument) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to marshal search document")
	}
	req := opensearchapi.IndexReq{
		Index:      i.client.IndexName(kind),
		DocumentID: doc.ID,
		Body:       bytes.NewReader(body),
	}
	if i.refresh {
		req.Params.Refresh = "true"
	}
	if _, err := i.client.api.Index(ctx, req); err != nil {
		i.logger.Error("failed to index document", logging.String("index", req.Index),
			logging.String("id", doc.ID), logging.Err(err))
		return ErrDocumentIndexFailed.WithCause(err).WithDetail(doc.ID)
	}
	return nil
}

// RheaSearchDocument flattens a Rhea record. Compound names equal to
// reaction.NoName are not indexed as text.
func RheaSearchDocument(rec *reaction.RheaReactionRecord) SearchDocument {
	ids := rec.ChEBIIDs()
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		if n := rec.ChEBI[id]; n != reaction.NoName {
			names = append(names, n)
		}
	}
	return SearchDocument{
		Kind:      reaction.KindRhea,
		ID:        rec.RheaID,
		ECNumber:  rec.ECNumber.OrElse(""),
		Compounds: names,
		ChEBIIDs:  ids,
		Timestamp: rec.Timestamp.Format(reaction.TimestampLayout),
	}
}

// EnzymeSearchDocument flattens an ENZYME record. Every constituent name is
// indexed, resolved or not, so unresolved names stay findable.
func EnzymeSearchDocument(rec *reaction.ExpasyEnzymeRecord) SearchDocument {
	seenName := map[string]bool{}
	seenID := map[string]bool{}
	doc := SearchDocument{
		Kind:        reaction.KindExpasy,
		ID:          rec.ECNumber,
		ECNumber:    rec.ECNumber,
		Description: rec.Description,
		Compounds:   []string{},
		ChEBIIDs:    []string{},
		Timestamp:   rec.Timestamp.Format(reaction.TimestampLayout),
	}
	for _, rx := range rec.Reactions {
		doc.Equations = append(doc.Equations, rx.Text)
		doc.Unresolved += rx.Unresolved()
		for _, c := range append(append([]reaction.Constituent{}, rx.Left...), rx.Right...) {
			if !seenName[c.Name] {
				seenName[c.Name] = true
				doc.Compounds = append(doc.Compounds, c.Name)
			}
			if id, ok := c.ChEBI.Get(); ok && !seenID[id] {
				seenID[id] = true
				doc.ChEBIIDs = append(doc.ChEBIIDs, id)
			}
		}
	}
	sort.Strings(doc.ChEBIIDs)
	return doc
}
