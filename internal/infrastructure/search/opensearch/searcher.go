package opensearch

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"

	"github.com/opensearch-project/opensearch-go/v3/opensearchapi"

	"github.com/turtacn/rxn-reconciler/internal/domain/reaction"
	"github.com/turtacn/rxn-reconciler/pkg/errors"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// SearchQuery is a free-text query over one or both document kinds.
type SearchQuery struct {
	Text string
	// Kind restricts the search; empty searches both indices.
	Kind   reaction.DocumentKind
	Offset int
	Limit  int
}

type SearchHit struct {
	Kind     reaction.DocumentKind `json:"kind"`
	ID       string                `json:"id"`
	ECNumber string                `json:"ecnumber,omitempty"`
	Score    float64               `json:"score"`
	Document SearchDocument        `json:"document"`
}

type SearchResult struct {
	Total int64       `json:"total"`
	Hits  []SearchHit `json:"hits"`
}

// Searcher runs read-side queries.
type Searcher struct {
	client *Client
}

func NewSearcher(client *Client) *Searcher {
	return &Searcher{client: client}
}

// Search matches Text against compound names, equations, descriptions and
// exact identifiers (EC numbers and CHEBI ids).
func (s *Searcher) Search(ctx context.Context, q SearchQuery) (*SearchResult, error) {
	text := strings.TrimSpace(q.Text)
	if text == "" {
		return nil, errors.New(errors.ErrCodeBadRequest, "search text is required")
	}
	if q.Kind != "" && !q.Kind.Valid() {
		return nil, errors.Newf(errors.ErrCodeBadRequest, "unknown document kind %q", q.Kind)
	}
	body, err := json.Marshal(buildQuery(text, q.Offset, clampLimit(q.Limit)))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to marshal search body")
	}

	indices := []string{s.client.IndexName(reaction.KindRhea), s.client.IndexName(reaction.KindExpasy)}
	if q.Kind != "" {
		indices = []string{s.client.IndexName(q.Kind)}
	}
	resp, err := s.client.api.Search(ctx, &opensearchapi.SearchReq{
		Indices: indices,
		Body:    bytes.NewReader(body),
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSearchIndex, "search failed")
	}

	out := &SearchResult{Total: int64(resp.Hits.Total.Value), Hits: make([]SearchHit, 0, len(resp.Hits.Hits))}
	for _, h := range resp.Hits.Hits {
		var doc SearchDocument
		if err := json.Unmarshal(h.Source, &doc); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to decode search hit").WithDetail(h.ID)
		}
		out.Hits = append(out.Hits, SearchHit{
			Kind:     doc.Kind,
			ID:       h.ID,
			ECNumber: doc.ECNumber,
			Score:    float64(h.Score),
			Document: doc,
		})
	}
	return out, nil
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return defaultPageSize
	case limit > maxPageSize:
		return maxPageSize
	}
	return limit
}

func buildQuery(text string, offset, limit int) map[string]any {
	if offset < 0 {
		offset = 0
	}
	return map[string]any{
		"from": offset,
		"size": limit,
		"query": map[string]any{
			"bool": map[string]any{
				"should": []any{
					map[string]any{"multi_match": map[string]any{
						"query":  text,
						"fields": []string{"compounds^3", "description^2", "equations"},
					}},
					map[string]any{"term": map[string]any{"chebi_ids": map[string]any{"value": text, "boost": 5}}},
					map[string]any{"term": map[string]any{"ecnumber": map[string]any{"value": text, "boost": 5}}},
					map[string]any{"term": map[string]any{"id": map[string]any{"value": text, "boost": 5}}},
				},
				"minimum_should_match": 1,
			},
		},
		"sort": []any{"_score", map[string]any{"id": "asc"}},
	}
}
