package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/rxn-reconciler/internal/domain/reaction"
	"github.com/turtacn/rxn-reconciler/internal/domain/reference"
	"github.com/turtacn/rxn-reconciler/internal/infrastructure/database/neo4j"
	"github.com/turtacn/rxn-reconciler/internal/infrastructure/search/opensearch"
	"github.com/turtacn/rxn-reconciler/pkg/errors"
)

type Searcher interface {
	Search(ctx context.Context, q opensearch.SearchQuery) (*opensearch.SearchResult, error)
}

type CompoundGraph interface {
	CompoundReactions(ctx context.Context, chebiID string, limit int) ([]neo4j.CompoundReaction, error)
}

// SearchHandler serves the secondary read models. Either dependency may be
// nil, in which case its endpoint answers 503.
type SearchHandler struct {
	searcher Searcher
	graph    CompoundGraph
}

func NewSearchHandler(searcher Searcher, graph CompoundGraph) *SearchHandler {
	return &SearchHandler{searcher: searcher, graph: graph}
}

// Search handles GET /v1/search?q=&kind=&offset=&limit=.
func (h *SearchHandler) Search(c *gin.Context) {
	if h.searcher == nil {
		RespondError(c, errors.New(errors.ErrCodeServiceUnavailable, "search index is not enabled"))
		return
	}
	limit, err := queryLimit(c)
	if err != nil {
		RespondError(c, err)
		return
	}
	offset, err := queryOffset(c)
	if err != nil {
		RespondError(c, err)
		return
	}
	res, err := h.searcher.Search(c.Request.Context(), opensearch.SearchQuery{
		Text:   c.Query("q"),
		Kind:   reaction.DocumentKind(c.Query("kind")),
		Offset: offset,
		Limit:  limit,
	})
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, res)
}

// CompoundReactions handles GET /v1/compounds/:chebi/reactions.
func (h *SearchHandler) CompoundReactions(c *gin.Context) {
	if h.graph == nil {
		RespondError(c, errors.New(errors.ErrCodeServiceUnavailable, "reaction graph is not enabled"))
		return
	}
	id := reference.NormalizeChEBIID(c.Param("chebi"))
	if id == "" {
		RespondError(c, errors.Newf(errors.ErrCodeBadRequest, "invalid ChEBI id %q", c.Param("chebi")))
		return
	}
	limit, err := queryLimit(c)
	if err != nil {
		RespondError(c, err)
		return
	}
	rows, err := h.graph.CompoundReactions(c.Request.Context(), id, limit)
	if err != nil {
		RespondError(c, err)
		return
	}
	if rows == nil {
		rows = []neo4j.CompoundReaction{}
	}
	RespondOK(c, gin.H{"chebi_id": id, "total": len(rows), "items": rows})
}
