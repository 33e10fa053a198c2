package handlers

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/rxn-reconciler/internal/domain/reaction"
	"github.com/turtacn/rxn-reconciler/internal/domain/reference"
	"github.com/turtacn/rxn-reconciler/pkg/errors"
)

// DocumentReader is the read side of reaction.DocumentStore.
type DocumentReader interface {
	GetRhea(ctx context.Context, rheaID string) (*reaction.RheaReactionRecord, error)
	GetEnzyme(ctx context.Context, ecnumber string) (*reaction.ExpasyEnzymeRecord, error)
	ListRheaByEC(ctx context.Context, ecnumber string) ([]*reaction.RheaReactionRecord, error)
	Count(ctx context.Context, kind reaction.DocumentKind) (int64, error)
}

// DocumentHandler serves stored documents in their persisted JSON shape.
type DocumentHandler struct {
	store DocumentReader
}

func NewDocumentHandler(store DocumentReader) *DocumentHandler {
	return &DocumentHandler{store: store}
}

// GetRhea handles GET /v1/rhea/:id. "RHEA:10000" and "10000" are the same id.
func (h *DocumentHandler) GetRhea(c *gin.Context) {
	id := reference.NormalizeRheaID(c.Param("id"))
	if err := reaction.ValidateRheaID(id); err != nil {
		RespondError(c, errors.Newf(errors.ErrCodeInvalidRheaID, "invalid Rhea id %q", c.Param("id")))
		return
	}
	rec, err := h.store.GetRhea(c.Request.Context(), id)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, rec)
}

// GetEnzyme handles GET /v1/enzymes/:ec. With ?reaction=rxn_<n> only that
// reaction is returned.
func (h *DocumentHandler) GetEnzyme(c *gin.Context) {
	ec := strings.TrimSpace(c.Param("ec"))
	if err := reaction.ValidateECNumber(ec); err != nil {
		RespondError(c, err)
		return
	}
	rec, err := h.store.GetEnzyme(c.Request.Context(), ec)
	if err != nil {
		RespondError(c, err)
		return
	}
	key := c.Query("reaction")
	if key == "" {
		RespondOK(c, rec)
		return
	}
	rx, ok := rec.Reaction(key)
	if !ok {
		RespondError(c, errors.Newf(errors.ErrCodeNotFound, "enzyme %s has no reaction %q", ec, key))
		return
	}
	rec.Reactions = []reaction.ResolvedReaction{rx}
	RespondOK(c, rec)
}

// ListRheaByEC handles GET /v1/enzymes/:ec/rhea.
func (h *DocumentHandler) ListRheaByEC(c *gin.Context) {
	ec := strings.TrimSpace(c.Param("ec"))
	if err := reaction.ValidateECNumber(ec); err != nil {
		RespondError(c, err)
		return
	}
	recs, err := h.store.ListRheaByEC(c.Request.Context(), ec)
	if err != nil {
		RespondError(c, err)
		return
	}
	if recs == nil {
		recs = []*reaction.RheaReactionRecord{}
	}
	RespondOK(c, gin.H{"ecnumber": ec, "total": len(recs), "items": recs})
}

// Stats handles GET /v1/stats.
func (h *DocumentHandler) Stats(c *gin.Context) {
	out := gin.H{}
	for _, kind := range []reaction.DocumentKind{reaction.KindRhea, reaction.KindExpasy} {
		n, err := h.store.Count(c.Request.Context(), kind)
		if err != nil {
			RespondError(c, err)
			return
		}
		out[string(kind)] = n
	}
	RespondOK(c, out)
}
