package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/rxn-reconciler/internal/domain/reaction"
	chemresolver "github.com/turtacn/rxn-reconciler/internal/intelligence/chem_resolver"
	"github.com/turtacn/rxn-reconciler/pkg/errors"
)

const maxNameLength = 512

// ResolveHandler exposes compound resolution for one name or one equation.
type ResolveHandler struct {
	resolver chemresolver.Resolver
}

func NewResolveHandler(resolver chemresolver.Resolver) *ResolveHandler {
	return &ResolveHandler{resolver: resolver}
}

type resolveResponse struct {
	Name  string              `json:"name"`
	ChEBI reaction.Resolution `json:"chebi"`
}

// Resolve handles GET /v1/resolve?name=.
func (h *ResolveHandler) Resolve(c *gin.Context) {
	name := strings.TrimSpace(c.Query("name"))
	if name == "" {
		RespondError(c, errors.InvalidParam("query parameter name is required"))
		return
	}
	if len(name) > maxNameLength {
		RespondError(c, errors.Newf(errors.ErrCodeBadRequest, "name is longer than %d bytes", maxNameLength))
		return
	}
	RespondOK(c, resolveResponse{Name: name, ChEBI: h.resolver.Resolve(c.Request.Context(), name)})
}

type splitResponse struct {
	Reaction string                 `json:"reaction"`
	Left     []reaction.Constituent `json:"left"`
	Right    []reaction.Constituent `json:"right"`
}

// Split handles GET /v1/split?equation=. The equation is split and every
// constituent resolved, in the same way the ExPASy pass does it.
func (h *ResolveHandler) Split(c *gin.Context) {
	eq, err := reaction.SplitEquation(c.Query("equation"))
	if err != nil {
		RespondError(c, err)
		return
	}
	ctx := c.Request.Context()
	resolve := func(names []string) []reaction.Constituent {
		out := make([]reaction.Constituent, 0, len(names))
		for _, n := range names {
			out = append(out, reaction.Constituent{Name: n, ChEBI: h.resolver.Resolve(ctx, n)})
		}
		return out
	}
	RespondOK(c, splitResponse{Reaction: eq.Text, Left: resolve(eq.Left), Right: resolve(eq.Right)})
}
