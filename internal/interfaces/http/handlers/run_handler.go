package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/turtacn/rxn-reconciler/internal/config"
	"github.com/turtacn/rxn-reconciler/internal/domain/reaction"
	"github.com/turtacn/rxn-reconciler/pkg/errors"
)

type RunHandler struct {
	runs reaction.RunLog
}

func NewRunHandler(runs reaction.RunLog) *RunHandler {
	return &RunHandler{runs: runs}
}

// List handles GET /v1/runs?pass=&limit=, newest first.
func (h *RunHandler) List(c *gin.Context) {
	pass := c.Query("pass")
	if pass != "" && pass != config.PassRhea && pass != config.PassExpasy {
		RespondError(c, errors.Newf(errors.ErrCodeBadRequest, "unknown pass %q", pass))
		return
	}
	limit, err := queryLimit(c)
	if err != nil {
		RespondError(c, err)
		return
	}
	runs, err := h.runs.RecentRuns(c.Request.Context(), pass, limit)
	if err != nil {
		RespondError(c, err)
		return
	}
	if runs == nil {
		runs = []reaction.RunRecord{}
	}
	RespondOK(c, gin.H{"total": len(runs), "items": runs})
}
