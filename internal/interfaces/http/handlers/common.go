// Package handlers holds the gin handlers of the read API.
package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/rxn-reconciler/pkg/errors"
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

// APIError is the body of every non-2xx response.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// RespondError maps an error to its HTTP status. Server-side failures are
// reported with the generic message for their code so internals do not leak.
func RespondError(c *gin.Context, err error) {
	code := errors.GetCode(err)
	if code == errors.CodeUnknown {
		code = errors.ErrCodeInternal
	}
	status := errors.HTTPStatusForCode(code)

	body := APIError{Code: code.String(), Message: errors.DefaultMessageForCode(code)}
	var ae *errors.AppError
	if status < http.StatusInternalServerError && errors.As(err, &ae) {
		body.Message = ae.Message
		body.Detail = ae.Detail
	}
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(status, ErrorEnvelope{Error: body})
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

// queryLimit reads ?limit=, clamped to [1, maxLimit].
func queryLimit(c *gin.Context) (int, error) {
	raw := c.Query("limit")
	if raw == "" {
		return defaultLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, errors.Newf(errors.ErrCodeBadRequest, "limit must be a positive integer, got %q", raw)
	}
	if n > maxLimit {
		n = maxLimit
	}
	return n, nil
}

func queryOffset(c *gin.Context) (int, error) {
	raw := c.Query("offset")
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errors.Newf(errors.ErrCodeBadRequest, "offset must be a non-negative integer, got %q", raw)
	}
	return n, nil
}
