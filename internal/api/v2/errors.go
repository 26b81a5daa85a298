package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/sentinel/internal/errors"
	"github.com/tphakala/sentinel/internal/logger"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error    string `json:"error"`
	Category string `json:"category,omitempty"`
}

// StatusFor maps an error to its HTTP status by category.
func StatusFor(err error) int {
	switch {
	case errors.IsNotFound(err):
		return http.StatusNotFound
	case errors.IsForbidden(err):
		return http.StatusForbidden
	case errors.IsInvalidArgument(err):
		return http.StatusBadRequest
	case errors.IsRateLimited(err):
		return http.StatusTooManyRequests
	case errors.IsConflict(err):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// HandleError writes err as a JSON error response. Server errors are logged
// and their details withheld from the client.
func (c *Controller) HandleError(ctx echo.Context, err error, message string) error {
	status := StatusFor(err)
	resp := ErrorResponse{Error: err.Error(), Category: string(errors.CategoryOf(err))}
	if status == http.StatusInternalServerError {
		c.log.Error(message,
			logger.Error(err),
			logger.String("method", ctx.Request().Method),
			logger.String("path", ctx.Path()))
		resp.Error = message
	}
	return ctx.JSON(status, resp)
}

func badRequest(ctx echo.Context, message string) error {
	return ctx.JSON(http.StatusBadRequest, ErrorResponse{Error: message, Category: string(errors.CategoryValidation)})
}
