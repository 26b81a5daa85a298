package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/sentinel/internal/alerting"
	"github.com/tphakala/sentinel/internal/model"
)

// initAlertRoutes registers the alert endpoints.
func (c *Controller) initAlertRoutes() {
	if c.alerts == nil {
		return
	}
	alerts := c.Group.Group("/alerts")
	h := newResourceHandlers(c, c.alerts.AlertManager, "alerts")
	h.register(alerts)
	alerts.PUT("", h.edit)

	alerts.POST("/validate", c.ValidateAlerts)
	alerts.POST("/evaluate", c.EvaluateAlert, c.evaluateRateLimiter())
	alerts.POST("/:id/reset", c.ResetAlert)
	alerts.POST("/:id/run", c.RunAlert)
	alerts.GET("/:id/insights", c.GetAlertInsights)
	alerts.POST("/insights", c.GetUnsavedAlertInsights)
	alerts.GET("/:id/stats", c.GetAlertStats)
}

// ValidateAlerts runs create or edit validation without saving.
func (c *Controller) ValidateAlerts(ctx echo.Context) error {
	var items []*model.Alert
	if err := ctx.Bind(&items); err != nil {
		return badRequest(ctx, "Invalid request body, expected a JSON array")
	}
	if err := c.alerts.ValidateMultiple(ctx.Request().Context(), principal(ctx), items); err != nil {
		return c.HandleError(ctx, err, "Failed to validate alerts")
	}
	return ctx.JSON(http.StatusOK, map[string]bool{"valid": true})
}

// EvaluateAlert runs an alert, saved or not, over a window.
func (c *Controller) EvaluateAlert(ctx echo.Context) error {
	var req model.AlertEvaluation
	if err := ctx.Bind(&req); err != nil {
		return badRequest(ctx, "Invalid request body")
	}
	result, err := c.alerts.Evaluate(ctx.Request().Context(), principal(ctx), &req)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to evaluate alert")
	}
	return ctx.JSON(http.StatusOK, result)
}

// ResetAlert discards the alert's anomalies and replays its history.
func (c *Controller) ResetAlert(ctx echo.Context) error {
	id, err := parseUintParam(ctx, "id")
	if err != nil {
		return badRequest(ctx, "Invalid alert ID")
	}
	alert, err := c.alerts.Reset(ctx.Request().Context(), principal(ctx), id)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to reset alert")
	}
	return ctx.JSON(http.StatusOK, alert)
}

// RunAlert schedules detection over [start, end). end defaults to now.
func (c *Controller) RunAlert(ctx echo.Context) error {
	id, err := parseUintParam(ctx, "id")
	if err != nil {
		return badRequest(ctx, "Invalid alert ID")
	}
	start, err := parseInt64Query(ctx, "start")
	if err != nil {
		return badRequest(ctx, "Invalid start")
	}
	end, err := parseInt64Query(ctx, "end")
	if err != nil {
		return badRequest(ctx, "Invalid end")
	}
	task, err := c.alerts.RunTask(ctx.Request().Context(), principal(ctx), id, start, end)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to schedule alert run")
	}
	return ctx.JSON(http.StatusOK, task)
}

// GetAlertInsights returns the dataset interval and default backfill window.
func (c *Controller) GetAlertInsights(ctx echo.Context) error {
	id, err := parseUintParam(ctx, "id")
	if err != nil {
		return badRequest(ctx, "Invalid alert ID")
	}
	insights, err := c.alerts.Insights(ctx.Request().Context(), principal(ctx), id)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to get alert insights")
	}
	return ctx.JSON(http.StatusOK, insights)
}

// GetUnsavedAlertInsights returns insights for an alert given in the body.
func (c *Controller) GetUnsavedAlertInsights(ctx echo.Context) error {
	var req model.AlertInsightsRequest
	if err := ctx.Bind(&req); err != nil {
		return badRequest(ctx, "Invalid request body")
	}
	insights, err := c.alerts.InsightsFor(ctx.Request().Context(), principal(ctx), &req)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to get alert insights")
	}
	return ctx.JSON(http.StatusOK, insights)
}

// GetAlertStats counts the alert's anomalies and their feedback.
func (c *Controller) GetAlertStats(ctx echo.Context) error {
	id, err := parseUintParam(ctx, "id")
	if err != nil {
		return badRequest(ctx, "Invalid alert ID")
	}
	var q alerting.StatsQuery
	if raw := ctx.QueryParam("enumerationId"); raw != "" {
		itemID, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return badRequest(ctx, "Invalid enumerationId")
		}
		q.EnumerationItemID = new(uint)
		*q.EnumerationItemID = uint(itemID)
	}
	if q.Start, err = parseInt64Query(ctx, "startTime"); err != nil {
		return badRequest(ctx, "Invalid startTime")
	}
	if q.End, err = parseInt64Query(ctx, "endTime"); err != nil {
		return badRequest(ctx, "Invalid endTime")
	}

	stats, err := c.alerts.Stats(ctx.Request().Context(), principal(ctx), id, q)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to get alert stats")
	}
	return ctx.JSON(http.StatusOK, stats)
}
