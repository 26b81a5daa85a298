package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// initSubscriptionGroupRoutes registers the subscription group endpoints.
func (c *Controller) initSubscriptionGroupRoutes() {
	if c.groups == nil {
		return
	}
	groups := c.Group.Group("/subscription-groups")
	h := newResourceHandlers(c, c.groups.GroupManager, "subscription groups")
	h.register(groups)
	groups.PUT("", h.edit)
	groups.POST("/:id/reset", c.ResetSubscriptionGroup)
}

// ResetSubscriptionGroup clears the completion watermarks of a group.
func (c *Controller) ResetSubscriptionGroup(ctx echo.Context) error {
	id, err := parseUintParam(ctx, "id")
	if err != nil {
		return badRequest(ctx, "Invalid subscription group ID")
	}
	group, err := c.groups.Reset(ctx.Request().Context(), principal(ctx), id)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to reset subscription group")
	}
	return ctx.JSON(http.StatusOK, group)
}
