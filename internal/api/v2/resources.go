package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/sentinel/internal/datastore/v2/entities"
	"github.com/tphakala/sentinel/internal/errors"
	"github.com/tphakala/sentinel/internal/lifecycle"
	"github.com/tphakala/sentinel/internal/model"
)

// resourceHandlers serves the generic lifecycle operations of one entity type.
type resourceHandlers[A model.Resource, T any, P entities.Record[T]] struct {
	c       *Controller
	manager *lifecycle.Manager[A, T, P]
	name    string
}

func newResourceHandlers[A model.Resource, T any, P entities.Record[T]](c *Controller, m *lifecycle.Manager[A, T, P], name string) *resourceHandlers[A, T, P] {
	return &resourceHandlers[A, T, P]{c: c, manager: m, name: name}
}

// register mounts list, count, get, create and delete on g. Edit is mounted
// separately because not every entity accepts it.
func (h *resourceHandlers[A, T, P]) register(g *echo.Group) {
	g.GET("", h.list)
	g.GET("/count", h.count)
	g.GET("/:id", h.get)
	g.POST("", h.create)
	g.DELETE("/:id", h.delete)
	g.DELETE("", h.deleteAll)
}

func (h *resourceHandlers[A, T, P]) list(ctx echo.Context) error {
	items, err := h.manager.List(ctx.Request().Context(), principal(ctx), ctx.QueryParams())
	if err != nil {
		return h.c.HandleError(ctx, err, "Failed to list "+h.name)
	}
	return ctx.JSON(http.StatusOK, items)
}

func (h *resourceHandlers[A, T, P]) count(ctx echo.Context) error {
	n, err := h.manager.Count(ctx.Request().Context(), principal(ctx), ctx.QueryParams())
	if err != nil {
		return h.c.HandleError(ctx, err, "Failed to count "+h.name)
	}
	return ctx.JSON(http.StatusOK, map[string]int64{"count": n})
}

func (h *resourceHandlers[A, T, P]) get(ctx echo.Context) error {
	id, err := parseUintParam(ctx, "id")
	if err != nil {
		return badRequest(ctx, "Invalid id")
	}
	item, err := h.manager.Get(ctx.Request().Context(), principal(ctx), id)
	if err != nil {
		return h.c.HandleError(ctx, err, "Failed to get "+h.name)
	}
	return ctx.JSON(http.StatusOK, item)
}

// create accepts a JSON array. Items before a failing one stay created and
// are returned alongside the error.
func (h *resourceHandlers[A, T, P]) create(ctx echo.Context) error {
	var items []A
	if err := ctx.Bind(&items); err != nil {
		return badRequest(ctx, "Invalid request body, expected a JSON array")
	}
	created, err := h.manager.CreateMultiple(ctx.Request().Context(), principal(ctx), items)
	if err != nil {
		return h.c.partialFailure(ctx, err, "Failed to create "+h.name, created)
	}
	return ctx.JSON(http.StatusOK, created)
}

func (h *resourceHandlers[A, T, P]) edit(ctx echo.Context) error {
	var items []A
	if err := ctx.Bind(&items); err != nil {
		return badRequest(ctx, "Invalid request body, expected a JSON array")
	}
	updated, err := h.manager.EditMultiple(ctx.Request().Context(), principal(ctx), items)
	if err != nil {
		return h.c.partialFailure(ctx, err, "Failed to edit "+h.name, updated)
	}
	return ctx.JSON(http.StatusOK, updated)
}

// delete returns the deleted entity, or 204 when it did not exist.
func (h *resourceHandlers[A, T, P]) delete(ctx echo.Context) error {
	id, err := parseUintParam(ctx, "id")
	if err != nil {
		return badRequest(ctx, "Invalid id")
	}
	deleted, err := h.manager.Delete(ctx.Request().Context(), principal(ctx), id)
	if err != nil {
		return h.c.HandleError(ctx, err, "Failed to delete "+h.name)
	}
	var absent A
	if any(deleted) == any(absent) {
		return ctx.NoContent(http.StatusNoContent)
	}
	return ctx.JSON(http.StatusOK, deleted)
}

func (h *resourceHandlers[A, T, P]) deleteAll(ctx echo.Context) error {
	n, err := h.manager.DeleteAll(ctx.Request().Context(), principal(ctx))
	if err != nil {
		return h.c.HandleError(ctx, err, "Failed to delete "+h.name)
	}
	return ctx.JSON(http.StatusOK, map[string]int{"deleted": n})
}

// partialFailure reports a batch error together with the items that did
// succeed.
func (c *Controller) partialFailure(ctx echo.Context, err error, message string, done any) error {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		return c.HandleError(ctx, err, message)
	}
	return ctx.JSON(status, map[string]any{
		"error":     err.Error(),
		"category":  string(errors.CategoryOf(err)),
		"succeeded": done,
	})
}

// initEnumerationItemRoutes registers the enumeration item endpoints. Items
// are immutable, so there is no edit route.
func (c *Controller) initEnumerationItemRoutes() {
	if c.items == nil {
		return
	}
	newResourceHandlers(c, c.items, "enumeration items").register(c.Group.Group("/enumeration-items"))
}

// initAnomalyRoutes registers the anomaly endpoints.
func (c *Controller) initAnomalyRoutes() {
	if c.anomalies == nil {
		return
	}
	newResourceHandlers(c, c.anomalies, "anomalies").register(c.Group.Group("/anomalies"))
}
