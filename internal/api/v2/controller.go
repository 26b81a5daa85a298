// Package api exposes the lifecycle services over HTTP under /api/v2.
package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/tphakala/sentinel/internal/alerting"
	"github.com/tphakala/sentinel/internal/anomaly"
	"github.com/tphakala/sentinel/internal/authz"
	"github.com/tphakala/sentinel/internal/enumeration"
	"github.com/tphakala/sentinel/internal/logger"
	"github.com/tphakala/sentinel/internal/subscription"
)

// Request headers carrying the caller identity.
const (
	HeaderPrincipal = "X-Sentinel-Principal"
	HeaderNamespace = "X-Sentinel-Namespace"
)

const principalKey = "sentinel.principal"

// Evaluation replays history, so callers are throttled per principal.
const (
	evaluateRate   = 5
	evaluateBurst  = 10
	evaluateWindow = time.Minute
)

// Controller serves the v2 API.
type Controller struct {
	Group *echo.Group

	alerts    *alerting.Service
	groups    *subscription.Service
	items     *enumeration.Manager
	anomalies *anomaly.Manager
	log       logger.Logger
}

// Services are the backends of the controller.
type Services struct {
	Alerts             *alerting.Service
	SubscriptionGroups *subscription.Service
	EnumerationItems   *enumeration.Manager
	Anomalies          *anomaly.Manager
}

// New registers the v2 routes on e and returns the controller.
func New(e *echo.Echo, services Services, log logger.Logger) *Controller {
	if log == nil {
		log = logger.Discard()
	}
	c := &Controller{
		Group:     e.Group("/api/v2"),
		alerts:    services.Alerts,
		groups:    services.SubscriptionGroups,
		items:     services.EnumerationItems,
		anomalies: services.Anomalies,
		log:       log.Module("api"),
	}
	c.Group.Use(c.authMiddleware)

	c.initAlertRoutes()
	c.initSubscriptionGroupRoutes()
	c.initEnumerationItemRoutes()
	c.initAnomalyRoutes()
	return c
}

// authMiddleware resolves the principal from the identity headers.
func (c *Controller) authMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		name := strings.TrimSpace(ctx.Request().Header.Get(HeaderPrincipal))
		if name == "" {
			return ctx.JSON(http.StatusUnauthorized, map[string]string{
				"error": "Missing " + HeaderPrincipal + " header",
			})
		}
		ctx.Set(principalKey, authz.Principal{
			Name:      name,
			Namespace: strings.TrimSpace(ctx.Request().Header.Get(HeaderNamespace)),
		})
		return next(ctx)
	}
}

func principal(ctx echo.Context) authz.Principal {
	p, _ := ctx.Get(principalKey).(authz.Principal)
	return p
}

// evaluateRateLimiter throttles expensive evaluation requests per principal.
func (c *Controller) evaluateRateLimiter() echo.MiddlewareFunc {
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Skipper: middleware.DefaultSkipper,
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(
			middleware.RateLimiterMemoryStoreConfig{
				Rate:      evaluateRate,
				Burst:     evaluateBurst,
				ExpiresIn: evaluateWindow,
			},
		),
		IdentifierExtractor: func(ctx echo.Context) (string, error) {
			return principal(ctx).Name, nil
		},
		DenyHandler: func(ctx echo.Context, _ string, _ error) error {
			return ctx.JSON(http.StatusTooManyRequests, map[string]string{
				"error": "Too many evaluation requests, please wait before trying again",
			})
		},
	})
}

// parseUintParam parses a uint route parameter.
func parseUintParam(ctx echo.Context, name string) (uint, error) {
	v, err := strconv.ParseUint(ctx.Param(name), 10, 64)
	if err != nil {
		return 0, err
	}
	return uint(v), nil
}

// parseInt64Query parses an optional int64 query parameter.
func parseInt64Query(ctx echo.Context, name string) (*int64, error) {
	raw := ctx.QueryParam(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
