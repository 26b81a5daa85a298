// Package api hosts the HTTP server: middleware, health and metrics
// endpoints, and the versioned API controllers.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	v2 "github.com/tphakala/sentinel/internal/api/v2"
	"github.com/tphakala/sentinel/internal/errors"
	"github.com/tphakala/sentinel/internal/logger"
)

// HealthCheck reports whether a dependency is usable.
type HealthCheck func(ctx context.Context) error

// Options configure a Server.
type Options struct {
	Services v2.Services
	Gatherer prometheus.Gatherer
	// Checks are run by /health, keyed by dependency name.
	Checks map[string]HealthCheck
	Debug  bool
	Logger logger.Logger
}

// Server is the HTTP front end of the service.
type Server struct {
	echo   *echo.Echo
	checks map[string]HealthCheck
	log    logger.Logger
}

// NewServer builds the echo instance and registers every route.
func NewServer(opts Options) *Server {
	log := opts.Logger
	if log == nil {
		log = logger.Discard()
	}
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Debug = opts.Debug

	s := &Server{echo: e, checks: opts.Checks, log: log.Module("http")}

	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			fields := []logger.Field{
				logger.String("method", v.Method),
				logger.String("uri", v.URI),
				logger.Int("status", v.Status),
				logger.Duration("latency", v.Latency),
			}
			if v.Error != nil {
				s.log.Warn("request failed", append(fields, logger.Error(v.Error))...)
				return nil
			}
			s.log.Debug("request", fields...)
			return nil
		},
	}))

	e.GET("/health", s.health)
	if opts.Gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	}
	v2.New(e, opts.Services, log)
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start serves on addr until Shutdown. It returns nil after a graceful stop.
func (s *Server) Start(addr string) error {
	s.log.Info("http server listening", logger.String("addr", addr))
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) health(ctx echo.Context) error {
	reqCtx, cancel := context.WithTimeout(ctx.Request().Context(), 5*time.Second)
	defer cancel()

	status := http.StatusOK
	results := make(map[string]string, len(s.checks))
	for name, check := range s.checks {
		if err := check(reqCtx); err != nil {
			status = http.StatusServiceUnavailable
			results[name] = err.Error()
			continue
		}
		results[name] = "ok"
	}
	state := "ok"
	if status != http.StatusOK {
		state = "degraded"
	}
	return ctx.JSON(status, map[string]any{"status": state, "checks": results})
}
