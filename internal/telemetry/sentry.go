// Package telemetry reports unexpected failures to Sentry. All functions are
// no-ops until Init has been called with telemetry enabled.
package telemetry

import (
	"sync/atomic"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/tphakala/sentinel/internal/errors"
)

// Settings configures error reporting.
type Settings struct {
	Enabled     bool
	DSN         string
	Environment string
	Release     string
}

var enabled atomic.Bool

// Init configures the Sentry client.
func Init(s Settings) error {
	if !s.Enabled {
		enabled.Store(false)
		return nil
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              s.DSN,
		Environment:      s.Environment,
		Release:          s.Release,
		AttachStacktrace: true,
	})
	if err != nil {
		return errors.New(err).
			Component("telemetry").
			Category(errors.CategoryConfiguration).
			Context("operation", "sentry_init").
			Build()
	}
	enabled.Store(true)
	return nil
}

// Enabled reports whether errors are currently forwarded.
func Enabled() bool {
	return enabled.Load()
}

// CaptureError forwards err tagged with component and, when err is an
// EnhancedError, its category and context.
func CaptureError(err error, component string) {
	if err == nil || !enabled.Load() {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("component", component)
		var ee *errors.EnhancedError
		if errors.As(err, &ee) {
			scope.SetTag("category", string(ee.GetCategory()))
			scope.SetContext("error", sentry.Context(ee.GetContext()))
		}
		sentry.CaptureException(err)
	})
}

// Flush waits for buffered events to be delivered.
func Flush(timeout time.Duration) {
	if enabled.Load() {
		sentry.Flush(timeout)
	}
}
