// Package alerting implements the alert lifecycle policy: cron defaults and
// rate limits, duplicate names, the lastTimestamp watermark, backfill
// scheduling, reset, evaluation and the delete cascade.
package alerting

import (
	"time"

	"github.com/tphakala/sentinel/internal/conf"
	"github.com/tphakala/sentinel/internal/lifecycle"
)

// DefaultCron fires once a minute.
const DefaultCron = "0 * * * * *"

// Config holds the alert policy settings.
type Config struct {
	// MinimumOnboardingStartTime is the earliest backfill start, epoch millis.
	MinimumOnboardingStartTime int64
	DefaultCron                string
	CronMaxTriggersPerMinute   int
	// EndTimeClockMargin is how far past now an evaluation or run may end.
	EndTimeClockMargin time.Duration
}

// ConfigFromSettings builds a Config from the lifecycle settings.
func ConfigFromSettings(s conf.LifecycleSettings) Config {
	return Config{
		MinimumOnboardingStartTime: s.MinimumOnboardingStartTime,
		DefaultCron:                s.DefaultCron,
		CronMaxTriggersPerMinute:   s.CronMaxTriggersPerMinute,
		EndTimeClockMargin:         s.EndTimeClockMargin.Std(),
	}
}

func (c Config) withDefaults() Config {
	if c.DefaultCron == "" {
		c.DefaultCron = DefaultCron
	}
	if c.CronMaxTriggersPerMinute <= 0 {
		c.CronMaxTriggersPerMinute = 6
	}
	if c.MinimumOnboardingStartTime == 0 {
		c.MinimumOnboardingStartTime = conf.DefaultMinimumOnboardingStartTime
	}
	return c
}

// Fields maps alert query parameters to columns.
var Fields = lifecycle.Fields{
	"name":          lifecycle.StringField("name"),
	"cron":          lifecycle.StringField("cron"),
	"active":        lifecycle.BoolField("active"),
	"owner":         lifecycle.StringField("owner"),
	"template.name": lifecycle.StringField("template"),
	"lastTimestamp": lifecycle.IntField("last_timestamp"),
}
