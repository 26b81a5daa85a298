// Package schedule parses cron expressions and guards against schedules that
// fire too often.
package schedule

import (
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/tphakala/sentinel/internal/errors"
)

// simulatedFirings is how many consecutive firings MaxTriggersPerMinute
// inspects. A schedule cannot fire more than 60 times in a minute, so two
// full minutes of firings are enough to find the densest window.
const simulatedFirings = 121

// referenceTime anchors the simulation so results are deterministic.
var referenceTime = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

var parser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// normalize trims whitespace and drops a trailing Quartz year field when it
// matches every year.
func normalize(expr string) string {
	fields := strings.Fields(expr)
	if len(fields) == 7 && (fields[6] == "*" || fields[6] == "?") {
		fields = fields[:6]
	}
	return strings.Join(fields, " ")
}

// Parse parses expr. Five-field, six-field (leading seconds), descriptor
// (@hourly, @every 5m) and Quartz seven-field expressions with a wildcard
// year are accepted.
func Parse(expr string) (cron.Schedule, error) {
	normalized := normalize(expr)
	if normalized == "" {
		return nil, invalidCron(expr, errors.NewStd("empty expression"))
	}
	sched, err := parser.Parse(normalized)
	if err != nil {
		return nil, invalidCron(expr, err)
	}
	return sched, nil
}

// MaxTriggersPerMinute returns the largest number of times expr fires inside
// any 60 second window.
func MaxTriggersPerMinute(expr string) (int, error) {
	sched, err := Parse(expr)
	if err != nil {
		return 0, err
	}

	firings := make([]time.Time, 0, simulatedFirings)
	next := referenceTime
	for range simulatedFirings {
		next = sched.Next(next)
		if next.IsZero() {
			break
		}
		firings = append(firings, next)
	}

	maxCount := 0
	end := 0
	for start := range firings {
		windowEnd := firings[start].Add(time.Minute)
		if end < start {
			end = start
		}
		for end < len(firings) && firings[end].Before(windowEnd) {
			end++
		}
		maxCount = max(maxCount, end-start)
	}
	return maxCount, nil
}

// Validate checks that expr parses and fires at most maxPerMinute times per
// minute. Malformed expressions are validation errors; schedules above the
// ceiling are rate-limit errors.
func Validate(expr string, maxPerMinute int) error {
	count, err := MaxTriggersPerMinute(expr)
	if err != nil {
		return err
	}
	if count > maxPerMinute {
		return errors.Newf("cron %q can trigger up to %d times per minute, the limit is %d", expr, count, maxPerMinute).
			Component("schedule").
			Category(errors.CategoryRateLimit).
			Context("cron", expr).
			Context("triggers_per_minute", count).
			Context("limit", maxPerMinute).
			Build()
	}
	return nil
}

func invalidCron(expr string, cause error) error {
	return errors.Newf("invalid cron expression %q: %w", expr, cause).
		Component("schedule").
		Category(errors.CategoryValidation).
		Context("cron", expr).
		Build()
}
