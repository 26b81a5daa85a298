// Package insights answers which time range of data is available for an
// alert. The range decides how far back a backfill may reach.
package insights

import (
	"context"

	"github.com/tphakala/sentinel/internal/datastore/v2/entities"
)

// Interval is the span of data available for a dataset, epoch millis. Nil
// bounds are unknown.
type Interval struct {
	Start *int64
	End   *int64
}

// Provider resolves the data interval of the dataset an alert reads.
type Provider interface {
	DatasetInterval(ctx context.Context, alert *entities.Alert) (Interval, error)
}

// BackfillFloor returns the earliest timestamp a backfill for alert may start
// from: the dataset start clamped to minimum. When the interval cannot be
// resolved minimum is returned together with the error, which callers log.
func BackfillFloor(ctx context.Context, provider Provider, alert *entities.Alert, minimum int64) (int64, error) {
	if provider == nil {
		return minimum, nil
	}
	interval, err := provider.DatasetInterval(ctx, alert)
	if err != nil {
		return minimum, err
	}
	if interval.Start == nil {
		return minimum, nil
	}
	return max(*interval.Start, minimum), nil
}
