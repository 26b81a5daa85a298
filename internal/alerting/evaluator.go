package alerting

import (
	"context"
	"fmt"

	"github.com/tphakala/sentinel/internal/datastore/v2/entities"
	"github.com/tphakala/sentinel/internal/datastore/v2/repository"
	"github.com/tphakala/sentinel/internal/errors"
	"github.com/tphakala/sentinel/internal/model"
)

// DefaultEvaluationKey holds results that are not scoped to an enumeration item.
const DefaultEvaluationKey = "default"

// Evaluator runs an alert over [start, end) and returns the detection results
// keyed by node. Results scoped to an enumeration item carry it.
type Evaluator interface {
	Evaluate(ctx context.Context, alert *entities.Alert, start, end int64) (map[string]model.DetectionEvaluation, error)
}

// ReplayEvaluator answers evaluations from the anomalies already stored for
// a persisted alert. Unsaved alerts have no history and evaluate to nothing.
type ReplayEvaluator struct {
	anomalies repository.AnomalyRepository
	items     repository.EnumerationItemRepository
}

// NewReplayEvaluator creates a ReplayEvaluator.
func NewReplayEvaluator(anomalies repository.AnomalyRepository, items repository.EnumerationItemRepository) *ReplayEvaluator {
	return &ReplayEvaluator{anomalies: anomalies, items: items}
}

// Evaluate groups the alert's anomalies inside the window by enumeration
// item. Anomalies of items that no longer exist are skipped.
func (r *ReplayEvaluator) Evaluate(ctx context.Context, alert *entities.Alert, start, end int64) (map[string]model.DetectionEvaluation, error) {
	results := make(map[string]model.DetectionEvaluation)
	if alert.ID == 0 {
		return results, nil
	}

	filter := repository.Filter{}.
		Where("alert_id", repository.OpEq, alert.ID).
		Where("start_time", repository.OpGte, start).
		Where("end_time", repository.OpLte, end)
	anomalies, err := r.anomalies.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	items := make(map[uint]*entities.EnumerationItem)
	for i := range anomalies {
		a := &anomalies[i]
		key := DefaultEvaluationKey
		var item *entities.EnumerationItem
		if a.EnumerationItemID != nil {
			key = fmt.Sprintf("item-%d", *a.EnumerationItemID)
			item = items[*a.EnumerationItemID]
			if item == nil {
				item, err = r.items.Get(ctx, *a.EnumerationItemID)
				if errors.Is(err, repository.ErrNotFound) {
					continue
				}
				if err != nil {
					return nil, err
				}
				items[item.ID] = item
			}
		}

		entry := results[key]
		if item != nil && entry.EnumerationItem == nil {
			entry.EnumerationItem = model.EnumerationItemFromEntity(item)
		}
		entry.Anomalies = append(entry.Anomalies, *model.AnomalyFromEntity(a))
		entry.Stats = map[string]any{"anomalyCount": len(entry.Anomalies)}
		results[key] = entry
	}
	return results, nil
}
