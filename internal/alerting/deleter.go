package alerting

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/tphakala/sentinel/internal/datastore/v2/entities"
	"github.com/tphakala/sentinel/internal/datastore/v2/repository"
	"github.com/tphakala/sentinel/internal/errors"
	"github.com/tphakala/sentinel/internal/logger"
)

const (
	deleteStepRetries = 3
	deleteStepBackoff = 50 * time.Millisecond
)

// Deleter removes an alert together with everything that references it.
// Every step is idempotent and retried on its own, so a retry never restarts
// the cascade from the top.
type Deleter struct {
	alerts    repository.AlertRepository
	anomalies repository.AnomalyRepository
	items     repository.EnumerationItemRepository
	groups    repository.SubscriptionGroupRepository
	backoff   func() retry.Backoff
	log       logger.Logger
}

// NewDeleter creates a Deleter.
func NewDeleter(
	alerts repository.AlertRepository,
	anomalies repository.AnomalyRepository,
	items repository.EnumerationItemRepository,
	groups repository.SubscriptionGroupRepository,
	log logger.Logger,
) *Deleter {
	if log == nil {
		log = logger.Discard()
	}
	return &Deleter{
		alerts:    alerts,
		anomalies: anomalies,
		items:     items,
		groups:    groups,
		backoff: func() retry.Backoff {
			return retry.WithMaxRetries(deleteStepRetries, retry.NewExponential(deleteStepBackoff))
		},
		log: log.Module("alerting"),
	}
}

type deleteStep struct {
	name string
	run  func(ctx context.Context) error
}

// Delete removes the anomalies, the enumeration items, the subscription
// group references and finally the alert row.
func (d *Deleter) Delete(ctx context.Context, alert *entities.Alert) error {
	steps := []deleteStep{
		{"anomalies", func(ctx context.Context) error {
			_, err := d.anomalies.DeleteByAlertID(ctx, alert.ID)
			return err
		}},
		{"enumeration_items", func(ctx context.Context) error {
			_, err := d.items.DeleteByAlertID(ctx, alert.ID)
			return err
		}},
		{"subscription_groups", func(ctx context.Context) error {
			return d.detachFromGroups(ctx, alert)
		}},
		{"alert", func(ctx context.Context) error {
			err := d.alerts.Delete(ctx, alert.ID)
			if errors.Is(err, repository.ErrNotFound) {
				return nil
			}
			return err
		}},
	}

	for _, step := range steps {
		if err := d.runStep(ctx, alert.ID, step); err != nil {
			return err
		}
	}
	d.log.Info("alert deleted", logger.Uint64("alert_id", uint64(alert.ID)), logger.String("namespace", alert.Namespace))
	return nil
}

func (d *Deleter) runStep(ctx context.Context, alertID uint, step deleteStep) error {
	attempt := 0
	err := retry.Do(ctx, d.backoff(), func(ctx context.Context) error {
		attempt++
		if err := step.run(ctx); err != nil {
			d.log.Warn("alert delete step failed",
				logger.Uint64("alert_id", uint64(alertID)),
				logger.String("step", step.name),
				logger.Int("attempt", attempt),
				logger.Error(err))
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return errors.New(err).
			Component("alerting").
			Category(errors.CategoryDatabase).
			Context("operation", "delete_alert").
			Context("step", step.name).
			Context("alert_id", alertID).
			Build()
	}
	return nil
}

// detachFromGroups removes the alert from the legacy alertIds property and
// from the associations of every group, whatever its namespace. Only groups
// that changed are saved.
func (d *Deleter) detachFromGroups(ctx context.Context, alert *entities.Alert) error {
	groups, err := d.groups.List(ctx, repository.Filter{})
	if err != nil {
		return err
	}
	for i := range groups {
		if !groups[i].RemoveAlert(alert.ID) {
			continue
		}
		if err := d.groups.Update(ctx, &groups[i]); err != nil {
			return err
		}
	}
	return nil
}
