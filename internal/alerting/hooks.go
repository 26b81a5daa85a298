package alerting

import (
	"context"
	"strings"

	"github.com/jonboulle/clockwork"

	"github.com/tphakala/sentinel/internal/authz"
	"github.com/tphakala/sentinel/internal/datastore/v2/entities"
	"github.com/tphakala/sentinel/internal/datastore/v2/repository"
	"github.com/tphakala/sentinel/internal/errors"
	"github.com/tphakala/sentinel/internal/insights"
	"github.com/tphakala/sentinel/internal/lifecycle"
	"github.com/tphakala/sentinel/internal/logger"
	"github.com/tphakala/sentinel/internal/model"
	"github.com/tphakala/sentinel/internal/schedule"
	"github.com/tphakala/sentinel/internal/scheduler"
	"github.com/tphakala/sentinel/internal/telemetry"
)

// Hooks is the alert policy plugged into the lifecycle manager.
type Hooks struct {
	lifecycle.BaseHooks[entities.Alert, *entities.Alert]

	alerts   repository.AlertRepository
	access   authz.AccessControl
	deleter  *Deleter
	tasks    scheduler.TaskScheduler
	insights insights.Provider
	clock    clockwork.Clock
	cfg      Config
	log      logger.Logger
}

var _ lifecycle.Hooks[*model.Alert, entities.Alert] = (*Hooks)(nil)

func (h *Hooks) ToEntity(api *model.Alert) (*entities.Alert, error) {
	return model.ToAlertEntity(api), nil
}

func (h *Hooks) ToAPI(e *entities.Alert) *model.Alert {
	return model.AlertFromEntity(e)
}

// Validate checks the name, the cron schedule and name uniqueness within the
// namespace. Uniqueness is only checked on create or when the name changes.
func (h *Hooks) Validate(ctx context.Context, p authz.Principal, api *model.Alert, existing *entities.Alert) error {
	if strings.TrimSpace(api.Name) == "" {
		return invalid("alert name is required")
	}

	cron := api.Cron
	if cron == "" {
		cron = h.cfg.DefaultCron
	}
	if err := schedule.Validate(cron, h.cfg.CronMaxTriggersPerMinute); err != nil {
		return err
	}

	if existing != nil && existing.Name == api.Name {
		return nil
	}
	namespace := h.access.CurrentNamespace(p)
	switch {
	case existing != nil:
		namespace = existing.Namespace
	case api.Namespace != "":
		namespace = api.Namespace
	}
	same, err := h.alerts.FindByName(ctx, namespace, api.Name)
	if err != nil {
		return errors.New(err).
			Component("alerting").
			Category(errors.CategoryDatabase).
			Context("operation", "find_by_name").
			Build()
	}
	for i := range same {
		if existing == nil || same[i].ID != existing.ID {
			return errors.Newf("an alert named %q already exists", api.Name).
				Component("alerting").
				Category(errors.CategoryValidation).
				Context("name", api.Name).
				Context("namespace", namespace).
				Build()
		}
	}
	return nil
}

// PrepareCreated applies the default cron, assigns the owner and starts the
// watermark at the backfill floor.
func (h *Hooks) PrepareCreated(ctx context.Context, p authz.Principal, e *entities.Alert) error {
	if e.Cron == "" {
		e.Cron = h.cfg.DefaultCron
	}
	e.Owner = p.Name
	e.LastTimestamp = h.floor(ctx, e)
	return nil
}

// PrepareUpdated keeps the stored watermark and owner; clients cannot move
// the watermark through an edit.
func (h *Hooks) PrepareUpdated(_ context.Context, _ authz.Principal, existing, updated *entities.Alert) error {
	updated.LastTimestamp = existing.LastTimestamp
	if updated.Cron == "" {
		updated.Cron = h.cfg.DefaultCron
	}
	if updated.Owner == "" {
		updated.Owner = existing.Owner
	}
	return nil
}

// PostCreate backfills from the floor up to now.
func (h *Hooks) PostCreate(ctx context.Context, _ authz.Principal, e *entities.Alert) error {
	h.scheduleDetection(ctx, e, e.LastTimestamp, h.clock.Now().UnixMilli())
	return nil
}

// PostUpdate schedules an empty soft-reset task at the watermark, then a
// replay of history from the floor up to the watermark. The two tasks are
// independent: a failure of one does not prevent the other.
func (h *Hooks) PostUpdate(ctx context.Context, _ authz.Principal, e *entities.Alert) error {
	last := e.LastTimestamp
	h.scheduleDetection(ctx, e, last, last)
	h.scheduleDetection(ctx, e, min(h.floor(ctx, e), last), last)
	return nil
}

// DeleteEntity runs the delete cascade.
func (h *Hooks) DeleteEntity(ctx context.Context, _ authz.Principal, e *entities.Alert) error {
	return h.deleter.Delete(ctx, e)
}

// floor returns the backfill floor of e. Lookup failures fall back to the
// platform minimum.
func (h *Hooks) floor(ctx context.Context, e *entities.Alert) int64 {
	floor, err := insights.BackfillFloor(ctx, h.insights, e, h.cfg.MinimumOnboardingStartTime)
	if err != nil {
		h.log.Warn("could not resolve dataset interval, using minimum onboarding start time",
			logger.String("alert", e.Name),
			logger.String("dataset", e.Dataset()),
			logger.Int64("floor", floor),
			logger.Error(err))
	}
	return floor
}

// scheduleDetection records a detection task. Failures are logged and
// reported; they never undo the mutation that triggered them.
func (h *Hooks) scheduleDetection(ctx context.Context, e *entities.Alert, start, end int64) {
	_, err := h.tasks.Schedule(ctx, scheduler.TaskRequest{
		RefID:     e.ID,
		Type:      entities.TaskTypeDetection,
		Namespace: e.Namespace,
		Start:     start,
		End:       end,
	})
	if err != nil {
		h.log.Error("failed to schedule detection task",
			logger.Uint64("alert_id", uint64(e.ID)),
			logger.Int64("start", start),
			logger.Int64("end", end),
			logger.Error(err))
		telemetry.CaptureError(err, "alerting")
	}
}

func invalid(msg string) error {
	return errors.Newf("%s", msg).
		Component("alerting").
		Category(errors.CategoryValidation).
		Build()
}
