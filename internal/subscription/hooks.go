package subscription

import (
	"context"
	"strings"

	"github.com/jonboulle/clockwork"

	"github.com/tphakala/sentinel/internal/authz"
	"github.com/tphakala/sentinel/internal/datastore/v2/entities"
	"github.com/tphakala/sentinel/internal/errors"
	"github.com/tphakala/sentinel/internal/lifecycle"
	"github.com/tphakala/sentinel/internal/model"
	"github.com/tphakala/sentinel/internal/schedule"
)

// Hooks is the subscription group policy plugged into the lifecycle manager.
type Hooks struct {
	lifecycle.BaseHooks[entities.SubscriptionGroup, *entities.SubscriptionGroup]

	clock clockwork.Clock
	cfg   Config
}

var _ lifecycle.Hooks[*model.SubscriptionGroup, entities.SubscriptionGroup] = (*Hooks)(nil)

func (h *Hooks) ToEntity(api *model.SubscriptionGroup) (*entities.SubscriptionGroup, error) {
	return model.ToSubscriptionGroupEntity(api), nil
}

func (h *Hooks) ToAPI(e *entities.SubscriptionGroup) *model.SubscriptionGroup {
	return model.SubscriptionGroupFromEntity(e)
}

// Validate requires a name and a cron that stays under the trigger ceiling.
func (h *Hooks) Validate(_ context.Context, _ authz.Principal, api *model.SubscriptionGroup, _ *entities.SubscriptionGroup) error {
	if strings.TrimSpace(api.Name) == "" {
		return invalid("subscription group name is required")
	}
	cron := api.Cron
	if cron == "" {
		cron = h.cfg.DefaultCron
	}
	return schedule.Validate(cron, h.cfg.CronMaxTriggersPerMinute)
}

// PrepareCreated applies the default cron and starts every association
// without a watermark.
func (h *Hooks) PrepareCreated(_ context.Context, _ authz.Principal, e *entities.SubscriptionGroup) error {
	if e.Cron == "" {
		e.Cron = h.cfg.DefaultCron
	}
	initAssociations(e.AlertAssociations, h.clock.Now().UTC())
	return nil
}

// PrepareUpdated reconciles the associations against the stored ones.
func (h *Hooks) PrepareUpdated(_ context.Context, _ authz.Principal, existing, updated *entities.SubscriptionGroup) error {
	if updated.Cron == "" {
		updated.Cron = h.cfg.DefaultCron
	}
	updated.AlertAssociations = ReconcileAssociations(existing.AlertAssociations, updated.AlertAssociations, h.clock.Now().UTC())
	return nil
}

func invalid(msg string) error {
	return errors.Newf("%s", msg).
		Component("subscription").
		Category(errors.CategoryValidation).
		Build()
}
