// Package enumeration manages enumeration items. Items are created by
// detection and are never edited: they are regenerated from the alert or
// deleted.
package enumeration

import (
	"context"

	"github.com/tphakala/sentinel/internal/authz"
	"github.com/tphakala/sentinel/internal/datastore/v2/entities"
	"github.com/tphakala/sentinel/internal/datastore/v2/repository"
	"github.com/tphakala/sentinel/internal/errors"
	"github.com/tphakala/sentinel/internal/lifecycle"
	"github.com/tphakala/sentinel/internal/model"
)

// Fields maps enumeration item query parameters to columns.
var Fields = lifecycle.Fields{
	"alert.id": lifecycle.IntField("alert_id"),
	"name":     lifecycle.StringField("name"),
}

// Manager is the lifecycle manager specialised for enumeration items.
type Manager = lifecycle.Manager[*model.EnumerationItem, entities.EnumerationItem, *entities.EnumerationItem]

// Hooks is the enumeration item policy.
type Hooks struct {
	lifecycle.BaseHooks[entities.EnumerationItem, *entities.EnumerationItem]

	alerts repository.AlertRepository
}

var _ lifecycle.Hooks[*model.EnumerationItem, entities.EnumerationItem] = (*Hooks)(nil)

func (h *Hooks) ToEntity(api *model.EnumerationItem) (*entities.EnumerationItem, error) {
	return model.ToEnumerationItemEntity(api), nil
}

func (h *Hooks) ToAPI(e *entities.EnumerationItem) *model.EnumerationItem {
	return model.EnumerationItemFromEntity(e)
}

// Validate rejects every edit and requires the parent alert to exist.
func (h *Hooks) Validate(ctx context.Context, _ authz.Principal, api *model.EnumerationItem, existing *entities.EnumerationItem) error {
	if existing != nil {
		return errors.Newf("enumeration items are immutable").
			Component("enumeration").
			Category(errors.CategoryValidation).
			Context("enumeration_item_id", existing.ID).
			Build()
	}
	if api.Alert == nil || api.Alert.ID == 0 {
		return errors.Newf("enumeration item requires alert.id").
			Component("enumeration").
			Category(errors.CategoryValidation).
			Build()
	}
	return RequireAlert(ctx, h.alerts, api.Alert.ID, "enumeration")
}

// NewManager wires the enumeration item policy into a lifecycle manager.
func NewManager(items repository.EnumerationItemRepository, alerts repository.AlertRepository, access authz.AccessControl, deps lifecycle.Deps) *Manager {
	hooks := &Hooks{
		BaseHooks: lifecycle.BaseHooks[entities.EnumerationItem, *entities.EnumerationItem]{Repo: items},
		alerts:    alerts,
	}
	return lifecycle.NewManager[*model.EnumerationItem, entities.EnumerationItem, *entities.EnumerationItem](
		items, access, hooks, Fields, deps)
}

// RequireAlert fails with a validation error when alertID does not exist.
// A nil repository skips the check.
func RequireAlert(ctx context.Context, alerts repository.AlertRepository, alertID uint, component string) error {
	if alerts == nil {
		return nil
	}
	_, err := alerts.Get(ctx, alertID)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return errors.Newf("alert %d does not exist", alertID).
			Component(component).
			Category(errors.CategoryValidation).
			Context("alert_id", alertID).
			Build()
	default:
		return errors.New(err).
			Component(component).
			Category(errors.CategoryDatabase).
			Context("operation", "get_alert").
			Build()
	}
}
