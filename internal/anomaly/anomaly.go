// Package anomaly manages detection results.
package anomaly

import (
	"context"

	"github.com/tphakala/sentinel/internal/authz"
	"github.com/tphakala/sentinel/internal/datastore/v2/entities"
	"github.com/tphakala/sentinel/internal/datastore/v2/repository"
	"github.com/tphakala/sentinel/internal/enumeration"
	"github.com/tphakala/sentinel/internal/errors"
	"github.com/tphakala/sentinel/internal/lifecycle"
	"github.com/tphakala/sentinel/internal/model"
)

// Fields maps anomaly query parameters to columns.
var Fields = lifecycle.Fields{
	"alert.id":           lifecycle.IntField("alert_id"),
	"enumerationItem.id": lifecycle.IntField("enumeration_item_id"),
	"startTime":          lifecycle.IntField("start_time"),
	"endTime":            lifecycle.IntField("end_time"),
	"isChild":            lifecycle.BoolField("is_child"),
	"metric":             lifecycle.StringField("metric"),
	"feedback":           lifecycle.StringField("feedback"),
}

// Manager is the lifecycle manager specialised for anomalies.
type Manager = lifecycle.Manager[*model.Anomaly, entities.Anomaly, *entities.Anomaly]

// Hooks is the anomaly policy.
type Hooks struct {
	lifecycle.BaseHooks[entities.Anomaly, *entities.Anomaly]

	alerts repository.AlertRepository
	items  repository.EnumerationItemRepository
}

var _ lifecycle.Hooks[*model.Anomaly, entities.Anomaly] = (*Hooks)(nil)

func (h *Hooks) ToEntity(api *model.Anomaly) (*entities.Anomaly, error) {
	return model.ToAnomalyEntity(api), nil
}

func (h *Hooks) ToAPI(e *entities.Anomaly) *model.Anomaly {
	return model.AnomalyFromEntity(e)
}

// Validate requires an existing alert. An enumeration item, when given, must
// belong to that alert.
func (h *Hooks) Validate(ctx context.Context, _ authz.Principal, api *model.Anomaly, _ *entities.Anomaly) error {
	if api.Alert == nil || api.Alert.ID == 0 {
		return invalid("anomaly requires alert.id")
	}
	if err := enumeration.RequireAlert(ctx, h.alerts, api.Alert.ID, "anomaly"); err != nil {
		return err
	}
	if api.EnumerationItem == nil || h.items == nil {
		return nil
	}

	item, err := h.items.Get(ctx, api.EnumerationItem.ID)
	if errors.Is(err, repository.ErrNotFound) {
		return invalid("enumeration item does not exist")
	}
	if err != nil {
		return errors.New(err).
			Component("anomaly").
			Category(errors.CategoryDatabase).
			Context("operation", "get_enumeration_item").
			Build()
	}
	if item.AlertID != api.Alert.ID {
		return errors.Newf("enumeration item %d belongs to alert %d", item.ID, item.AlertID).
			Component("anomaly").
			Category(errors.CategoryValidation).
			Context("alert_id", api.Alert.ID).
			Build()
	}
	return nil
}

// NewManager wires the anomaly policy into a lifecycle manager.
func NewManager(
	anomalies repository.AnomalyRepository,
	alerts repository.AlertRepository,
	items repository.EnumerationItemRepository,
	access authz.AccessControl,
	deps lifecycle.Deps,
) *Manager {
	hooks := &Hooks{
		BaseHooks: lifecycle.BaseHooks[entities.Anomaly, *entities.Anomaly]{Repo: anomalies},
		alerts:    alerts,
		items:     items,
	}
	return lifecycle.NewManager[*model.Anomaly, entities.Anomaly, *entities.Anomaly](
		anomalies, access, hooks, Fields, deps)
}

func invalid(msg string) error {
	return errors.Newf("%s", msg).
		Component("anomaly").
		Category(errors.CategoryValidation).
		Build()
}
