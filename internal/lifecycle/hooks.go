package lifecycle

import (
	"context"

	"github.com/tphakala/sentinel/internal/authz"
	"github.com/tphakala/sentinel/internal/datastore/v2/entities"
	"github.com/tphakala/sentinel/internal/datastore/v2/repository"
	"github.com/tphakala/sentinel/internal/model"
)

// Hooks is the per-entity strategy plugged into a Manager. A is the external
// representation and T the persisted row.
type Hooks[A model.Resource, T any] interface {
	// ToEntity maps an external representation to a row.
	ToEntity(api A) (*T, error)
	// ToAPI renders a row.
	ToAPI(entity *T) A

	// Validate runs entity-specific checks. existing is nil on create.
	Validate(ctx context.Context, p authz.Principal, api A, existing *T) error
	// PrepareCreated adjusts a new row after system fields are stamped.
	PrepareCreated(ctx context.Context, p authz.Principal, entity *T) error
	// PrepareUpdated adjusts an edited row before it is saved.
	PrepareUpdated(ctx context.Context, p authz.Principal, existing, updated *T) error
	// PostCreate runs after a row was inserted.
	PostCreate(ctx context.Context, p authz.Principal, entity *T) error
	// PostUpdate runs after a row was saved.
	PostUpdate(ctx context.Context, p authz.Principal, entity *T) error
	// DeleteEntity removes a row and anything that depends on it.
	DeleteEntity(ctx context.Context, p authz.Principal, entity *T) error
}

// BaseHooks supplies the default behaviour of the lifecycle hooks. Policies
// embed it, implement the mapping pair and Validate, and override the rest
// as needed.
type BaseHooks[T any, P entities.Record[T]] struct {
	Repo repository.EntityRepository[T]
}

func (BaseHooks[T, P]) PrepareCreated(context.Context, authz.Principal, *T) error {
	return nil
}

func (BaseHooks[T, P]) PrepareUpdated(context.Context, authz.Principal, *T, *T) error {
	return nil
}

func (BaseHooks[T, P]) PostCreate(context.Context, authz.Principal, *T) error {
	return nil
}

func (BaseHooks[T, P]) PostUpdate(context.Context, authz.Principal, *T) error {
	return nil
}

// DeleteEntity removes the row only.
func (b BaseHooks[T, P]) DeleteEntity(ctx context.Context, _ authz.Principal, entity *T) error {
	return b.Repo.Delete(ctx, P(entity).Base().ID)
}
