// Package lifecycle implements the generic create/read/update/delete pipeline
// shared by every managed entity. Entity-specific behaviour is supplied by a
// Hooks value; access control is checked before every mutating side effect.
package lifecycle

import (
	"context"
	"net/url"

	"github.com/go-playground/validator/v10"
	"github.com/jonboulle/clockwork"

	"github.com/tphakala/sentinel/internal/authz"
	"github.com/tphakala/sentinel/internal/datastore/v2/entities"
	"github.com/tphakala/sentinel/internal/datastore/v2/repository"
	"github.com/tphakala/sentinel/internal/errors"
	"github.com/tphakala/sentinel/internal/events"
	"github.com/tphakala/sentinel/internal/logger"
	"github.com/tphakala/sentinel/internal/model"
)

// Operation names used for metrics.
const (
	OpCreate = "create"
	OpEdit   = "edit"
	OpDelete = "delete"
)

// Deps are the optional collaborators of a Manager. Zero values fall back to
// a real clock, a fresh validator, no events, no metrics and a discarding
// logger.
type Deps struct {
	Clock     clockwork.Clock
	Validator *validator.Validate
	Events    events.Publisher
	Metrics   *Metrics
	Logger    logger.Logger
}

// Manager runs the lifecycle pipeline for one entity type.
type Manager[A model.Resource, T any, P entities.Record[T]] struct {
	repo     repository.EntityRepository[T]
	access   authz.AccessControl
	hooks    Hooks[A, T]
	fields   Fields
	clock    clockwork.Clock
	validate *validator.Validate
	events   events.Publisher
	metrics  *Metrics
	log      logger.Logger
	resource string
}

// NewManager creates a Manager.
func NewManager[A model.Resource, T any, P entities.Record[T]](
	repo repository.EntityRepository[T],
	access authz.AccessControl,
	hooks Hooks[A, T],
	fields Fields,
	deps Deps,
) *Manager[A, T, P] {
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	if deps.Validator == nil {
		deps.Validator = validator.New(validator.WithRequiredStructEnabled())
	}
	if deps.Logger == nil {
		deps.Logger = logger.Discard()
	}
	resource := P(new(T)).ResourceType()
	return &Manager[A, T, P]{
		repo:     repo,
		access:   access,
		hooks:    hooks,
		fields:   fields,
		clock:    deps.Clock,
		validate: deps.Validator,
		events:   deps.Events,
		metrics:  deps.Metrics,
		log:      deps.Logger.Module("lifecycle").With(logger.String("resource", resource)),
		resource: resource,
	}
}

// Resource returns the resource type managed.
func (m *Manager[A, T, P]) Resource() string {
	return m.resource
}

// List returns the entities matching params that p may read.
func (m *Manager[A, T, P]) List(ctx context.Context, p authz.Principal, params url.Values) ([]A, error) {
	filter, err := m.scopedFilter(p, params)
	if err != nil {
		return nil, err
	}
	rows, err := m.repo.List(ctx, filter)
	if err != nil {
		return nil, m.storageError("list", err)
	}

	out := make([]A, 0, len(rows))
	for i := range rows {
		if m.access.CanRead(ctx, p, P(&rows[i])) {
			out = append(out, m.hooks.ToAPI(&rows[i]))
		}
	}
	return out, nil
}

// Count returns the number of entities matching params in p's namespace.
func (m *Manager[A, T, P]) Count(ctx context.Context, p authz.Principal, params url.Values) (int64, error) {
	scope := P(new(T))
	m.access.EnrichNamespace(p, scope)
	if err := m.access.EnsureCanRead(ctx, p, scope); err != nil {
		return 0, err
	}

	filter, err := m.scopedFilter(p, params)
	if err != nil {
		return 0, err
	}
	filter.Limit, filter.Offset = 0, 0
	total, err := m.repo.Count(ctx, filter)
	if err != nil {
		return 0, m.storageError("count", err)
	}
	return total, nil
}

func (m *Manager[A, T, P]) scopedFilter(p authz.Principal, params url.Values) (repository.Filter, error) {
	filter, err := m.fields.ParseFilter(params)
	if err != nil {
		return filter, err
	}
	namespace := m.access.CurrentNamespace(p)
	filter.Namespace = &namespace
	return filter, nil
}

// Get returns a single entity.
func (m *Manager[A, T, P]) Get(ctx context.Context, p authz.Principal, id uint) (A, error) {
	var zero A
	entity, err := m.Load(ctx, id)
	if err != nil {
		return zero, err
	}
	if err := m.access.EnsureNamespace(p, P(entity)); err != nil {
		return zero, err
	}
	if err := m.access.EnsureCanRead(ctx, p, P(entity)); err != nil {
		return zero, err
	}
	return m.hooks.ToAPI(entity), nil
}

// Load fetches a row without access checks. A missing row is NotFound.
func (m *Manager[A, T, P]) Load(ctx context.Context, id uint) (*T, error) {
	entity, err := m.repo.Get(ctx, id)
	if err != nil {
		return nil, m.storageError("get", err)
	}
	return entity, nil
}

// CreateMultiple creates every item independently. The created entities are
// returned together with the joined errors of the items that failed.
func (m *Manager[A, T, P]) CreateMultiple(ctx context.Context, p authz.Principal, items []A) ([]A, error) {
	created := make([]A, 0, len(items))
	var errs []error
	for _, item := range items {
		out, err := m.create(ctx, p, item)
		m.metrics.Observe(m.resource, OpCreate, err)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		created = append(created, out)
	}
	return created, errors.Join(errs...)
}

func (m *Manager[A, T, P]) create(ctx context.Context, p authz.Principal, item A) (A, error) {
	var zero A
	if any(item) == any(zero) {
		return zero, m.invalid("item is required")
	}
	if item.GetID() != nil {
		return zero, m.invalid("id must not be set on create")
	}
	if err := m.validateStruct(ctx, item); err != nil {
		return zero, err
	}
	if err := m.hooks.Validate(ctx, p, item, nil); err != nil {
		return zero, err
	}

	entity, err := m.hooks.ToEntity(item)
	if err != nil {
		return zero, err
	}
	rec := P(entity)
	m.access.EnrichNamespace(p, rec)
	if err := m.access.EnsureCanCreate(ctx, p, rec); err != nil {
		return zero, err
	}

	now := m.clock.Now().UTC()
	base := rec.Base()
	base.ID = 0
	base.CreatedBy, base.CreateTime = p.Name, now
	base.UpdatedBy, base.UpdateTime = p.Name, now

	if err := m.hooks.PrepareCreated(ctx, p, entity); err != nil {
		return zero, err
	}
	if err := m.repo.Create(ctx, entity); err != nil {
		return zero, m.storageError("create", err)
	}
	if err := m.hooks.PostCreate(ctx, p, entity); err != nil {
		return zero, err
	}

	m.Notify(events.EventCreated, p, rec)
	m.log.Debug("entity created", logger.Uint64("id", uint64(base.ID)), logger.String("principal", p.Name))
	return m.hooks.ToAPI(entity), nil
}

// EditMultiple updates every item independently. Items must carry an id.
func (m *Manager[A, T, P]) EditMultiple(ctx context.Context, p authz.Principal, items []A) ([]A, error) {
	updated := make([]A, 0, len(items))
	var errs []error
	for _, item := range items {
		out, err := m.edit(ctx, p, item)
		m.metrics.Observe(m.resource, OpEdit, err)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		updated = append(updated, out)
	}
	return updated, errors.Join(errs...)
}

func (m *Manager[A, T, P]) edit(ctx context.Context, p authz.Principal, item A) (A, error) {
	var zero A
	if any(item) == any(zero) {
		return zero, m.invalid("item is required")
	}
	id := item.GetID()
	if id == nil {
		return zero, m.invalid("missing id")
	}
	existing, err := m.Load(ctx, *id)
	if err != nil {
		return zero, err
	}
	if err := m.access.EnsureNamespace(p, P(existing)); err != nil {
		return zero, err
	}
	if err := m.validateStruct(ctx, item); err != nil {
		return zero, err
	}
	if err := m.hooks.Validate(ctx, p, item, existing); err != nil {
		return zero, err
	}

	entity, err := m.hooks.ToEntity(item)
	if err != nil {
		return zero, err
	}
	rec := P(entity)
	old := P(existing).Base()
	base := rec.Base()
	if base.Namespace == "" {
		base.Namespace = old.Namespace
	}
	if err := m.access.EnsureCanEdit(ctx, p, P(existing), rec); err != nil {
		return zero, err
	}

	base.ID, base.Namespace = old.ID, old.Namespace
	base.CreatedBy, base.CreateTime = old.CreatedBy, old.CreateTime
	base.UpdatedBy, base.UpdateTime = p.Name, m.clock.Now().UTC()

	if err := m.hooks.PrepareUpdated(ctx, p, existing, entity); err != nil {
		return zero, err
	}
	if err := m.repo.Update(ctx, entity); err != nil {
		return zero, m.storageError("update", err)
	}
	if err := m.hooks.PostUpdate(ctx, p, entity); err != nil {
		return zero, err
	}

	m.Notify(events.EventUpdated, p, rec)
	return m.hooks.ToAPI(entity), nil
}

// Delete removes the entity with id. A missing entity is not an error: the
// zero A is returned.
func (m *Manager[A, T, P]) Delete(ctx context.Context, p authz.Principal, id uint) (A, error) {
	var zero A
	entity, err := m.repo.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return zero, nil
	}
	if err != nil {
		return zero, m.storageError("get", err)
	}

	err = m.delete(ctx, p, entity)
	m.metrics.Observe(m.resource, OpDelete, err)
	if err != nil {
		return zero, err
	}
	return m.hooks.ToAPI(entity), nil
}

// DeleteAll removes every entity of p's namespace. All entities are
// authorized before the first one is deleted.
func (m *Manager[A, T, P]) DeleteAll(ctx context.Context, p authz.Principal) (int, error) {
	rows, err := m.repo.List(ctx, repository.InNamespace(m.access.CurrentNamespace(p)))
	if err != nil {
		return 0, m.storageError("list", err)
	}
	// Every row is authorized before any row is deleted: one denial aborts the whole batch.
	for i := range rows {
		if err := m.access.EnsureCanDelete(ctx, p, P(&rows[i])); err != nil {
			return 0, err
		}
	}

	deleted := 0
	for i := range rows {
		err := m.hooks.DeleteEntity(ctx, p, &rows[i])
		m.metrics.Observe(m.resource, OpDelete, err)
		if err != nil {
			return deleted, err
		}
		m.Notify(events.EventDeleted, p, P(&rows[i]))
		deleted++
	}
	return deleted, nil
}

func (m *Manager[A, T, P]) delete(ctx context.Context, p authz.Principal, entity *T) error {
	if err := m.access.EnsureNamespace(p, P(entity)); err != nil {
		return err
	}
	if err := m.access.EnsureCanDelete(ctx, p, P(entity)); err != nil {
		return err
	}
	if err := m.hooks.DeleteEntity(ctx, p, entity); err != nil {
		return err
	}
	m.Notify(events.EventDeleted, p, P(entity))
	return nil
}

// Notify publishes a change event for entity and drops cached access
// decisions of its namespace.
func (m *Manager[A, T, P]) Notify(eventType events.EventType, p authz.Principal, entity P) {
	base := entity.Base()
	m.access.InvalidateCache(base.Namespace, m.resource)
	if m.events == nil {
		return
	}
	m.events.Publish(&events.EntityEvent{
		Type:      eventType,
		Resource:  m.resource,
		ID:        base.ID,
		Namespace: base.Namespace,
		Principal: p.Name,
		Timestamp: m.clock.Now().UTC(),
	})
}

// Observe records a policy-level operation such as a reset.
func (m *Manager[A, T, P]) Observe(operation string, err error) {
	m.metrics.Observe(m.resource, operation, err)
}

func (m *Manager[A, T, P]) validateStruct(ctx context.Context, item A) error {
	if err := m.validate.StructCtx(ctx, item); err != nil {
		return errors.New(err).
			Component("lifecycle").
			Category(errors.CategoryValidation).
			Context("resource", m.resource).
			Build()
	}
	return nil
}

func (m *Manager[A, T, P]) invalid(msg string) error {
	return errors.Newf("%s: %s", m.resource, msg).
		Component("lifecycle").
		Category(errors.CategoryValidation).
		Context("resource", m.resource).
		Build()
}

func (m *Manager[A, T, P]) storageError(operation string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return errors.New(err).
			Component("lifecycle").
			Category(errors.CategoryNotFound).
			Context("resource", m.resource).
			Build()
	}
	return errors.New(err).
		Component("lifecycle").
		Category(errors.CategoryDatabase).
		Context("resource", m.resource).
		Context("operation", operation).
		Build()
}
