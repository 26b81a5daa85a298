package authz

import (
	"context"

	"github.com/tphakala/sentinel/internal/datastore/v2/entities"
	"github.com/tphakala/sentinel/internal/errors"
)

// AccessControl decides read and mutation rights of a principal over
// persisted entities.
type AccessControl interface {
	// CurrentNamespace returns the namespace the principal operates in.
	CurrentNamespace(p Principal) string
	// EnrichNamespace assigns the principal's namespace to a new entity that
	// does not carry one.
	EnrichNamespace(p Principal, e entities.Entity)
	// EnsureNamespace fails with Forbidden when e lives outside the
	// principal's namespace.
	EnsureNamespace(p Principal, e entities.Entity) error

	CanRead(ctx context.Context, p Principal, e entities.Entity) bool
	EnsureCanRead(ctx context.Context, p Principal, e entities.Entity) error
	EnsureCanCreate(ctx context.Context, p Principal, e entities.Entity) error
	// EnsureCanEdit checks both the stored and the proposed entity.
	EnsureCanEdit(ctx context.Context, p Principal, existing, updated entities.Entity) error
	EnsureCanDelete(ctx context.Context, p Principal, e entities.Entity) error
	EnsureHasAccess(ctx context.Context, p Principal, e entities.Entity, action Action) error

	// InvalidateCache drops cached decisions for a namespace and resource type.
	InvalidateCache(namespace, resource string)
}

func forbidden(p Principal, e entities.Entity, action Action, reason string) error {
	return errors.Newf("principal %q is not allowed to %s %s: %s", p.Name, action, e.ResourceType(), reason).
		Component("authz").
		Category(errors.CategoryForbidden).
		Context("principal", p.Name).
		Context("namespace", e.Base().Namespace).
		Context("resource", e.ResourceType()).
		Context("action", string(action)).
		Build()
}
