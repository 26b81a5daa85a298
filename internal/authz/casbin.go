package authz

import (
	"context"
	"strings"
	"time"

	"github.com/casbin/casbin/v2"
	gocache "github.com/patrickmn/go-cache"

	"github.com/tphakala/sentinel/internal/datastore/v2/entities"
	"github.com/tphakala/sentinel/internal/logger"
)

const keySeparator = "|"

// CasbinAccessControl implements AccessControl with a casbin enforcer and a
// TTL decision cache.
type CasbinAccessControl struct {
	enforcer casbin.IEnforcer
	mode     Mode
	cache    *gocache.Cache
	log      logger.Logger
}

var _ AccessControl = (*CasbinAccessControl)(nil)

// NewCasbinAccessControl wraps enforcer. A cacheTTL of zero disables caching.
func NewCasbinAccessControl(enforcer casbin.IEnforcer, mode Mode, cacheTTL time.Duration, log logger.Logger) *CasbinAccessControl {
	ac := &CasbinAccessControl{
		enforcer: enforcer,
		mode:     mode,
		log:      log.Module("authz"),
	}
	if cacheTTL > 0 {
		ac.cache = gocache.New(cacheTTL, 2*cacheTTL)
	}
	return ac
}

// CurrentNamespace returns the principal's active namespace.
func (a *CasbinAccessControl) CurrentNamespace(p Principal) string {
	return p.Namespace
}

// EnrichNamespace sets the namespace of e when it is empty.
func (a *CasbinAccessControl) EnrichNamespace(p Principal, e entities.Entity) {
	if base := e.Base(); base.Namespace == "" {
		base.Namespace = a.CurrentNamespace(p)
	}
}

// EnsureNamespace rejects entities from another namespace.
func (a *CasbinAccessControl) EnsureNamespace(p Principal, e entities.Entity) error {
	if e.Base().Namespace != a.CurrentNamespace(p) {
		return forbidden(p, e, ActionRead, "entity belongs to another namespace")
	}
	return nil
}

// CanRead reports whether p may read e.
func (a *CasbinAccessControl) CanRead(ctx context.Context, p Principal, e entities.Entity) bool {
	return a.EnsureHasAccess(ctx, p, e, ActionRead) == nil
}

func (a *CasbinAccessControl) EnsureCanRead(ctx context.Context, p Principal, e entities.Entity) error {
	return a.EnsureHasAccess(ctx, p, e, ActionRead)
}

func (a *CasbinAccessControl) EnsureCanCreate(ctx context.Context, p Principal, e entities.Entity) error {
	return a.EnsureHasAccess(ctx, p, e, ActionCreate)
}

// EnsureCanEdit requires update rights on both versions so an edit cannot
// move an entity across namespaces.
func (a *CasbinAccessControl) EnsureCanEdit(ctx context.Context, p Principal, existing, updated entities.Entity) error {
	if err := a.EnsureHasAccess(ctx, p, existing, ActionUpdate); err != nil {
		return err
	}
	return a.EnsureHasAccess(ctx, p, updated, ActionUpdate)
}

func (a *CasbinAccessControl) EnsureCanDelete(ctx context.Context, p Principal, e entities.Entity) error {
	return a.EnsureHasAccess(ctx, p, e, ActionDelete)
}

// EnsureHasAccess checks the namespace boundary and then the policy.
func (a *CasbinAccessControl) EnsureHasAccess(_ context.Context, p Principal, e entities.Entity, action Action) error {
	if a.mode == ModeDisabled {
		return nil
	}

	namespace := e.Base().Namespace
	reason := ""
	if namespace != a.CurrentNamespace(p) {
		reason = "entity belongs to another namespace"
	} else if !a.decide(p.Name, domain(namespace), e.ResourceType(), action) {
		reason = "denied by policy"
	}
	if reason == "" {
		return nil
	}

	if a.mode == ModeShadow {
		a.log.Warn("access would be denied",
			logger.String("principal", p.Name),
			logger.String("namespace", namespace),
			logger.String("resource", e.ResourceType()),
			logger.String("action", string(action)),
			logger.String("reason", reason))
		return nil
	}
	return forbidden(p, e, action, reason)
}

func (a *CasbinAccessControl) decide(subject, dom, resource string, action Action) bool {
	key := strings.Join([]string{dom, resource, subject, string(action)}, keySeparator)
	if a.cache != nil {
		if v, ok := a.cache.Get(key); ok {
			return v.(bool)
		}
	}

	allowed, err := a.enforcer.Enforce(subject, dom, resource, string(action))
	if err != nil {
		a.log.Error("policy evaluation failed",
			logger.String("principal", subject),
			logger.String("domain", dom),
			logger.Error(err))
		return false
	}
	if a.cache != nil {
		a.cache.Set(key, allowed, gocache.DefaultExpiration)
	}
	return allowed
}

// InvalidateCache drops cached decisions for namespace and resource.
func (a *CasbinAccessControl) InvalidateCache(namespace, resource string) {
	if a.cache == nil {
		return
	}
	prefix := domain(namespace) + keySeparator + resource + keySeparator
	for key := range a.cache.Items() {
		if strings.HasPrefix(key, prefix) {
			a.cache.Delete(key)
		}
	}
}

// Flush drops every cached decision, e.g. after reloading policies.
func (a *CasbinAccessControl) Flush() {
	if a.cache != nil {
		a.cache.Flush()
	}
}
