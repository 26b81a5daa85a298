// Package authz answers who may read or change which entity. Namespaces are
// the tenant boundary: an entity is only reachable from its own namespace.
package authz

import "strings"

// DefaultNamespace is the casbin domain used for entities without a namespace.
const DefaultNamespace = "default"

// Principal is an authenticated caller and its active namespace. It is
// supplied on every call and never stored.
type Principal struct {
	Name      string
	Namespace string
}

// Action is an operation checked against the policy.
type Action string

const (
	ActionRead   Action = "read"
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Mode controls whether decisions are enforced.
type Mode string

const (
	ModeEnforce  Mode = "enforce"
	ModeShadow   Mode = "shadow"
	ModeDisabled Mode = "disabled"
)

// ParseMode maps a config string to a Mode, defaulting to enforce.
func ParseMode(s string) Mode {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeShadow:
		return ModeShadow
	case ModeDisabled:
		return ModeDisabled
	default:
		return ModeEnforce
	}
}

func domain(namespace string) string {
	if namespace == "" {
		return DefaultNamespace
	}
	return namespace
}
