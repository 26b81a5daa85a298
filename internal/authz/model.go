package authz

import (
	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	fileadapter "github.com/casbin/casbin/v2/persist/file-adapter"
)

// DefaultModel is RBAC with domains. Domains are namespaces and objects are
// resource types. "*" matches any domain, object or action, and roles granted
// in domain "*" apply everywhere.
const DefaultModel = `
[request_definition]
r = sub, dom, obj, act

[policy_definition]
p = sub, dom, obj, act

[role_definition]
g = _, _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = (g(r.sub, p.sub, r.dom) || g(r.sub, p.sub, "*")) && (p.dom == "*" || r.dom == p.dom) && (p.obj == "*" || r.obj == p.obj) && (p.act == "*" || r.act == p.act)
`

// NewEnforcer builds an enforcer for DefaultModel seeded with policies
// (sub, dom, obj, act) and role groupings (user, role, dom).
func NewEnforcer(policies, groupings [][]string) (*casbin.Enforcer, error) {
	m, err := model.NewModelFromString(DefaultModel)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, err
	}
	if len(policies) > 0 {
		if _, err := enforcer.AddPolicies(policies); err != nil {
			return nil, err
		}
	}
	if len(groupings) > 0 {
		if _, err := enforcer.AddGroupingPolicies(groupings); err != nil {
			return nil, err
		}
	}
	return enforcer, nil
}

// NewEnforcerFromFiles loads a model and a CSV policy file. An empty
// modelPath selects DefaultModel.
func NewEnforcerFromFiles(modelPath, policyPath string) (*casbin.Enforcer, error) {
	var m model.Model
	var err error
	if modelPath == "" {
		m, err = model.NewModelFromString(DefaultModel)
	} else {
		m, err = model.NewModelFromFile(modelPath)
	}
	if err != nil {
		return nil, err
	}
	return casbin.NewEnforcer(m, fileadapter.NewAdapter(policyPath))
}
