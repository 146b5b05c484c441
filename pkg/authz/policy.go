package authz

import (
	"fmt"

	mapset "github.com/deckarep/golang-set/v2"
)

// CodeForbidden is the machine-readable code carried by AuthorizationError.
const CodeForbidden = "FORBIDDEN"

// Policy holds the allow-list of roles per operation.
type Policy struct {
	rules map[Operation]mapset.Set[Role]
}

// NewPolicy creates an empty policy that denies every operation.
func NewPolicy() *Policy {
	return &Policy{rules: make(map[Operation]mapset.Set[Role])}
}

// DefaultPolicy returns the standard allow-lists: writers may create, change
// status and bind; only privileged roles may export; reads are open to all roles.
func DefaultPolicy() *Policy {
	writers := []Role{RoleTAC, RoleQuality, RoleAdmin}
	exporters := []Role{RoleQuality, RoleAdmin}

	p := NewPolicy()
	p.Allow(OpCreateProject, writers...)
	p.Allow(OpUpdateStatus, writers...)
	p.Allow(OpBindSource, writers...)
	p.Allow(OpExport, exporters...)
	for _, op := range []Operation{OpReadProject, OpListProjects, OpLookupSource, OpReadAudit} {
		p.Allow(op, Roles()...)
	}
	return p
}

// Allow adds roles to the allow-list of op.
func (p *Policy) Allow(op Operation, roles ...Role) {
	set, ok := p.rules[op]
	if !ok {
		set = mapset.NewSet[Role]()
		p.rules[op] = set
	}
	for _, r := range roles {
		set.Add(r)
	}
}

// Allowed reports whether role may perform op. Unknown roles are never allowed.
func (p *Policy) Allowed(role Role, op Operation) bool {
	if !role.Valid() {
		return false
	}
	set, ok := p.rules[op]
	if !ok {
		return false
	}
	return set.Contains(role)
}

// Authorize returns an *AuthorizationError when role may not perform op.
func (p *Policy) Authorize(role Role, op Operation) error {
	if p.Allowed(role, op) {
		return nil
	}
	msg := fmt.Sprintf("role %q is not permitted to perform %s", role, op)
	if !role.Valid() {
		msg = fmt.Sprintf("unknown role %q", role)
	}
	return &AuthorizationError{
		Code:         CodeForbidden,
		Role:         role,
		Operation:    op,
		AllowedRoles: p.RolesFor(op),
		Message:      msg,
	}
}

// RolesFor returns the roles allowed to perform op.
func (p *Policy) RolesFor(op Operation) []Role {
	set, ok := p.rules[op]
	if !ok {
		return nil
	}
	var out []Role
	for _, r := range Roles() {
		if set.Contains(r) {
			out = append(out, r)
		}
	}
	return out
}
