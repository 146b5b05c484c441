// Package authz maps caller roles to the operations they may perform.
// Roles are supplied by the transport layer and are never authenticated here;
// the package only checks them against a per-operation allow-list.
package authz

import (
	"fmt"
	"strings"
)

// Role is the caller role threaded explicitly through every core call.
type Role string

const (
	RoleRM      Role = "RM"
	RoleTAC     Role = "TAC"
	RoleQuality Role = "Quality"
	RoleAdmin   Role = "Admin"
)

// DefaultRole is assumed when the transport does not supply a role.
const DefaultRole = RoleRM

// Roles returns every known role in display order.
func Roles() []Role {
	return []Role{RoleRM, RoleTAC, RoleQuality, RoleAdmin}
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleRM, RoleTAC, RoleQuality, RoleAdmin:
		return true
	}
	return false
}

// ParseRole converts a raw value into a Role. Empty input yields DefaultRole.
func ParseRole(s string) (Role, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultRole, nil
	}
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("invalid role %q", s)
	}
	return r, nil
}

// Operation names a core operation subject to an allow-list.
type Operation string

const (
	OpCreateProject Operation = "project:create"
	OpUpdateStatus  Operation = "project:update-status"
	OpBindSource    Operation = "source:bind"
	OpReadProject   Operation = "project:get"
	OpListProjects  Operation = "project:list"
	OpLookupSource  Operation = "source:get"
	OpExport        Operation = "project:export"
	OpReadAudit     Operation = "audit:read"
)

// AuthorizationError is returned when a role may not perform an operation.
// AllowedRoles lists the roles that may.
type AuthorizationError struct {
	Code         string    `json:"code"`
	Role         Role      `json:"role"`
	Operation    Operation `json:"operation"`
	AllowedRoles []Role    `json:"allowed_roles"`
	Message      string    `json:"error"`
}

func (e *AuthorizationError) Error() string {
	return e.Message
}
