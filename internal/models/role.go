package models

import (
	"fmt"
	"strings"
)

// Role is a company membership role. The zero value means "no company".
type Role string

const (
	RoleOwner   Role = "owner"
	RoleAdmin   Role = "admin"
	RoleAuditor Role = "auditor"
	RoleUser    Role = "user"
)

var allRoles = []Role{RoleOwner, RoleAdmin, RoleAuditor, RoleUser}

// Roles lists every company role from most to least privileged.
func Roles() []Role {
	out := make([]Role, len(allRoles))
	copy(out, allRoles)
	return out
}

// ParseRole converts user input into a Role.
func ParseRole(value string) (Role, error) {
	role := Role(strings.ToLower(strings.TrimSpace(value)))
	if !role.Valid() {
		return "", fmt.Errorf("unknown role %q", value)
	}
	return role, nil
}

// Valid reports whether r is one of the four company roles.
func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleAuditor, RoleUser:
		return true
	}
	return false
}

// Elevated reports whether r manages the company (owner or admin).
func (r Role) Elevated() bool {
	return r == RoleOwner || r == RoleAdmin
}

func (r Role) String() string { return string(r) }
