package auth

import (
	"fmt"
	"strings"
)

// Role is a permission bundle code. Codes compare by exact match only.
type Role string

const (
	RoleAdmin      Role = "ADMIN"
	RoleHR         Role = "HR"
	RoleManager    Role = "MANAGER"
	RoleEmployee   Role = "EMPLOYEE"
	RoleSuperAdmin Role = "SUPER_ADMIN"
)

var tenantRoles = []Role{RoleAdmin, RoleHR, RoleManager, RoleEmployee}

// TenantRoles lists the roles a tenant user may hold.
func TenantRoles() []Role {
	out := make([]Role, len(tenantRoles))
	copy(out, tenantRoles)
	return out
}

// ParseRole accepts the exact role code; "admin" is not "ADMIN".
func ParseRole(s string) (Role, error) {
	r := Role(strings.TrimSpace(s))
	switch r {
	case RoleAdmin, RoleHR, RoleManager, RoleEmployee, RoleSuperAdmin:
		return r, nil
	}
	return "", fmt.Errorf("%w: unknown role %q", ErrInvalidInput, s)
}

func (r Role) IsTenantRole() bool {
	for _, tr := range tenantRoles {
		if r == tr {
			return true
		}
	}
	return false
}

func (r Role) String() string { return string(r) }
