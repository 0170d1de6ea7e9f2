package auth

import "strings"

// RoleSet is a route's literal allow-list.
type RoleSet []Role

func Roles(roles ...Role) RoleSet { return RoleSet(roles) }

// Allows reports exact membership. There is no hierarchy between roles.
func (s RoleSet) Allows(r Role) bool {
	for _, allowed := range s {
		if allowed == r {
			return true
		}
	}
	return false
}

func (s RoleSet) String() string {
	parts := make([]string, len(s))
	for i, r := range s {
		parts[i] = string(r)
	}
	return strings.Join(parts, ",")
}

// AllowRoles fails with ErrInsufficientPermissions unless p's role is listed.
func AllowRoles(p Principal, allow ...Role) error {
	if !RoleSet(allow).Allows(p.Role) {
		return ErrInsufficientPermissions
	}
	return nil
}
