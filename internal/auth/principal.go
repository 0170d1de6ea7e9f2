package auth

import (
	"fmt"
	"strings"
)

// Kind distinguishes the two authenticated principal variants.
type Kind string

const (
	KindTenantUser Kind = "tenant_user"
	KindSuperAdmin Kind = "super_admin"
)

func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.TrimSpace(s)); k {
	case KindTenantUser, KindSuperAdmin:
		return k, nil
	}
	return "", fmt.Errorf("%w: unknown principal kind %q", ErrInvalidInput, s)
}

// Principal is the authenticated actor of a request.
//
// A tenant user belongs to exactly one tenant (TenantID > 0) and holds one
// tenant role. A super-admin never carries a tenant and always holds
// RoleSuperAdmin. Principals decoded from legacy tokens may violate the tenant
// half of that invariant, which is why ResolveTenantScope checks it again.
type Principal struct {
	Kind     Kind   `json:"kind"`
	UserID   int64  `json:"userId"`
	Email    string `json:"email,omitempty"`
	Username string `json:"username,omitempty"`
	TenantID int64  `json:"tenantId,omitempty"`
	Role     Role   `json:"role"`
}

// NewTenantUser builds a tenant user principal.
func NewTenantUser(userID, tenantID int64, role Role, email, username string) (Principal, error) {
	p := Principal{
		Kind:     KindTenantUser,
		UserID:   userID,
		Email:    strings.TrimSpace(email),
		Username: strings.TrimSpace(username),
		TenantID: tenantID,
		Role:     role,
	}
	if err := p.Validate(); err != nil {
		return Principal{}, err
	}
	return p, nil
}

// NewSuperAdmin builds a tenant-less platform operator principal.
func NewSuperAdmin(userID int64, email string) (Principal, error) {
	p := Principal{
		Kind:   KindSuperAdmin,
		UserID: userID,
		Email:  strings.TrimSpace(email),
		Role:   RoleSuperAdmin,
	}
	if err := p.Validate(); err != nil {
		return Principal{}, err
	}
	return p, nil
}

// Validate enforces the variant invariants.
func (p Principal) Validate() error {
	if p.UserID <= 0 {
		return fmt.Errorf("%w: user id must be positive", ErrInvalidInput)
	}
	switch p.Kind {
	case KindTenantUser:
		if p.TenantID <= 0 {
			return fmt.Errorf("%w: tenant user requires a tenant", ErrInvalidInput)
		}
		if !p.Role.IsTenantRole() {
			return fmt.Errorf("%w: role %q is not a tenant role", ErrInvalidInput, p.Role)
		}
	case KindSuperAdmin:
		if p.TenantID != 0 {
			return fmt.Errorf("%w: super-admin cannot belong to a tenant", ErrInvalidInput)
		}
		if p.Role != RoleSuperAdmin {
			return fmt.Errorf("%w: super-admin role must be %s", ErrInvalidInput, RoleSuperAdmin)
		}
	default:
		return fmt.Errorf("%w: unknown principal kind %q", ErrInvalidInput, p.Kind)
	}
	return nil
}

func (p Principal) IsSuperAdmin() bool { return p.Kind == KindSuperAdmin }

// Tenant returns the tenant id when the principal carries one.
func (p Principal) Tenant() (int64, bool) {
	if p.Kind != KindTenantUser || p.TenantID <= 0 {
		return 0, false
	}
	return p.TenantID, true
}
