package auth

// TenantScope is the tenant context of a request. Super-admins resolve to an
// empty scope; everyone else carries exactly one tenant.
type TenantScope struct {
	TenantID  int64
	HasTenant bool
}

// ResolveTenantScope derives the acting tenant from a validated principal.
func ResolveTenantScope(p Principal) (TenantScope, error) {
	if p.IsSuperAdmin() {
		return TenantScope{}, nil
	}
	id, ok := p.Tenant()
	if !ok {
		return TenantScope{}, ErrNoTenantAccess
	}
	return TenantScope{TenantID: id, HasTenant: true}, nil
}

// Require returns the tenant id for data access that must be tenant scoped.
func (s TenantScope) Require() (int64, error) {
	if !s.HasTenant || s.TenantID <= 0 {
		return 0, ErrNoTenantAccess
	}
	return s.TenantID, nil
}
