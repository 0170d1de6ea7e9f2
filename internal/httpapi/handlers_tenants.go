package httpapi

import (
	"net/http"
	"strconv"

	"hrms.org/internal/auth"
	"hrms.org/internal/hr"
)

type createTenantRequest struct {
	Name  string        `json:"name"`
	Email string        `json:"email"`
	Admin hr.AdminInput `json:"admin"`
}

func (a *API) handleCreateTenant(w http.ResponseWriter, r *http.Request) {
	var req createTenantRequest
	if err := decodeJSON(r, &req); err != nil {
		a.respondErr(w, r, err)
		return
	}
	out, err := a.hr.ProvisionTenant(r.Context(), hr.TenantInput{Name: req.Name, Email: req.Email}, req.Admin)
	if err != nil {
		a.respondErr(w, r, err)
		return
	}
	p, _ := auth.PrincipalFromContext(r.Context())
	tenantID := out.Tenant.ID
	a.recordFor(r, &tenantID, p, "CREATE", "tenant", strconv.FormatInt(tenantID, 10), nil, map[string]any{
		"name":        out.Tenant.Name,
		"slug":        out.Tenant.Slug,
		"email":       out.Tenant.Email,
		"adminUserId": out.AdminUserID,
	})
	writeData(w, http.StatusCreated, out)
}

func (a *API) handleListTenants(w http.ResponseWriter, r *http.Request) {
	tenants, err := a.hr.ListTenants(r.Context())
	if err != nil {
		a.respondErr(w, r, err)
		return
	}
	if tenants == nil {
		tenants = []hr.Tenant{}
	}
	writeData(w, http.StatusOK, tenants)
}
