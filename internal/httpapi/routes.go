package httpapi

import (
	"net/http"

	"hrms.org/internal/auth"
	"hrms.org/internal/obs"
)

var (
	leaveApprovers = auth.Roles(auth.RoleAdmin, auth.RoleHR, auth.RoleManager)
	employeeReader = auth.Roles(auth.RoleAdmin, auth.RoleHR, auth.RoleManager)
	employeeViewer = auth.Roles(auth.RoleAdmin, auth.RoleHR, auth.RoleManager, auth.RoleEmployee)
	auditReaders   = auth.Roles(auth.RoleAdmin, auth.RoleHR)
	platformOnly   = auth.Roles(auth.RoleSuperAdmin)
)

func (a *API) routes() {
	a.mux.HandleFunc("GET /healthz", a.Healthz)
	a.mux.HandleFunc("GET /readyz", a.Ready)
	a.mux.Handle("GET /metrics", obs.Handler())

	a.mux.Handle("POST /api/auth/login", a.login.Wrap(http.HandlerFunc(a.handleTenantLogin)))
	a.mux.Handle("POST /api/super-admin/login", a.login.Wrap(http.HandlerFunc(a.handleSuperAdminLogin)))

	a.mux.Handle("POST /api/auth/logout", a.protect(guard{auth: true}, a.handleLogout))
	a.mux.Handle("GET /api/auth/me", a.protect(guard{auth: true}, a.handleMe))
	a.mux.Handle("POST /api/auth/change-password", a.protect(guard{auth: true}, a.handleChangePassword))

	a.mux.Handle("POST /api/super-admin/tenants", a.protect(guard{auth: true, roles: platformOnly}, a.handleCreateTenant))
	a.mux.Handle("GET /api/super-admin/tenants", a.protect(guard{auth: true, roles: platformOnly}, a.handleListTenants))
	a.mux.Handle("POST /api/super-admin/sessions/revoke", a.protect(guard{auth: true, roles: platformOnly}, a.handleRevokeSession))

	a.mux.Handle("GET /api/employees", a.protect(guard{auth: true, tenant: true, roles: employeeReader}, a.handleListEmployees))
	a.mux.Handle("GET /api/employees/{id}", a.protect(guard{auth: true, tenant: true, roles: employeeViewer}, a.handleGetEmployee))

	a.mux.Handle("PUT /api/leave-requests/{id}/approve", a.protect(guard{auth: true, tenant: true, roles: leaveApprovers}, a.handleDecideLeave(true)))
	a.mux.Handle("PUT /api/leave-requests/{id}/reject", a.protect(guard{auth: true, tenant: true, roles: leaveApprovers}, a.handleDecideLeave(false)))

	a.mux.Handle("GET /api/audit-logs", a.protect(guard{auth: true, tenant: true, roles: auditReaders}, a.handleListAudit))
	a.mux.Handle("GET /api/audit-logs/{id}", a.protect(guard{auth: true, tenant: true, roles: auditReaders}, a.handleGetAudit))

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeMessage(w, r, http.StatusNotFound, "Route not found")
	})
}
