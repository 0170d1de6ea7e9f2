package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"hrms.org/internal/auth"
	"hrms.org/internal/obs"
)

// guard declares what a route requires. The checks always run in the order
// authentication, tenant scope, role allow-list.
type guard struct {
	auth   bool
	tenant bool
	roles  auth.RoleSet
}

func (a *API) protect(g guard, h http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		var principal auth.Principal

		if g.auth {
			res, err := a.validator.Authenticate(ctx, r.Header.Get("Authorization"))
			if err != nil {
				if ae, ok := auth.AsAuthError(err); ok {
					obs.AuthFailure(ae.Reason())
					a.log.Debug("request rejected",
						zap.String("reason", ae.Reason()),
						zap.String("path", r.URL.Path),
						zap.String("request_id", RequestIDFromContext(ctx)))
					writeMessage(w, r, http.StatusUnauthorized, ae.PublicMessage())
					return
				}
				a.respondErr(w, r, err)
				return
			}
			principal = res.Principal
			ctx = auth.ContextWithPrincipal(ctx, principal)
			ctx = auth.ContextWithToken(ctx, res.Token)
		}

		if g.tenant {
			scope, err := auth.ResolveTenantScope(principal)
			if err != nil {
				obs.AuthFailure("no_tenant")
				a.respondErr(w, r, err)
				return
			}
			if requested := strings.TrimSpace(r.URL.Query().Get("tenantId")); requested != "" && scope.HasTenant {
				if requested != strconv.FormatInt(scope.TenantID, 10) {
					obs.AuthFailure("cross_tenant")
					a.log.Warn("cross-tenant request denied",
						zap.Int64("user_id", principal.UserID),
						zap.Int64("tenant_id", scope.TenantID),
						zap.String("requested_tenant", requested))
					a.respondErr(w, r, auth.ErrNoTenantAccess)
					return
				}
			}
			ctx = auth.ContextWithTenantScope(ctx, scope)
		}

		if len(g.roles) > 0 {
			if err := auth.AllowRoles(principal, g.roles...); err != nil {
				obs.AuthFailure("role_denied")
				a.respondErr(w, r, err)
				return
			}
		}

		h(w, r.WithContext(ctx))
	})
}

// tenantID returns the tenant a guarded handler must scope its data access to.
func tenantID(r *http.Request) (int64, error) {
	scope, _ := auth.TenantScopeFromContext(r.Context())
	return scope.Require()
}
