package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"hrms.org/internal/audit"
	"hrms.org/internal/auth"
)

type loginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type revokeRequest struct {
	Token string `json:"token"`
}

func (a *API) handleTenantLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		a.respondErr(w, r, err)
		return
	}
	identifier := strings.TrimSpace(req.Username)
	if identifier == "" {
		identifier = strings.TrimSpace(req.Email)
	}
	a.issueSession(w, r, auth.Credentials{Kind: auth.KindTenantUser, Identifier: identifier, Password: req.Password})
}

func (a *API) handleSuperAdminLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		a.respondErr(w, r, err)
		return
	}
	a.issueSession(w, r, auth.Credentials{Kind: auth.KindSuperAdmin, Identifier: req.Email, Password: req.Password})
}

func (a *API) issueSession(w http.ResponseWriter, r *http.Request, creds auth.Credentials) {
	sess, err := a.auth.Login(r.Context(), creds)
	if err != nil {
		a.respondErr(w, r, err)
		return
	}
	p := sess.Principal
	a.record(r, p, "LOGIN", string(p.Kind), strconv.FormatInt(p.UserID, 10), nil, map[string]any{
		"kind": string(p.Kind),
		"role": string(p.Role),
	})
	writeData(w, http.StatusOK, sess)
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	token, _ := auth.TokenFromContext(r.Context())
	if err := a.auth.Logout(r.Context(), token); err != nil {
		a.respondErr(w, r, err)
		return
	}
	p, _ := auth.PrincipalFromContext(r.Context())
	a.record(r, p, "LOGOUT", string(p.Kind), strconv.FormatInt(p.UserID, 10), nil, nil)
	writeData(w, http.StatusOK, map[string]string{"message": "Logged out"})
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFromContext(r.Context())
	writeData(w, http.StatusOK, p)
}

func (a *API) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		a.respondErr(w, r, err)
		return
	}
	p, _ := auth.PrincipalFromContext(r.Context())
	token, _ := auth.TokenFromContext(r.Context())
	if err := a.auth.ChangePassword(r.Context(), p, token, req.CurrentPassword, req.NewPassword); err != nil {
		a.respondErr(w, r, err)
		return
	}
	a.record(r, p, "CHANGE_PASSWORD", string(p.Kind), strconv.FormatInt(p.UserID, 10), nil, nil)
	writeData(w, http.StatusOK, map[string]string{"message": "Password changed, please log in again"})
}

func (a *API) handleRevokeSession(w http.ResponseWriter, r *http.Request) {
	var req revokeRequest
	if err := decodeJSON(r, &req); err != nil {
		a.respondErr(w, r, err)
		return
	}
	if err := a.auth.Revoke(r.Context(), req.Token); err != nil {
		a.respondErr(w, r, err)
		return
	}
	p, _ := auth.PrincipalFromContext(r.Context())
	a.record(r, p, "REVOKE", "session", "", nil, nil)
	writeData(w, http.StatusOK, map[string]string{"message": "Session revoked"})
}

// record hands a committed mutation to the audit sink. The tenant is taken
// from the principal unless the caller passes one explicitly via recordFor.
func (a *API) record(r *http.Request, p auth.Principal, action, entity, entityID string, oldValue, newValue map[string]any) {
	var tenant *int64
	if id, ok := p.Tenant(); ok {
		tenant = &id
	}
	a.recordFor(r, tenant, p, action, entity, entityID, oldValue, newValue)
}

func (a *API) recordFor(r *http.Request, tenant *int64, p auth.Principal, action, entity, entityID string, oldValue, newValue map[string]any) {
	if a.sink == nil {
		return
	}
	a.sink.Record(r.Context(), audit.Record{
		TenantID:   tenant,
		ActorID:    p.UserID,
		ActorEmail: p.Email,
		Action:     action,
		Entity:     entity,
		EntityID:   entityID,
		OldValue:   oldValue,
		NewValue:   newValue,
		Meta:       audit.RequestMeta(r),
	})
}
