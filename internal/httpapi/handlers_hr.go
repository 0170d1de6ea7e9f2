package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"hrms.org/internal/auth"
	"hrms.org/internal/hr"
)

type decisionRequest struct {
	Comment string `json:"comment"`
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, badRequest("invalid id")
	}
	return id, nil
}

func (a *API) handleListEmployees(w http.ResponseWriter, r *http.Request) {
	tenant, err := tenantID(r)
	if err != nil {
		a.respondErr(w, r, err)
		return
	}
	employees, err := a.hr.ListEmployees(r.Context(), tenant)
	if err != nil {
		a.respondErr(w, r, err)
		return
	}
	if employees == nil {
		employees = []hr.Employee{}
	}
	writeData(w, http.StatusOK, employees)
}

// handleGetEmployee lets EMPLOYEE principals read only their own record.
// Both foreign and unknown ids answer 403 for them.
func (a *API) handleGetEmployee(w http.ResponseWriter, r *http.Request) {
	tenant, err := tenantID(r)
	if err != nil {
		a.respondErr(w, r, err)
		return
	}
	id, err := pathID(r)
	if err != nil {
		a.respondErr(w, r, err)
		return
	}
	p, _ := auth.PrincipalFromContext(r.Context())
	emp, err := a.hr.GetEmployee(r.Context(), tenant, id)
	if !employeeReader.Allows(p.Role) {
		if errors.Is(err, hr.ErrNotFound) || (err == nil && (emp.UserID == nil || *emp.UserID != p.UserID)) {
			a.respondErr(w, r, auth.ErrInsufficientPermissions)
			return
		}
	}
	if err != nil {
		a.respondErr(w, r, err)
		return
	}
	writeData(w, http.StatusOK, emp)
}

func (a *API) handleDecideLeave(approve bool) http.HandlerFunc {
	action := "REJECT"
	if approve {
		action = "APPROVE"
	}
	return func(w http.ResponseWriter, r *http.Request) {
		tenant, err := tenantID(r)
		if err != nil {
			a.respondErr(w, r, err)
			return
		}
		id, err := pathID(r)
		if err != nil {
			a.respondErr(w, r, err)
			return
		}
		var req decisionRequest
		if err := decodeOptionalJSON(r, &req); err != nil {
			a.respondErr(w, r, err)
			return
		}
		p, _ := auth.PrincipalFromContext(r.Context())
		res, err := a.hr.DecideLeave(r.Context(), tenant, hr.Decision{
			RequestID:  id,
			ApproverID: p.UserID,
			Approve:    approve,
			Comment:    req.Comment,
		})
		if err != nil {
			a.respondErr(w, r, err)
			return
		}
		a.record(r, p, action, "leave_request", strconv.FormatInt(id, 10), res.Before.Snapshot(), res.After.Snapshot())
		writeData(w, http.StatusOK, map[string]any{
			"request": res.After,
			"balance": balanceView(res.Balance),
		})
	}
}

type balanceResponse struct {
	hr.LeaveBalance
	Available float64 `json:"available"`
}

func balanceView(b hr.LeaveBalance) balanceResponse {
	return balanceResponse{LeaveBalance: b, Available: b.Available()}
}
