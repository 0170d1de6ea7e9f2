package httpapi

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"hrms.org/internal/audit"
	"hrms.org/internal/ids"
)

type auditPage struct {
	Items  []audit.Entry `json:"items"`
	Total  int           `json:"total"`
	Limit  int           `json:"limit"`
	Offset int           `json:"offset"`
}

func (a *API) handleListAudit(w http.ResponseWriter, r *http.Request) {
	tenant, err := tenantID(r)
	if err != nil {
		a.respondErr(w, r, err)
		return
	}
	f, err := parseAuditFilter(r.URL.Query())
	if err != nil {
		a.respondErr(w, r, err)
		return
	}
	f = f.Normalized()
	items, total, err := a.auditLog.List(r.Context(), tenant, f)
	if err != nil {
		a.respondErr(w, r, err)
		return
	}
	if items == nil {
		items = []audit.Entry{}
	}
	writeData(w, http.StatusOK, auditPage{Items: items, Total: total, Limit: f.Limit, Offset: f.Offset})
}

func (a *API) handleGetAudit(w http.ResponseWriter, r *http.Request) {
	tenant, err := tenantID(r)
	if err != nil {
		a.respondErr(w, r, err)
		return
	}
	id := r.PathValue("id")
	if !ids.Valid(id) {
		a.respondErr(w, r, audit.ErrNotFound)
		return
	}
	entry, err := a.auditLog.Get(r.Context(), tenant, id)
	if err != nil {
		a.respondErr(w, r, err)
		return
	}
	writeData(w, http.StatusOK, entry)
}

func parseAuditFilter(q url.Values) (audit.Filter, error) {
	f := audit.Filter{
		Action: strings.ToUpper(strings.TrimSpace(q.Get("action"))),
		Entity: strings.TrimSpace(q.Get("entity")),
	}
	var err error
	if v := q.Get("actorId"); v != "" {
		if f.ActorID, err = strconv.ParseInt(v, 10, 64); err != nil {
			return f, badRequest("invalid actorId")
		}
	}
	if f.From, err = parseTimeParam(q.Get("from"), false); err != nil {
		return f, badRequest("invalid from date")
	}
	if f.To, err = parseTimeParam(q.Get("to"), true); err != nil {
		return f, badRequest("invalid to date")
	}
	if !f.From.IsZero() && !f.To.IsZero() && f.To.Before(f.From) {
		return f, badRequest("to must not be before from")
	}
	if v := q.Get("limit"); v != "" {
		if f.Limit, err = strconv.Atoi(v); err != nil {
			return f, badRequest("invalid limit")
		}
	}
	if v := q.Get("offset"); v != "" {
		if f.Offset, err = strconv.Atoi(v); err != nil || f.Offset < 0 {
			return f, badRequest("invalid offset")
		}
	}
	return f, nil
}

// parseTimeParam accepts RFC3339 timestamps or plain dates. A plain date used
// as an exclusive upper bound covers the whole day.
func parseTimeParam(v string, endOfDay bool) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t.UTC(), nil
	}
	d, err := time.Parse(time.DateOnly, v)
	if err != nil {
		return time.Time{}, err
	}
	if endOfDay {
		d = d.Add(24 * time.Hour)
	}
	return d, nil
}
