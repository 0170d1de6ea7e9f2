package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"hrms.org/internal/audit"
	"hrms.org/internal/auth"
	"hrms.org/internal/hr"
)

type envelope struct {
	Success   bool   `json:"success"`
	Data      any    `json:"data,omitempty"`
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
	Stack     string `json:"stack,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeData(w http.ResponseWriter, code int, data any) {
	writeJSON(w, code, envelope{Success: true, Data: data})
}

func writeMessage(w http.ResponseWriter, r *http.Request, code int, msg string) {
	writeJSON(w, code, envelope{
		Success:   false,
		Message:   msg,
		RequestID: RequestIDFromContext(r.Context()),
	})
}

// respondErr maps domain errors onto the HTTP contract. Internal details
// are only attached outside production.
func (a *API) respondErr(w http.ResponseWriter, r *http.Request, err error) {
	code, msg := classify(err)
	if code >= http.StatusInternalServerError {
		a.log.Error("request failed",
			zap.Error(err),
			zap.String("path", r.URL.Path),
			zap.String("request_id", RequestIDFromContext(r.Context())))
	}
	body := envelope{Success: false, Message: msg, RequestID: RequestIDFromContext(r.Context())}
	if !a.production && code >= http.StatusInternalServerError {
		body.Error = err.Error()
	}
	writeJSON(w, code, body)
}

func classify(err error) (int, string) {
	if ae, ok := auth.AsAuthError(err); ok {
		return http.StatusUnauthorized, ae.PublicMessage()
	}
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized, "Invalid credentials"
	case errors.Is(err, auth.ErrNoTenantAccess):
		return http.StatusForbidden, "no organization access"
	case errors.Is(err, auth.ErrInsufficientPermissions):
		return http.StatusForbidden, "Insufficient permissions"
	case errors.Is(err, auth.ErrInvalidInput), errors.Is(err, hr.ErrInvalidInput), errors.Is(err, errBadRequest):
		return http.StatusBadRequest, publicText(err)
	case errors.Is(err, hr.ErrNotFound), errors.Is(err, audit.ErrNotFound):
		return http.StatusNotFound, "Resource not found"
	case errors.Is(err, hr.ErrConflict):
		return http.StatusConflict, publicText(err)
	}
	return http.StatusInternalServerError, "Internal server error"
}

var errBadRequest = errors.New("bad request")

func badRequest(msg string) error {
	return &requestError{msg: msg}
}

type requestError struct{ msg string }

func (e *requestError) Error() string { return e.msg }

func (e *requestError) Unwrap() error { return errBadRequest }

var internalPrefixes = []string{"auth: invalid input: ", "hr: invalid input: ", "hr: conflict: ", "auth: ", "hr: "}

// publicText strips package prefixes from validation messages, including
// prefixes of wrapped errors.
func publicText(err error) string {
	msg := err.Error()
	for stripped := true; stripped; {
		stripped = false
		for _, prefix := range internalPrefixes {
			if strings.HasPrefix(msg, prefix) {
				msg = strings.TrimPrefix(msg, prefix)
				stripped = true
				break
			}
		}
	}
	return msg
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return badRequest("request body is required")
		}
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return badRequest("request body too large")
		}
		return badRequest("invalid JSON body")
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return badRequest("unexpected data after JSON body")
	}
	return nil
}

// decodeOptionalJSON accepts an empty body.
func decodeOptionalJSON(r *http.Request, dst any) error {
	err := decodeJSON(r, dst)
	var re *requestError
	if errors.As(err, &re) && re.msg == "request body is required" {
		return nil
	}
	return err
}
