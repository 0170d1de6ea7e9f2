package audit

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"hrms.org/internal/ids"
	"hrms.org/internal/obs"
)

type ctxKey string

const requestIDKey ctxKey = "audit_request_id"

// WithRequestID attaches the request identifier to the context for audit logging.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext extracts the request id if present.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// Meta describes the request that caused a mutation.
type Meta struct {
	IPAddress string
	UserAgent string
	RequestID string
}

// RequestMeta extracts caller metadata, preferring the first X-Forwarded-For hop.
func RequestMeta(r *http.Request) Meta {
	m := Meta{
		UserAgent: r.UserAgent(),
		RequestID: RequestIDFromContext(r.Context()),
	}
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		m.IPAddress = strings.TrimSpace(strings.Split(fwd, ",")[0])
		return m
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	m.IPAddress = host
	return m
}

// Record is what a mutating handler reports after it committed.
type Record struct {
	TenantID   *int64
	ActorID    int64
	ActorEmail string
	Action     string
	Entity     string
	EntityID   string
	OldValue   map[string]any
	NewValue   map[string]any
	Meta       Meta
}

// Sink is the append-only side channel for audit records. Write failures
// are logged and counted; they never reach the caller.
type Sink struct {
	store Store
	log   *zap.Logger
	now   func() time.Time
}

func NewSink(store Store, log *zap.Logger) *Sink {
	if log == nil {
		log = zap.NewNop()
	}
	return &Sink{store: store, log: log, now: time.Now}
}

// Record persists one entry. The returned entry is what was attempted.
func (s *Sink) Record(ctx context.Context, rec Record) Entry {
	now := s.now().UTC()
	e := Entry{
		ID:         ids.NewAt(now),
		TenantID:   rec.TenantID,
		ActorID:    rec.ActorID,
		ActorEmail: rec.ActorEmail,
		Action:     strings.TrimSpace(rec.Action),
		Entity:     strings.TrimSpace(rec.Entity),
		EntityID:   rec.EntityID,
		IPAddress:  rec.Meta.IPAddress,
		UserAgent:  rec.Meta.UserAgent,
		RequestID:  rec.Meta.RequestID,
		CreatedAt:  now,
	}
	if e.RequestID == "" {
		e.RequestID = RequestIDFromContext(ctx)
	}
	if rec.OldValue != nil && rec.NewValue != nil {
		e.Changes = Diff(rec.OldValue, rec.NewValue)
	} else {
		e.OldValue = rec.OldValue
		e.NewValue = rec.NewValue
	}

	fields := []zap.Field{
		zap.String("audit_id", e.ID),
		zap.String("action", e.Action),
		zap.String("entity", e.Entity),
		zap.String("entity_id", e.EntityID),
		zap.Int64("actor_id", e.ActorID),
		zap.String("request_id", e.RequestID),
	}
	if e.TenantID != nil {
		fields = append(fields, zap.Int64("tenant_id", *e.TenantID))
	}

	if s.store == nil {
		return e
	}
	if err := s.store.Append(ctx, e); err != nil {
		obs.AuditWriteFailed()
		s.log.Error("audit write failed", append(fields, zap.Error(err))...)
		return e
	}
	s.log.Debug("audit", fields...)
	return e
}
