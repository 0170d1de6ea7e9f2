package audit

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("audit: entry not found")

// Change is the before/after pair of one field.
type Change struct {
	From any `json:"from"`
	To   any `json:"to"`
}

// Entry is an immutable record of one mutating action.
type Entry struct {
	ID         string            `json:"id"`
	TenantID   *int64            `json:"tenantId,omitempty"`
	ActorID    int64             `json:"actorId"`
	ActorEmail string            `json:"actorEmail,omitempty"`
	Action     string            `json:"action"`
	Entity     string            `json:"entity"`
	EntityID   string            `json:"entityId,omitempty"`
	OldValue   map[string]any    `json:"oldValue,omitempty"`
	NewValue   map[string]any    `json:"newValue,omitempty"`
	Changes    map[string]Change `json:"changes,omitempty"`
	IPAddress  string            `json:"ipAddress,omitempty"`
	UserAgent  string            `json:"userAgent,omitempty"`
	RequestID  string            `json:"requestId,omitempty"`
	CreatedAt  time.Time         `json:"createdAt"`
}

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// Filter narrows an audit listing. Zero values mean "any".
type Filter struct {
	Action   string
	Entity   string
	ActorID  int64
	From, To time.Time
	Limit    int
	Offset   int
}

// Normalized clamps paging to sane bounds.
func (f Filter) Normalized() Filter {
	if f.Limit <= 0 {
		f.Limit = defaultPageSize
	}
	if f.Limit > maxPageSize {
		f.Limit = maxPageSize
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

// Store persists entries. Reads are always tenant scoped.
type Store interface {
	Append(ctx context.Context, e Entry) error
	List(ctx context.Context, tenantID int64, f Filter) ([]Entry, int, error)
	Get(ctx context.Context, tenantID int64, id string) (Entry, error)
}
