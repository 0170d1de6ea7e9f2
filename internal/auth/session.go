package auth

import (
	"context"
	"strconv"
	"time"
)

// Namespace is a session-store key prefix. The three namespaces are disjoint
// so revoking one principal kind never touches another.
type Namespace string

const (
	NamespaceTenant     Namespace = "tenant_session:"
	NamespaceSuperAdmin Namespace = "super_admin_session:"
	NamespaceLegacy     Namespace = "session:"
)

// Session record values.
const (
	SessionValueValid   = "valid"
	SessionValueInvalid = "Invalid"
)

// Key derives the store key for a raw token.
func (n Namespace) Key(token string) string { return string(n) + token }

const ownerPrefix = "user_sessions:"

// OwnerKey names the set of tokens issued to one principal.
func OwnerKey(kind Kind, userID int64) string {
	return ownerPrefix + string(kind) + ":" + strconv.FormatInt(userID, 10)
}

// NamespaceFor returns the namespace freshly minted tokens of kind are recorded in.
func NamespaceFor(kind Kind) Namespace {
	if kind == KindSuperAdmin {
		return NamespaceSuperAdmin
	}
	return NamespaceTenant
}

type SessionState int

const (
	SessionAbsent SessionState = iota
	SessionValid
	SessionInvalid
)

func (s SessionState) String() string {
	switch s {
	case SessionValid:
		return "valid"
	case SessionInvalid:
		return "invalid"
	}
	return "absent"
}

// SessionStore is the fast-lookup record that makes tokens revocable.
// Concurrent writes for one key are last-writer-wins in the backing store.
type SessionStore interface {
	MarkValid(ctx context.Context, ns Namespace, token string, ttl time.Duration) error
	Revoke(ctx context.Context, ns Namespace, token string, ttl time.Duration) error
	State(ctx context.Context, ns Namespace, token string) (SessionState, error)

	// Track records token under owner for ttl so every session of a
	// principal can be found again.
	Track(ctx context.Context, owner, token string, ttl time.Duration) error
	// Tracked lists the tokens recorded for owner. Entries may have expired.
	Tracked(ctx context.Context, owner string) ([]string, error)
}

// ParseSessionValue maps a stored value onto a state. Anything other than
// the exact "valid" sentinel is treated as invalid.
func ParseSessionValue(v string) SessionState {
	if v == SessionValueValid {
		return SessionValid
	}
	return SessionInvalid
}
