package session

import (
	"context"
	"sync"
	"time"

	"hrms.org/internal/auth"
)

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

// MemoryStore is a single-process session store for tests and local runs.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	owned   map[string]ownedTokens
	now     func() time.Time
}

type ownedTokens struct {
	tokens    []string
	expiresAt time.Time
}

var _ auth.SessionStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		owned:   make(map[string]ownedTokens),
		now:     time.Now,
	}
}

// WithClock replaces the expiry clock.
func (m *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
	return m
}

func (m *MemoryStore) MarkValid(_ context.Context, ns auth.Namespace, token string, ttl time.Duration) error {
	m.Set(ns.Key(token), auth.SessionValueValid, ttl)
	return nil
}

func (m *MemoryStore) Revoke(_ context.Context, ns auth.Namespace, token string, ttl time.Duration) error {
	m.Set(ns.Key(token), auth.SessionValueInvalid, ttl)
	return nil
}

func (m *MemoryStore) State(_ context.Context, ns auth.Namespace, token string) (auth.SessionState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := ns.Key(token)
	e, ok := m.entries[key]
	if !ok {
		return auth.SessionAbsent, nil
	}
	if !e.expiresAt.IsZero() && !m.now().Before(e.expiresAt) {
		delete(m.entries, key)
		return auth.SessionAbsent, nil
	}
	return auth.ParseSessionValue(e.value), nil
}

// Set writes a raw record. A non-positive ttl never expires.
func (m *MemoryStore) Set(key, value string, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := memoryEntry{value: value}
	if ttl > 0 {
		e.expiresAt = m.now().Add(ttl)
	}
	m.entries[key] = e
}

// Track appends token to owner's set and pushes the set's expiry to ttl.
func (m *MemoryStore) Track(_ context.Context, owner, token string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o := m.liveOwned(owner)
	o.tokens = append(o.tokens, token)
	o.expiresAt = m.now().Add(ttl)
	m.owned[owner] = o
	return nil
}

func (m *MemoryStore) Tracked(_ context.Context, owner string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.liveOwned(owner).tokens...), nil
}

func (m *MemoryStore) liveOwned(owner string) ownedTokens {
	o, ok := m.owned[owner]
	if ok && !m.now().Before(o.expiresAt) {
		delete(m.owned, owner)
		return ownedTokens{}
	}
	return o
}

func (m *MemoryStore) Ping(context.Context) error { return nil }

func (m *MemoryStore) Close() error { return nil }
