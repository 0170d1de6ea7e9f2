package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/crypto/bcrypt"
)

type stubCredentials struct {
	mu         sync.Mutex
	accounts   map[string]Account
	touchErr   error
	updateErr  error
	touchCalls int
}

func newStubCredentials(accts ...Account) *stubCredentials {
	s := &stubCredentials{accounts: make(map[string]Account)}
	for _, a := range accts {
		s.accounts[string(a.Kind)+":"+a.Username] = a
		s.accounts[string(a.Kind)+":"+a.Email] = a
	}
	return s
}

func (s *stubCredentials) find(kind Kind, key string) (Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[string(kind)+":"+key]
	if !ok {
		return Account{}, ErrAccountNotFound
	}
	return a, nil
}

func (s *stubCredentials) FindTenantUser(_ context.Context, identifier string) (Account, error) {
	return s.find(KindTenantUser, identifier)
}

func (s *stubCredentials) FindSuperAdmin(_ context.Context, email string) (Account, error) {
	return s.find(KindSuperAdmin, email)
}

func (s *stubCredentials) FindAccount(_ context.Context, kind Kind, id int64) (Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.accounts {
		if a.Kind == kind && a.ID == id {
			return a, nil
		}
	}
	return Account{}, ErrAccountNotFound
}

func (s *stubCredentials) UpdatePasswordHash(_ context.Context, kind Kind, id int64, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return s.updateErr
	}
	for k, a := range s.accounts {
		if a.Kind == kind && a.ID == id {
			a.PasswordHash = hash
			s.accounts[k] = a
		}
	}
	return nil
}

func (s *stubCredentials) TouchLastLogin(context.Context, Kind, int64, time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchCalls++
	return s.touchErr
}

func (s *stubCredentials) hash(kind Kind, identifier string) string {
	a, _ := s.find(kind, identifier)
	return a.PasswordHash
}

type serviceFixture struct {
	svc       *Service
	store     *stubCredentials
	sessions  *memSessions
	validator *Validator
	clock     *clock
	logs      *observer.ObservedLogs
}

func newServiceFixture(t *testing.T, accts ...Account) serviceFixture {
	t.Helper()
	c := newClock()
	signer := newTestSigner(t, c)
	store := newStubCredentials(accts...)
	sessions := newMemSessions()
	core, logs := observer.New(zapcore.InfoLevel)
	svc, err := NewService(store, sessions, signer,
		WithClock(c.Now),
		WithBcryptCost(bcrypt.MinCost),
		WithLogger(zap.New(core)),
	)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	v, _ := NewValidator(signer, sessions)
	return serviceFixture{svc: svc, store: store, sessions: sessions, validator: v, clock: c, logs: logs}
}

func aliceAccount(password string) Account {
	return Account{
		ID: 7, Kind: KindTenantUser, TenantID: 1, Email: "alice@acme.test",
		Username: "alice", Role: RoleHR, PasswordHash: password, Active: true,
	}
}

func TestLoginUpgradesLegacyPassword(t *testing.T) {
	f := newServiceFixture(t, aliceAccount("correct"))
	ctx := context.Background()

	sess, err := f.svc.Login(ctx, Credentials{Kind: KindTenantUser, Identifier: "alice", Password: "correct"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if sess.Token == "" {
		t.Fatalf("expected token")
	}
	stored := f.store.hash(KindTenantUser, "alice")
	if stored == "correct" || !strings.HasPrefix(stored, "$2") {
		t.Fatalf("expected bcrypt hash after legacy login, got %q", stored)
	}

	again, err := f.svc.Login(ctx, Credentials{Kind: KindTenantUser, Identifier: "alice@acme.test", Password: "correct"})
	if err != nil {
		t.Fatalf("second login via hashed path: %v", err)
	}
	if f.store.hash(KindTenantUser, "alice") != stored {
		t.Fatalf("hashed password must not be rewritten on a bcrypt match")
	}
	if _, err := f.validator.Authenticate(ctx, "Bearer "+again.Token); err != nil {
		t.Fatalf("issued token must validate: %v", err)
	}
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	inactive := aliceAccount("secret-pass")
	inactive.ID, inactive.Username, inactive.Email, inactive.Active = 8, "bob", "bob@acme.test", false
	f := newServiceFixture(t, aliceAccount("secret-pass"), inactive)
	ctx := context.Background()

	attempts := []Credentials{
		{Kind: KindTenantUser, Identifier: "alice", Password: "wrong"},
		{Kind: KindTenantUser, Identifier: "nobody", Password: "secret-pass"},
		{Kind: KindTenantUser, Identifier: "bob", Password: "secret-pass"},
		{Kind: KindSuperAdmin, Identifier: "alice@acme.test", Password: "secret-pass"},
	}
	for _, creds := range attempts {
		_, err := f.svc.Login(ctx, creds)
		if err != ErrInvalidCredentials {
			t.Fatalf("%+v: expected ErrInvalidCredentials, got %v", creds, err)
		}
	}
	if _, err := f.svc.Login(ctx, Credentials{Identifier: "alice"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for missing password, got %v", err)
	}
}

func TestLoginSurvivesLastLoginFailure(t *testing.T) {
	f := newServiceFixture(t, aliceAccount("correct"))
	f.store.touchErr = errors.New("db down")
	f.store.updateErr = errors.New("db down")

	sess, err := f.svc.Login(context.Background(), Credentials{Identifier: "alice", Password: "correct"})
	if err != nil {
		t.Fatalf("Login must not fail on best-effort side effects: %v", err)
	}
	if sess.Principal.TenantID != 1 {
		t.Fatalf("unexpected principal: %+v", sess.Principal)
	}
	if f.store.hash(KindTenantUser, "alice") != "correct" {
		t.Fatalf("failed upgrade must leave the legacy value untouched")
	}
	if n := f.logs.FilterMessage("last login update failed").Len(); n != 1 {
		t.Fatalf("expected last-login failure to be logged once, got %d", n)
	}
	if n := f.logs.FilterMessage("legacy password upgrade failed").Len(); n != 1 {
		t.Fatalf("expected upgrade failure to be logged once, got %d", n)
	}
}

func TestLoginFailsWhenSessionCannotBeRecorded(t *testing.T) {
	f := newServiceFixture(t, aliceAccount("correct"))
	f.sessions.err = errors.New("redis down")
	_, err := f.svc.Login(context.Background(), Credentials{Identifier: "alice", Password: "correct"})
	if err == nil || errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected infrastructure error, got %v", err)
	}
}

func TestSuperAdminLogin(t *testing.T) {
	root := Account{ID: 1, Kind: KindSuperAdmin, Email: "root@hrms.test", PasswordHash: "", Active: true}
	hash, _ := NewPasswordHasher(bcrypt.MinCost).Hash("platform-pass")
	root.PasswordHash = hash
	f := newServiceFixture(t, root)

	sess, err := f.svc.Login(context.Background(), Credentials{Kind: KindSuperAdmin, Identifier: "ROOT@hrms.test", Password: "platform-pass"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if !sess.Principal.IsSuperAdmin() || sess.Principal.TenantID != 0 {
		t.Fatalf("unexpected principal %+v", sess.Principal)
	}
	state, _ := f.sessions.State(context.Background(), NamespaceSuperAdmin, sess.Token)
	if state != SessionValid {
		t.Fatalf("expected session recorded in super-admin namespace, got %s", state)
	}
}

func TestLogoutRevokesToken(t *testing.T) {
	f := newServiceFixture(t, aliceAccount("correct"))
	ctx := context.Background()
	sess, err := f.svc.Login(ctx, Credentials{Identifier: "alice", Password: "correct"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if err := f.svc.Logout(ctx, sess.Token); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if _, err := f.validator.Authenticate(ctx, "Bearer "+sess.Token); !errors.Is(err, RevokedToken) {
		t.Fatalf("expected RevokedToken after logout, got %v", err)
	}
}

func TestRevokeIgnoresExpiredTokens(t *testing.T) {
	f := newServiceFixture(t, aliceAccount("correct"))
	ctx := context.Background()
	sess, _ := f.svc.Login(ctx, Credentials{Identifier: "alice", Password: "correct"})

	f.clock.Advance(2 * time.Hour)
	if err := f.svc.Revoke(ctx, sess.Token); err != nil {
		t.Fatalf("expired token revoke: %v", err)
	}
	if err := f.svc.Revoke(ctx, "garbage"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestChangePasswordRevokesCallingSession(t *testing.T) {
	hash, _ := NewPasswordHasher(bcrypt.MinCost).Hash("old-password")
	f := newServiceFixture(t, aliceAccount(hash))
	ctx := context.Background()
	sess, err := f.svc.Login(ctx, Credentials{Identifier: "alice", Password: "old-password"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	if err := f.svc.ChangePassword(ctx, sess.Principal, sess.Token, "wrong", "new-password"); err != ErrInvalidCredentials {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if err := f.svc.ChangePassword(ctx, sess.Principal, sess.Token, "old-password", "short"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if err := f.svc.ChangePassword(ctx, sess.Principal, sess.Token, "old-password", "new-password"); err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}
	if _, err := f.validator.Authenticate(ctx, "Bearer "+sess.Token); !errors.Is(err, RevokedToken) {
		t.Fatalf("expected calling session revoked, got %v", err)
	}
	if _, err := f.svc.Login(ctx, Credentials{Identifier: "alice", Password: "new-password"}); err != nil {
		t.Fatalf("login with new password: %v", err)
	}
}

func TestChangePasswordRevokesEverySession(t *testing.T) {
	hash, _ := NewPasswordHasher(bcrypt.MinCost).Hash("old-password")
	f := newServiceFixture(t, aliceAccount(hash))
	ctx := context.Background()
	creds := Credentials{Identifier: "alice", Password: "old-password"}
	laptop, err := f.svc.Login(ctx, creds)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	phone, err := f.svc.Login(ctx, creds)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	if err := f.svc.ChangePassword(ctx, laptop.Principal, laptop.Token, "old-password", "new-password"); err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}
	for name, token := range map[string]string{"laptop": laptop.Token, "phone": phone.Token} {
		if _, err := f.validator.Authenticate(ctx, "Bearer "+token); !errors.Is(err, RevokedToken) {
			t.Fatalf("%s session: expected RevokedToken, got %v", name, err)
		}
	}
}

func TestSessionTrackingFailureDoesNotFailLogin(t *testing.T) {
	hash, _ := NewPasswordHasher(bcrypt.MinCost).Hash("old-password")
	f := newServiceFixture(t, aliceAccount(hash))
	f.sessions.ownsErr = errors.New("redis set unavailable")

	sess, err := f.svc.Login(context.Background(), Credentials{Identifier: "alice", Password: "old-password"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if _, err := f.validator.Authenticate(context.Background(), "Bearer "+sess.Token); err != nil {
		t.Fatalf("session should be valid: %v", err)
	}
	if f.logs.FilterMessage("session tracking failed").Len() != 1 {
		t.Fatalf("expected tracking failure to be logged")
	}
}

func TestValidateNewPasswordBounds(t *testing.T) {
	cases := map[string]bool{
		"short":                 false,
		"exactly8":              true,
		strings.Repeat("p", 72): true,
		strings.Repeat("p", 73): false,
		strings.Repeat("é", 40): false,
	}
	for pw, ok := range cases {
		err := ValidateNewPassword(pw)
		if ok && err != nil {
			t.Fatalf("len %d: unexpected error %v", len(pw), err)
		}
		if !ok && !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("len %d: expected ErrInvalidInput, got %v", len(pw), err)
		}
	}
}
