package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"hrms.org/internal/obs"
)

const minRevocationTTL = time.Minute

// Account is a stored principal record with its password material.
type Account struct {
	ID           int64
	Kind         Kind
	TenantID     int64
	Email        string
	Username     string
	Role         Role
	PasswordHash string
	Active       bool
}

// CredentialStore provides principal lookups for the credential issuer.
// Lookups return ErrAccountNotFound when nothing matches.
type CredentialStore interface {
	FindTenantUser(ctx context.Context, identifier string) (Account, error)
	FindSuperAdmin(ctx context.Context, email string) (Account, error)
	FindAccount(ctx context.Context, kind Kind, id int64) (Account, error)
	UpdatePasswordHash(ctx context.Context, kind Kind, id int64, hash string) error
	TouchLastLogin(ctx context.Context, kind Kind, id int64, at time.Time) error
}

// Credentials is a login attempt. Identifier is a username or email for
// tenant users and an email for super-admins.
type Credentials struct {
	Kind       Kind
	Identifier string
	Password   string
}

// Session is the outcome of a successful login.
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	Principal Principal `json:"user"`
}

// Service issues, revokes and rotates credentials.
type Service struct {
	store    CredentialStore
	sessions SessionStore
	signer   *TokenSigner
	hasher   PasswordHasher
	log      *zap.Logger
	now      func() time.Time
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service)

func WithLogger(log *zap.Logger) ServiceOption {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

func WithBcryptCost(cost int) ServiceOption {
	return func(s *Service) {
		s.hasher = NewPasswordHasher(cost)
	}
}

// WithClock overrides time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

func NewService(store CredentialStore, sessions SessionStore, signer *TokenSigner, opts ...ServiceOption) (*Service, error) {
	if store == nil || sessions == nil || signer == nil {
		return nil, errors.New("auth: credential store, session store and signer are required")
	}
	svc := &Service{
		store:    store,
		sessions: sessions,
		signer:   signer,
		hasher:   NewPasswordHasher(0),
		log:      zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Login verifies credentials, mints a token and records it as valid.
// Unknown accounts, inactive accounts and wrong passwords are indistinguishable.
func (s *Service) Login(ctx context.Context, creds Credentials) (Session, error) {
	identifier := strings.TrimSpace(creds.Identifier)
	if identifier == "" || creds.Password == "" {
		return Session{}, fmt.Errorf("%w: identifier and password are required", ErrInvalidInput)
	}
	kind := creds.Kind
	if kind == "" {
		kind = KindTenantUser
	}
	log := s.log.With(zap.String("kind", string(kind)))

	var (
		acct Account
		err  error
	)
	switch kind {
	case KindTenantUser:
		acct, err = s.store.FindTenantUser(ctx, identifier)
	case KindSuperAdmin:
		acct, err = s.store.FindSuperAdmin(ctx, strings.ToLower(identifier))
	default:
		return Session{}, fmt.Errorf("%w: unknown principal kind %q", ErrInvalidInput, kind)
	}
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			obs.Login(string(kind), "unknown_account")
			return Session{}, ErrInvalidCredentials
		}
		return Session{}, fmt.Errorf("auth: lookup account: %w", err)
	}
	if !acct.Active {
		obs.Login(string(kind), "inactive")
		return Session{}, ErrInvalidCredentials
	}

	ok, legacy := CheckPassword(acct.PasswordHash, creds.Password)
	if !ok {
		obs.Login(string(kind), "bad_password")
		return Session{}, ErrInvalidCredentials
	}
	if legacy {
		s.upgradeLegacyPassword(ctx, log, kind, acct.ID, creds.Password)
	}

	principal, err := principalForAccount(kind, acct)
	if err != nil {
		log.Warn("account cannot form a principal", zap.Int64("user_id", acct.ID), zap.Error(err))
		obs.Login(string(kind), "invalid_account")
		return Session{}, ErrInvalidCredentials
	}

	token, expiresAt, err := s.signer.Sign(principal)
	if err != nil {
		return Session{}, err
	}
	ttl := expiresAt.Sub(s.now())
	if err := s.sessions.MarkValid(ctx, NamespaceFor(kind), token, ttl); err != nil {
		return Session{}, fmt.Errorf("auth: record session: %w", err)
	}
	if err := s.sessions.Track(ctx, OwnerKey(kind, acct.ID), token, ttl); err != nil {
		log.Warn("session tracking failed", zap.Int64("user_id", acct.ID), zap.Error(err))
		obs.BestEffortFailed("session_tracking")
	}

	if err := s.store.TouchLastLogin(ctx, kind, acct.ID, s.now().UTC()); err != nil {
		log.Warn("last login update failed", zap.Int64("user_id", acct.ID), zap.Error(err))
		obs.BestEffortFailed("last_login")
	}

	obs.Login(string(kind), "success")
	log.Info("login", zap.Int64("user_id", acct.ID), zap.Int64("tenant_id", principal.TenantID))
	return Session{Token: token, ExpiresAt: expiresAt, Principal: principal}, nil
}

// upgradeLegacyPassword replaces a plaintext password with its bcrypt hash.
// Failure leaves the plaintext in place and is reported but not propagated.
func (s *Service) upgradeLegacyPassword(ctx context.Context, log *zap.Logger, kind Kind, id int64, password string) {
	hash, err := s.hasher.Hash(password)
	if err == nil {
		err = s.store.UpdatePasswordHash(ctx, kind, id, hash)
	}
	if err != nil {
		log.Warn("legacy password upgrade failed", zap.Int64("user_id", id), zap.Error(err))
		obs.BestEffortFailed("password_upgrade")
		return
	}
	log.Info("legacy password upgraded", zap.Int64("user_id", id))
}

func principalForAccount(kind Kind, acct Account) (Principal, error) {
	if kind == KindSuperAdmin {
		return NewSuperAdmin(acct.ID, acct.Email)
	}
	return NewTenantUser(acct.ID, acct.TenantID, acct.Role, acct.Email, acct.Username)
}

// Logout invalidates the caller's own token.
func (s *Service) Logout(ctx context.Context, token string) error {
	parsed, err := s.signer.Parse(token)
	if err != nil {
		return err
	}
	return s.invalidate(ctx, parsed, token)
}

// Revoke invalidates an arbitrary token. Expired tokens need no record.
func (s *Service) Revoke(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return fmt.Errorf("%w: token is required", ErrInvalidInput)
	}
	parsed, err := s.signer.Parse(token)
	if err != nil {
		if ae, ok := AsAuthError(err); ok && ae == ExpiredToken {
			return nil
		}
		return fmt.Errorf("%w: token cannot be decoded", ErrInvalidInput)
	}
	if err := s.invalidate(ctx, parsed, token); err != nil {
		return err
	}
	s.log.Info("session revoked",
		zap.String("kind", string(parsed.Principal.Kind)),
		zap.Int64("user_id", parsed.Principal.UserID))
	return nil
}

func (s *Service) invalidate(ctx context.Context, parsed ParsedToken, token string) error {
	ttl := parsed.ExpiresAt.Sub(s.now())
	if ttl < minRevocationTTL {
		ttl = minRevocationTTL
	}
	if err := s.sessions.Revoke(ctx, parsed.Namespace, token, ttl); err != nil {
		return fmt.Errorf("auth: revoke session: %w", err)
	}
	return nil
}

// ChangePassword replaces the principal's password and revokes every tracked
// session of the principal, including the one that performed the change.
// Sessions whose tracking failed at login are only covered when they are the
// calling session.
func (s *Service) ChangePassword(ctx context.Context, p Principal, token, current, next string) error {
	if current == "" {
		return fmt.Errorf("%w: current password is required", ErrInvalidInput)
	}
	if err := ValidateNewPassword(next); err != nil {
		return err
	}
	acct, err := s.store.FindAccount(ctx, p.Kind, p.UserID)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return ErrInvalidCredentials
		}
		return fmt.Errorf("auth: lookup account: %w", err)
	}
	if ok, _ := CheckPassword(acct.PasswordHash, current); !ok || !acct.Active {
		return ErrInvalidCredentials
	}
	hash, err := s.hasher.Hash(next)
	if err != nil {
		return fmt.Errorf("auth: hash password: %w", err)
	}
	if err := s.store.UpdatePasswordHash(ctx, p.Kind, p.UserID, hash); err != nil {
		return fmt.Errorf("auth: store password: %w", err)
	}
	revoked, err := s.revokeAll(ctx, p, token)
	if err != nil {
		return err
	}
	s.log.Info("password changed",
		zap.String("kind", string(p.Kind)),
		zap.Int64("user_id", p.UserID),
		zap.Int("sessions_revoked", revoked))
	return nil
}

// revokeAll invalidates current plus every live token tracked for p.
// Tokens that no longer parse have expired and need no record.
func (s *Service) revokeAll(ctx context.Context, p Principal, current string) (int, error) {
	tokens, err := s.sessions.Tracked(ctx, OwnerKey(p.Kind, p.UserID))
	if err != nil {
		return 0, fmt.Errorf("auth: list sessions: %w", err)
	}
	if current != "" {
		tokens = append([]string{current}, tokens...)
	}
	seen := make(map[string]struct{}, len(tokens))
	revoked := 0
	for _, token := range tokens {
		if _, dup := seen[token]; dup {
			continue
		}
		seen[token] = struct{}{}
		parsed, err := s.signer.Parse(token)
		if err != nil {
			continue
		}
		if parsed.Principal.Kind != p.Kind || parsed.Principal.UserID != p.UserID {
			continue
		}
		if err := s.invalidate(ctx, parsed, token); err != nil {
			return revoked, err
		}
		revoked++
	}
	return revoked, nil
}
