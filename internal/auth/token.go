package auth

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	defaultTokenTTL = 8 * time.Hour
	bearerPrefix    = "bearer "
)

// Claims is the JWT payload. Tokens minted before principal kinds existed
// carry no kind and are treated as tenant users in the legacy namespace.
type Claims struct {
	Kind     Kind   `json:"kind,omitempty"`
	TenantID int64  `json:"tid,omitempty"`
	Role     Role   `json:"role,omitempty"`
	Email    string `json:"email,omitempty"`
	Username string `json:"username,omitempty"`
	jwt.RegisteredClaims
}

// ParsedToken is a token whose signature and expiry have been verified.
type ParsedToken struct {
	Principal Principal
	Namespace Namespace
	ExpiresAt time.Time
}

// TokenSigner mints and verifies HS256 session tokens.
type TokenSigner struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// SignerOption configures TokenSigner behavior.
type SignerOption func(*TokenSigner)

// WithIssuer sets the iss claim. Tokens carrying a different issuer are rejected.
func WithIssuer(issuer string) SignerOption {
	return func(s *TokenSigner) {
		s.issuer = strings.TrimSpace(issuer)
	}
}

// WithTokenTTL configures token lifetime.
func WithTokenTTL(ttl time.Duration) SignerOption {
	return func(s *TokenSigner) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithSignerClock overrides the time source (useful for tests).
func WithSignerClock(fn func() time.Time) SignerOption {
	return func(s *TokenSigner) {
		if fn != nil {
			s.now = fn
		}
	}
}

func NewTokenSigner(secret string, opts ...SignerOption) (*TokenSigner, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("auth: token secret is required")
	}
	s := &TokenSigner{
		secret: []byte(secret),
		ttl:    defaultTokenTTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *TokenSigner) TTL() time.Duration { return s.ttl }

// Sign mints a token for p and returns it with its expiry.
func (s *TokenSigner) Sign(p Principal) (string, time.Time, error) {
	if err := p.Validate(); err != nil {
		return "", time.Time{}, err
	}
	now := s.now().UTC()
	exp := now.Add(s.ttl)
	claims := Claims{
		Kind:     p.Kind,
		TenantID: p.TenantID,
		Role:     p.Role,
		Email:    p.Email,
		Username: p.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(p.UserID, 10),
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, exp.Truncate(time.Second), nil
}

// Parse verifies signature and expiry. Failures are always an AuthError.
func (s *TokenSigner) Parse(raw string) (ParsedToken, error) {
	if strings.TrimSpace(raw) == "" {
		return ParsedToken{}, MissingToken
	}
	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return ParsedToken{}, ExpiredToken
		case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
			return ParsedToken{}, SignatureInvalid
		default:
			return ParsedToken{}, MalformedToken
		}
	}
	if claims.Issuer != "" && s.issuer != "" && claims.Issuer != s.issuer {
		return ParsedToken{}, MalformedToken
	}

	p, ns, err := principalFromClaims(claims)
	if err != nil {
		return ParsedToken{}, MalformedToken
	}
	return ParsedToken{
		Principal: p,
		Namespace: ns,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

func principalFromClaims(c Claims) (Principal, Namespace, error) {
	userID, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return Principal{}, "", errors.New("invalid subject")
	}
	p := Principal{
		UserID:   userID,
		Email:    c.Email,
		Username: c.Username,
	}
	switch c.Kind {
	case KindSuperAdmin:
		p.Kind = KindSuperAdmin
		p.Role = RoleSuperAdmin
		return p, NamespaceSuperAdmin, nil
	case KindTenantUser, "":
		if !c.Role.IsTenantRole() {
			return Principal{}, "", fmt.Errorf("unknown role %q", c.Role)
		}
		p.Kind = KindTenantUser
		p.TenantID = c.TenantID
		p.Role = c.Role
		if c.Kind == "" {
			return p, NamespaceLegacy, nil
		}
		return p, NamespaceTenant, nil
	}
	return Principal{}, "", fmt.Errorf("unknown kind %q", c.Kind)
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", MissingToken
	}
	if len(header) < len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return "", MalformedToken
	}
	token := strings.TrimSpace(header[len(bearerPrefix):])
	if token == "" || strings.ContainsAny(token, " \t") {
		return "", MalformedToken
	}
	return token, nil
}
