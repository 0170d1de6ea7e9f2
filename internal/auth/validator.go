package auth

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Authenticated is the result of a successful validation.
type Authenticated struct {
	Principal Principal
	Token     string
	ExpiresAt time.Time
}

// Validator runs the per-request token checks: header, signature and expiry,
// then confirmation in the session store.
type Validator struct {
	signer   *TokenSigner
	sessions SessionStore
}

func NewValidator(signer *TokenSigner, sessions SessionStore) (*Validator, error) {
	if signer == nil || sessions == nil {
		return nil, errors.New("auth: signer and session store are required")
	}
	return &Validator{signer: signer, sessions: sessions}, nil
}

// Authenticate validates an Authorization header value. Rejections are
// AuthError values; any other error is a session store failure.
func (v *Validator) Authenticate(ctx context.Context, header string) (Authenticated, error) {
	token, err := BearerToken(header)
	if err != nil {
		return Authenticated{}, err
	}
	parsed, err := v.signer.Parse(token)
	if err != nil {
		return Authenticated{}, err
	}
	state, err := v.sessions.State(ctx, parsed.Namespace, token)
	if err != nil {
		return Authenticated{}, fmt.Errorf("auth: session lookup: %w", err)
	}
	if state != SessionValid {
		return Authenticated{}, RevokedToken
	}
	return Authenticated{
		Principal: parsed.Principal,
		Token:     token,
		ExpiresAt: parsed.ExpiresAt,
	}, nil
}
