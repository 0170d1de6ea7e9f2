package auth

import "errors"

var (
	ErrInvalidInput            = errors.New("auth: invalid input")
	ErrInvalidCredentials      = errors.New("auth: invalid credentials")
	ErrAccountNotFound         = errors.New("auth: account not found")
	ErrNoTenantAccess          = errors.New("auth: no organization access")
	ErrInsufficientPermissions = errors.New("auth: insufficient permissions")
)

// AuthError is the closed set of reasons a bearer token is rejected.
// Every value renders the same public message; Reason is for logs and metrics.
type AuthError int

const (
	MissingToken AuthError = iota + 1
	MalformedToken
	ExpiredToken
	RevokedToken
	SignatureInvalid
)

const unauthorizedMessage = "Unauthorized"

func (e AuthError) Error() string { return "auth: " + e.Reason() }

// PublicMessage is what callers see, whatever the reason.
func (e AuthError) PublicMessage() string { return unauthorizedMessage }

func (e AuthError) Reason() string {
	switch e {
	case MissingToken:
		return "missing_token"
	case MalformedToken:
		return "malformed_token"
	case ExpiredToken:
		return "expired_token"
	case RevokedToken:
		return "revoked_token"
	case SignatureInvalid:
		return "signature_invalid"
	}
	return "unknown"
}

// AsAuthError unwraps err into an AuthError.
func AsAuthError(err error) (AuthError, bool) {
	var ae AuthError
	if errors.As(err, &ae) {
		return ae, true
	}
	return 0, false
}
