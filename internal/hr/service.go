package hr

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"

	"hrms.org/internal/auth"
)

// Store is the persistence contract. Every tenant-scoped method filters by
// tenantID; rows of other tenants behave as if they did not exist.
type Store interface {
	CreateTenantWithAdmin(ctx context.Context, tenant Tenant, admin NewAdmin) (Provisioned, error)
	ListTenants(ctx context.Context) ([]Tenant, error)
	ListEmployees(ctx context.Context, tenantID int64) ([]Employee, error)
	GetEmployee(ctx context.Context, tenantID, id int64) (Employee, error)
	DecideLeave(ctx context.Context, tenantID int64, d Decision) (DecisionResult, error)
}

// Service validates input for tenant-scoped HR operations.
type Service struct {
	store  Store
	hasher auth.PasswordHasher
	log    *zap.Logger
	now    func() time.Time
}

func NewService(store Store, hasher auth.PasswordHasher, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: store, hasher: hasher, log: log, now: time.Now}
}

// ProvisionTenant creates a tenant and its first ADMIN user atomically.
func (s *Service) ProvisionTenant(ctx context.Context, in TenantInput, admin AdminInput) (Provisioned, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return Provisioned{}, fmt.Errorf("%w: tenant name is required", ErrInvalidInput)
	}
	slug := slugify(name)
	if slug == "" {
		return Provisioned{}, fmt.Errorf("%w: tenant name must contain letters or digits", ErrInvalidInput)
	}
	tenantEmail, err := normalizeEmail(in.Email)
	if err != nil {
		return Provisioned{}, err
	}
	adminEmail, err := normalizeEmail(admin.Email)
	if err != nil {
		return Provisioned{}, err
	}
	if err := auth.ValidateNewPassword(admin.Password); err != nil {
		return Provisioned{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	username := strings.TrimSpace(admin.Username)
	if username == "" {
		username = strings.SplitN(adminEmail, "@", 2)[0]
	}
	hash, err := s.hasher.Hash(admin.Password)
	if err != nil {
		return Provisioned{}, fmt.Errorf("hr: hash admin password: %w", err)
	}

	out, err := s.store.CreateTenantWithAdmin(ctx,
		Tenant{Name: name, Slug: slug, Email: tenantEmail, Active: true, CreatedAt: s.now().UTC()},
		NewAdmin{
			Email:        adminEmail,
			Username:     username,
			PasswordHash: hash,
			FirstName:    strings.TrimSpace(admin.FirstName),
			LastName:     strings.TrimSpace(admin.LastName),
		})
	if err != nil {
		return Provisioned{}, err
	}
	s.log.Info("tenant provisioned",
		zap.Int64("tenant_id", out.Tenant.ID),
		zap.String("slug", out.Tenant.Slug),
		zap.Int64("admin_user_id", out.AdminUserID))
	return out, nil
}

func (s *Service) ListTenants(ctx context.Context) ([]Tenant, error) {
	return s.store.ListTenants(ctx)
}

func (s *Service) ListEmployees(ctx context.Context, tenantID int64) ([]Employee, error) {
	if tenantID <= 0 {
		return nil, fmt.Errorf("%w: tenant is required", ErrInvalidInput)
	}
	return s.store.ListEmployees(ctx, tenantID)
}

func (s *Service) GetEmployee(ctx context.Context, tenantID, id int64) (Employee, error) {
	if tenantID <= 0 {
		return Employee{}, fmt.Errorf("%w: tenant is required", ErrInvalidInput)
	}
	if id <= 0 {
		return Employee{}, ErrNotFound
	}
	return s.store.GetEmployee(ctx, tenantID, id)
}

// DecideLeave approves or rejects a pending request within tenantID.
func (s *Service) DecideLeave(ctx context.Context, tenantID int64, d Decision) (DecisionResult, error) {
	if tenantID <= 0 {
		return DecisionResult{}, fmt.Errorf("%w: tenant is required", ErrInvalidInput)
	}
	if d.RequestID <= 0 {
		return DecisionResult{}, ErrNotFound
	}
	if d.ApproverID <= 0 {
		return DecisionResult{}, fmt.Errorf("%w: approver is required", ErrInvalidInput)
	}
	d.Comment = strings.TrimSpace(d.Comment)
	if len(d.Comment) > 500 {
		return DecisionResult{}, fmt.Errorf("%w: comment too long", ErrInvalidInput)
	}
	if d.At.IsZero() {
		d.At = s.now()
	}
	return s.store.DecideLeave(ctx, tenantID, d)
}

func normalizeEmail(raw string) (string, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return "", fmt.Errorf("%w: email is required", ErrInvalidInput)
	}
	addr, err := mail.ParseAddress(raw)
	if err != nil || addr.Address != raw {
		return "", fmt.Errorf("%w: invalid email %q", ErrInvalidInput, raw)
	}
	return raw, nil
}

func slugify(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(name) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
