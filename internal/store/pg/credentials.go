package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"hrms.org/internal/auth"
)

var _ auth.CredentialStore = (*Store)(nil)

const tenantUserColumns = `
	select u.id, u.tenant_id, u.email, u.username, u.role, u.password,
	       u.is_active and coalesce(t.is_active, true)
	from users u
	left join tenants t on t.id = u.tenant_id`

func (s *Store) FindTenantUser(ctx context.Context, identifier string) (auth.Account, error) {
	row := s.db.QueryRowContext(ctx, tenantUserColumns+`
	where lower(u.username) = lower($1) or lower(u.email) = lower($1)
	order by u.id
	limit 1`, identifier)
	return scanTenantUser(row)
}

func (s *Store) FindSuperAdmin(ctx context.Context, email string) (auth.Account, error) {
	row := s.db.QueryRowContext(ctx, `
		select id, email, password, is_active
		from super_admins
		where lower(email) = lower($1)`, email)
	return scanSuperAdmin(row)
}

func (s *Store) FindAccount(ctx context.Context, kind auth.Kind, id int64) (auth.Account, error) {
	switch kind {
	case auth.KindTenantUser:
		return scanTenantUser(s.db.QueryRowContext(ctx, tenantUserColumns+`
	where u.id = $1`, id))
	case auth.KindSuperAdmin:
		return scanSuperAdmin(s.db.QueryRowContext(ctx, `
		select id, email, password, is_active
		from super_admins
		where id = $1`, id))
	}
	return auth.Account{}, fmt.Errorf("%w: unknown principal kind %q", auth.ErrInvalidInput, kind)
}

func (s *Store) UpdatePasswordHash(ctx context.Context, kind auth.Kind, id int64, hash string) error {
	table, err := accountTable(kind)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `update `+table+` set password = $1 where id = $2`, hash, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return auth.ErrAccountNotFound
	}
	return nil
}

func (s *Store) TouchLastLogin(ctx context.Context, kind auth.Kind, id int64, at time.Time) error {
	table, err := accountTable(kind)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `update `+table+` set last_login_at = $1 where id = $2`, at, id)
	return err
}

func accountTable(kind auth.Kind) (string, error) {
	switch kind {
	case auth.KindTenantUser:
		return "users", nil
	case auth.KindSuperAdmin:
		return "super_admins", nil
	}
	return "", fmt.Errorf("%w: unknown principal kind %q", auth.ErrInvalidInput, kind)
}

func scanTenantUser(row *sql.Row) (auth.Account, error) {
	var (
		acct     auth.Account
		tenantID sql.NullInt64
		role     string
	)
	err := row.Scan(&acct.ID, &tenantID, &acct.Email, &acct.Username, &role, &acct.PasswordHash, &acct.Active)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.Account{}, auth.ErrAccountNotFound
	}
	if err != nil {
		return auth.Account{}, err
	}
	acct.Kind = auth.KindTenantUser
	acct.TenantID = tenantID.Int64
	acct.Role = auth.Role(role)
	return acct, nil
}

func scanSuperAdmin(row *sql.Row) (auth.Account, error) {
	var acct auth.Account
	err := row.Scan(&acct.ID, &acct.Email, &acct.PasswordHash, &acct.Active)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.Account{}, auth.ErrAccountNotFound
	}
	if err != nil {
		return auth.Account{}, err
	}
	acct.Kind = auth.KindSuperAdmin
	acct.Role = auth.RoleSuperAdmin
	return acct, nil
}
