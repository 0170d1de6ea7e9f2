package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"hrms.org/internal/auth"
	"hrms.org/internal/hr"
)

var _ hr.Store = (*Store)(nil)

// CreateTenantWithAdmin inserts the tenant, its ADMIN user and the matching
// employee record in one transaction.
func (s *Store) CreateTenantWithAdmin(ctx context.Context, t hr.Tenant, admin hr.NewAdmin) (hr.Provisioned, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return hr.Provisioned{}, err
	}
	defer func() { _ = tx.Rollback() }()

	err = tx.QueryRowContext(ctx, `
		insert into tenants(name, slug, email, is_active, created_at)
		values ($1, $2, $3, $4, $5)
		returning id`, t.Name, t.Slug, t.Email, t.Active, t.CreatedAt).Scan(&t.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return hr.Provisioned{}, fmt.Errorf("%w: tenant %q already exists", hr.ErrConflict, t.Slug)
		}
		return hr.Provisioned{}, err
	}

	var adminID int64
	err = tx.QueryRowContext(ctx, `
		insert into users(tenant_id, email, username, password, role, first_name, last_name, is_active)
		values ($1, $2, $3, $4, $5, $6, $7, true)
		returning id`,
		t.ID, admin.Email, admin.Username, admin.PasswordHash, string(auth.RoleAdmin), admin.FirstName, admin.LastName,
	).Scan(&adminID)
	if err != nil {
		if isUniqueViolation(err) {
			return hr.Provisioned{}, fmt.Errorf("%w: admin email or username already in use", hr.ErrConflict)
		}
		return hr.Provisioned{}, err
	}

	if _, err := tx.ExecContext(ctx, `
		insert into employees(tenant_id, user_id, employee_code, first_name, last_name, email, hire_date)
		values ($1, $2, $3, $4, $5, $6, $7)`,
		t.ID, adminID, "EMP-0001", admin.FirstName, admin.LastName, admin.Email, t.CreatedAt,
	); err != nil {
		return hr.Provisioned{}, err
	}

	if err := tx.Commit(); err != nil {
		return hr.Provisioned{}, err
	}
	return hr.Provisioned{Tenant: t, AdminUserID: adminID}, nil
}

func (s *Store) ListTenants(ctx context.Context) ([]hr.Tenant, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, name, slug, email, is_active, created_at
		from tenants
		order by id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []hr.Tenant
	for rows.Next() {
		var t hr.Tenant
		if err := rows.Scan(&t.ID, &t.Name, &t.Slug, &t.Email, &t.Active, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

const employeeColumns = `id, tenant_id, user_id, employee_code, first_name, last_name, email,
	department, position, status, manager_id, hire_date`

func (s *Store) ListEmployees(ctx context.Context, tenantID int64) ([]hr.Employee, error) {
	rows, err := s.db.QueryContext(ctx, `select `+employeeColumns+`
		from employees
		where tenant_id = $1
		order by id`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []hr.Employee{}
	for rows.Next() {
		e, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) GetEmployee(ctx context.Context, tenantID, id int64) (hr.Employee, error) {
	e, err := scanEmployee(s.db.QueryRowContext(ctx, `select `+employeeColumns+`
		from employees
		where tenant_id = $1 and id = $2`, tenantID, id))
	if errors.Is(err, sql.ErrNoRows) {
		return hr.Employee{}, hr.ErrNotFound
	}
	return e, err
}

func scanEmployee(row scanner) (hr.Employee, error) {
	var (
		e                 hr.Employee
		userID, managerID sql.NullInt64
	)
	if err := row.Scan(&e.ID, &e.TenantID, &userID, &e.EmployeeCode, &e.FirstName, &e.LastName, &e.Email,
		&e.Department, &e.Position, &e.Status, &managerID, &e.HireDate); err != nil {
		return hr.Employee{}, err
	}
	e.UserID = nullableID(userID)
	e.ManagerID = nullableID(managerID)
	return e, nil
}

// DecideLeave locks the request and its balance row, applies the decision
// and writes both back.
func (s *Store) DecideLeave(ctx context.Context, tenantID int64, d hr.Decision) (hr.DecisionResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return hr.DecisionResult{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var (
		req        hr.LeaveRequest
		status     string
		approverID sql.NullInt64
		decidedAt  sql.NullTime
	)
	err = tx.QueryRowContext(ctx, `
		select id, tenant_id, employee_id, leave_type_id, start_date, end_date, days, reason,
		       status, approver_id, decided_at, comment
		from leave_requests
		where id = $1 and tenant_id = $2
		for update`, d.RequestID, tenantID,
	).Scan(&req.ID, &req.TenantID, &req.EmployeeID, &req.LeaveTypeID, &req.StartDate, &req.EndDate, &req.Days,
		&req.Reason, &status, &approverID, &decidedAt, &req.Comment)
	if errors.Is(err, sql.ErrNoRows) {
		return hr.DecisionResult{}, hr.ErrNotFound
	}
	if err != nil {
		return hr.DecisionResult{}, err
	}
	req.Status = hr.LeaveStatus(status)
	req.ApproverID = nullableID(approverID)
	if decidedAt.Valid {
		t := decidedAt.Time.UTC()
		req.DecidedAt = &t
	}

	bal := hr.LeaveBalance{
		TenantID:    tenantID,
		EmployeeID:  req.EmployeeID,
		LeaveTypeID: req.LeaveTypeID,
		Year:        req.StartDate.Year(),
	}
	var balanceID int64
	err = tx.QueryRowContext(ctx, `
		select id, total, used, pending
		from leave_balances
		where tenant_id = $1 and employee_id = $2 and leave_type_id = $3 and year = $4
		for update`, tenantID, bal.EmployeeID, bal.LeaveTypeID, bal.Year,
	).Scan(&balanceID, &bal.Total, &bal.Used, &bal.Pending)
	if errors.Is(err, sql.ErrNoRows) {
		return hr.DecisionResult{}, fmt.Errorf("%w: no leave balance for %d", hr.ErrConflict, bal.Year)
	}
	if err != nil {
		return hr.DecisionResult{}, err
	}

	after, nextBal, err := hr.ApplyDecision(req, bal, d)
	if err != nil {
		return hr.DecisionResult{}, err
	}

	if _, err := tx.ExecContext(ctx, `
		update leave_requests
		set status = $1, approver_id = $2, decided_at = $3, comment = $4
		where id = $5 and tenant_id = $6`,
		string(after.Status), *after.ApproverID, *after.DecidedAt, after.Comment, after.ID, tenantID,
	); err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgForeignKeyViolation {
			return hr.DecisionResult{}, fmt.Errorf("%w: approver does not exist", hr.ErrInvalidInput)
		}
		return hr.DecisionResult{}, err
	}
	if _, err := tx.ExecContext(ctx, `
		update leave_balances
		set used = $1, pending = $2
		where id = $3`, nextBal.Used, nextBal.Pending, balanceID,
	); err != nil {
		return hr.DecisionResult{}, err
	}

	if err := tx.Commit(); err != nil {
		return hr.DecisionResult{}, err
	}
	return hr.DecisionResult{Before: req, After: after, Balance: nextBal}, nil
}

func nullableID(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	id := v.Int64
	return &id
}

