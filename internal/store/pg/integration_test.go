//go:build integration

package pg

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	pgmodule "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"hrms.org/internal/audit"
	"hrms.org/internal/auth"
	"hrms.org/internal/hr"
	"hrms.org/internal/ids"
	"hrms.org/internal/migrate"
)

func setupTestDB(t *testing.T) *Store {
	t.Helper()
	if os.Getenv("SKIP_INTEGRATION") == "true" {
		t.Skip("SKIP_INTEGRATION=true, skipping PostgreSQL integration tests")
	}
	ctx := context.Background()

	container, err := pgmodule.Run(ctx,
		"postgres:16-alpine",
		pgmodule.WithDatabase("hrms_test"),
		pgmodule.WithUsername("test"),
		pgmodule.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Skipf("skipping: could not start PostgreSQL container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("connection string: %v", err)
	}
	store, err := Open(dsn, PoolOptions{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	if _, err := migrate.NewManager(store.DB(), migrate.Embedded()).Up(ctx); err != nil {
		t.Fatalf("migrate up: %v", err)
	}
	return store
}

func provision(t *testing.T, store *Store, name, email string) hr.Provisioned {
	t.Helper()
	out, err := store.CreateTenantWithAdmin(context.Background(),
		hr.Tenant{Name: name, Slug: name, Email: "ops@" + name + ".test", Active: true, CreatedAt: time.Now().UTC()},
		hr.NewAdmin{Email: email, Username: name + "-admin", PasswordHash: "plain-legacy", FirstName: "A", LastName: "B"})
	if err != nil {
		t.Fatalf("CreateTenantWithAdmin: %v", err)
	}
	return out
}

func TestIntegrationTenantIsolationAndLeave(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	acme := provision(t, store, "acme", "boss@acme.test")
	globex := provision(t, store, "globex", "boss@globex.test")

	if _, err := store.CreateTenantWithAdmin(ctx,
		hr.Tenant{Name: "acme", Slug: "acme", Email: "x@acme.test", Active: true, CreatedAt: time.Now()},
		hr.NewAdmin{Email: "other@acme.test", Username: "other", PasswordHash: "x"}); !errors.Is(err, hr.ErrConflict) {
		t.Fatalf("expected ErrConflict for duplicate slug, got %v", err)
	}

	acct, err := store.FindTenantUser(ctx, "BOSS@acme.test")
	if err != nil {
		t.Fatalf("FindTenantUser: %v", err)
	}
	if acct.TenantID != acme.Tenant.ID || acct.Role != auth.RoleAdmin {
		t.Fatalf("unexpected account: %+v", acct)
	}
	if err := store.TouchLastLogin(ctx, auth.KindTenantUser, acct.ID, time.Now()); err != nil {
		t.Fatalf("TouchLastLogin: %v", err)
	}

	acmeEmployees, err := store.ListEmployees(ctx, acme.Tenant.ID)
	if err != nil || len(acmeEmployees) != 1 {
		t.Fatalf("ListEmployees: %v %v", acmeEmployees, err)
	}
	globexEmployees, _ := store.ListEmployees(ctx, globex.Tenant.ID)
	if _, err := store.GetEmployee(ctx, acme.Tenant.ID, globexEmployees[0].ID); !errors.Is(err, hr.ErrNotFound) {
		t.Fatalf("cross-tenant read must be not found, got %v", err)
	}

	var leaveTypeID, requestID int64
	db := store.DB()
	if err := db.QueryRowContext(ctx, `insert into leave_types(tenant_id, name, days_per_year) values ($1, 'Annual', 20) returning id`,
		acme.Tenant.ID).Scan(&leaveTypeID); err != nil {
		t.Fatalf("insert leave type: %v", err)
	}
	if _, err := db.ExecContext(ctx, `insert into leave_balances(tenant_id, employee_id, leave_type_id, year, total, used, pending)
		values ($1, $2, $3, 2026, 20, 0, 3)`, acme.Tenant.ID, acmeEmployees[0].ID, leaveTypeID); err != nil {
		t.Fatalf("insert balance: %v", err)
	}
	if err := db.QueryRowContext(ctx, `insert into leave_requests(tenant_id, employee_id, leave_type_id, start_date, end_date, days)
		values ($1, $2, $3, '2026-07-01', '2026-07-03', 3) returning id`,
		acme.Tenant.ID, acmeEmployees[0].ID, leaveTypeID).Scan(&requestID); err != nil {
		t.Fatalf("insert request: %v", err)
	}

	d := hr.Decision{RequestID: requestID, ApproverID: acct.ID, Approve: true, At: time.Now()}
	if _, err := store.DecideLeave(ctx, globex.Tenant.ID, d); !errors.Is(err, hr.ErrNotFound) {
		t.Fatalf("cross-tenant decision must be not found, got %v", err)
	}
	res, err := store.DecideLeave(ctx, acme.Tenant.ID, d)
	if err != nil {
		t.Fatalf("DecideLeave: %v", err)
	}
	if res.Balance.Used != 3 || res.Balance.Pending != 0 || res.Balance.Available() != 17 {
		t.Fatalf("unexpected balance: %+v", res.Balance)
	}
	if _, err := store.DecideLeave(ctx, acme.Tenant.ID, d); !errors.Is(err, hr.ErrConflict) {
		t.Fatalf("second decision must conflict, got %v", err)
	}

	tenantID := acme.Tenant.ID
	entry := audit.Entry{
		ID: ids.New(), TenantID: &tenantID, ActorID: acct.ID, Action: "APPROVE", Entity: "leave_request",
		Changes:   audit.Diff(res.Before.Snapshot(), res.After.Snapshot()),
		CreatedAt: time.Now().UTC(),
	}
	if err := store.Append(ctx, entry); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if _, err := store.Get(ctx, globex.Tenant.ID, entry.ID); !errors.Is(err, audit.ErrNotFound) {
		t.Fatalf("cross-tenant audit read must be not found, got %v", err)
	}
	list, total, err := store.List(ctx, acme.Tenant.ID, audit.Filter{Entity: "leave_request"})
	if err != nil || total != 1 || list[0].Changes["status"].To != "APPROVED" {
		t.Fatalf("List: %v %d %v", list, total, err)
	}
}
