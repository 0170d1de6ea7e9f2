package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"hrms.org/internal/audit"
)

var _ audit.Store = (*Store)(nil)

const auditColumns = `id, tenant_id, actor_id, actor_email, action, entity, entity_id,
	old_value, new_value, changes, ip_address, user_agent, request_id, created_at`

func (s *Store) Append(ctx context.Context, e audit.Entry) error {
	oldValue, err := jsonOrNull(e.OldValue)
	if err != nil {
		return err
	}
	newValue, err := jsonOrNull(e.NewValue)
	if err != nil {
		return err
	}
	changes, err := jsonOrNull(e.Changes)
	if err != nil {
		return err
	}
	var tenantID sql.NullInt64
	if e.TenantID != nil {
		tenantID = sql.NullInt64{Int64: *e.TenantID, Valid: true}
	}
	_, err = s.db.ExecContext(ctx, `
		insert into audit_logs(`+auditColumns+`)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		e.ID, tenantID, e.ActorID, e.ActorEmail, e.Action, e.Entity, e.EntityID,
		oldValue, newValue, changes, e.IPAddress, e.UserAgent, e.RequestID, e.CreatedAt)
	return err
}

func (s *Store) List(ctx context.Context, tenantID int64, f audit.Filter) ([]audit.Entry, int, error) {
	f = f.Normalized()
	where := []string{"tenant_id = $1"}
	args := []any{tenantID}
	add := func(clause string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if f.Action != "" {
		add("action = $%d", f.Action)
	}
	if f.Entity != "" {
		add("entity = $%d", f.Entity)
	}
	if f.ActorID > 0 {
		add("actor_id = $%d", f.ActorID)
	}
	if !f.From.IsZero() {
		add("created_at >= $%d", f.From)
	}
	if !f.To.IsZero() {
		add("created_at < $%d", f.To)
	}
	cond := strings.Join(where, " and ")

	var total int
	if err := s.db.QueryRowContext(ctx, `select count(*) from audit_logs where `+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	pageArgs := append(append([]any{}, args...), f.Limit, f.Offset)
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		select %s
		from audit_logs
		where %s
		order by created_at desc, id desc
		limit $%d offset $%d`, auditColumns, cond, len(args)+1, len(args)+2), pageArgs...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	entries := make([]audit.Entry, 0, f.Limit)
	for rows.Next() {
		e, err := scanAudit(rows)
		if err != nil {
			return nil, 0, err
		}
		entries = append(entries, e)
	}
	return entries, total, rows.Err()
}

func (s *Store) Get(ctx context.Context, tenantID int64, id string) (audit.Entry, error) {
	row := s.db.QueryRowContext(ctx, `select `+auditColumns+`
		from audit_logs
		where tenant_id = $1 and id = $2`, tenantID, id)
	e, err := scanAudit(row)
	if errors.Is(err, sql.ErrNoRows) {
		return audit.Entry{}, audit.ErrNotFound
	}
	return e, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAudit(row scanner) (audit.Entry, error) {
	var (
		e                          audit.Entry
		tenantID                   sql.NullInt64
		oldValue, newValue, change []byte
	)
	if err := row.Scan(&e.ID, &tenantID, &e.ActorID, &e.ActorEmail, &e.Action, &e.Entity, &e.EntityID,
		&oldValue, &newValue, &change, &e.IPAddress, &e.UserAgent, &e.RequestID, &e.CreatedAt); err != nil {
		return audit.Entry{}, err
	}
	if tenantID.Valid {
		id := tenantID.Int64
		e.TenantID = &id
	}
	if err := decodeJSON(oldValue, &e.OldValue); err != nil {
		return audit.Entry{}, err
	}
	if err := decodeJSON(newValue, &e.NewValue); err != nil {
		return audit.Entry{}, err
	}
	if err := decodeJSON(change, &e.Changes); err != nil {
		return audit.Entry{}, err
	}
	e.CreatedAt = e.CreatedAt.UTC()
	return e, nil
}

func jsonOrNull[T any](v map[string]T) (any, error) {
	if v == nil {
		return nil, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode audit payload: %w", err)
	}
	return string(raw), nil
}

func decodeJSON(raw []byte, dst any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dst)
}
