package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/ignite/newsletter/internal/domain"
	"github.com/ignite/newsletter/internal/service/list"
)

// ListRepo implements list.Repository against PostgreSQL.
type ListRepo struct{ db *sql.DB }

// NewListRepo creates a Postgres-backed list repository.
func NewListRepo(db *sql.DB) *ListRepo { return &ListRepo{db: db} }

const listColumns = `id, organization_id, user_id, name, COALESCE(custom_fields, '{}'::jsonb), created_at, updated_at`

func scanList(row interface{ Scan(...any) error }) (*domain.List, error) {
	var (
		l      domain.List
		org    sql.NullString
		user   sql.NullString
		schema []byte
	)
	if err := row.Scan(&l.ID, &org, &user, &l.Name, &schema, &l.CreatedAt, &l.UpdatedAt); err != nil {
		return nil, err
	}
	if org.Valid {
		l.OrganizationID = &org.String
	}
	if user.Valid {
		l.UserID = &user.String
	}
	if err := scanJSON(schema, &l.CustomFields); err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *ListRepo) Get(ctx context.Context, id string) (*domain.List, error) {
	if !validID(id) {
		return nil, list.ErrNotFound
	}
	l, err := scanList(r.db.QueryRowContext(ctx,
		`SELECT `+listColumns+` FROM lists WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, list.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get list: %w", err)
	}
	return l, nil
}

func (r *ListRepo) List(ctx context.Context, orgID string) ([]domain.List, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+listColumns+` FROM lists WHERE organization_id = $1 ORDER BY created_at DESC`, orgID)
	if err != nil {
		return nil, fmt.Errorf("list lists: %w", err)
	}
	defer rows.Close()

	var out []domain.List
	for rows.Next() {
		l, err := scanList(rows)
		if err != nil {
			return nil, fmt.Errorf("scan list: %w", err)
		}
		out = append(out, *l)
	}
	return out, rows.Err()
}

func (r *ListRepo) Create(ctx context.Context, l *domain.List) (string, error) {
	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	schema, err := jsonb(l.CustomFields)
	if err != nil {
		return "", fmt.Errorf("encode schema: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO lists (id, organization_id, user_id, name, custom_fields, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
	`, l.ID, l.OrganizationID, l.UserID, l.Name, schema)
	if err != nil {
		return "", fmt.Errorf("create list: %w", err)
	}
	return l.ID, nil
}

func (r *ListRepo) Update(ctx context.Context, id string, u list.UpdateFields) error {
	if !validID(id) {
		return list.ErrNotFound
	}
	var b setBuilder
	if u.Name != nil {
		b.add("name", *u.Name)
	}
	if u.CustomFields != nil {
		schema, err := jsonb(u.CustomFields)
		if err != nil {
			return fmt.Errorf("encode schema: %w", err)
		}
		b.add("custom_fields", schema)
	}
	if u.OrganizationID != nil {
		b.add("organization_id", *u.OrganizationID)
	}
	if b.empty() {
		return nil
	}

	res, err := r.db.ExecContext(ctx, b.sql("lists", "id"), append(b.args, id)...)
	if err != nil {
		return fmt.Errorf("update list: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return list.ErrNotFound
	}
	return nil
}
