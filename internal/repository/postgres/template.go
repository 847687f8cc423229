package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/ignite/newsletter/internal/domain"
	"github.com/ignite/newsletter/internal/service/template"
)

// TemplateRepo implements template.Repository against PostgreSQL.
type TemplateRepo struct{ db *sql.DB }

// NewTemplateRepo creates a Postgres-backed template repository.
func NewTemplateRepo(db *sql.DB) *TemplateRepo { return &TemplateRepo{db: db} }

const templateColumns = `id, organization_id, COALESCE(user_id, ''), name, COALESCE(description, ''),
	html_content, COALESCE(text_content, ''), COALESCE(variables, '{}'::jsonb), is_active, created_at, updated_at`

func scanTemplate(row interface{ Scan(...any) error }) (*domain.Template, error) {
	var (
		t    domain.Template
		vars []byte
	)
	if err := row.Scan(&t.ID, &t.OrganizationID, &t.UserID, &t.Name, &t.Description,
		&t.HTMLContent, &t.TextContent, &vars, &t.IsActive, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	if err := scanJSON(vars, &t.Variables); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *TemplateRepo) Get(ctx context.Context, orgID, id string) (*domain.Template, error) {
	if !validID(id) {
		return nil, template.ErrNotFound
	}
	t, err := scanTemplate(r.db.QueryRowContext(ctx,
		`SELECT `+templateColumns+` FROM templates WHERE id = $1 AND organization_id = $2`, id, orgID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, template.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get template: %w", err)
	}
	return t, nil
}

func (r *TemplateRepo) List(ctx context.Context, orgID string) ([]domain.Template, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+templateColumns+` FROM templates WHERE organization_id = $1 ORDER BY created_at DESC`, orgID)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	var out []domain.Template
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func (r *TemplateRepo) Create(ctx context.Context, t *domain.Template) (string, error) {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	vars, err := jsonb(t.Variables)
	if err != nil {
		return "", fmt.Errorf("encode variables: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO templates
			(id, organization_id, user_id, name, description, html_content, text_content,
			 variables, is_active, created_at, updated_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, $8, $9, NOW(), NOW())
	`, t.ID, t.OrganizationID, t.UserID, t.Name, t.Description, t.HTMLContent, t.TextContent,
		vars, t.IsActive)
	if err != nil {
		return "", fmt.Errorf("create template: %w", err)
	}
	return t.ID, nil
}

func (r *TemplateRepo) Update(ctx context.Context, orgID, id string, u template.UpdateFields) error {
	if !validID(id) {
		return template.ErrNotFound
	}
	var b setBuilder
	if u.Name != nil {
		b.add("name", *u.Name)
	}
	if u.Description != nil {
		b.add("description", *u.Description)
	}
	if u.HTMLContent != nil {
		b.add("html_content", *u.HTMLContent)
	}
	if u.TextContent != nil {
		b.add("text_content", *u.TextContent)
	}
	if u.Variables != nil {
		vars, err := jsonb(u.Variables)
		if err != nil {
			return fmt.Errorf("encode variables: %w", err)
		}
		b.add("variables", vars)
	}
	if u.IsActive != nil {
		b.add("is_active", *u.IsActive)
	}
	if b.empty() {
		return nil
	}

	res, err := r.db.ExecContext(ctx, b.sql("templates", "id", "organization_id"), append(b.args, id, orgID)...)
	if err != nil {
		return fmt.Errorf("update template: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return template.ErrNotFound
	}
	return nil
}

func (r *TemplateRepo) Delete(ctx context.Context, orgID, id string) error {
	if !validID(id) {
		return template.ErrNotFound
	}
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM templates WHERE id = $1 AND organization_id = $2`, id, orgID)
	if err != nil {
		return fmt.Errorf("delete template: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return template.ErrNotFound
	}
	return nil
}
