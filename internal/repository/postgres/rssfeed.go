package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ignite/newsletter/internal/domain"
	"github.com/ignite/newsletter/internal/service/rss"
)

// RSSFeedRepo implements rss.Repository against PostgreSQL.
type RSSFeedRepo struct{ db *sql.DB }

// NewRSSFeedRepo creates a Postgres-backed feed repository.
func NewRSSFeedRepo(db *sql.DB) *RSSFeedRepo { return &RSSFeedRepo{db: db} }

const feedColumns = `id, organization_id, list_id, name, feed_url, is_active, auto_send,
	check_interval_hours, last_checked, COALESCE(processed_items, '{}'::jsonb),
	COALESCE(campaign_template, ''), COALESCE(campaign_subject, ''), created_at, updated_at`

func scanFeed(row interface{ Scan(...any) error }) (*domain.RSSFeed, error) {
	var (
		f         domain.RSSFeed
		checked   sql.NullTime
		processed []byte
	)
	if err := row.Scan(&f.ID, &f.OrganizationID, &f.ListID, &f.Name, &f.FeedURL, &f.IsActive, &f.AutoSend,
		&f.CheckIntervalHours, &checked, &processed,
		&f.CampaignTemplate, &f.CampaignSubject, &f.CreatedAt, &f.UpdatedAt); err != nil {
		return nil, err
	}
	if checked.Valid {
		f.LastChecked = &checked.Time
	}
	if err := scanJSON(processed, &f.ProcessedItems); err != nil {
		return nil, err
	}
	if f.ProcessedItems == nil {
		f.ProcessedItems = map[string]bool{}
	}
	return &f, nil
}

func (r *RSSFeedRepo) query(ctx context.Context, q string, args ...interface{}) ([]domain.RSSFeed, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.RSSFeed
	for rows.Next() {
		f, err := scanFeed(rows)
		if err != nil {
			return nil, fmt.Errorf("scan feed: %w", err)
		}
		out = append(out, *f)
	}
	return out, rows.Err()
}

func (r *RSSFeedRepo) Get(ctx context.Context, orgID, id string) (*domain.RSSFeed, error) {
	if !validID(id) {
		return nil, rss.ErrNotFound
	}
	f, err := scanFeed(r.db.QueryRowContext(ctx,
		`SELECT `+feedColumns+` FROM rss_feeds WHERE id = $1 AND organization_id = $2`, id, orgID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, rss.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get feed: %w", err)
	}
	return f, nil
}

func (r *RSSFeedRepo) List(ctx context.Context, orgID string) ([]domain.RSSFeed, error) {
	out, err := r.query(ctx,
		`SELECT `+feedColumns+` FROM rss_feeds WHERE organization_id = $1 ORDER BY created_at DESC`, orgID)
	if err != nil {
		return nil, fmt.Errorf("list feeds: %w", err)
	}
	return out, nil
}

func (r *RSSFeedRepo) ListActive(ctx context.Context) ([]domain.RSSFeed, error) {
	out, err := r.query(ctx,
		`SELECT `+feedColumns+` FROM rss_feeds WHERE is_active = true ORDER BY last_checked ASC NULLS FIRST`)
	if err != nil {
		return nil, fmt.Errorf("list active feeds: %w", err)
	}
	return out, nil
}

func (r *RSSFeedRepo) Create(ctx context.Context, f *domain.RSSFeed) (string, error) {
	if f.ID == "" {
		f.ID = uuid.New().String()
	}
	processed, err := jsonb(f.ProcessedItems)
	if err != nil {
		return "", fmt.Errorf("encode processed items: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO rss_feeds
			(id, organization_id, list_id, name, feed_url, is_active, auto_send,
			 check_interval_hours, processed_items, campaign_template, campaign_subject,
			 created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NULLIF($10, ''), NULLIF($11, ''), NOW(), NOW())
	`, f.ID, f.OrganizationID, f.ListID, f.Name, f.FeedURL, f.IsActive, f.AutoSend,
		f.CheckIntervalHours, processed, f.CampaignTemplate, f.CampaignSubject)
	if err != nil {
		return "", fmt.Errorf("create feed: %w", err)
	}
	return f.ID, nil
}

func (r *RSSFeedRepo) Update(ctx context.Context, orgID, id string, u rss.UpdateFields) error {
	if !validID(id) {
		return rss.ErrNotFound
	}
	var b setBuilder
	if u.Name != nil {
		b.add("name", *u.Name)
	}
	if u.FeedURL != nil {
		b.add("feed_url", *u.FeedURL)
	}
	if u.ListID != nil {
		b.add("list_id", *u.ListID)
	}
	if u.IsActive != nil {
		b.add("is_active", *u.IsActive)
	}
	if u.AutoSend != nil {
		b.add("auto_send", *u.AutoSend)
	}
	if u.CheckIntervalHours != nil {
		b.add("check_interval_hours", *u.CheckIntervalHours)
	}
	if u.CampaignTemplate != nil {
		b.add("campaign_template", *u.CampaignTemplate)
	}
	if u.CampaignSubject != nil {
		b.add("campaign_subject", *u.CampaignSubject)
	}
	if b.empty() {
		return nil
	}

	res, err := r.db.ExecContext(ctx, b.sql("rss_feeds", "id", "organization_id"), append(b.args, id, orgID)...)
	if err != nil {
		return fmt.Errorf("update feed: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return rss.ErrNotFound
	}
	return nil
}

func (r *RSSFeedRepo) Delete(ctx context.Context, orgID, id string) error {
	if !validID(id) {
		return rss.ErrNotFound
	}
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM rss_feeds WHERE id = $1 AND organization_id = $2`, id, orgID)
	if err != nil {
		return fmt.Errorf("delete feed: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return rss.ErrNotFound
	}
	return nil
}

func (r *RSSFeedRepo) MarkChecked(ctx context.Context, id string, processed map[string]bool, at time.Time) error {
	items, err := jsonb(processed)
	if err != nil {
		return fmt.Errorf("encode processed items: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		UPDATE rss_feeds SET processed_items = $1, last_checked = $2, updated_at = NOW()
		WHERE id = $3
	`, items, at, id)
	if err != nil {
		return fmt.Errorf("mark feed checked: %w", err)
	}
	return nil
}
