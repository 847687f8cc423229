package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/ignite/newsletter/internal/domain"
	"github.com/ignite/newsletter/internal/service/campaign"
)

// CampaignRepo implements campaign.Repository against PostgreSQL.
type CampaignRepo struct{ db *sql.DB }

// NewCampaignRepo creates a Postgres-backed campaign repository.
func NewCampaignRepo(db *sql.DB) *CampaignRepo { return &CampaignRepo{db: db} }

const campaignColumns = `id, organization_id, list_id, subject, content,
	click_tracking_disabled, open_tracking_disabled, created_at, updated_at`

func scanCampaign(row interface{ Scan(...any) error }) (*domain.Campaign, error) {
	c := &domain.Campaign{}
	err := row.Scan(&c.ID, &c.OrganizationID, &c.ListID, &c.Subject, &c.Content,
		&c.ClickTrackingDisabled, &c.OpenTrackingDisabled, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func (r *CampaignRepo) Get(ctx context.Context, orgID, id string) (*domain.Campaign, error) {
	if !validID(id) {
		return nil, campaign.ErrNotFound
	}
	c, err := scanCampaign(r.db.QueryRowContext(ctx, `
		SELECT `+campaignColumns+`
		FROM campaigns
		WHERE id = $1 AND organization_id = $2
	`, id, orgID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, campaign.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get campaign: %w", err)
	}
	return c, nil
}

func (r *CampaignRepo) List(ctx context.Context, orgID string, f campaign.ListFilter) ([]domain.Campaign, int, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}

	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM campaigns WHERE organization_id = $1`, orgID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count campaigns: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+campaignColumns+`
		FROM campaigns
		WHERE organization_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, orgID, limit, f.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list campaigns: %w", err)
	}
	defer rows.Close()

	var out []domain.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan campaign: %w", err)
		}
		out = append(out, *c)
	}
	return out, total, rows.Err()
}

func (r *CampaignRepo) Create(ctx context.Context, c *domain.Campaign) (string, error) {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO campaigns
			(id, organization_id, list_id, subject, content,
			 click_tracking_disabled, open_tracking_disabled, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
	`, c.ID, c.OrganizationID, c.ListID, c.Subject, c.Content,
		c.ClickTrackingDisabled, c.OpenTrackingDisabled)
	if err != nil {
		return "", fmt.Errorf("create campaign: %w", err)
	}
	return c.ID, nil
}
