package rss

import (
	"context"
	"time"

	"github.com/ignite/newsletter/internal/domain"
)

// Repository defines the data access contract for RSS feeds.
// Implementations must be safe for concurrent use.
type Repository interface {
	Get(ctx context.Context, orgID, id string) (*domain.RSSFeed, error)
	List(ctx context.Context, orgID string) ([]domain.RSSFeed, error)
	Create(ctx context.Context, f *domain.RSSFeed) (string, error)
	Update(ctx context.Context, orgID, id string, u UpdateFields) error
	Delete(ctx context.Context, orgID, id string) error

	// ListActive returns active feeds across all organizations.
	ListActive(ctx context.Context) ([]domain.RSSFeed, error)

	// MarkChecked stores the processed-item set and the check time.
	MarkChecked(ctx context.Context, id string, processed map[string]bool, at time.Time) error
}

// UpdateFields holds the mutable fields for a feed update.
// Nil fields are not applied.
type UpdateFields struct {
	Name               *string
	FeedURL            *string
	ListID             *string
	IsActive           *bool
	AutoSend           *bool
	CheckIntervalHours *int
	CampaignTemplate   *string
	CampaignSubject    *string
}
