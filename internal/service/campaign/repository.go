package campaign

import (
	"context"

	"github.com/ignite/newsletter/internal/domain"
)

// Repository defines the data access contract for campaigns.
// Implementations must be safe for concurrent use.
type Repository interface {
	// Get returns a single campaign. Returns ErrNotFound if it doesn't exist
	// or belongs to another organization.
	Get(ctx context.Context, orgID, id string) (*domain.Campaign, error)

	// List returns the organization's campaigns ordered by created_at DESC,
	// and the total ignoring paging.
	List(ctx context.Context, orgID string, filter ListFilter) ([]domain.Campaign, int, error)

	// Create inserts a new campaign and returns its ID.
	Create(ctx context.Context, c *domain.Campaign) (string, error)
}

// ListFilter controls pagination for campaign lists. A zero Limit means
// the repository default.
type ListFilter struct {
	Limit  int
	Offset int
}
