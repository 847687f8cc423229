package list

import (
	"context"

	"github.com/ignite/newsletter/internal/domain"
	"github.com/ignite/newsletter/internal/segmentation"
)

// Repository defines the data access contract for lists.
// Implementations must be safe for concurrent use.
type Repository interface {
	// Get returns a list by id regardless of organization. Returns
	// ErrNotFound if it doesn't exist.
	Get(ctx context.Context, id string) (*domain.List, error)

	// List returns lists owned by orgID, newest first.
	List(ctx context.Context, orgID string) ([]domain.List, error)

	// Create inserts a new list and returns its ID.
	Create(ctx context.Context, l *domain.List) (string, error)

	// Update applies non-nil fields. Returns ErrNotFound if the list does
	// not exist.
	Update(ctx context.Context, id string, u UpdateFields) error
}

// SubscriberStore is the subscriber-side storage used by segmentation and
// import.
type SubscriberStore interface {
	// Segment returns the requested page of subscribers matching f within
	// orgID, and the total number of matches ignoring paging.
	Segment(ctx context.Context, orgID string, f segmentation.Filters) ([]domain.Subscriber, int, error)

	// ExistingEmails returns which of emails already exist for orgID.
	ExistingEmails(ctx context.Context, orgID string, emails []string) (map[string]struct{}, error)

	// InsertSubscribers inserts subs, skipping any that conflict with an
	// existing (organization, email) pair. Returns the number inserted.
	InsertSubscribers(ctx context.Context, subs []domain.Subscriber) (int, error)
}

// UpdateFields holds the mutable fields for a list update.
// Nil fields are not applied.
type UpdateFields struct {
	Name           *string
	CustomFields   domain.CustomFieldSchema
	OrganizationID *string
}
