package subscriber

import (
	"context"

	"github.com/ignite/newsletter/internal/domain"
)

// Repository defines the data access contract for subscribers.
// Implementations must be safe for concurrent use.
type Repository interface {
	// Get returns a subscriber of orgID. Returns ErrNotFound if absent.
	Get(ctx context.Context, orgID, id string) (*domain.Subscriber, error)

	// ListPage returns one page of the organization's subscribers, newest
	// first, and the total count.
	ListPage(ctx context.Context, orgID string, limit, offset int) ([]domain.Subscriber, int, error)

	// Create inserts a subscriber. Returns ErrDuplicate when the email is
	// already taken within the organization.
	Create(ctx context.Context, s *domain.Subscriber) (string, error)

	// Update applies non-nil fields. Returns ErrNotFound if absent.
	Update(ctx context.Context, orgID, id string, u UpdateFields) error
}

// UpdateFields holds the mutable fields for a subscriber update.
// Nil fields are not applied.
type UpdateFields struct {
	Email         *string
	CustomFields  map[string]any
	IsActive      *bool
	GPGPublicKey  *string
	EncryptEmails *bool
}
