package template

import (
	"context"

	"github.com/ignite/newsletter/internal/domain"
)

// Repository defines the data access contract for templates.
type Repository interface {
	Get(ctx context.Context, orgID, id string) (*domain.Template, error)
	List(ctx context.Context, orgID string) ([]domain.Template, error)
	Create(ctx context.Context, t *domain.Template) (string, error)
	Update(ctx context.Context, orgID, id string, u UpdateFields) error
	Delete(ctx context.Context, orgID, id string) error
}

// UpdateFields holds the mutable fields for a template update.
// Nil fields are not applied.
type UpdateFields struct {
	Name        *string
	Description *string
	HTMLContent *string
	TextContent *string
	Variables   map[string]any
	IsActive    *bool
}
