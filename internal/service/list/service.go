package list

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/ignite/newsletter/internal/domain"
	"github.com/ignite/newsletter/internal/segmentation"
)

// Default import settings used when Config leaves them zero.
const (
	DefaultTempDir   = "/tmp/newsletter-uploads"
	DefaultBatchSize = 1000
)

// Config controls the import path.
type Config struct {
	TempDir   string
	BatchSize int
}

// Service implements list management, segmentation and CSV import.
// All public methods are safe for concurrent use if the underlying
// repositories are.
type Service struct {
	repo     Repository
	subs     SubscriberStore
	progress ProgressTracker
	cfg      Config
	bg       sync.WaitGroup
}

// NewService creates a list service. Progress tracking is disabled until
// SetProgressTracker is called.
func NewService(repo Repository, subs SubscriberStore, cfg Config) *Service {
	if cfg.TempDir == "" {
		cfg.TempDir = DefaultTempDir
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	return &Service{repo: repo, subs: subs, progress: NopProgress{}, cfg: cfg}
}

// SetProgressTracker replaces the import progress sink.
func (s *Service) SetProgressTracker(p ProgressTracker) {
	if p == nil {
		p = NopProgress{}
	}
	s.progress = p
}

// CreateInput holds the fields for a new list.
type CreateInput struct {
	OrganizationID string                   `json:"organizationId"`
	Name           string                   `json:"name" validate:"required"`
	CustomFields   domain.CustomFieldSchema `json:"customFields"`
}

// Create persists a new list. The organization is optional.
func (s *Service) Create(ctx context.Context, in CreateInput) (*domain.List, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, ErrNameRequired
	}
	l := &domain.List{
		ID:           uuid.New().String(),
		Name:         name,
		CustomFields: in.CustomFields,
	}
	if in.OrganizationID != "" {
		org := in.OrganizationID
		l.OrganizationID = &org
	}
	id, err := s.repo.Create(ctx, l)
	if err != nil {
		return nil, fmt.Errorf("create list: %w", err)
	}
	l.ID = id
	return l, nil
}

// Get returns a list visible to orgID. An empty orgID skips the ownership
// check.
func (s *Service) Get(ctx context.Context, orgID, id string) (*domain.List, error) {
	l, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if orgID != "" && l.OrgID() != orgID {
		return nil, ErrNotFound
	}
	return l, nil
}

// List returns the lists owned by orgID.
func (s *Service) List(ctx context.Context, orgID string) ([]domain.List, error) {
	return s.repo.List(ctx, orgID)
}

// Update changes name, schema or organization link. An unlinked list may be
// claimed by any organization; a linked one only by its owner.
func (s *Service) Update(ctx context.Context, orgID, id string, u UpdateFields) (*domain.List, error) {
	l, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if orgID != "" && l.OrgID() != "" && l.OrgID() != orgID {
		return nil, ErrNotFound
	}
	if u.Name != nil && strings.TrimSpace(*u.Name) == "" {
		return nil, ErrNameRequired
	}
	if err := s.repo.Update(ctx, id, u); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, id)
}

// SegmentResult is the outcome of evaluating a filter document.
type SegmentResult struct {
	Total   int                 `json:"total"`
	Count   int                 `json:"count"`
	Data    []domain.Subscriber `json:"data"`
	Filters map[string]any      `json:"filters"`
}

// Segment evaluates a raw filter document against the organization that
// owns listID. A non-empty orgScope must match that organization.
func (s *Service) Segment(ctx context.Context, orgScope, listID string, raw map[string]any) (*SegmentResult, error) {
	f, err := segmentation.ParseFilters(raw)
	if err != nil {
		return nil, err
	}
	return s.SegmentFilters(ctx, orgScope, listID, f)
}

// SegmentFilters is Segment for an already parsed filter document.
func (s *Service) SegmentFilters(ctx context.Context, orgScope, listID string, f segmentation.Filters) (*SegmentResult, error) {
	l, err := s.resolveOrg(ctx, listID)
	if err != nil {
		return nil, err
	}
	if orgScope != "" && l.OrgID() != orgScope {
		return nil, ErrNotFound
	}

	data, total, err := s.subs.Segment(ctx, l.OrgID(), f)
	if err != nil {
		return nil, fmt.Errorf("segment list %s: %w", listID, err)
	}
	if data == nil {
		data = []domain.Subscriber{}
	}
	return &SegmentResult{
		Total:   total,
		Count:   len(data),
		Data:    data,
		Filters: f.Raw,
	}, nil
}

// resolveOrg loads a list and requires it to be linked to an organization.
func (s *Service) resolveOrg(ctx context.Context, listID string) (*domain.List, error) {
	l, err := s.repo.Get(ctx, listID)
	if err != nil {
		return nil, err
	}
	if l.OrgID() == "" {
		return nil, ErrInvalidState
	}
	return l, nil
}
