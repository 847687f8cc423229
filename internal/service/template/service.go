// Package template stores reusable email bodies and renders them with the
// liquid engine.
package template

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ignite/newsletter/internal/domain"
	"github.com/ignite/newsletter/internal/mailing"
)

// Engine renders liquid sources. *mailing.TemplateService satisfies it.
type Engine interface {
	Parse(src string) error
	Render(cacheKey, src string, vars map[string]interface{}) (string, error)
	ClearCacheKey(key string)
}

// Service implements template CRUD and rendering.
type Service struct {
	repo   Repository
	engine Engine
}

// NewService creates a template service. A nil engine uses a fresh
// mailing.TemplateService.
func NewService(repo Repository, engine Engine) *Service {
	if engine == nil {
		engine = mailing.NewTemplateService()
	}
	return &Service{repo: repo, engine: engine}
}

// CreateInput holds the fields for creating a template.
type CreateInput struct {
	Name        string         `json:"name" validate:"required"`
	Description string         `json:"description"`
	HTMLContent string         `json:"htmlContent" validate:"required"`
	TextContent string         `json:"textContent"`
	Variables   map[string]any `json:"variables"`
	IsActive    *bool          `json:"isActive"`
}

func (s *Service) check(src string) error {
	if src == "" {
		return nil
	}
	if err := s.engine.Parse(src); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTemplate, err)
	}
	return nil
}

// Create validates both bodies and stores the template. IsActive defaults
// to true.
func (s *Service) Create(ctx context.Context, orgID, userID string, in CreateInput) (*domain.Template, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, ErrNameRequired
	}
	if strings.TrimSpace(in.HTMLContent) == "" {
		return nil, ErrHTMLRequired
	}
	if err := s.check(in.HTMLContent); err != nil {
		return nil, err
	}
	if err := s.check(in.TextContent); err != nil {
		return nil, err
	}

	active := true
	if in.IsActive != nil {
		active = *in.IsActive
	}
	now := time.Now().UTC()
	t := &domain.Template{
		OrganizationID: orgID,
		UserID:         userID,
		Name:           in.Name,
		Description:    in.Description,
		HTMLContent:    in.HTMLContent,
		TextContent:    in.TextContent,
		Variables:      in.Variables,
		IsActive:       active,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	id, err := s.repo.Create(ctx, t)
	if err != nil {
		return nil, fmt.Errorf("create template: %w", err)
	}
	t.ID = id
	return t, nil
}

// Get returns one template of orgID.
func (s *Service) Get(ctx context.Context, orgID, id string) (*domain.Template, error) {
	return s.repo.Get(ctx, orgID, id)
}

// List returns the organization's templates.
func (s *Service) List(ctx context.Context, orgID string) ([]domain.Template, error) {
	out, err := s.repo.List(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []domain.Template{}
	}
	return out, nil
}

// Update applies u and returns the stored template.
func (s *Service) Update(ctx context.Context, orgID, id string, u UpdateFields) (*domain.Template, error) {
	if u.Name != nil && strings.TrimSpace(*u.Name) == "" {
		return nil, ErrNameRequired
	}
	if u.HTMLContent != nil {
		if strings.TrimSpace(*u.HTMLContent) == "" {
			return nil, ErrHTMLRequired
		}
		if err := s.check(*u.HTMLContent); err != nil {
			return nil, err
		}
	}
	if u.TextContent != nil {
		if err := s.check(*u.TextContent); err != nil {
			return nil, err
		}
	}
	old, err := s.repo.Get(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, orgID, id, u); err != nil {
		return nil, err
	}
	s.forget(old)
	return s.repo.Get(ctx, orgID, id)
}

// Delete removes a template.
func (s *Service) Delete(ctx context.Context, orgID, id string) error {
	old, err := s.repo.Get(ctx, orgID, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, orgID, id); err != nil {
		return err
	}
	s.forget(old)
	return nil
}

// Render evaluates the template bodies with vars layered over the
// template's stored default variables. Unknown variables render empty.
func (s *Service) Render(ctx context.Context, orgID, id string, vars map[string]any) (*domain.RenderedTemplate, error) {
	t, err := s.repo.Get(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	bindings := make(map[string]interface{}, len(t.Variables)+len(vars))
	for k, v := range t.Variables {
		bindings[k] = v
	}
	for k, v := range vars {
		bindings[k] = v
	}

	out := &domain.RenderedTemplate{}
	if out.HTML, err = s.engine.Render(cacheKey(t, "html"), t.HTMLContent, bindings); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTemplate, err)
	}
	if t.TextContent != "" {
		if out.Text, err = s.engine.Render(cacheKey(t, "text"), t.TextContent, bindings); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidTemplate, err)
		}
	}
	return out, nil
}

func (s *Service) forget(t *domain.Template) {
	s.engine.ClearCacheKey(cacheKey(t, "html"))
	s.engine.ClearCacheKey(cacheKey(t, "text"))
}

// cacheKey changes whenever the template is updated.
func cacheKey(t *domain.Template, part string) string {
	return fmt.Sprintf("tpl:%s:%d:%s", t.ID, t.UpdatedAt.UnixNano(), part)
}
