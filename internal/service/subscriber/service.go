package subscriber

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ignite/newsletter/internal/domain"
	"github.com/ignite/newsletter/internal/pkg/logger"
	"github.com/ignite/newsletter/internal/service/list"
)

// Paging defaults for List.
const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// KeyValidator checks armored PGP public keys. *gpg.Service satisfies it.
type KeyValidator interface {
	ValidatePublicKey(armoredKey string) bool
}

// Service implements subscriber business logic.
type Service struct {
	repo Repository
	keys KeyValidator
}

// NewService creates a subscriber service.
func NewService(repo Repository, keys KeyValidator) *Service {
	return &Service{repo: repo, keys: keys}
}

// CreateInput holds the fields for creating a subscriber.
type CreateInput struct {
	Email        string         `json:"email" validate:"required"`
	CustomFields map[string]any `json:"customFields"`
}

// Create normalizes the email and stores a new active subscriber. Custom
// fields are stored as given.
func (s *Service) Create(ctx context.Context, orgID string, in CreateInput) (*domain.Subscriber, error) {
	email := domain.NormalizeEmail(in.Email)
	if !list.ValidEmail(email) {
		return nil, ErrInvalidEmail
	}
	fields := in.CustomFields
	if fields == nil {
		fields = map[string]any{}
	}
	sub := &domain.Subscriber{
		OrganizationID: orgID,
		Email:          email,
		CustomFields:   fields,
		IsActive:       true,
		CreatedAt:      time.Now().UTC(),
	}
	id, err := s.repo.Create(ctx, sub)
	if err != nil {
		return nil, err
	}
	sub.ID = id
	return sub, nil
}

// Get returns one subscriber of orgID.
func (s *Service) Get(ctx context.Context, orgID, id string) (*domain.Subscriber, error) {
	return s.repo.Get(ctx, orgID, id)
}

// Page is one page of subscribers.
type Page struct {
	Data  []domain.Subscriber `json:"data"`
	Total int                 `json:"total"`
	Page  int                 `json:"page"`
	Limit int                 `json:"limit"`
}

// List returns page (1-based) of the organization's subscribers.
func (s *Service) List(ctx context.Context, orgID string, page, limit int) (*Page, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	data, total, err := s.repo.ListPage(ctx, orgID, limit, (page-1)*limit)
	if err != nil {
		return nil, fmt.Errorf("list subscribers: %w", err)
	}
	if data == nil {
		data = []domain.Subscriber{}
	}
	return &Page{Data: data, Total: total, Page: page, Limit: limit}, nil
}

// Update applies u and returns the updated subscriber. A new email is
// normalized and validated.
func (s *Service) Update(ctx context.Context, orgID, id string, u UpdateFields) (*domain.Subscriber, error) {
	if u.Email != nil {
		email := domain.NormalizeEmail(*u.Email)
		if !list.ValidEmail(email) {
			return nil, ErrInvalidEmail
		}
		u.Email = &email
	}
	if u.GPGPublicKey != nil && strings.TrimSpace(*u.GPGPublicKey) != "" && !s.keys.ValidatePublicKey(*u.GPGPublicKey) {
		return nil, ErrInvalidKey
	}
	if err := s.repo.Update(ctx, orgID, id, u); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, orgID, id)
}

// EnrollKey stores a validated public key. encrypt nil means true.
func (s *Service) EnrollKey(ctx context.Context, orgID, id, armoredKey string, encrypt *bool) (*domain.Subscriber, error) {
	if strings.TrimSpace(armoredKey) == "" || !s.keys.ValidatePublicKey(armoredKey) {
		return nil, ErrInvalidKey
	}
	enc := true
	if encrypt != nil {
		enc = *encrypt
	}
	if err := s.repo.Update(ctx, orgID, id, UpdateFields{GPGPublicKey: &armoredKey, EncryptEmails: &enc}); err != nil {
		return nil, err
	}
	logger.Info("gpg key enrolled", "subscriber_id", id, "encrypt_emails", enc)
	return s.repo.Get(ctx, orgID, id)
}

// RemoveKey clears the key and turns encryption off.
func (s *Service) RemoveKey(ctx context.Context, orgID, id string) (*domain.Subscriber, error) {
	empty, off := "", false
	if err := s.repo.Update(ctx, orgID, id, UpdateFields{GPGPublicKey: &empty, EncryptEmails: &off}); err != nil {
		return nil, err
	}
	logger.Info("gpg key removed", "subscriber_id", id)
	return s.repo.Get(ctx, orgID, id)
}
