package campaign

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ignite/newsletter/internal/domain"
	"github.com/ignite/newsletter/internal/mailing"
	"github.com/ignite/newsletter/internal/metrics"
	"github.com/ignite/newsletter/internal/pkg/logger"
	"github.com/ignite/newsletter/internal/segmentation"
	"github.com/ignite/newsletter/internal/service/list"
	"github.com/ignite/newsletter/internal/service/sending"
)

// DefaultConcurrency bounds the dispatch worker pool when Config leaves it
// unset.
const DefaultConcurrency = 10

// NoRecipientsMessage is returned when a segment matches nobody.
const NoRecipientsMessage = "No subscribers matched segmentation filters"

// Segmenter resolves the recipients of a list. *list.Service satisfies it.
type Segmenter interface {
	Get(ctx context.Context, orgID, id string) (*domain.List, error)
	SegmentFilters(ctx context.Context, orgScope, listID string, f segmentation.Filters) (*list.SegmentResult, error)
}

// Encrypter optionally encrypts a body for one subscriber.
type Encrypter interface {
	MaybeEncrypt(content string, sub *domain.Subscriber) (string, bool)
}

// Tracker rewrites a body with open and click tracking.
type Tracker interface {
	Inject(body string, settings domain.TrackingSettings, subscriberID string) string
}

// Config holds dispatch settings.
type Config struct {
	Concurrency int
	FromName    string
	FromEmail   string
}

// Service implements campaign business logic. All public methods are safe
// for concurrent use if the underlying collaborators are.
type Service struct {
	repo      Repository
	lists     Segmenter
	sender    sending.Sender
	encrypter Encrypter
	tracker   Tracker
	cfg       Config
}

// NewService creates a campaign service. encrypter and tracker may be nil,
// which disables that step.
func NewService(repo Repository, lists Segmenter, sender sending.Sender, encrypter Encrypter, tracker Tracker, cfg Config) *Service {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	return &Service{
		repo:      repo,
		lists:     lists,
		sender:    sender,
		encrypter: encrypter,
		tracker:   tracker,
		cfg:       cfg,
	}
}

// CreateInput holds the fields for creating a new campaign.
type CreateInput struct {
	ListID                string `json:"listId" validate:"required"`
	Subject               string `json:"subject" validate:"required"`
	Content               string `json:"content" validate:"required"`
	ClickTrackingDisabled bool   `json:"clickTrackingDisabled"`
	OpenTrackingDisabled  bool   `json:"openTrackingDisabled"`
}

// Create validates and persists a campaign. The list must belong to orgID.
func (s *Service) Create(ctx context.Context, orgID string, in CreateInput) (*domain.Campaign, error) {
	if strings.TrimSpace(in.Subject) == "" {
		return nil, ErrSubjectRequired
	}
	if strings.TrimSpace(in.Content) == "" {
		return nil, ErrContentRequired
	}
	if _, err := s.lists.Get(ctx, orgID, in.ListID); err != nil {
		if errors.Is(err, list.ErrNotFound) {
			return nil, ErrListNotFound
		}
		return nil, err
	}

	now := time.Now().UTC()
	c := &domain.Campaign{
		OrganizationID:        orgID,
		ListID:                in.ListID,
		Subject:               in.Subject,
		Content:               in.Content,
		ClickTrackingDisabled: in.ClickTrackingDisabled,
		OpenTrackingDisabled:  in.OpenTrackingDisabled,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	id, err := s.repo.Create(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("create campaign: %w", err)
	}
	c.ID = id
	logger.Info("campaign created", "campaign_id", id, "list_id", in.ListID, "organization_id", orgID)
	return c, nil
}

// Get returns a single campaign.
func (s *Service) Get(ctx context.Context, orgID, id string) (*domain.Campaign, error) {
	return s.repo.Get(ctx, orgID, id)
}

// List returns the organization's campaigns, newest first.
func (s *Service) List(ctx context.Context, orgID string, f ListFilter) ([]domain.Campaign, int, error) {
	return s.repo.List(ctx, orgID, f)
}

// TrackingSettings returns the tracking flags of a campaign.
func (s *Service) TrackingSettings(ctx context.Context, orgID, id string) (*domain.TrackingSettings, error) {
	c, err := s.repo.Get(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	return &domain.TrackingSettings{
		ID:                    c.ID,
		ClickTrackingDisabled: c.ClickTrackingDisabled,
		OpenTrackingDisabled:  c.OpenTrackingDisabled,
	}, nil
}

// Send parses raw filters and dispatches the campaign to the matching
// subscribers of its list.
func (s *Service) Send(ctx context.Context, orgID, campaignID string, raw map[string]any) (*domain.DispatchResult, error) {
	f, err := segmentation.ParseFilters(raw)
	if err != nil {
		return nil, err
	}
	return s.SendFilters(ctx, orgID, campaignID, f)
}

// SendFilters dispatches a campaign with already parsed filters. Sent plus
// Failed always equals TotalSubscribers; transport and encryption failures
// are counted and logged, not returned.
func (s *Service) SendFilters(ctx context.Context, orgID, campaignID string, f segmentation.Filters) (*domain.DispatchResult, error) {
	c, err := s.repo.Get(ctx, orgID, campaignID)
	if err != nil {
		return nil, err
	}
	if c.ListID == "" {
		return nil, ErrListNotFound
	}

	seg, err := s.lists.SegmentFilters(ctx, orgID, c.ListID, f)
	if err != nil {
		return nil, fmt.Errorf("segment campaign %s: %w", campaignID, err)
	}

	filters := f.Raw
	if filters == nil {
		filters = map[string]any{}
	}
	if len(seg.Data) == 0 {
		return &domain.DispatchResult{
			CampaignID: c.ID,
			Message:    NoRecipientsMessage,
			Filters:    filters,
		}, nil
	}

	start := time.Now()
	sent, failed := s.dispatch(ctx, c, seg.Data)
	metrics.DispatchDuration.Observe(time.Since(start).Seconds())

	logger.Info("campaign dispatched",
		"campaign_id", c.ID,
		"total", len(seg.Data),
		"sent", sent,
		"failed", failed,
		"duration", time.Since(start).String(),
	)
	return &domain.DispatchResult{
		CampaignID:       c.ID,
		Message:          fmt.Sprintf("Campaign %q completed.", c.Subject),
		TotalSubscribers: len(seg.Data),
		Filters:          filters,
		Sent:             sent,
		Failed:           failed,
	}, nil
}

func (s *Service) dispatch(ctx context.Context, c *domain.Campaign, recipients []domain.Subscriber) (int, int) {
	var sent, failed atomic.Int64
	settings := domain.TrackingSettings{
		ID:                    c.ID,
		ClickTrackingDisabled: c.ClickTrackingDisabled,
		OpenTrackingDisabled:  c.OpenTrackingDisabled,
	}

	// Workers never return an error so one bad recipient cannot cancel the
	// rest of the group.
	var g errgroup.Group
	g.SetLimit(s.cfg.Concurrency)
	for i := range recipients {
		sub := &recipients[i]
		g.Go(func() error {
			if err := s.sendOne(ctx, c, settings, sub); err != nil {
				failed.Add(1)
				metrics.DispatchRecipients.WithLabelValues("failed").Inc()
				logger.Error("campaign send failed",
					"campaign_id", c.ID,
					"subscriber_email", sub.Email,
					"error", err,
				)
				return nil
			}
			sent.Add(1)
			metrics.DispatchRecipients.WithLabelValues("sent").Inc()
			return nil
		})
	}
	_ = g.Wait()
	return int(sent.Load()), int(failed.Load())
}

func (s *Service) sendOne(ctx context.Context, c *domain.Campaign, settings domain.TrackingSettings, sub *domain.Subscriber) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	subject := mailing.RenderMergeTags(c.Subject, sub)
	body := mailing.WrapEnvelope(subject, mailing.RenderMergeTags(c.Content, sub))
	if s.tracker != nil {
		body = s.tracker.Inject(body, settings, sub.ID)
	}
	encrypted := false
	if s.encrypter != nil {
		body, encrypted = s.encrypter.MaybeEncrypt(body, sub)
	}

	_, err := s.sender.Send(ctx, &domain.EmailMessage{
		CampaignID:   c.ID,
		SubscriberID: sub.ID,
		To:           sub.Email,
		FromName:     s.cfg.FromName,
		FromEmail:    s.cfg.FromEmail,
		Subject:      subject,
		HTML:         body,
		Encrypted:    encrypted,
	})
	return err
}
