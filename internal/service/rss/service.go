// Package rss turns syndication feed items into campaigns. Feeds are
// checked on their own interval by a poller, or on demand.
package rss

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/ignite/newsletter/internal/domain"
	"github.com/ignite/newsletter/internal/metrics"
	"github.com/ignite/newsletter/internal/pkg/logger"
	"github.com/ignite/newsletter/internal/service/campaign"
)

// DefaultCampaignTemplate is the body used when a feed has none.
const DefaultCampaignTemplate = `<h2>{title}</h2>
<p>{description}</p>
<p><a href="{link}">Read more</a></p>
<hr />
<p>{content}</p>`

const previewItems = 5

// Fetcher downloads a feed document. *httpretry.Client satisfies it.
type Fetcher interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// Campaigns is the campaign surface used to publish items.
// *campaign.Service satisfies it.
type Campaigns interface {
	Create(ctx context.Context, orgID string, in campaign.CreateInput) (*domain.Campaign, error)
	Send(ctx context.Context, orgID, campaignID string, raw map[string]any) (*domain.DispatchResult, error)
}

// Service implements feed CRUD and feed processing.
type Service struct {
	repo      Repository
	campaigns Campaigns
	fetch     Fetcher
	parser    *gofeed.Parser
	now       func() time.Time
}

// NewService creates an RSS service.
func NewService(repo Repository, campaigns Campaigns, fetch Fetcher) *Service {
	return &Service{
		repo:      repo,
		campaigns: campaigns,
		fetch:     fetch,
		parser:    gofeed.NewParser(),
		now:       time.Now,
	}
}

// CreateInput holds the fields for registering a feed.
type CreateInput struct {
	Name               string `json:"name" validate:"required"`
	FeedURL            string `json:"feedUrl" validate:"required,url"`
	ListID             string `json:"listId" validate:"required"`
	IsActive           *bool  `json:"isActive"`
	AutoSend           bool   `json:"autoSend"`
	CheckIntervalHours int    `json:"checkIntervalHours" validate:"gte=0"`
	CampaignTemplate   string `json:"campaignTemplate"`
	CampaignSubject    string `json:"campaignSubject"`
}

func checkURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrFeedURL
	}
	return nil
}

// Create stores a feed. IsActive defaults to true and the check interval
// to 24 hours.
func (s *Service) Create(ctx context.Context, orgID string, in CreateInput) (*domain.RSSFeed, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, ErrNameRequired
	}
	if err := checkURL(in.FeedURL); err != nil {
		return nil, err
	}
	active := true
	if in.IsActive != nil {
		active = *in.IsActive
	}
	interval := in.CheckIntervalHours
	if interval <= 0 {
		interval = domain.DefaultRSSCheckIntervalHours
	}
	now := s.now().UTC()
	f := &domain.RSSFeed{
		OrganizationID:     orgID,
		ListID:             in.ListID,
		Name:               in.Name,
		FeedURL:            in.FeedURL,
		IsActive:           active,
		AutoSend:           in.AutoSend,
		CheckIntervalHours: interval,
		ProcessedItems:     map[string]bool{},
		CampaignTemplate:   in.CampaignTemplate,
		CampaignSubject:    in.CampaignSubject,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	id, err := s.repo.Create(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("create feed: %w", err)
	}
	f.ID = id
	return f, nil
}

// Get returns one feed of orgID.
func (s *Service) Get(ctx context.Context, orgID, id string) (*domain.RSSFeed, error) {
	return s.repo.Get(ctx, orgID, id)
}

// List returns the organization's feeds.
func (s *Service) List(ctx context.Context, orgID string) ([]domain.RSSFeed, error) {
	out, err := s.repo.List(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []domain.RSSFeed{}
	}
	return out, nil
}

// Update applies u and returns the stored feed.
func (s *Service) Update(ctx context.Context, orgID, id string, u UpdateFields) (*domain.RSSFeed, error) {
	if u.Name != nil && strings.TrimSpace(*u.Name) == "" {
		return nil, ErrNameRequired
	}
	if u.FeedURL != nil {
		if err := checkURL(*u.FeedURL); err != nil {
			return nil, err
		}
	}
	if u.CheckIntervalHours != nil && *u.CheckIntervalHours <= 0 {
		def := domain.DefaultRSSCheckIntervalHours
		u.CheckIntervalHours = &def
	}
	if err := s.repo.Update(ctx, orgID, id, u); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, orgID, id)
}

// Delete removes a feed.
func (s *Service) Delete(ctx context.Context, orgID, id string) error {
	return s.repo.Delete(ctx, orgID, id)
}

// load fetches and parses a feed document.
func (s *Service) load(ctx context.Context, feedURL string) (*gofeed.Feed, error) {
	if err := checkURL(feedURL); err != nil {
		return nil, err
	}
	body, err := s.fetch.Get(ctx, feedURL)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch %s: %v", ErrInvalidFeed, feedURL, err)
	}
	feed, err := s.parser.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", ErrInvalidFeed, feedURL, err)
	}
	return feed, nil
}

// TestFeed fetches feedURL and previews its newest items without storing
// anything.
func (s *Service) TestFeed(ctx context.Context, feedURL string) (*domain.FeedPreview, error) {
	feed, err := s.load(ctx, feedURL)
	if err != nil {
		return nil, err
	}
	p := &domain.FeedPreview{
		Title:       feed.Title,
		Description: feed.Description,
		ItemCount:   len(feed.Items),
		LatestItems: []domain.FeedItem{},
	}
	for i, it := range feed.Items {
		if i == previewItems {
			break
		}
		p.LatestItems = append(p.LatestItems, toItem(it))
	}
	return p, nil
}

// ProcessResult reports what one feed check did.
type ProcessResult struct {
	FeedID      string   `json:"feedId"`
	Message     string   `json:"message"`
	Skipped     bool     `json:"skipped"`
	NewItems    int      `json:"newItems"`
	CampaignIDs []string `json:"campaignIds"`
}

// ManualCheck processes a feed now, ignoring its check interval.
func (s *Service) ManualCheck(ctx context.Context, orgID, id string) (*ProcessResult, error) {
	f, err := s.repo.Get(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	return s.ProcessFeed(ctx, f, true)
}

// ProcessFeed creates a campaign for every item of f not yet processed and
// dispatches it when the feed auto-sends. Unless force is set, a feed
// checked less than its interval ago is skipped. An item whose campaign
// cannot be created stays unprocessed and is retried on the next check.
func (s *Service) ProcessFeed(ctx context.Context, f *domain.RSSFeed, force bool) (*ProcessResult, error) {
	res := &ProcessResult{FeedID: f.ID, CampaignIDs: []string{}}
	now := s.now().UTC()
	if !force && !f.Due(now) {
		res.Skipped = true
		res.Message = "Feed checked recently; skipped"
		return res, nil
	}

	feed, err := s.load(ctx, f.FeedURL)
	if err != nil {
		metrics.RSSFeedErrors.Inc()
		return nil, err
	}

	processed := make(map[string]bool, len(f.ProcessedItems)+len(feed.Items))
	for k, v := range f.ProcessedItems {
		processed[k] = v
	}
	for _, it := range feed.Items {
		item := toItem(it)
		key := item.ItemKey()
		if key == "" || processed[key] {
			continue
		}
		c, err := s.publish(ctx, f, item)
		if err != nil {
			logger.Error("rss item campaign failed",
				"feed_id", f.ID,
				"item", key,
				"error", err,
			)
			continue
		}
		processed[key] = true
		res.NewItems++
		res.CampaignIDs = append(res.CampaignIDs, c.ID)
		metrics.RSSItemsProcessed.Inc()
	}

	if err := s.repo.MarkChecked(ctx, f.ID, processed, now); err != nil {
		return nil, fmt.Errorf("mark feed %s checked: %w", f.ID, err)
	}
	f.ProcessedItems = processed
	f.LastChecked = &now

	res.Message = fmt.Sprintf("Created %d campaigns from feed %q", res.NewItems, f.Name)
	logger.Info("rss feed processed", "feed_id", f.ID, "new_items", res.NewItems)
	return res, nil
}

func (s *Service) publish(ctx context.Context, f *domain.RSSFeed, item domain.FeedItem) (*domain.Campaign, error) {
	body := f.CampaignTemplate
	if strings.TrimSpace(body) == "" {
		body = DefaultCampaignTemplate
	}
	subject := f.CampaignSubject
	if strings.TrimSpace(subject) == "" {
		subject = domain.DefaultRSSSubject
	}

	c, err := s.campaigns.Create(ctx, f.OrganizationID, campaign.CreateInput{
		ListID:  f.ListID,
		Subject: fillItem(subject, item),
		Content: fillItem(body, item),
	})
	if err != nil {
		return nil, err
	}
	if f.AutoSend {
		r, err := s.campaigns.Send(ctx, f.OrganizationID, c.ID, nil)
		if err != nil {
			logger.Error("rss auto-send failed", "feed_id", f.ID, "campaign_id", c.ID, "error", err)
		} else {
			logger.Info("rss auto-send finished", "feed_id", f.ID, "campaign_id", c.ID, "sent", r.Sent, "failed", r.Failed)
		}
	}
	return c, nil
}

// fillItem substitutes the item placeholders in one pass.
func fillItem(tpl string, item domain.FeedItem) string {
	content := item.Content
	if content == "" {
		content = item.Description
	}
	return strings.NewReplacer(
		"{title}", item.Title,
		"{description}", item.Description,
		"{link}", item.Link,
		"{content}", content,
		"{pubDate}", item.PubDate,
	).Replace(tpl)
}

func toItem(it *gofeed.Item) domain.FeedItem {
	item := domain.FeedItem{
		GUID:        it.GUID,
		Title:       it.Title,
		Description: it.Description,
		Link:        it.Link,
		Content:     it.Content,
		PubDate:     it.Published,
	}
	if it.PublishedParsed != nil {
		item.Published = *it.PublishedParsed
	}
	return item
}
