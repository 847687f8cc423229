package domain

import "time"

// DefaultRSSCheckIntervalHours applies when a feed does not set its own.
const DefaultRSSCheckIntervalHours = 24

// DefaultRSSSubject is used when a feed has no subject template.
const DefaultRSSSubject = "New: {title}"

// RSSFeed drives automatic campaign creation from a syndication feed.
type RSSFeed struct {
	ID                 string          `json:"id" db:"id"`
	OrganizationID     string          `json:"organizationId" db:"organization_id"`
	ListID             string          `json:"listId" db:"list_id"`
	Name               string          `json:"name" db:"name"`
	FeedURL            string          `json:"feedUrl" db:"feed_url"`
	IsActive           bool            `json:"isActive" db:"is_active"`
	AutoSend           bool            `json:"autoSend" db:"auto_send"`
	CheckIntervalHours int             `json:"checkIntervalHours" db:"check_interval_hours"`
	LastChecked        *time.Time      `json:"lastChecked,omitempty" db:"last_checked"`
	ProcessedItems     map[string]bool `json:"processedItems" db:"processed_items"`
	CampaignTemplate   string          `json:"campaignTemplate,omitempty" db:"campaign_template"`
	CampaignSubject    string          `json:"campaignSubject,omitempty" db:"campaign_subject"`
	CreatedAt          time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt          time.Time       `json:"updatedAt" db:"updated_at"`
}

// Due reports whether enough time has passed since the last check.
func (f *RSSFeed) Due(now time.Time) bool {
	if f.LastChecked == nil {
		return true
	}
	interval := f.CheckIntervalHours
	if interval <= 0 {
		interval = DefaultRSSCheckIntervalHours
	}
	return now.Sub(*f.LastChecked) >= time.Duration(interval)*time.Hour
}

// FeedItem is a single entry pulled from a feed.
type FeedItem struct {
	GUID        string    `json:"guid"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Link        string    `json:"link"`
	Content     string    `json:"content,omitempty"`
	PubDate     string    `json:"pubDate,omitempty"`
	Published   time.Time `json:"published"`
}

// ItemKey identifies an item for processed-item bookkeeping.
func (i FeedItem) ItemKey() string {
	if i.GUID != "" {
		return i.GUID
	}
	return i.Link
}

// FeedPreview is returned when testing a feed URL.
type FeedPreview struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	ItemCount   int        `json:"itemCount"`
	LatestItems []FeedItem `json:"latestItems"`
}
