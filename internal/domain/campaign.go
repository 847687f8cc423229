package domain

import "time"

// Campaign targets exactly one list. Each send is an independent attempt;
// no per-send record is persisted.
type Campaign struct {
	ID                    string    `json:"id" db:"id"`
	OrganizationID        string    `json:"organizationId" db:"organization_id"`
	ListID                string    `json:"listId" db:"list_id"`
	Subject               string    `json:"subject" db:"subject"`
	Content               string    `json:"content" db:"content"`
	ClickTrackingDisabled bool      `json:"clickTrackingDisabled" db:"click_tracking_disabled"`
	OpenTrackingDisabled  bool      `json:"openTrackingDisabled" db:"open_tracking_disabled"`
	CreatedAt             time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt             time.Time `json:"updatedAt" db:"updated_at"`
}

// TrackingSettings is the subset of a campaign the tracking injector reads.
type TrackingSettings struct {
	ID                    string `json:"id"`
	ClickTrackingDisabled bool   `json:"clickTrackingDisabled"`
	OpenTrackingDisabled  bool   `json:"openTrackingDisabled"`
}

// DispatchResult summarises one send of a campaign. Sent+Failed always
// equals TotalSubscribers.
type DispatchResult struct {
	CampaignID       string         `json:"campaignId"`
	Message          string         `json:"message"`
	TotalSubscribers int            `json:"totalSubscribers"`
	Filters          map[string]any `json:"filters"`
	Sent             int            `json:"sent"`
	Failed           int            `json:"failed"`
}
