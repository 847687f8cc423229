package domain

import "time"

// TrackingEventType enumerates the engagement events recorded from links.
type TrackingEventType string

const (
	EventOpen  TrackingEventType = "open"
	EventClick TrackingEventType = "click"
)

// TrackingEvent is a single open or click decoded from a signed token.
type TrackingEvent struct {
	EventType    TrackingEventType `json:"eventType"`
	CampaignID   string            `json:"campaignId"`
	SubscriberID string            `json:"subscriberId"`
	LinkID       string            `json:"linkId,omitempty"`
	URL          string            `json:"url,omitempty"`
	IPAddress    string            `json:"ipAddress,omitempty"`
	UserAgent    string            `json:"userAgent,omitempty"`
	Timestamp    time.Time         `json:"timestamp"`
}
