package domain

import "time"

// TransportType identifies the mail transport used for delivery.
type TransportType string

const (
	TransportSES  TransportType = "ses"
	TransportSMTP TransportType = "smtp"
	TransportLog  TransportType = "log"
)

// EmailMessage is the fully-resolved message handed to a transport.
// By the time a message reaches this struct, merge tags, tracking injection,
// and encryption have all been applied.
type EmailMessage struct {
	CampaignID   string `json:"campaignId"`
	SubscriberID string `json:"subscriberId"`
	To           string `json:"to"`
	FromName     string `json:"fromName"`
	FromEmail    string `json:"fromEmail"`
	Subject      string `json:"subject"`
	HTML         string `json:"html"`
	Encrypted    bool   `json:"encrypted"`
}

// SendResult is returned by a transport after a delivery attempt.
type SendResult struct {
	MessageID string        `json:"messageId"`
	Transport TransportType `json:"transport"`
	SentAt    time.Time     `json:"sentAt"`
}
