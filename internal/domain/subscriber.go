package domain

import (
	"strings"
	"time"
)

// Subscriber is a single recipient owned by an organization. Email is unique
// per organization, not globally.
type Subscriber struct {
	ID             string         `json:"id" db:"id"`
	OrganizationID string         `json:"organizationId" db:"organization_id"`
	Email          string         `json:"email" db:"email"`
	CustomFields   map[string]any `json:"customFields" db:"custom_fields"`
	GPGPublicKey   string         `json:"gpgPublicKey,omitempty" db:"gpg_public_key"`
	EncryptEmails  bool           `json:"encryptEmails" db:"encrypt_emails"`
	IsActive       bool           `json:"isActive" db:"is_active"`
	CreatedAt      time.Time      `json:"createdAt" db:"created_at"`
}

// CanEncrypt reports whether the subscriber opted into encryption and has
// key material to encrypt with.
func (s *Subscriber) CanEncrypt() bool {
	return s.EncryptEmails && strings.TrimSpace(s.GPGPublicKey) != ""
}

// NormalizeEmail returns the canonical form used for storage and dedup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// List is a subscriber list. OrganizationID is optional at creation; lists
// without one cannot be segmented.
type List struct {
	ID             string            `json:"id" db:"id"`
	OrganizationID *string           `json:"organizationId" db:"organization_id"`
	UserID         *string           `json:"userId,omitempty" db:"user_id"`
	Name           string            `json:"name" db:"name"`
	CustomFields   CustomFieldSchema `json:"customFields" db:"custom_fields"`
	CreatedAt      time.Time         `json:"createdAt" db:"created_at"`
	UpdatedAt      time.Time         `json:"updatedAt" db:"updated_at"`
}

// OrgID returns the owning organization, or "" when the list is unlinked.
func (l *List) OrgID() string {
	if l.OrganizationID == nil {
		return ""
	}
	return *l.OrganizationID
}

// FieldType is the declared type of a custom field.
type FieldType string

const (
	FieldString  FieldType = "string"
	FieldNumber  FieldType = "number"
	FieldBoolean FieldType = "boolean"
	FieldDate    FieldType = "date"
)

// FieldSchema describes a single custom field on a list.
type FieldSchema struct {
	Type         FieldType `json:"type"`
	Required     bool      `json:"required"`
	DefaultValue any       `json:"defaultValue,omitempty"`
}

// CustomFieldSchema maps field name to its declaration. A nil or empty
// schema disables validation.
type CustomFieldSchema map[string]FieldSchema
