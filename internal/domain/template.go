package domain

import "time"

// Template is a reusable organization-scoped email body.
type Template struct {
	ID             string         `json:"id" db:"id"`
	OrganizationID string         `json:"organizationId" db:"organization_id"`
	UserID         string         `json:"userId,omitempty" db:"user_id"`
	Name           string         `json:"name" db:"name"`
	Description    string         `json:"description,omitempty" db:"description"`
	HTMLContent    string         `json:"htmlContent" db:"html_content"`
	TextContent    string         `json:"textContent,omitempty" db:"text_content"`
	Variables      map[string]any `json:"variables,omitempty" db:"variables"`
	IsActive       bool           `json:"isActive" db:"is_active"`
	CreatedAt      time.Time      `json:"createdAt" db:"created_at"`
	UpdatedAt      time.Time      `json:"updatedAt" db:"updated_at"`
}

// RenderedTemplate is the output of rendering a template with variables.
type RenderedTemplate struct {
	HTML string `json:"html"`
	Text string `json:"text"`
}
