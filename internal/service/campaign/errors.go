package campaign

import "errors"

// Sentinel errors for the campaign service layer.
var (
	ErrNotFound        = errors.New("campaign not found")
	ErrListNotFound    = errors.New("list not found")
	ErrSubjectRequired = errors.New("subject is required")
	ErrContentRequired = errors.New("content is required")
)
