package list

import "errors"

// Sentinel errors for the list service layer.
var (
	ErrNotFound     = errors.New("list not found")
	ErrInvalidState = errors.New("list not linked to organization")
	ErrIngestion    = errors.New("error processing CSV file")
	ErrNameRequired = errors.New("name is required")
)
