package subscriber

import "errors"

// Sentinel errors for the subscriber service layer.
var (
	ErrNotFound     = errors.New("subscriber not found")
	ErrDuplicate    = errors.New("subscriber already exists")
	ErrInvalidEmail = errors.New("invalid email address")
	ErrInvalidKey   = errors.New("invalid GPG public key")
)
