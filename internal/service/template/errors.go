package template

import "errors"

// Sentinel errors for the template service layer.
var (
	ErrNotFound        = errors.New("template not found")
	ErrNameRequired    = errors.New("name is required")
	ErrHTMLRequired    = errors.New("htmlContent is required")
	ErrInvalidTemplate = errors.New("template does not parse")
)
