package rss

import "errors"

// Sentinel errors for the RSS service layer.
var (
	ErrNotFound     = errors.New("rss feed not found")
	ErrInvalidFeed  = errors.New("invalid feed")
	ErrFeedURL      = errors.New("feedUrl must be an http(s) URL")
	ErrNameRequired = errors.New("name is required")
)
