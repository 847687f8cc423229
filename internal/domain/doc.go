// Package domain holds the value types shared by the newsletter services:
// lists and subscribers, campaigns and their dispatch results, templates,
// RSS feeds, import summaries and tracking events.
//
// The package depends on nothing else in internal/. Types carry JSON and db
// tags and small pure helpers such as email normalization; persistence and
// transport live in the packages that use them.
package domain
