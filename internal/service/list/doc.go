// Package list implements subscriber lists: list management, segmentation
// of a list's organization, and CSV ingestion into that organization.
//
// Segment resolves a list to its organization and runs a compiled filter
// over the organization's subscribers. ImportCSV streams a CSV file once,
// validating and deduplicating rows before merging them into storage
// without ever overwriting an existing subscriber.
//
// Repository implementations live in repository/postgres/.
package list
