// Package campaign implements campaign authoring and dispatch.
//
// A send resolves the campaign's list segment, then fans out over the
// matched subscribers with a bounded worker pool. Each recipient gets merge
// tags rendered, the HTML envelope, tracking and optional PGP encryption
// before the message is handed to the configured transport. Per-recipient
// failures are counted, never returned.
//
// Repository implementations live in repository/postgres/.
package campaign
