// Package mailing renders outbound email: merge tags against a subscriber,
// the newsletter HTML envelope, and Liquid templates for stored templates.
package mailing
