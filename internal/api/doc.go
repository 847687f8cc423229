// Package api exposes the newsletter services over HTTP with chi.
//
// Authentication happens upstream. The caller's organization arrives in
// the X-Organization-ID header and scopes every /api route; the optional
// X-User-ID header is recorded on templates.
package api
