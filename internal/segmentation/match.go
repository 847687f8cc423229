package segmentation

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/ignite/newsletter/internal/domain"
)

var storedInt = regexp.MustCompile(storedIntPattern)

// Match evaluates filters against a single subscriber in process, with the
// same semantics as the compiled SQL. Paging is not applied.
func Match(f Filters, orgID string, s *domain.Subscriber) bool {
	if s.OrganizationID != orgID {
		return false
	}
	for _, ff := range f.CustomFields {
		text, ok := fieldText(s.CustomFields, ff.Field)
		if !ok || !matchOp(ff.Op, text) {
			return false
		}
	}
	if f.EmailDomain != "" && !strings.HasSuffix(s.Email, "@"+f.EmailDomain) {
		return false
	}
	if f.CreatedAfter != nil && s.CreatedAt.Before(*f.CreatedAfter) {
		return false
	}
	if f.CreatedBefore != nil && s.CreatedAt.After(*f.CreatedBefore) {
		return false
	}
	if f.IsActive != nil && s.IsActive != *f.IsActive {
		return false
	}
	return true
}

// Page applies Limit and Offset to an already filtered slice.
func Page[T any](f Filters, items []T) []T {
	if f.Offset >= len(items) {
		return items[:0]
	}
	items = items[f.Offset:]
	if f.Limit > 0 && f.Limit < len(items) {
		items = items[:f.Limit]
	}
	return items
}

func matchOp(op FilterOp, text string) bool {
	switch op.Kind {
	case OpGt, OpLt:
		if !storedInt.MatchString(text) {
			return false
		}
		n, err := strconv.ParseInt(strings.TrimSpace(text), 10, 64)
		if err != nil {
			return false
		}
		if op.Kind == OpGt {
			return n > op.Int
		}
		return n < op.Int
	case OpContains:
		return strings.Contains(strings.ToLower(text), strings.ToLower(op.Text))
	default:
		return text == op.Text
	}
}

// fieldText mirrors the ->> operator: strings verbatim, other scalars in
// their JSON text form, absent or null fields missing.
func fieldText(fields map[string]any, name string) (string, bool) {
	v, ok := fields[name]
	if !ok || v == nil {
		return "", false
	}
	if s, ok := v.(string); ok {
		return s, true
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", false
	}
	return string(b), true
}
