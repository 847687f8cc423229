package mailing

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/ignite/newsletter/internal/domain"
)

var mergeTagRegex = regexp.MustCompile(`\{\{\s*([^{}]*?)\s*\}\}`)

// RenderMergeTags substitutes subscriber data into content. It recognises
// {{email}}, {{id}}, {{customFields.<name>}} and the {{<name>}} shorthand,
// case-insensitively and with optional whitespace inside the braces.
// Standard fields win over a custom field of the same name. Rendering is
// total: a tag naming an absent or nil field renders as the empty string.
func RenderMergeTags(content string, sub *domain.Subscriber) string {
	if sub == nil || !strings.Contains(content, "{{") {
		return content
	}
	values := mergeValues(sub)
	return mergeTagRegex.ReplaceAllStringFunc(content, func(tag string) string {
		key := strings.ToLower(mergeTagRegex.FindStringSubmatch(tag)[1])
		return values[key]
	})
}

// mergeValues flattens the subscriber into lower-cased tag names. Custom
// fields are added first so the standard fields overwrite any collision.
func mergeValues(sub *domain.Subscriber) map[string]string {
	values := make(map[string]string, 2*len(sub.CustomFields)+2)
	for k, v := range sub.CustomFields {
		text := tagText(v)
		name := strings.ToLower(k)
		values["customfields."+name] = text
		values[name] = text
	}
	values["email"] = sub.Email
	values["id"] = sub.ID
	return values
}

func tagText(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int, int64, int32:
		return fmt.Sprintf("%d", val)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
