// Package customfield validates subscriber custom-field documents against a
// list's declared schema.
package customfield

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ignite/newsletter/internal/domain"
)

// Result is the outcome of validating one record. It is never nil and
// validation never fails with an error.
type Result struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

// Mode selects how values are type-checked.
type Mode int

const (
	// Strict checks JSON types: numbers must be numeric, booleans must be bool.
	Strict Mode = iota
	// Textual accepts strings that parse as the declared type. CSV imports
	// deliver every value as text and use this mode.
	Textual
)

// Validate checks record against schema in Strict mode.
func Validate(schema domain.CustomFieldSchema, record map[string]any) Result {
	return ValidateMode(schema, record, Strict)
}

// ValidateMode checks record against schema. Fields are visited in name
// order so error lists are stable.
func ValidateMode(schema domain.CustomFieldSchema, record map[string]any, mode Mode) Result {
	res := Result{Valid: true, Errors: []string{}}
	if len(schema) == 0 {
		return res
	}

	names := make([]string, 0, len(schema))
	for name := range schema {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		field := schema[name]
		value, present := record[name]
		if !present || value == nil {
			if field.Required {
				res.Errors = append(res.Errors, fmt.Sprintf("Required field '%s' is missing", name))
			}
			continue
		}
		if msg := checkType(name, field.Type, value, mode); msg != "" {
			res.Errors = append(res.Errors, msg)
		}
	}

	res.Valid = len(res.Errors) == 0
	return res
}

func checkType(name string, ft domain.FieldType, value any, mode Mode) string {
	switch ft {
	case domain.FieldString:
		if _, ok := value.(string); !ok {
			return fmt.Sprintf("Field '%s' must be a string", name)
		}
	case domain.FieldNumber:
		if !isNumber(value, mode) {
			return fmt.Sprintf("Field '%s' must be a number", name)
		}
	case domain.FieldBoolean:
		if !isBoolean(value, mode) {
			return fmt.Sprintf("Field '%s' must be a boolean", name)
		}
	case domain.FieldDate:
		if !isDate(value) {
			return fmt.Sprintf("Field '%s' must be a valid date", name)
		}
	}
	// Unknown types are not checked.
	return ""
}

func isNumber(value any, mode Mode) bool {
	switch v := value.(type) {
	case float64:
		return !math.IsNaN(v)
	case float32:
		return !math.IsNaN(float64(v))
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	case json.Number:
		_, err := v.Float64()
		return err == nil
	case string:
		return mode == Textual && isNumeric(v)
	}
	return false
}

func isBoolean(value any, mode Mode) bool {
	switch v := value.(type) {
	case bool:
		return true
	case string:
		if mode != Textual {
			return false
		}
		_, err := strconv.ParseBool(strings.TrimSpace(v))
		return err == nil
	}
	return false
}

func isDate(value any) bool {
	switch v := value.(type) {
	case time.Time:
		return !v.IsZero()
	case string:
		_, ok := ParseDate(v)
		return ok
	case float64:
		// epoch milliseconds
		return !math.IsNaN(v) && !math.IsInf(v, 0)
	}
	return false
}

func isNumeric(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	f, err := strconv.ParseFloat(s, 64)
	return err == nil && !math.IsNaN(f)
}

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006/01/02",
	"01/02/2006",
	"Jan 2, 2006",
	"January 2, 2006",
	time.RFC1123Z,
	time.RFC1123,
	time.RFC822Z,
	time.RFC822,
}

// ParseDate parses s using the common layouts accepted for date fields.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
