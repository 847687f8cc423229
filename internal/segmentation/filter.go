package segmentation

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ignite/newsletter/internal/customfield"
)

// ErrInvalidFilter is returned for filter documents that cannot be compiled.
var ErrInvalidFilter = errors.New("invalid filter")

// OpKind enumerates the custom-field operators.
type OpKind int

const (
	OpEq OpKind = iota
	OpGt
	OpLt
	OpContains
)

var opNames = map[string]OpKind{
	"$gt":       OpGt,
	"$lt":       OpLt,
	"$contains": OpContains,
	"$eq":       OpEq,
}

func (k OpKind) String() string {
	switch k {
	case OpGt:
		return "$gt"
	case OpLt:
		return "$lt"
	case OpContains:
		return "$contains"
	default:
		return "$eq"
	}
}

// FilterOp is a single parsed custom-field operator. Int is set for OpGt and
// OpLt; Text for OpEq and OpContains.
type FilterOp struct {
	Kind OpKind
	Int  int64
	Text string
}

// Gt, Lt, Contains and Eq construct operators.
func Gt(n int64) FilterOp { return FilterOp{Kind: OpGt, Int: n} }
func Lt(n int64) FilterOp { return FilterOp{Kind: OpLt, Int: n} }
func Contains(s string) FilterOp { return FilterOp{Kind: OpContains, Text: s} }
func Eq(s string) FilterOp { return FilterOp{Kind: OpEq, Text: s} }

// FieldFilter applies one operator to one custom field.
type FieldFilter struct {
	Field string
	Op    FilterOp
}

// Filters is the validated form of a filter document.
type Filters struct {
	CustomFields  []FieldFilter
	EmailDomain   string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
	IsActive      *bool
	Limit         int
	Offset        int

	// Raw is the document as received, echoed back in results.
	Raw map[string]any
}

// ParseFilters validates a decoded filter document. A nil document yields
// empty Filters. Unknown top-level keys are ignored; malformed values and
// operator objects naming zero or several operators are rejected.
func ParseFilters(raw map[string]any) (Filters, error) {
	f := Filters{Raw: raw}
	if f.Raw == nil {
		f.Raw = map[string]any{}
	}

	if v, ok := raw["customFields"]; ok && v != nil {
		fields, ok := v.(map[string]any)
		if !ok {
			return Filters{}, fmt.Errorf("%w: customFields must be an object", ErrInvalidFilter)
		}
		names := make([]string, 0, len(fields))
		for name := range fields {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			if strings.TrimSpace(name) == "" {
				return Filters{}, fmt.Errorf("%w: empty custom field name", ErrInvalidFilter)
			}
			op, err := parseFieldValue(fields[name])
			if err != nil {
				return Filters{}, fmt.Errorf("%w: customFields.%s: %v", ErrInvalidFilter, name, err)
			}
			f.CustomFields = append(f.CustomFields, FieldFilter{Field: name, Op: op})
		}
	}

	if v, ok := raw["emailDomain"]; ok && v != nil {
		s, ok := v.(string)
		if !ok {
			return Filters{}, fmt.Errorf("%w: emailDomain must be a string", ErrInvalidFilter)
		}
		f.EmailDomain = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), "@"))
	}

	var err error
	if f.CreatedAfter, err = parseTime(raw, "createdAfter"); err != nil {
		return Filters{}, err
	}
	if f.CreatedBefore, err = parseTime(raw, "createdBefore"); err != nil {
		return Filters{}, err
	}

	if v, ok := raw["isActive"]; ok && v != nil {
		b, err := toBool(v)
		if err != nil {
			return Filters{}, fmt.Errorf("%w: isActive: %v", ErrInvalidFilter, err)
		}
		f.IsActive = &b
	}

	if f.Limit, err = parseCount(raw, "limit"); err != nil {
		return Filters{}, err
	}
	if f.Offset, err = parseCount(raw, "offset"); err != nil {
		return Filters{}, err
	}
	return f, nil
}

func parseFieldValue(v any) (FilterOp, error) {
	switch val := v.(type) {
	case nil:
		return FilterOp{}, errors.New("null is not a valid filter value")
	case []any:
		return FilterOp{}, errors.New("arrays are not supported")
	case map[string]any:
		return parseOperator(val)
	default:
		s, err := toText(val)
		if err != nil {
			return FilterOp{}, err
		}
		return Eq(s), nil
	}
}

// parseOperator accepts exactly one known operator key.
func parseOperator(obj map[string]any) (FilterOp, error) {
	if len(obj) != 1 {
		keys := make([]string, 0, len(obj))
		for k := range obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return FilterOp{}, fmt.Errorf("exactly one operator expected, got %d %v", len(obj), keys)
	}
	for key, arg := range obj {
		kind, ok := opNames[key]
		if !ok {
			return FilterOp{}, fmt.Errorf("unknown operator %q", key)
		}
		switch kind {
		case OpGt, OpLt:
			n, err := toInt(arg)
			if err != nil {
				return FilterOp{}, fmt.Errorf("%s: %v", key, err)
			}
			return FilterOp{Kind: kind, Int: n}, nil
		default:
			s, err := toText(arg)
			if err != nil {
				return FilterOp{}, fmt.Errorf("%s: %v", key, err)
			}
			return FilterOp{Kind: kind, Text: s}, nil
		}
	}
	return FilterOp{}, nil
}

func toText(v any) (string, error) {
	switch val := v.(type) {
	case string:
		return val, nil
	case bool:
		return strconv.FormatBool(val), nil
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), nil
	case int:
		return strconv.Itoa(val), nil
	case int64:
		return strconv.FormatInt(val, 10), nil
	case json.Number:
		return val.String(), nil
	}
	return "", fmt.Errorf("unsupported value type %T", v)
}

func toInt(v any) (int64, error) {
	switch val := v.(type) {
	case float64:
		if val != math.Trunc(val) || math.IsInf(val, 0) || math.IsNaN(val) {
			return 0, fmt.Errorf("%v is not an integer", val)
		}
		return int64(val), nil
	case int:
		return int64(val), nil
	case int64:
		return val, nil
	case json.Number:
		return val.Int64()
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(val), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%q is not an integer", val)
		}
		return n, nil
	}
	return 0, fmt.Errorf("unsupported value type %T", v)
}

func toBool(v any) (bool, error) {
	switch val := v.(type) {
	case bool:
		return val, nil
	case string:
		return strconv.ParseBool(strings.TrimSpace(val))
	}
	return false, fmt.Errorf("unsupported value type %T", v)
}

func parseTime(raw map[string]any, key string) (*time.Time, error) {
	v, ok := raw[key]
	if !ok || v == nil {
		return nil, nil
	}
	s, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("%w: %s must be a date string", ErrInvalidFilter, key)
	}
	t, ok := customfield.ParseDate(s)
	if !ok {
		return nil, fmt.Errorf("%w: %s: unrecognised date %q", ErrInvalidFilter, key, s)
	}
	return &t, nil
}

func parseCount(raw map[string]any, key string) (int, error) {
	v, ok := raw[key]
	if !ok || v == nil {
		return 0, nil
	}
	n, err := toInt(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer", ErrInvalidFilter, key)
	}
	return int(n), nil
}
