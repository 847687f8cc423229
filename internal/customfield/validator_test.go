package customfield

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ignite/newsletter/internal/domain"
)

func TestValidateEmptySchema(t *testing.T) {
	res := Validate(nil, map[string]any{"anything": 1})
	assert.True(t, res.Valid)
	assert.Empty(t, res.Errors)

	res = Validate(domain.CustomFieldSchema{}, nil)
	assert.True(t, res.Valid)
}

func TestValidateRequiredMissingSkipsTypeCheck(t *testing.T) {
	schema := domain.CustomFieldSchema{
		"age": {Type: domain.FieldNumber, Required: true},
	}

	res := Validate(schema, map[string]any{})
	assert.False(t, res.Valid)
	assert.Equal(t, []string{"Required field 'age' is missing"}, res.Errors)

	res = Validate(schema, map[string]any{"age": nil})
	assert.Equal(t, []string{"Required field 'age' is missing"}, res.Errors)
}

func TestValidateStrictTypes(t *testing.T) {
	schema := domain.CustomFieldSchema{
		"active":  {Type: domain.FieldBoolean},
		"age":     {Type: domain.FieldNumber},
		"joined":  {Type: domain.FieldDate},
		"country": {Type: domain.FieldString},
	}

	res := Validate(schema, map[string]any{
		"active":  true,
		"age":     float64(30),
		"joined":  "2024-03-01",
		"country": "NL",
	})
	assert.True(t, res.Valid, res.Errors)

	res = Validate(schema, map[string]any{
		"active":  "yes",
		"age":     "30",
		"joined":  "not a date",
		"country": 12,
	})
	assert.False(t, res.Valid)
	assert.Equal(t, []string{
		"Field 'active' must be a boolean",
		"Field 'age' must be a number",
		"Field 'country' must be a string",
		"Field 'joined' must be a valid date",
	}, res.Errors)
}

func TestValidateTextualMode(t *testing.T) {
	schema := domain.CustomFieldSchema{
		"age":    {Type: domain.FieldNumber, Required: true},
		"vip":    {Type: domain.FieldBoolean},
		"joined": {Type: domain.FieldDate},
	}

	res := ValidateMode(schema, map[string]any{"age": "42", "vip": "true", "joined": "01/02/2023"}, Textual)
	assert.True(t, res.Valid, res.Errors)

	res = ValidateMode(schema, map[string]any{"age": "not-a-number"}, Textual)
	assert.Equal(t, []string{"Field 'age' must be a number"}, res.Errors)
}

func TestValidateOptionalAbsentIsFine(t *testing.T) {
	schema := domain.CustomFieldSchema{"nickname": {Type: domain.FieldString}}
	assert.True(t, Validate(schema, map[string]any{}).Valid)
}

func TestParseDate(t *testing.T) {
	_, ok := ParseDate("2024-01-15T10:00:00Z")
	assert.True(t, ok)
	_, ok = ParseDate("Jan 2, 2006")
	assert.True(t, ok)
	_, ok = ParseDate("")
	assert.False(t, ok)
	_, ok = ParseDate("tomorrow")
	assert.False(t, ok)
}
