package mailing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTemplateServiceFilters(t *testing.T) {
	ts := NewTemplateService()
	tests := []struct {
		src  string
		vars map[string]interface{}
		want string
	}{
		{`Hi {{ first_name | default: "Friend" }}`, nil, "Hi Friend"},
		{`Hi {{ first_name | default: "Friend" }}`, map[string]interface{}{"first_name": "ann"}, "Hi ann"},
		{`{{ name | capitalize }}`, map[string]interface{}{"name": "aDA"}, "Ada"},
		{`{{ title | truncate: 8 }}`, map[string]interface{}{"title": "Quarterly update"}, "Quart..."},
		{`{{ q | urlencode }}`, map[string]interface{}{"q": "a b&c"}, "a+b%26c"},
		{`{{ s | escape }}`, map[string]interface{}{"s": "<b>"}, "&lt;b&gt;"},
	}
	for _, tt := range tests {
		out, err := ts.Render("", tt.src, tt.vars)
		require.NoError(t, err, tt.src)
		assert.Equal(t, tt.want, out, tt.src)
	}
}

func TestTemplateServiceCache(t *testing.T) {
	ts := NewTemplateService()
	out, err := ts.Render("k", "v1 {{ x }}", map[string]interface{}{"x": 1})
	require.NoError(t, err)
	assert.Equal(t, "v1 1", out)

	// Cached parse wins until the key is cleared.
	out, err = ts.Render("k", "v2 {{ x }}", map[string]interface{}{"x": 2})
	require.NoError(t, err)
	assert.Equal(t, "v1 2", out)

	ts.ClearCacheKey("k")
	out, err = ts.Render("k", "v2 {{ x }}", map[string]interface{}{"x": 3})
	require.NoError(t, err)
	assert.Equal(t, "v2 3", out)
}

func TestTemplateServiceParseError(t *testing.T) {
	ts := NewTemplateService()
	assert.Error(t, ts.Parse("{% if x %}unterminated"))
	assert.NoError(t, ts.Parse("{{ ok }}"))
}
