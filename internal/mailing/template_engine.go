package mailing

import (
	"fmt"
	"html"
	"net/url"
	"strings"
	"sync"

	"github.com/osteele/liquid"

	"github.com/ignite/newsletter/internal/pkg/logger"
)

// TemplateService renders Liquid templates. Parsed templates are cached by
// key; callers must clear a key when the source changes.
type TemplateService struct {
	engine *liquid.Engine
	cache  sync.Map // map[string]*liquid.Template
}

// NewTemplateService creates a template service with the newsletter filters.
func NewTemplateService() *TemplateService {
	ts := &TemplateService{engine: liquid.NewEngine()}
	ts.registerFilters()
	return ts
}

func (ts *TemplateService) registerFilters() {
	// {{ first_name | default: "Friend" }}
	ts.engine.RegisterFilter("default", func(value interface{}, fallback string) interface{} {
		if value == nil {
			return fallback
		}
		if s := fmt.Sprintf("%v", value); s == "" || s == "<nil>" {
			return fallback
		}
		return value
	})

	ts.engine.RegisterFilter("capitalize", func(s string) string {
		if s == "" {
			return s
		}
		return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
	})

	ts.engine.RegisterFilter("truncate", func(s string, length int) string {
		r := []rune(s)
		if len(r) <= length {
			return s
		}
		if length <= 3 {
			return string(r[:length])
		}
		return string(r[:length-3]) + "..."
	})

	ts.engine.RegisterFilter("urlencode", url.QueryEscape)
	ts.engine.RegisterFilter("escape", html.EscapeString)
}

// Parse compiles a template string and returns any syntax error.
func (ts *TemplateService) Parse(src string) error {
	_, err := ts.engine.ParseString(src)
	if err != nil {
		return err
	}
	return nil
}

// Render evaluates src with vars. Unknown variables render empty. A
// non-empty cacheKey reuses the parsed template across calls.
func (ts *TemplateService) Render(cacheKey, src string, vars map[string]interface{}) (string, error) {
	if cacheKey != "" {
		if cached, ok := ts.cache.Load(cacheKey); ok {
			out, err := cached.(*liquid.Template).RenderString(vars)
			if err != nil {
				return "", err
			}
			return out, nil
		}
	}

	tpl, err := ts.engine.ParseString(src)
	if err != nil {
		logger.Warn("template parse failed", "cache_key", cacheKey, "error", err)
		return "", err
	}
	if cacheKey != "" {
		ts.cache.Store(cacheKey, tpl)
	}

	out, rerr := tpl.RenderString(vars)
	if rerr != nil {
		logger.Warn("template render failed", "cache_key", cacheKey, "error", rerr)
		return "", rerr
	}
	return out, nil
}

// ClearCacheKey drops one cached template.
func (ts *TemplateService) ClearCacheKey(key string) {
	ts.cache.Delete(key)
}
