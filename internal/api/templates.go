package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/newsletter/internal/domain"
	"github.com/ignite/newsletter/internal/pkg/httputil"
	"github.com/ignite/newsletter/internal/service/template"
)

type updateTemplateRequest struct {
	Name        *string        `json:"name"`
	Description *string        `json:"description"`
	HTMLContent *string        `json:"htmlContent"`
	TextContent *string        `json:"textContent"`
	Variables   map[string]any `json:"variables"`
	IsActive    *bool          `json:"isActive"`
}

type renderRequest struct {
	Variables map[string]any `json:"variables"`
}

func (h *Handlers) createTemplate(w http.ResponseWriter, r *http.Request) {
	org, ok := requireOrg(w, r)
	if !ok {
		return
	}
	var in template.CreateInput
	if !httputil.DecodeValid(w, r, &in) {
		return
	}
	t, err := h.Templates.Create(r.Context(), org, UserID(r.Context()), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.Created(w, t)
}

func (h *Handlers) listTemplates(w http.ResponseWriter, r *http.Request) {
	org, ok := requireOrg(w, r)
	if !ok {
		return
	}
	ts, err := h.Templates.List(r.Context(), org)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if ts == nil {
		ts = []domain.Template{}
	}
	httputil.OK(w, ts)
}

func (h *Handlers) getTemplate(w http.ResponseWriter, r *http.Request) {
	org, ok := requireOrg(w, r)
	if !ok {
		return
	}
	t, err := h.Templates.Get(r.Context(), org, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.OK(w, t)
}

func (h *Handlers) updateTemplate(w http.ResponseWriter, r *http.Request) {
	org, ok := requireOrg(w, r)
	if !ok {
		return
	}
	var req updateTemplateRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	t, err := h.Templates.Update(r.Context(), org, chi.URLParam(r, "id"), template.UpdateFields{
		Name:        req.Name,
		Description: req.Description,
		HTMLContent: req.HTMLContent,
		TextContent: req.TextContent,
		Variables:   req.Variables,
		IsActive:    req.IsActive,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.OK(w, t)
}

func (h *Handlers) deleteTemplate(w http.ResponseWriter, r *http.Request) {
	org, ok := requireOrg(w, r)
	if !ok {
		return
	}
	if err := h.Templates.Delete(r.Context(), org, chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	httputil.NoContent(w)
}

func (h *Handlers) renderTemplate(w http.ResponseWriter, r *http.Request) {
	org, ok := requireOrg(w, r)
	if !ok {
		return
	}
	var req renderRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	out, err := h.Templates.Render(r.Context(), org, chi.URLParam(r, "id"), req.Variables)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.OK(w, out)
}
