package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/newsletter/internal/domain"
	"github.com/ignite/newsletter/internal/pkg/httputil"
	"github.com/ignite/newsletter/internal/service/rss"
)

type updateFeedRequest struct {
	Name               *string `json:"name"`
	FeedURL            *string `json:"feedUrl"`
	ListID             *string `json:"listId"`
	IsActive           *bool   `json:"isActive"`
	AutoSend           *bool   `json:"autoSend"`
	CheckIntervalHours *int    `json:"checkIntervalHours"`
	CampaignTemplate   *string `json:"campaignTemplate"`
	CampaignSubject    *string `json:"campaignSubject"`
}

func (h *Handlers) createFeed(w http.ResponseWriter, r *http.Request) {
	org, ok := requireOrg(w, r)
	if !ok {
		return
	}
	var in rss.CreateInput
	if !httputil.DecodeValid(w, r, &in) {
		return
	}
	f, err := h.RSS.Create(r.Context(), org, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.Created(w, f)
}

func (h *Handlers) listFeeds(w http.ResponseWriter, r *http.Request) {
	org, ok := requireOrg(w, r)
	if !ok {
		return
	}
	feeds, err := h.RSS.List(r.Context(), org)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if feeds == nil {
		feeds = []domain.RSSFeed{}
	}
	httputil.OK(w, feeds)
}

func (h *Handlers) getFeed(w http.ResponseWriter, r *http.Request) {
	org, ok := requireOrg(w, r)
	if !ok {
		return
	}
	f, err := h.RSS.Get(r.Context(), org, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.OK(w, f)
}

func (h *Handlers) updateFeed(w http.ResponseWriter, r *http.Request) {
	org, ok := requireOrg(w, r)
	if !ok {
		return
	}
	var req updateFeedRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	f, err := h.RSS.Update(r.Context(), org, chi.URLParam(r, "id"), rss.UpdateFields{
		Name:               req.Name,
		FeedURL:            req.FeedURL,
		ListID:             req.ListID,
		IsActive:           req.IsActive,
		AutoSend:           req.AutoSend,
		CheckIntervalHours: req.CheckIntervalHours,
		CampaignTemplate:   req.CampaignTemplate,
		CampaignSubject:    req.CampaignSubject,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.OK(w, f)
}

func (h *Handlers) deleteFeed(w http.ResponseWriter, r *http.Request) {
	org, ok := requireOrg(w, r)
	if !ok {
		return
	}
	if err := h.RSS.Delete(r.Context(), org, chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	httputil.NoContent(w)
}

func (h *Handlers) testFeed(w http.ResponseWriter, r *http.Request) {
	u := r.URL.Query().Get("url")
	if u == "" {
		httputil.BadRequest(w, "url query parameter is required")
		return
	}
	preview, err := h.RSS.TestFeed(r.Context(), u)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.OK(w, preview)
}

func (h *Handlers) checkFeed(w http.ResponseWriter, r *http.Request) {
	org, ok := requireOrg(w, r)
	if !ok {
		return
	}
	res, err := h.RSS.ManualCheck(r.Context(), org, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.OK(w, res)
}
