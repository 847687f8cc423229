package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/newsletter/internal/domain"
	"github.com/ignite/newsletter/internal/pkg/httputil"
	"github.com/ignite/newsletter/internal/service/campaign"
)

type campaignPage struct {
	Data   []domain.Campaign `json:"data"`
	Total  int               `json:"total"`
	Limit  int               `json:"limit"`
	Offset int               `json:"offset"`
}

func (h *Handlers) createCampaign(w http.ResponseWriter, r *http.Request) {
	org, ok := requireOrg(w, r)
	if !ok {
		return
	}
	var in campaign.CreateInput
	if !httputil.DecodeValid(w, r, &in) {
		return
	}
	c, err := h.Campaigns.Create(r.Context(), org, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.Created(w, c)
}

func (h *Handlers) listCampaigns(w http.ResponseWriter, r *http.Request) {
	org, ok := requireOrg(w, r)
	if !ok {
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil || limit < 0 {
		httputil.BadRequest(w, "limit must be a non-negative integer")
		return
	}
	offset, err := queryInt(r, "offset")
	if err != nil || offset < 0 {
		httputil.BadRequest(w, "offset must be a non-negative integer")
		return
	}
	data, total, err := h.Campaigns.List(r.Context(), org, campaign.ListFilter{Limit: limit, Offset: offset})
	if err != nil {
		writeError(w, r, err)
		return
	}
	if data == nil {
		data = []domain.Campaign{}
	}
	httputil.OK(w, campaignPage{Data: data, Total: total, Limit: limit, Offset: offset})
}

func (h *Handlers) getCampaign(w http.ResponseWriter, r *http.Request) {
	org, ok := requireOrg(w, r)
	if !ok {
		return
	}
	c, err := h.Campaigns.Get(r.Context(), org, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.OK(w, c)
}

// sendCampaign dispatches synchronously. The body is the segmentation
// filter document; an empty body matches every subscriber.
func (h *Handlers) sendCampaign(w http.ResponseWriter, r *http.Request) {
	org, ok := requireOrg(w, r)
	if !ok {
		return
	}
	raw := map[string]any{}
	if !httputil.Decode(w, r, &raw) {
		return
	}
	res, err := h.Campaigns.Send(r.Context(), org, chi.URLParam(r, "id"), raw)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.OK(w, res)
}

func (h *Handlers) campaignStats(w http.ResponseWriter, r *http.Request) {
	org, ok := requireOrg(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	if _, err := h.Campaigns.Get(r.Context(), org, id); err != nil {
		writeError(w, r, err)
		return
	}
	stats, err := h.Stats.Stats(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.OK(w, stats)
}
