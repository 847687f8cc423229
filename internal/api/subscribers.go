package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/newsletter/internal/pkg/httputil"
	"github.com/ignite/newsletter/internal/service/subscriber"
)

type updateSubscriberRequest struct {
	Email         *string        `json:"email"`
	CustomFields  map[string]any `json:"customFields"`
	IsActive      *bool          `json:"isActive"`
	EncryptEmails *bool          `json:"encryptEmails"`
}

type enrollKeyRequest struct {
	PublicKey     string `json:"publicKey" validate:"required"`
	EncryptEmails *bool  `json:"encryptEmails"`
}

func (h *Handlers) createSubscriber(w http.ResponseWriter, r *http.Request) {
	org, ok := requireOrg(w, r)
	if !ok {
		return
	}
	var in subscriber.CreateInput
	if !httputil.DecodeValid(w, r, &in) {
		return
	}
	sub, err := h.Subscribers.Create(r.Context(), org, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.Created(w, sub)
}

func (h *Handlers) listSubscribers(w http.ResponseWriter, r *http.Request) {
	org, ok := requireOrg(w, r)
	if !ok {
		return
	}
	page, err := queryInt(r, "page")
	if err != nil {
		httputil.BadRequest(w, "page must be an integer")
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		httputil.BadRequest(w, "limit must be an integer")
		return
	}
	res, err := h.Subscribers.List(r.Context(), org, page, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.OK(w, res)
}

func (h *Handlers) updateSubscriber(w http.ResponseWriter, r *http.Request) {
	org, ok := requireOrg(w, r)
	if !ok {
		return
	}
	var req updateSubscriberRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	sub, err := h.Subscribers.Update(r.Context(), org, chi.URLParam(r, "id"), subscriber.UpdateFields{
		Email:         req.Email,
		CustomFields:  req.CustomFields,
		IsActive:      req.IsActive,
		EncryptEmails: req.EncryptEmails,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.OK(w, sub)
}

func (h *Handlers) enrollKey(w http.ResponseWriter, r *http.Request) {
	org, ok := requireOrg(w, r)
	if !ok {
		return
	}
	var req enrollKeyRequest
	if !httputil.DecodeValid(w, r, &req) {
		return
	}
	sub, err := h.Subscribers.EnrollKey(r.Context(), org, chi.URLParam(r, "id"), req.PublicKey, req.EncryptEmails)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.OK(w, sub)
}

func (h *Handlers) removeKey(w http.ResponseWriter, r *http.Request) {
	org, ok := requireOrg(w, r)
	if !ok {
		return
	}
	sub, err := h.Subscribers.RemoveKey(r.Context(), org, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.OK(w, sub)
}

type keyInfoRequest struct {
	PublicKey string `json:"publicKey" validate:"required"`
}

func (h *Handlers) keyInfo(w http.ResponseWriter, r *http.Request) {
	var req keyInfoRequest
	if !httputil.DecodeValid(w, r, &req) {
		return
	}
	info, err := h.Keys.KeyInfo(req.PublicKey)
	if err != nil {
		httputil.BadRequest(w, subscriber.ErrInvalidKey.Error())
		return
	}
	httputil.OK(w, info)
}

// queryInt reads an optional integer query parameter; absent means zero.
func queryInt(r *http.Request, name string) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}
