package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/newsletter/internal/domain"
	"github.com/ignite/newsletter/internal/pkg/httputil"
	"github.com/ignite/newsletter/internal/service/list"
)

const uploadField = "file"

var errNoFile = errors.New(`multipart field "file" is required`)

type updateListRequest struct {
	Name           *string                  `json:"name"`
	CustomFields   domain.CustomFieldSchema `json:"customFields"`
	OrganizationID *string                  `json:"organizationId"`
}

type importS3Request struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key" validate:"required"`
}

// The organization header is optional on create; lists may start unlinked.
func (h *Handlers) createList(w http.ResponseWriter, r *http.Request) {
	var in list.CreateInput
	if !httputil.DecodeValid(w, r, &in) {
		return
	}
	if in.OrganizationID == "" {
		in.OrganizationID = OrgID(r.Context())
	}
	l, err := h.Lists.Create(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.Created(w, l)
}

func (h *Handlers) listLists(w http.ResponseWriter, r *http.Request) {
	org, ok := requireOrg(w, r)
	if !ok {
		return
	}
	lists, err := h.Lists.List(r.Context(), org)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if lists == nil {
		lists = []domain.List{}
	}
	httputil.OK(w, lists)
}

func (h *Handlers) updateList(w http.ResponseWriter, r *http.Request) {
	var req updateListRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	l, err := h.Lists.Update(r.Context(), OrgID(r.Context()), chi.URLParam(r, "id"), list.UpdateFields{
		Name:           req.Name,
		CustomFields:   req.CustomFields,
		OrganizationID: req.OrganizationID,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.OK(w, l)
}

// importCSV streams the uploaded file into the importer without buffering
// the whole body. With ?async=true it answers 202 and the progress can be
// polled on /api/imports/{importId}.
func (h *Handlers) importCSV(w http.ResponseWriter, r *http.Request) {
	listID := chi.URLParam(r, "id")
	if _, err := h.Lists.Get(r.Context(), OrgID(r.Context()), listID); err != nil {
		writeError(w, r, err)
		return
	}
	if h.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.MaxUploadBytes)
	}
	file, err := uploadedFile(r)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	async, _ := strconv.ParseBool(r.URL.Query().Get("async"))
	if async {
		id, err := h.Lists.ImportAsync(r.Context(), listID, file)
		if err != nil {
			writeError(w, r, err)
			return
		}
		httputil.JSON(w, http.StatusAccepted, map[string]string{"importId": id})
		return
	}

	summary, err := h.Lists.ImportCSV(r.Context(), listID, file)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.OK(w, summary)
}

func uploadedFile(r *http.Request) (io.Reader, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, errNoFile
	}
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return nil, errNoFile
		}
		if err != nil {
			return nil, err
		}
		if part.FormName() == uploadField {
			return part, nil
		}
	}
}

func (h *Handlers) importS3(w http.ResponseWriter, r *http.Request) {
	var req importS3Request
	if !httputil.DecodeValid(w, r, &req) {
		return
	}
	listID := chi.URLParam(r, "id")
	if _, err := h.Lists.Get(r.Context(), OrgID(r.Context()), listID); err != nil {
		writeError(w, r, err)
		return
	}
	summary, err := h.S3.Import(r.Context(), listID, req.Bucket, req.Key)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.OK(w, summary)
}

func (h *Handlers) importProgress(w http.ResponseWriter, r *http.Request) {
	p, err := h.Lists.Progress(r.Context(), chi.URLParam(r, "importId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if _, err := h.Lists.Get(r.Context(), OrgID(r.Context()), p.ListID); err != nil {
		writeError(w, r, list.ErrProgressNotFound)
		return
	}
	httputil.OK(w, p)
}

// segmentList evaluates the filter document in the body. The organization
// header, when present, must own the list.
func (h *Handlers) segmentList(w http.ResponseWriter, r *http.Request) {
	raw := map[string]any{}
	if !httputil.Decode(w, r, &raw) {
		return
	}
	res, err := h.Lists.Segment(r.Context(), OrgID(r.Context()), chi.URLParam(r, "id"), raw)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.OK(w, res)
}
