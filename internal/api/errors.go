package api

import (
	"errors"
	"net/http"

	"github.com/ignite/newsletter/internal/gpg"
	"github.com/ignite/newsletter/internal/pkg/httputil"
	"github.com/ignite/newsletter/internal/segmentation"
	"github.com/ignite/newsletter/internal/service/campaign"
	"github.com/ignite/newsletter/internal/service/list"
	"github.com/ignite/newsletter/internal/service/rss"
	"github.com/ignite/newsletter/internal/service/subscriber"
	"github.com/ignite/newsletter/internal/service/template"
	"github.com/ignite/newsletter/internal/storage"
)

var notFound = []error{
	list.ErrNotFound,
	list.ErrProgressNotFound,
	subscriber.ErrNotFound,
	campaign.ErrNotFound,
	campaign.ErrListNotFound,
	template.ErrNotFound,
	rss.ErrNotFound,
}

var badRequest = []error{
	list.ErrInvalidState,
	list.ErrIngestion,
	list.ErrNameRequired,
	segmentation.ErrInvalidFilter,
	subscriber.ErrInvalidEmail,
	subscriber.ErrInvalidKey,
	campaign.ErrSubjectRequired,
	campaign.ErrContentRequired,
	template.ErrNameRequired,
	template.ErrHTMLRequired,
	template.ErrInvalidTemplate,
	rss.ErrNameRequired,
	rss.ErrFeedURL,
	rss.ErrInvalidFeed,
	storage.ErrBucketRequired,
	gpg.ErrNoKey,
}

// statusOf maps a service error to an HTTP status.
func statusOf(err error) int {
	for _, target := range notFound {
		if errors.Is(err, target) {
			return http.StatusNotFound
		}
	}
	for _, target := range badRequest {
		if errors.Is(err, target) {
			return http.StatusBadRequest
		}
	}
	if errors.Is(err, subscriber.ErrDuplicate) {
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// writeError answers with the mapped status. Unmapped errors are logged and
// reported as a generic 500 so internals do not leak.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		httputil.InternalError(w, r, err)
		return
	}
	httputil.Error(w, status, err.Error())
}
