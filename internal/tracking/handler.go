package tracking

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/newsletter/internal/domain"
	"github.com/ignite/newsletter/internal/metrics"
	"github.com/ignite/newsletter/internal/pkg/logger"
)

// 1x1 transparent GIF
var pixelGIF = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00, 0x01, 0x00,
	0x80, 0x00, 0x00, 0xff, 0xff, 0xff, 0x00, 0x00, 0x00, 0x2c,
	0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x01, 0x00, 0x00, 0x02,
	0x02, 0x44, 0x01, 0x00, 0x3b,
}

// Handler serves the open pixel and click redirects.
type Handler struct {
	signer *Signer
	sink   EventSink
	now    func() time.Time
}

// NewHandler creates a tracking handler. A nil sink drops events.
func NewHandler(signer *Signer, sink EventSink) *Handler {
	return &Handler{signer: signer, sink: sink, now: time.Now}
}

// Mount registers the tracking routes on r.
func (h *Handler) Mount(r chi.Router) {
	r.Get("/track/open/{token}", h.HandleOpen)
	r.Get("/track/{token}", h.HandleClick)
}

// HandleOpen always answers with the pixel; only valid tokens are recorded.
func (h *Handler) HandleOpen(w http.ResponseWriter, r *http.Request) {
	claims := h.signer.ParseTrackingToken(chi.URLParam(r, "token"))
	if claims.Valid {
		h.record(r, domain.TrackingEvent{
			EventType:    domain.EventOpen,
			CampaignID:   claims.CampaignID,
			SubscriberID: claims.SubscriberID,
		})
	}
	servePixel(w)
}

// HandleClick records the click and redirects to the url query parameter.
// The destination must match the link the token was issued for.
func (h *Handler) HandleClick(w http.ResponseWriter, r *http.Request) {
	claims := h.signer.ParseTrackingToken(chi.URLParam(r, "token"))
	if !claims.Valid {
		if claims.Expired {
			http.Error(w, "link expired", http.StatusGone)
			return
		}
		http.Error(w, "invalid link", http.StatusBadRequest)
		return
	}

	target := r.URL.Query().Get("url")
	u, err := url.Parse(target)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		http.Error(w, "invalid link", http.StatusBadRequest)
		return
	}
	if claims.LinkID != LinkID(target) {
		http.Error(w, "invalid link", http.StatusBadRequest)
		return
	}

	h.record(r, domain.TrackingEvent{
		EventType:    domain.EventClick,
		CampaignID:   claims.CampaignID,
		SubscriberID: claims.SubscriberID,
		LinkID:       claims.LinkID,
		URL:          target,
	})
	http.Redirect(w, r, target, http.StatusFound)
}

func (h *Handler) record(r *http.Request, evt domain.TrackingEvent) {
	evt.IPAddress = realIP(r)
	evt.UserAgent = r.UserAgent()
	evt.Timestamp = h.now().UTC()
	metrics.TrackingEvents.WithLabelValues(string(evt.EventType)).Inc()
	if h.sink == nil {
		return
	}
	// Detached so a client disconnect does not drop the event.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), 5*time.Second)
	defer cancel()
	if err := h.sink.Record(ctx, evt); err != nil {
		logger.Warn("tracking event not recorded",
			"type", string(evt.EventType),
			"campaign_id", evt.CampaignID,
			"error", err,
		)
	}
}

func servePixel(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "image/gif")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
	_, _ = w.Write(pixelGIF)
}

func realIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx > 0 {
			return strings.TrimSpace(xff[:idx])
		}
		return xff
	}
	if xri := r.Header.Get("X-Real-Ip"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}
