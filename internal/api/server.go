package api

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/ignite/newsletter/internal/domain"
	"github.com/ignite/newsletter/internal/gpg"
	"github.com/ignite/newsletter/internal/metrics"
	"github.com/ignite/newsletter/internal/pkg/httputil"
	"github.com/ignite/newsletter/internal/service/campaign"
	"github.com/ignite/newsletter/internal/service/list"
	"github.com/ignite/newsletter/internal/service/rss"
	"github.com/ignite/newsletter/internal/service/subscriber"
	"github.com/ignite/newsletter/internal/service/template"
	"github.com/ignite/newsletter/internal/tracking"
)

// ListService is the list surface used by the handlers.
type ListService interface {
	Create(ctx context.Context, in list.CreateInput) (*domain.List, error)
	Get(ctx context.Context, orgID, id string) (*domain.List, error)
	List(ctx context.Context, orgID string) ([]domain.List, error)
	Update(ctx context.Context, orgID, id string, u list.UpdateFields) (*domain.List, error)
	Segment(ctx context.Context, orgScope, listID string, raw map[string]any) (*list.SegmentResult, error)
	ImportCSV(ctx context.Context, listID string, src io.Reader) (*domain.ImportSummary, error)
	ImportAsync(ctx context.Context, listID string, src io.Reader) (string, error)
	Progress(ctx context.Context, importID string) (*domain.ImportProgress, error)
}

// SubscriberService is the subscriber surface used by the handlers.
type SubscriberService interface {
	Create(ctx context.Context, orgID string, in subscriber.CreateInput) (*domain.Subscriber, error)
	List(ctx context.Context, orgID string, page, limit int) (*subscriber.Page, error)
	Update(ctx context.Context, orgID, id string, u subscriber.UpdateFields) (*domain.Subscriber, error)
	EnrollKey(ctx context.Context, orgID, id, armoredKey string, encrypt *bool) (*domain.Subscriber, error)
	RemoveKey(ctx context.Context, orgID, id string) (*domain.Subscriber, error)
}

// CampaignService is the campaign surface used by the handlers.
type CampaignService interface {
	Create(ctx context.Context, orgID string, in campaign.CreateInput) (*domain.Campaign, error)
	Get(ctx context.Context, orgID, id string) (*domain.Campaign, error)
	List(ctx context.Context, orgID string, f campaign.ListFilter) ([]domain.Campaign, int, error)
	Send(ctx context.Context, orgID, campaignID string, raw map[string]any) (*domain.DispatchResult, error)
}

// TemplateService is the template surface used by the handlers.
type TemplateService interface {
	Create(ctx context.Context, orgID, userID string, in template.CreateInput) (*domain.Template, error)
	Get(ctx context.Context, orgID, id string) (*domain.Template, error)
	List(ctx context.Context, orgID string) ([]domain.Template, error)
	Update(ctx context.Context, orgID, id string, u template.UpdateFields) (*domain.Template, error)
	Delete(ctx context.Context, orgID, id string) error
	Render(ctx context.Context, orgID, id string, vars map[string]any) (*domain.RenderedTemplate, error)
}

// RSSService is the feed surface used by the handlers.
type RSSService interface {
	Create(ctx context.Context, orgID string, in rss.CreateInput) (*domain.RSSFeed, error)
	Get(ctx context.Context, orgID, id string) (*domain.RSSFeed, error)
	List(ctx context.Context, orgID string) ([]domain.RSSFeed, error)
	Update(ctx context.Context, orgID, id string, u rss.UpdateFields) (*domain.RSSFeed, error)
	Delete(ctx context.Context, orgID, id string) error
	TestFeed(ctx context.Context, feedURL string) (*domain.FeedPreview, error)
	ManualCheck(ctx context.Context, orgID, id string) (*rss.ProcessResult, error)
}

// KeyInspector describes armored PGP keys.
type KeyInspector interface {
	KeyInfo(armoredKey string) (*gpg.KeyInfo, error)
}

// S3Importer imports CSV objects from S3.
type S3Importer interface {
	Import(ctx context.Context, listID, bucket, key string) (*domain.ImportSummary, error)
}

// StatsReader reads tracking counters of a campaign.
type StatsReader interface {
	Stats(ctx context.Context, campaignID string) (*tracking.CampaignStats, error)
}

// Handlers bundles the services behind the API. Optional services may be
// nil; their routes are then not mounted.
type Handlers struct {
	Lists       ListService
	Subscribers SubscriberService
	Campaigns   CampaignService
	Templates   TemplateService
	RSS         RSSService
	Keys        KeyInspector
	S3          S3Importer
	Stats       StatsReader
	Tracking    *tracking.Handler

	// MaxUploadBytes caps CSV uploads; zero means unlimited.
	MaxUploadBytes int64

	// Checks run on /health; any error reports the service degraded.
	Checks map[string]func(ctx context.Context) error
}

// Options tunes the router.
type Options struct {
	RequestsPerMinute int
	AllowedOrigins    []string
}

// NewRouter wires every route.
func NewRouter(h *Handlers, opts Options) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", orgHeader, userHeader},
		MaxAge:         300,
	}))

	r.Get("/health", h.health)
	r.Handle("/metrics", metrics.Handler())
	if h.Tracking != nil {
		h.Tracking.Mount(r)
	}

	limiter := NewRateLimiter(opts.RequestsPerMinute)
	r.Route("/api", func(r chi.Router) {
		r.Use(limiter.Middleware)
		r.Use(orgScope)

		if h.Lists != nil {
			r.Route("/lists", func(r chi.Router) {
				r.Post("/", h.createList)
				r.Get("/", h.listLists)
				r.Put("/{id}", h.updateList)
				r.Post("/{id}/import-csv", h.importCSV)
				r.Post("/{id}/segment", h.segmentList)
				if h.S3 != nil {
					r.Post("/{id}/import-s3", h.importS3)
				}
			})
			r.Get("/imports/{importId}", h.importProgress)
		}
		if h.Subscribers != nil {
			r.Route("/subscribers", func(r chi.Router) {
				r.Post("/", h.createSubscriber)
				r.Get("/", h.listSubscribers)
				r.Put("/{id}", h.updateSubscriber)
				r.Post("/{id}/gpg-key", h.enrollKey)
				r.Delete("/{id}/gpg-key", h.removeKey)
			})
		}
		if h.Keys != nil {
			r.Post("/gpg/key-info", h.keyInfo)
		}
		if h.Campaigns != nil {
			r.Route("/campaigns", func(r chi.Router) {
				r.Post("/", h.createCampaign)
				r.Get("/", h.listCampaigns)
				r.Get("/{id}", h.getCampaign)
				r.Post("/{id}/send", h.sendCampaign)
				if h.Stats != nil {
					r.Get("/{id}/stats", h.campaignStats)
				}
			})
		}
		if h.Templates != nil {
			r.Route("/templates", func(r chi.Router) {
				r.Post("/", h.createTemplate)
				r.Get("/", h.listTemplates)
				r.Get("/{id}", h.getTemplate)
				r.Put("/{id}", h.updateTemplate)
				r.Delete("/{id}", h.deleteTemplate)
				r.Post("/{id}/render", h.renderTemplate)
			})
		}
		if h.RSS != nil {
			r.Route("/rss-feeds", func(r chi.Router) {
				r.Post("/", h.createFeed)
				r.Get("/", h.listFeeds)
				r.Get("/test", h.testFeed)
				r.Get("/{id}", h.getFeed)
				r.Put("/{id}", h.updateFeed)
				r.Delete("/{id}", h.deleteFeed)
				r.Post("/{id}/check", h.checkFeed)
			})
		}
	})
	return r
}

func (h *Handlers) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	status := "healthy"
	checks := make(map[string]string, len(h.Checks))
	for name, check := range h.Checks {
		if err := check(ctx); err != nil {
			status = "degraded"
			checks[name] = err.Error()
			continue
		}
		checks[name] = "ok"
	}
	code := http.StatusOK
	if status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	httputil.JSON(w, code, map[string]any{
		"status":    status,
		"timestamp": time.Now().UTC(),
		"checks":    checks,
	})
}
