// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Dispatch metrics
var (
	DispatchRecipients = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "newsletter_dispatch_recipients_total",
		Help: "Recipients processed by campaign sends, by outcome",
	}, []string{"outcome"})

	DispatchEncrypted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "newsletter_dispatch_encryption_total",
		Help: "Encryption attempts during sends, by outcome",
	}, []string{"outcome"})

	DispatchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "newsletter_dispatch_duration_seconds",
		Help:    "Wall time of a campaign send",
		Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900},
	})
)

// Import metrics
var (
	ImportRows = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "newsletter_import_rows_total",
		Help: "CSV rows seen by imports, by outcome",
	}, []string{"outcome"})

	ImportsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "newsletter_imports_total",
		Help: "CSV imports, by final status",
	}, []string{"status"})
)

// RSS metrics
var (
	RSSItemsProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "newsletter_rss_items_processed_total",
		Help: "New feed items turned into campaigns",
	})

	RSSFeedErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "newsletter_rss_feed_errors_total",
		Help: "Feed fetch or parse failures",
	})
)

// Tracking metrics
var TrackingEvents = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "newsletter_tracking_events_total",
	Help: "Tracking events accepted, by type",
}, []string{"type"})

// HTTP metrics
var (
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "newsletter_http_requests_total",
		Help: "HTTP requests, by method, route and status",
	}, []string{"method", "route", "status"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "newsletter_http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})
)

// ObserveRequest records one served request. route should be the matched
// pattern, not the raw path.
func ObserveRequest(method, route string, status int, elapsed time.Duration) {
	HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	HTTPDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
