package api

import (
	"context"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"github.com/ignite/newsletter/internal/metrics"
	"github.com/ignite/newsletter/internal/pkg/httputil"
	"github.com/ignite/newsletter/internal/pkg/logger"
)

const (
	orgHeader  = "X-Organization-ID"
	userHeader = "X-User-ID"
)

type ctxKey int

const (
	orgKey ctxKey = iota
	userKey
)

// orgScope copies the caller identity headers into the request context.
func orgScope(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if org := strings.TrimSpace(r.Header.Get(orgHeader)); org != "" {
			ctx = context.WithValue(ctx, orgKey, org)
		}
		if user := strings.TrimSpace(r.Header.Get(userHeader)); user != "" {
			ctx = context.WithValue(ctx, userKey, user)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// OrgID returns the organization of the request, or "".
func OrgID(ctx context.Context) string {
	v, _ := ctx.Value(orgKey).(string)
	return v
}

// UserID returns the calling user of the request, or "".
func UserID(ctx context.Context) string {
	v, _ := ctx.Value(userKey).(string)
	return v
}

// requireOrg writes a 400 when the organization header is missing.
func requireOrg(w http.ResponseWriter, r *http.Request) (string, bool) {
	org := OrgID(r.Context())
	if org == "" {
		httputil.BadRequest(w, orgHeader+" header is required")
		return "", false
	}
	return org, true
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			route := "unmatched"
			if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
				route = rc.RoutePattern()
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			metrics.ObserveRequest(r.Method, route, status, time.Since(start))
			logger.Debug("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start).String(),
				"request_id", middleware.GetReqID(r.Context()),
			)
		}()
		next.ServeHTTP(ww, r)
	})
}

// RateLimiter throttles /api requests per client IP.
type RateLimiter struct {
	limit   rate.Limit
	burst   int
	window  time.Duration
	mu      sync.Mutex
	clients map[string]*clientLimiter
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter returns a limiter for the requests-per-minute budget, or
// nil when throttling is disabled.
func NewRateLimiter(requestsPerMinute int) *RateLimiter {
	if requestsPerMinute <= 0 {
		return nil
	}
	burst := requestsPerMinute / 10
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		limit:   rate.Limit(float64(requestsPerMinute) / 60.0),
		burst:   burst,
		window:  5 * time.Minute,
		clients: make(map[string]*clientLimiter),
	}
}

// Middleware rejects requests over budget with 429. A nil limiter passes
// everything through.
func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	if l == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.get(clientIP(r)).Allow() {
			w.Header().Set("Retry-After", "60")
			httputil.Error(w, http.StatusTooManyRequests, "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (l *RateLimiter) get(key string) *rate.Limiter {
	now := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	if entry, ok := l.clients[key]; ok {
		entry.lastSeen = now
		return entry.limiter
	}
	lim := rate.NewLimiter(l.limit, l.burst)
	l.clients[key] = &clientLimiter{limiter: lim, lastSeen: now}
	for k, entry := range l.clients {
		if now.Sub(entry.lastSeen) > l.window {
			delete(l.clients, k)
		}
	}
	return lim
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
