package tracking

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/newsletter/internal/domain"
)

func fixedSigner(secret string, at time.Time) *Signer {
	s := NewSigner(secret)
	s.now = func() time.Time { return at }
	return s
}

func TestSigner_RoundTrip(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := fixedSigner("k", now)

	tok := s.GenerateToken("c1:s1:l1", now.Add(time.Hour))
	v := s.VerifyToken(tok)
	assert.Equal(t, Verification{Data: "c1:s1:l1", Valid: true}, v)
}

func TestSigner_Tampered(t *testing.T) {
	now := time.Now()
	s := fixedSigner("k", now)
	tok := s.GenerateToken("c1:s1:l1", now.Add(time.Hour))

	assert.False(t, fixedSigner("other", now).VerifyToken(tok).Valid)
	last := "0"
	if strings.HasSuffix(tok, "0") {
		last = "1"
	}
	assert.Equal(t, Verification{}, s.VerifyToken(tok[:len(tok)-1]+last))
	assert.Equal(t, Verification{}, s.VerifyToken("no-dot"))
	assert.Equal(t, Verification{}, s.VerifyToken("!!!.abc"))
}

func TestSigner_Expired(t *testing.T) {
	issued := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tok := fixedSigner("k", issued).GenerateToken("data", issued.Add(time.Minute))

	v := fixedSigner("k", issued.Add(2*time.Minute)).VerifyToken(tok)
	assert.False(t, v.Valid)
	assert.True(t, v.Expired)
	assert.Equal(t, "data", v.Data)
}

func TestSigner_TrackingURL(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := fixedSigner("k", now)

	u := s.CreateTrackingURL("https://news.example.com/", "c1", "s1", "l1", 30)
	require.True(t, strings.HasPrefix(u, "https://news.example.com/track/"))
	tok := strings.TrimPrefix(u, "https://news.example.com/track/")

	assert.Equal(t, Claims{CampaignID: "c1", SubscriberID: "s1", LinkID: "l1", Valid: true}, s.ParseTrackingToken(tok))

	later := fixedSigner("k", now.Add(31*24*time.Hour))
	assert.Equal(t, Claims{Expired: true}, later.ParseTrackingToken(tok))
}

func TestInjector(t *testing.T) {
	s := NewSigner("k")
	in := NewInjector(s, "https://t.example.com", 30)
	body := `<html><body><a href="https://shop.example.com/?a=1&amp;b=2">Shop</a>` +
		`<a href="mailto:x@y.z">Mail</a></body></html>`

	out := in.Inject(body, domain.TrackingSettings{ID: "c1"}, "s1")
	assert.Contains(t, out, `href="https://t.example.com/track/`)
	assert.Contains(t, out, "?url="+url.QueryEscape("https://shop.example.com/?a=1&b=2"))
	assert.Contains(t, out, `href="mailto:x@y.z"`)
	assert.Contains(t, out, `<img src="https://t.example.com/track/open/`)
	assert.True(t, strings.HasSuffix(out, "</body></html>"))

	none := in.Inject(body, domain.TrackingSettings{ID: "c1", ClickTrackingDisabled: true, OpenTrackingDisabled: true}, "s1")
	assert.Equal(t, body, none)
}

type recordingSink struct {
	mu     sync.Mutex
	events []domain.TrackingEvent
	err    error
}

func (r *recordingSink) Record(_ context.Context, evt domain.TrackingEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
	return r.err
}

func newRouter(s *Signer, sink EventSink) http.Handler {
	r := chi.NewRouter()
	NewHandler(s, sink).Mount(r)
	return r
}

func TestHandler_Click(t *testing.T) {
	s := NewSigner("k")
	sink := &recordingSink{}
	router := newRouter(s, sink)

	target := "https://shop.example.com/item?id=7"
	link := s.CreateTrackingURL("", "c1", "s1", LinkID(target), 30)

	req := httptest.NewRequest(http.MethodGet, link+"?url="+url.QueryEscape(target), nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, target, rec.Header().Get("Location"))
	require.Len(t, sink.events, 1)
	assert.Equal(t, domain.EventClick, sink.events[0].EventType)
	assert.Equal(t, "c1", sink.events[0].CampaignID)
	assert.Equal(t, "203.0.113.9", sink.events[0].IPAddress)
}

func TestHandler_ClickRejectsForeignURL(t *testing.T) {
	s := NewSigner("k")
	sink := &recordingSink{}
	link := s.CreateTrackingURL("", "c1", "s1", LinkID("https://shop.example.com/"), 30)

	rec := httptest.NewRecorder()
	newRouter(s, sink).ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
		link+"?url="+url.QueryEscape("https://evil.example.com/"), nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, sink.events)
}

func TestHandler_ClickBadToken(t *testing.T) {
	rec := httptest.NewRecorder()
	newRouter(NewSigner("k"), nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/track/garbage?url=https://x.com", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_ClickExpired(t *testing.T) {
	issued := time.Now().Add(-48 * time.Hour)
	target := "https://x.example.com/"
	link := fixedSigner("k", issued).CreateTrackingURL("", "c1", "s1", LinkID(target), 1)

	rec := httptest.NewRecorder()
	newRouter(NewSigner("k"), nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, link+"?url="+url.QueryEscape(target), nil))
	assert.Equal(t, http.StatusGone, rec.Code)
}

func TestHandler_OpenAlwaysServesPixel(t *testing.T) {
	s := NewSigner("k")
	sink := &recordingSink{err: errors.New("redis down")}
	router := newRouter(s, sink)

	open := s.CreateOpenURL("", "c1", "s1", 30)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, open, nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/gif", rec.Header().Get("Content-Type"))
	assert.Equal(t, pixelGIF, rec.Body.Bytes())
	require.Len(t, sink.events, 1)
	assert.Equal(t, domain.EventOpen, sink.events[0].EventType)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/track/open/bogus", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, sink.events, 1)
}

func TestRedisCounter(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	c := NewRedisCounter(rdb)
	ctx := context.Background()

	for _, evt := range []domain.TrackingEvent{
		{EventType: domain.EventOpen, CampaignID: "c1", SubscriberID: "s1"},
		{EventType: domain.EventOpen, CampaignID: "c1", SubscriberID: "s1"},
		{EventType: domain.EventOpen, CampaignID: "c1", SubscriberID: "s2"},
		{EventType: domain.EventClick, CampaignID: "c1", SubscriberID: "s2"},
	} {
		require.NoError(t, c.Record(ctx, evt))
	}

	st, err := c.Stats(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, CampaignStats{Opens: 3, Clicks: 1, UniqueOpens: 2, UniqueClicks: 1}, *st)

	empty, err := c.Stats(ctx, "none")
	require.NoError(t, err)
	assert.Equal(t, CampaignStats{}, *empty)
}

type fakeSQS struct {
	input *sqs.SendMessageInput
}

func (f *fakeSQS) SendMessage(_ context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.input = in
	return &sqs.SendMessageOutput{}, nil
}

func TestSQSPublisher(t *testing.T) {
	fake := &fakeSQS{}
	p := NewSQSPublisher(fake, "https://sqs.example.com/q")
	evt := domain.TrackingEvent{EventType: domain.EventClick, CampaignID: "c1", URL: "https://x.com"}

	require.NoError(t, Sinks{p}.Record(context.Background(), evt))
	assert.Equal(t, "https://sqs.example.com/q", aws.ToString(fake.input.QueueUrl))

	var got domain.TrackingEvent
	require.NoError(t, json.Unmarshal([]byte(aws.ToString(fake.input.MessageBody)), &got))
	assert.Equal(t, evt.URL, got.URL)
}
