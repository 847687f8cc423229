package rss_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/newsletter/internal/domain"
	"github.com/ignite/newsletter/internal/pkg/distlock"
	"github.com/ignite/newsletter/internal/pkg/httpretry"
	"github.com/ignite/newsletter/internal/service/campaign"
	"github.com/ignite/newsletter/internal/service/rss"
)

const feedXML = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:content="http://purl.org/rss/1.0/modules/content/">
<channel>
  <title>Engineering Blog</title>
  <description>Posts from the team</description>
  <link>https://blog.example.com</link>
  <item>
    <guid>post-2</guid>
    <title>Second post</title>
    <link>https://blog.example.com/2</link>
    <description>Short two</description>
    <content:encoded><![CDATA[<p>Full two</p>]]></content:encoded>
    <pubDate>Tue, 02 Jan 2024 10:00:00 GMT</pubDate>
  </item>
  <item>
    <title>First post</title>
    <link>https://blog.example.com/1</link>
    <description>Short one</description>
    <pubDate>Mon, 01 Jan 2024 10:00:00 GMT</pubDate>
  </item>
</channel>
</rss>`

type memRepo struct {
	mu    sync.Mutex
	feeds map[string]*domain.RSSFeed
	seq   int
}

func newMemRepo() *memRepo { return &memRepo{feeds: map[string]*domain.RSSFeed{}} }

func (r *memRepo) Get(_ context.Context, orgID, id string) (*domain.RSSFeed, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.feeds[id]
	if !ok || f.OrganizationID != orgID {
		return nil, rss.ErrNotFound
	}
	cp := *f
	return &cp, nil
}

func (r *memRepo) List(_ context.Context, orgID string) ([]domain.RSSFeed, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.RSSFeed
	for _, f := range r.feeds {
		if f.OrganizationID == orgID {
			out = append(out, *f)
		}
	}
	return out, nil
}

func (r *memRepo) Create(_ context.Context, f *domain.RSSFeed) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	id := fmt.Sprintf("f%d", r.seq)
	cp := *f
	cp.ID = id
	r.feeds[id] = &cp
	return id, nil
}

func (r *memRepo) Update(_ context.Context, orgID, id string, u rss.UpdateFields) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.feeds[id]
	if !ok || f.OrganizationID != orgID {
		return rss.ErrNotFound
	}
	if u.Name != nil {
		f.Name = *u.Name
	}
	if u.FeedURL != nil {
		f.FeedURL = *u.FeedURL
	}
	if u.IsActive != nil {
		f.IsActive = *u.IsActive
	}
	if u.AutoSend != nil {
		f.AutoSend = *u.AutoSend
	}
	if u.CheckIntervalHours != nil {
		f.CheckIntervalHours = *u.CheckIntervalHours
	}
	return nil
}

func (r *memRepo) Delete(_ context.Context, orgID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if f, ok := r.feeds[id]; !ok || f.OrganizationID != orgID {
		return rss.ErrNotFound
	}
	delete(r.feeds, id)
	return nil
}

func (r *memRepo) ListActive(context.Context) ([]domain.RSSFeed, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.RSSFeed
	for _, f := range r.feeds {
		if f.IsActive {
			out = append(out, *f)
		}
	}
	return out, nil
}

func (r *memRepo) MarkChecked(_ context.Context, id string, processed map[string]bool, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.feeds[id]
	if !ok {
		return rss.ErrNotFound
	}
	f.ProcessedItems = processed
	f.LastChecked = &at
	return nil
}

type fakeCampaigns struct {
	mu      sync.Mutex
	created []campaign.CreateInput
	sent    []string
	failOn  string
}

func (c *fakeCampaigns) Create(_ context.Context, orgID string, in campaign.CreateInput) (*domain.Campaign, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failOn != "" && in.Subject == c.failOn {
		return nil, errors.New("list gone")
	}
	c.created = append(c.created, in)
	return &domain.Campaign{ID: fmt.Sprintf("c%d", len(c.created)), OrganizationID: orgID, Subject: in.Subject}, nil
}

func (c *fakeCampaigns) Send(_ context.Context, _, id string, _ map[string]any) (*domain.DispatchResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, id)
	return &domain.DispatchResult{CampaignID: id, Sent: 1, TotalSubscribers: 1}, nil
}

func (c *fakeCampaigns) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.created)
}

func feedServer(t *testing.T) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/feed.xml" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(feedXML))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newService(t *testing.T) (*rss.Service, *memRepo, *fakeCampaigns, *httptest.Server) {
	srv := feedServer(t)
	repo := newMemRepo()
	camps := &fakeCampaigns{}
	fetch := httpretry.New(srv.Client(), httpretry.Options{MaxRetries: 1, BaseDelay: time.Millisecond})
	return rss.NewService(repo, camps, fetch), repo, camps, srv
}

func TestTestFeed(t *testing.T) {
	svc, _, _, srv := newService(t)

	p, err := svc.TestFeed(context.Background(), srv.URL+"/feed.xml")
	require.NoError(t, err)
	assert.Equal(t, "Engineering Blog", p.Title)
	assert.Equal(t, 2, p.ItemCount)
	require.Len(t, p.LatestItems, 2)
	assert.Equal(t, "Second post", p.LatestItems[0].Title)

	_, err = svc.TestFeed(context.Background(), srv.URL+"/missing")
	assert.ErrorIs(t, err, rss.ErrInvalidFeed)

	_, err = svc.TestFeed(context.Background(), "ftp://example.com/feed")
	assert.ErrorIs(t, err, rss.ErrFeedURL)
}

func TestProcessFeed_CreatesOncePerItem(t *testing.T) {
	svc, repo, camps, srv := newService(t)
	ctx := context.Background()

	f, err := svc.Create(ctx, "org-1", rss.CreateInput{
		Name:             "blog",
		FeedURL:          srv.URL + "/feed.xml",
		ListID:           "list-1",
		CampaignTemplate: "<h1>{title}</h1>{content}<a href=\"{link}\">more</a> {pubDate}",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultRSSCheckIntervalHours, f.CheckIntervalHours)
	assert.True(t, f.IsActive)

	res, err := svc.ManualCheck(ctx, "org-1", f.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, res.NewItems)
	require.Len(t, camps.created, 2)
	assert.Equal(t, "New: Second post", camps.created[0].Subject)
	assert.Equal(t, `<h1>Second post</h1><p>Full two</p><a href="https://blog.example.com/2">more</a> Tue, 02 Jan 2024 10:00:00 GMT`, camps.created[0].Content)
	assert.Equal(t, "list-1", camps.created[0].ListID)
	assert.Contains(t, camps.created[1].Content, "Short one")
	assert.Empty(t, camps.sent)

	stored, _ := repo.Get(ctx, "org-1", f.ID)
	assert.Equal(t, map[string]bool{"post-2": true, "https://blog.example.com/1": true}, stored.ProcessedItems)
	require.NotNil(t, stored.LastChecked)

	res, err = svc.ManualCheck(ctx, "org-1", f.ID)
	require.NoError(t, err)
	assert.Zero(t, res.NewItems)
	assert.Len(t, camps.created, 2)
}

func TestProcessFeed_RespectsInterval(t *testing.T) {
	svc, _, camps, srv := newService(t)
	recent := time.Now().Add(-time.Hour)
	f := &domain.RSSFeed{ID: "f1", FeedURL: srv.URL + "/feed.xml", CheckIntervalHours: 24, LastChecked: &recent}

	res, err := svc.ProcessFeed(context.Background(), f, false)
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Zero(t, camps.count())
}

func TestProcessFeed_AutoSendAndRetryFailedItem(t *testing.T) {
	svc, _, camps, srv := newService(t)
	ctx := context.Background()
	camps.failOn = "Fresh: First post"

	f, err := svc.Create(ctx, "org-1", rss.CreateInput{
		Name: "blog", FeedURL: srv.URL + "/feed.xml", ListID: "list-1",
		AutoSend: true, CampaignSubject: "Fresh: {title}",
	})
	require.NoError(t, err)

	res, err := svc.ManualCheck(ctx, "org-1", f.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, res.NewItems)
	assert.Equal(t, []string{"c1"}, camps.sent)
	assert.Contains(t, camps.created[0].Content, "Read more")

	camps.failOn = ""
	res, err = svc.ManualCheck(ctx, "org-1", f.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, res.NewItems)
	assert.Equal(t, "Fresh: First post", camps.created[1].Subject)
}

func TestCRUDValidation(t *testing.T) {
	svc, _, _, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, "org-1", rss.CreateInput{FeedURL: "https://x.com/rss"})
	assert.ErrorIs(t, err, rss.ErrNameRequired)
	_, err = svc.Create(ctx, "org-1", rss.CreateInput{Name: "n", FeedURL: "not a url"})
	assert.ErrorIs(t, err, rss.ErrFeedURL)

	f, err := svc.Create(ctx, "org-1", rss.CreateInput{Name: "n", FeedURL: "https://x.com/rss"})
	require.NoError(t, err)
	zero := 0
	got, err := svc.Update(ctx, "org-1", f.ID, rss.UpdateFields{CheckIntervalHours: &zero})
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultRSSCheckIntervalHours, got.CheckIntervalHours)

	_, err = svc.Get(ctx, "org-2", f.ID)
	assert.ErrorIs(t, err, rss.ErrNotFound)
	require.NoError(t, svc.Delete(ctx, "org-1", f.ID))
	list, err := svc.List(ctx, "org-1")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestPoller(t *testing.T) {
	svc, _, camps, srv := newService(t)
	ctx := context.Background()
	inactive := false
	_, err := svc.Create(ctx, "org-1", rss.CreateInput{Name: "a", FeedURL: srv.URL + "/feed.xml", ListID: "l"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, "org-1", rss.CreateInput{Name: "off", FeedURL: srv.URL + "/feed.xml", ListID: "l", IsActive: &inactive})
	require.NoError(t, err)
	_, err = svc.Create(ctx, "org-1", rss.CreateInput{Name: "broken", FeedURL: srv.URL + "/missing", ListID: "l"})
	require.NoError(t, err)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	p := rss.NewPoller(svc, distlock.NewRedisLock(rdb, "rss-poller", time.Minute), rss.PollerConfig{Interval: time.Hour})
	p.Start(ctx)
	require.Eventually(t, func() bool { return camps.count() == 2 }, 5*time.Second, 10*time.Millisecond)
	p.Stop()
	p.Stop()

	assert.False(t, mr.Exists("lock:rss-poller"))
}

func TestPoller_SkipsWhenLockHeld(t *testing.T) {
	svc, _, camps, srv := newService(t)
	_, err := svc.Create(context.Background(), "org-1", rss.CreateInput{Name: "a", FeedURL: srv.URL + "/feed.xml", ListID: "l"})
	require.NoError(t, err)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	require.NoError(t, mr.Set("lock:rss-poller", "other-instance"))

	p := rss.NewPoller(svc, distlock.NewRedisLock(rdb, "rss-poller", time.Minute), rss.PollerConfig{Interval: 20 * time.Millisecond})
	p.Start(context.Background())
	time.Sleep(100 * time.Millisecond)
	p.Stop()
	assert.Zero(t, camps.count())
}
