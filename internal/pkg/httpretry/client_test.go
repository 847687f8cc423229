package httpretry_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/newsletter/internal/pkg/httpretry"
)

func fast() httpretry.Options {
	return httpretry.Options{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
}

func TestGet_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		assert.Equal(t, "newsletter-rss/1.0", r.UserAgent())
		_, _ = w.Write([]byte("<rss/>"))
	}))
	defer srv.Close()

	body, err := httpretry.New(srv.Client(), fast()).Get(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "<rss/>", string(body))
	assert.EqualValues(t, 3, calls.Load())
}

func TestGet_NoRetryOnClientError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := httpretry.New(srv.Client(), fast()).Get(context.Background(), srv.URL)
	assert.ErrorIs(t, err, httpretry.ErrStatus)
	assert.EqualValues(t, 1, calls.Load())
}

func TestGet_GivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := httpretry.New(srv.Client(), fast()).Get(context.Background(), srv.URL)
	assert.ErrorIs(t, err, httpretry.ErrStatus)
	assert.EqualValues(t, 3, calls.Load())
}

func TestGet_BodyCap(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("0123456789"))
	}))
	defer srv.Close()

	opts := fast()
	opts.MaxBody = 4
	body, err := httpretry.New(srv.Client(), opts).Get(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "0123", string(body))
}

type failingDoer struct{ calls int }

func (f *failingDoer) Do(*http.Request) (*http.Response, error) {
	f.calls++
	return nil, errors.New("connection refused")
}

func TestDo_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	doer := &failingDoer{}
	opts := fast()
	opts.BaseDelay = time.Hour
	opts.MaxDelay = time.Hour

	_, err := httpretry.New(doer, opts).Get(ctx, "http://feeds.example.com/rss")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, doer.calls)
}
