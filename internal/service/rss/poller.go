package rss

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ignite/newsletter/internal/pkg/distlock"
	"github.com/ignite/newsletter/internal/pkg/logger"
)

// PollerConfig controls the background feed poller.
type PollerConfig struct {
	Interval      time.Duration // default 1h
	MaxConcurrent int           // default 5
}

// Poller checks every active feed on a ticker. Each round runs under a
// distributed lock so that at most one instance polls.
type Poller struct {
	svc  *Service
	lock distlock.Lock
	cfg  PollerConfig

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewPoller creates a poller. A nil lock polls without coordination.
func NewPoller(svc *Service, lock distlock.Lock, cfg PollerConfig) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 5
	}
	return &Poller{svc: svc, lock: lock, cfg: cfg}
}

// Start launches the polling loop. The first round runs immediately.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return
	}
	ctx, p.cancel = context.WithCancel(ctx)
	p.done = make(chan struct{})
	go p.loop(ctx, p.done)
	logger.Info("rss poller started", "interval", p.cfg.Interval.String(), "max_concurrent", p.cfg.MaxConcurrent)
}

// Stop ends the loop and waits for an in-flight round to finish.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	logger.Info("rss poller stopped")
}

func (p *Poller) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	t := time.NewTicker(p.cfg.Interval)
	defer t.Stop()
	for {
		p.round(ctx)
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

func (p *Poller) round(ctx context.Context) {
	if p.lock == nil {
		_ = p.CheckAll(ctx)
		return
	}
	ran, err := distlock.Run(ctx, p.lock, p.CheckAll)
	if err != nil {
		logger.Error("rss poll round failed", "error", err)
		return
	}
	if !ran {
		logger.Debug("rss poll skipped, lock held elsewhere")
	}
}

// CheckAll processes every active feed that is due. Failures of single
// feeds are logged and do not stop the others.
func (p *Poller) CheckAll(ctx context.Context) error {
	feeds, err := p.svc.repo.ListActive(ctx)
	if err != nil {
		logger.Error("list active feeds failed", "error", err)
		return err
	}

	var created, failed atomic.Int64
	var g errgroup.Group
	g.SetLimit(p.cfg.MaxConcurrent)
	for i := range feeds {
		f := &feeds[i]
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			res, err := p.svc.ProcessFeed(ctx, f, false)
			if err != nil {
				failed.Add(1)
				logger.Error("rss feed check failed", "feed_id", f.ID, "feed_url", f.FeedURL, "error", err)
				return nil
			}
			created.Add(int64(res.NewItems))
			return nil
		})
	}
	_ = g.Wait()
	logger.Info("rss feeds checked",
		"feeds", len(feeds),
		"new_campaigns", created.Load(),
		"failed", failed.Load(),
	)
	return nil
}
