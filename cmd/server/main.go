package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ignite/newsletter/internal/api"
	"github.com/ignite/newsletter/internal/app"
	"github.com/ignite/newsletter/internal/config"
	"github.com/ignite/newsletter/internal/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml")
	flag.Parse()

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.New(ctx, cfg)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}

	h := &api.Handlers{
		Lists:       a.Lists,
		Subscribers: a.Subscribers,
		Campaigns:   a.Campaigns,
		Templates:   a.Templates,
		RSS:         a.RSS,
		Keys:        a.GPG,
		Tracking:    a.Tracking,
		Checks:      a.Checks(),
	}
	if a.S3 != nil {
		h.S3 = a.S3
	}
	if a.Counter != nil {
		h.Stats = a.Counter
	}

	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           api.NewRouter(h, api.Options{RequestsPerMinute: cfg.RateLimit.RequestsPerMinute}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if a.Poller != nil {
		a.Poller.Start(ctx)
		logger.Info("rss poller started", "interval", cfg.RSS.PollInterval().String())
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("starting server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-done
	logger.Info("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
	a.Close()
	_ = logger.Sync()
}
