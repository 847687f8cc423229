// Command worker runs the RSS poller without the HTTP API. Several workers
// may run; the poller lock keeps rounds exclusive.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/ignite/newsletter/internal/app"
	"github.com/ignite/newsletter/internal/config"
	"github.com/ignite/newsletter/internal/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml")
	once := flag.Bool("once", false, "check every active feed once and exit")
	flag.Parse()

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg.RSS.Enabled = true

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(ctx, cfg)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	if *once {
		if err := a.Poller.CheckAll(ctx); err != nil {
			logger.Error("feed check failed", "error", err)
			os.Exit(1)
		}
		return
	}

	a.Poller.Start(ctx)
	logger.Info("worker running", "interval", cfg.RSS.PollInterval().String())
	<-ctx.Done()
	logger.Info("worker stopping")
}
