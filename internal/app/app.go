// Package app assembles the services shared by the server, worker and CLI
// binaries from a loaded configuration.
package app

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/redis/go-redis/v9"

	"github.com/ignite/newsletter/internal/config"
	"github.com/ignite/newsletter/internal/domain"
	"github.com/ignite/newsletter/internal/gpg"
	"github.com/ignite/newsletter/internal/pkg/distlock"
	"github.com/ignite/newsletter/internal/pkg/httpretry"
	"github.com/ignite/newsletter/internal/pkg/logger"
	"github.com/ignite/newsletter/internal/repository/postgres"
	"github.com/ignite/newsletter/internal/service/campaign"
	"github.com/ignite/newsletter/internal/service/list"
	"github.com/ignite/newsletter/internal/service/rss"
	"github.com/ignite/newsletter/internal/service/sending"
	"github.com/ignite/newsletter/internal/service/subscriber"
	"github.com/ignite/newsletter/internal/service/template"
	"github.com/ignite/newsletter/internal/storage"
	"github.com/ignite/newsletter/internal/tracking"
)

// PollerLockName names the distributed lock held during an RSS round.
const PollerLockName = "rss-poller"

// App holds the wired services. Redis, S3 and the poller are nil when not
// configured.
type App struct {
	Config *config.Config
	DB     *sql.DB
	Redis  *redis.Client

	GPG         *gpg.Service
	Lists       *list.Service
	Subscribers *subscriber.Service
	Campaigns   *campaign.Service
	Templates   *template.Service
	RSS         *rss.Service
	Poller      *rss.Poller
	S3          *storage.S3Source

	Tracking *tracking.Handler
	Counter  *tracking.RedisCounter
}

// New connects to postgres and redis and builds every service.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	logger.SetLevel(logger.ParseLevel(cfg.Log.Level))
	logger.SetRedactPII(cfg.Log.RedactPII)

	db, err := OpenDB(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	a := &App{Config: cfg, DB: db}

	if cfg.Redis.Enabled && cfg.Redis.URL != "" {
		opt, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		a.Redis = redis.NewClient(opt)
		if err := a.Redis.Ping(ctx).Err(); err != nil {
			a.Close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		logger.Info("connected to redis")
	}

	sender, err := sending.New(ctx, sending.Options{
		Transport:    domain.TransportType(cfg.Transport),
		SMTPHost:     cfg.SMTP.Host,
		SMTPPort:     cfg.SMTP.Port,
		SMTPUsername: cfg.SMTP.Username,
		SMTPPassword: cfg.SMTP.Password,
		SESAccessKey: cfg.SES.AccessKey,
		SESSecretKey: cfg.SES.SecretKey,
		SESRegion:    cfg.SES.Region,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("mail transport: %w", err)
	}
	logger.Info("mail transport ready", "transport", cfg.Transport)

	a.GPG = gpg.NewService()
	subRepo := postgres.NewSubscriberRepo(db)

	a.Lists = list.NewService(postgres.NewListRepo(db), subRepo, list.Config{
		TempDir:   cfg.Import.TempDir,
		BatchSize: cfg.Import.BatchSize,
	})
	if a.Redis != nil {
		a.Lists.SetProgressTracker(list.NewRedisProgress(a.Redis))
	}
	a.Subscribers = subscriber.NewService(subRepo, a.GPG)
	a.Templates = template.NewService(postgres.NewTemplateRepo(db), nil)

	injector := a.wireTracking(ctx)
	a.Campaigns = campaign.NewService(postgres.NewCampaignRepo(db), a.Lists, sender, gpg.NewAdapter(a.GPG), injector, campaign.Config{
		Concurrency: cfg.Dispatch.Concurrency,
		FromName:    cfg.SMTP.FromName,
		FromEmail:   cfg.SMTP.FromEmail,
	})

	a.RSS = rss.NewService(postgres.NewRSSFeedRepo(db), a.Campaigns, httpretry.New(nil, httpretry.Options{}))
	if cfg.RSS.Enabled {
		lock := distlock.New(a.Redis, db, PollerLockName, cfg.RSS.PollInterval())
		a.Poller = rss.NewPoller(a.RSS, lock, rss.PollerConfig{
			Interval:      cfg.RSS.PollInterval(),
			MaxConcurrent: cfg.RSS.MaxConcurrent,
		})
	}

	s3src, err := storage.NewS3Source(ctx, cfg.S3.Region, cfg.S3.DefaultBucket, a.Lists)
	if err != nil {
		logger.Warn("s3 import disabled", "error", err)
	} else {
		a.S3 = s3src
	}
	return a, nil
}

// wireTracking builds the tracking handler and event sinks and returns the
// injector used by dispatch.
func (a *App) wireTracking(ctx context.Context) *tracking.Injector {
	cfg := a.Config.Tracking
	secret := cfg.Secret
	if secret == "" {
		secret = randomSecret()
		logger.Warn("TRACKING_SECRET not set, tracking links will not survive a restart")
	}
	signer := tracking.NewSigner(secret)

	var sinks tracking.Sinks
	if a.Redis != nil {
		a.Counter = tracking.NewRedisCounter(a.Redis)
		sinks = append(sinks, a.Counter)
	}
	if cfg.SQSQueueURL != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(a.Config.SES.Region))
		if err != nil {
			logger.Warn("sqs tracking sink disabled", "error", err)
		} else {
			sinks = append(sinks, tracking.NewSQSPublisher(sqs.NewFromConfig(awsCfg), cfg.SQSQueueURL))
		}
	}
	a.Tracking = tracking.NewHandler(signer, sinks)
	return tracking.NewInjector(signer, cfg.BaseURL, cfg.LinkTTLDays)
}

func randomSecret() string {
	b := make([]byte, 32)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// OpenDB opens and pings the postgres pool.
func OpenDB(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	if cfg.URL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(time.Minute)

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	logger.Info("connected to database")
	return db, nil
}

// Checks returns the health probes for /health.
func (a *App) Checks() map[string]func(ctx context.Context) error {
	checks := map[string]func(ctx context.Context) error{
		"database": a.DB.PingContext,
	}
	if a.Redis != nil {
		checks["redis"] = func(ctx context.Context) error { return a.Redis.Ping(ctx).Err() }
	}
	return checks
}

// Close waits for background imports and releases connections.
func (a *App) Close() {
	if a.Poller != nil {
		a.Poller.Stop()
	}
	if a.Lists != nil {
		a.Lists.Wait()
	}
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	if a.DB != nil {
		_ = a.DB.Close()
	}
}
