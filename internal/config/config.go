package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all service configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Transport string          `yaml:"transport"`
	SMTP      SMTPConfig      `yaml:"smtp"`
	SES       SESConfig       `yaml:"ses"`
	Dispatch  DispatchConfig  `yaml:"dispatch"`
	Import    ImportConfig    `yaml:"import"`
	Tracking  TrackingConfig  `yaml:"tracking"`
	RSS       RSSConfig       `yaml:"rss"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	S3        S3Config        `yaml:"s3"`
}

// ServerConfig holds HTTP listener settings
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Addr returns host:port for http.Server.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LogConfig holds logger settings
type LogConfig struct {
	Level     string `yaml:"level"`
	RedactPII bool   `yaml:"redact_pii"`
}

// DatabaseConfig holds the PostgreSQL connection settings
type DatabaseConfig struct {
	URL          string `yaml:"url"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

// RedisConfig holds the redis connection used for import progress,
// tracking counters and the poller lock
type RedisConfig struct {
	URL     string `yaml:"url"`
	Enabled bool   `yaml:"enabled"`
}

// SMTPConfig holds SMTP transport settings and the sender identity
type SMTPConfig struct {
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
	FromEmail string `yaml:"from_email"`
	FromName  string `yaml:"from_name"`
}

// SESConfig holds AWS SES transport settings
type SESConfig struct {
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Region    string `yaml:"region"`
	Enabled   bool   `yaml:"enabled"`
}

// DispatchConfig controls campaign sends
type DispatchConfig struct {
	Concurrency int `yaml:"concurrency"`
}

// ImportConfig controls CSV imports
type ImportConfig struct {
	TempDir   string `yaml:"temp_dir"`
	BatchSize int    `yaml:"batch_size"`
}

// TrackingConfig controls open and click tracking
type TrackingConfig struct {
	BaseURL     string `yaml:"base_url"`
	Secret      string `yaml:"secret"`
	LinkTTLDays int    `yaml:"link_ttl_days"`
	SQSQueueURL string `yaml:"sqs_queue_url"`
}

// RSSConfig controls the feed poller
type RSSConfig struct {
	Enabled                   bool `yaml:"enabled"`
	PollIntervalMinutes       int  `yaml:"poll_interval_minutes"`
	MaxConcurrent             int  `yaml:"max_concurrent"`
	DefaultCheckIntervalHours int  `yaml:"default_check_interval_hours"`
}

// PollInterval returns the poll interval as a duration.
func (r RSSConfig) PollInterval() time.Duration {
	return time.Duration(r.PollIntervalMinutes) * time.Minute
}

// RateLimitConfig throttles the API per client
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute"`
}

// S3Config holds the CSV import bucket
type S3Config struct {
	Region        string `yaml:"region"`
	DefaultBucket string `yaml:"default_bucket"`
}

// Load reads and parses the configuration file. An empty path yields the
// defaults.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Transport == "" {
		cfg.Transport = "smtp"
	}
	if cfg.SMTP.Host == "" {
		cfg.SMTP.Host = "smtp.gmail.com"
	}
	if cfg.SMTP.Port == 0 {
		cfg.SMTP.Port = 587
	}
	if cfg.SMTP.FromEmail == "" {
		cfg.SMTP.FromEmail = "noreply@newsletter.com"
	}
	if cfg.SES.Region == "" {
		cfg.SES.Region = "us-east-1"
	}
	if cfg.Dispatch.Concurrency == 0 {
		cfg.Dispatch.Concurrency = 10
	}
	if cfg.Import.TempDir == "" {
		cfg.Import.TempDir = "/tmp/newsletter-uploads"
	}
	if cfg.Import.BatchSize == 0 {
		cfg.Import.BatchSize = 1000
	}
	if cfg.Tracking.BaseURL == "" {
		cfg.Tracking.BaseURL = "http://localhost:8080"
	}
	if cfg.Tracking.LinkTTLDays == 0 {
		cfg.Tracking.LinkTTLDays = 30
	}
	if cfg.RSS.PollIntervalMinutes == 0 {
		cfg.RSS.PollIntervalMinutes = 60
	}
	if cfg.RSS.MaxConcurrent == 0 {
		cfg.RSS.MaxConcurrent = 5
	}
	if cfg.RSS.DefaultCheckIntervalHours == 0 {
		cfg.RSS.DefaultCheckIntervalHours = 24
	}
	if cfg.RateLimit.RequestsPerMinute == 0 {
		cfg.RateLimit.RequestsPerMinute = 10
	}
	if cfg.S3.Region == "" {
		cfg.S3.Region = cfg.SES.Region
	}
}

// LoadFromEnv loads configuration with environment variable overrides.
// It loads a .env file (if present) before reading env vars, so secrets can
// live in .env locally and in real env vars in deployment.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	str := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		v := os.Getenv(key)
		if v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = n
		return nil
	}

	str("SERVER_HOST", &cfg.Server.Host)
	str("LOG_LEVEL", &cfg.Log.Level)
	str("MAIL_TRANSPORT", &cfg.Transport)
	str("SMTP_HOST", &cfg.SMTP.Host)
	str("SMTP_USER", &cfg.SMTP.Username)
	str("SMTP_PASS", &cfg.SMTP.Password)
	str("SMTP_FROM_EMAIL", &cfg.SMTP.FromEmail)
	str("SMTP_FROM_NAME", &cfg.SMTP.FromName)
	str("AWS_SES_ACCESS_KEY", &cfg.SES.AccessKey)
	str("AWS_SES_SECRET_KEY", &cfg.SES.SecretKey)
	str("AWS_SES_REGION", &cfg.SES.Region)
	str("TRACKING_BASE_URL", &cfg.Tracking.BaseURL)
	str("TRACKING_SECRET", &cfg.Tracking.Secret)
	str("TRACKING_SQS_QUEUE_URL", &cfg.Tracking.SQSQueueURL)
	str("UPLOAD_TEMP_DIR", &cfg.Import.TempDir)
	str("S3_DEFAULT_BUCKET", &cfg.S3.DefaultBucket)
	str("S3_REGION", &cfg.S3.Region)

	for key, dst := range map[string]*int{
		"PORT":                 &cfg.Server.Port,
		"SMTP_PORT":            &cfg.SMTP.Port,
		"DISPATCH_CONCURRENCY": &cfg.Dispatch.Concurrency,
		"IMPORT_BATCH_SIZE":    &cfg.Import.BatchSize,
		"RATE_LIMIT_PER_MIN":   &cfg.RateLimit.RequestsPerMinute,
	} {
		if err := num(key, dst); err != nil {
			return nil, err
		}
	}

	// Database and redis overrides also switch the feature on.
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
		cfg.Redis.Enabled = true
	}
	if v := os.Getenv("RSS_ENABLED"); v != "" {
		cfg.RSS.Enabled = v == "true" || v == "1"
	}
	if cfg.SES.AccessKey != "" && cfg.SES.SecretKey != "" {
		cfg.SES.Enabled = true
		// SES credentials select SES unless a transport was named.
		if os.Getenv("MAIL_TRANSPORT") == "" && cfg.Transport == "smtp" {
			cfg.Transport = "ses"
		}
	}

	return cfg, nil
}
