package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// BotConfig holds Telegram bot settings.
type BotConfig struct {
	Token   string `yaml:"token" envconfig:"TELEGRAM_KEY"`
	AdminID int64  `yaml:"admin_id" envconfig:"TELEGRAM_ADMIN_ID"`
	RunMode string `yaml:"run_mode" envconfig:"TELEGRAM_RUN_MODE"`
	// APIURL points at a self-hosted Bot API server; empty uses api.telegram.org.
	APIURL string `yaml:"api_url" envconfig:"TELEGRAM_API_URL"`

	Webhook  WebhookConfig  `yaml:"webhook"`
	LongPoll LongPollConfig `yaml:"longpoll"`
}

// WebhookConfig specifies how Telegram reaches the bot.
type WebhookConfig struct {
	PublicURL   string `yaml:"public_url" envconfig:"WEBHOOK_URL"`
	SecretToken string `yaml:"secret_token" envconfig:"WEBHOOK_SECRET"`
	DropPending bool   `yaml:"drop_pending" envconfig:"WEBHOOK_DROP_PENDING"`
}

// LongPollConfig configures the polling fallback used for local runs.
type LongPollConfig struct {
	Timeout time.Duration `yaml:"timeout" envconfig:"TELEGRAM_LONGPOLL_TIMEOUT"`
}

// HTTPConfig configures the inbound HTTP server.
type HTTPConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// SessionConfig selects the session store backend.
type SessionConfig struct {
	Backend string      `yaml:"backend" envconfig:"SESSION_BACKEND"`
	Lock    string      `yaml:"lock" envconfig:"SESSION_LOCK"`
	Redis   RedisConfig `yaml:"redis"`
	Bolt    BoltConfig  `yaml:"bolt"`
}

// RedisConfig configures the redis session backend.
type RedisConfig struct {
	URL    string `yaml:"url" envconfig:"REDIS_URL"`
	Prefix string `yaml:"prefix" envconfig:"REDIS_PREFIX"`
}

// BoltConfig configures the bbolt session backend.
type BoltConfig struct {
	Path   string `yaml:"path" envconfig:"BOLT_PATH"`
	Bucket string `yaml:"bucket"`
}

// DatabaseConfig holds Postgres settings for the sql session backend.
type DatabaseConfig struct {
	Host           string `yaml:"host" envconfig:"DB_HOST"`
	Port           string `yaml:"port" envconfig:"DB_PORT"`
	User           string `yaml:"user" envconfig:"DB_USER"`
	Password       string `yaml:"password" envconfig:"DB_PASSWORD"`
	Name           string `yaml:"name" envconfig:"DB_NAME"`
	SSLMode        string `yaml:"sslmode" envconfig:"DB_SSLMODE"`
	MaxConnections int    `yaml:"max_connections" envconfig:"DB_MAX_CONNECTIONS"`
	MigrationsPath string `yaml:"migrations_path" envconfig:"DB_MIGRATIONS_PATH"`
	AutoMigrate    bool   `yaml:"auto_migrate" envconfig:"DB_AUTO_MIGRATE"`
}

// ImgflipConfig holds imgflip endpoints and credentials.
type ImgflipConfig struct {
	BaseURL    string `yaml:"base_url" envconfig:"IMGFLIP_BASE_URL"`
	APIURL     string `yaml:"api_url" envconfig:"IMGFLIP_API_URL"`
	Username   string `yaml:"username" envconfig:"IMGFLIP_USERNAME"`
	Password   string `yaml:"password" envconfig:"IMGFLIP_PASSWORD"`
	MaxResults int    `yaml:"max_results"`
}

// OpenAIConfig holds image generation settings.
type OpenAIConfig struct {
	BaseURL string `yaml:"base_url" envconfig:"OPENAI_BASE_URL"`
	Key     string `yaml:"key" envconfig:"OPENAI_KEY"`
	Model   string `yaml:"model" envconfig:"OPENAI_IMAGE_MODEL"`
	Size    string `yaml:"size"`
}

// ProvidersConfig groups the external meme and image providers.
type ProvidersConfig struct {
	Timeout time.Duration `yaml:"timeout" envconfig:"PROVIDER_TIMEOUT"`
	Imgflip ImgflipConfig `yaml:"imgflip"`
	OpenAI  OpenAIConfig  `yaml:"openai"`
}

// RenderConfig tunes the caption renderer.
type RenderConfig struct {
	FontPath     string  `yaml:"font_path" envconfig:"RENDER_FONT_PATH"`
	StrokeWidth  float64 `yaml:"stroke_width"`
	BottomMargin float64 `yaml:"bottom_margin"`
	JPEGQuality  int     `yaml:"jpeg_quality"`
}

// StagingConfig controls the on-disk image staging area.
type StagingConfig struct {
	Dir           string        `yaml:"dir" envconfig:"STAGING_DIR"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
	MaxAge        time.Duration `yaml:"max_age"`
}

// MetricsConfig controls the prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" envconfig:"METRICS_ENABLED"`
	Path    string `yaml:"path"`
}

// LoggingConfig defines logging related configuration.
type LoggingConfig struct {
	Level       string `yaml:"level" envconfig:"LOG_LEVEL"`
	Format      string `yaml:"format" envconfig:"LOG_FORMAT"`
	KeysOrder   string `yaml:"keys_order"`
	DebugSample string `yaml:"debug_sample"`
	Dir         string `yaml:"dir"`
	File        string `yaml:"file"`
	// DropOnFull discards log lines instead of blocking when the async queue is full.
	DropOnFull bool `yaml:"drop_on_full"`
	// Profile indicates environment profile such as "debug" or "prod".
	Profile string `yaml:"profile" envconfig:"LOG_PROFILE"`
}

// RateLimitConfig holds settings for per-user rate limiting.
// ExcludeUpdates accepts "callback", "message" and "photo".
type RateLimitConfig struct {
	IntervalMS     int      `yaml:"interval_ms" envconfig:"RATE_LIMIT_INTERVAL_MS"`
	ExcludeUpdates []string `yaml:"exclude_updates" envconfig:"RATE_LIMIT_EXCLUDE_UPDATES"`
}

// Config aggregates the whole process configuration.
type Config struct {
	Bot       BotConfig         `yaml:"bot"`
	HTTP      HTTPConfig        `yaml:"http"`
	Session   SessionConfig     `yaml:"session"`
	Database  DatabaseConfig    `yaml:"database"`
	Providers ProvidersConfig   `yaml:"providers"`
	Render    RenderConfig      `yaml:"render"`
	Staging   StagingConfig     `yaml:"staging"`
	Metrics   MetricsConfig     `yaml:"metrics"`
	Logging   LoggingConfig     `yaml:"logging"`
	RateLimit RateLimitConfig   `yaml:"rate_limit"`
	Messages  map[string]string `yaml:"messages" ignored:"true"`
}

const (
	// RunModeWebhook serves updates through the inbound HTTP server.
	RunModeWebhook = "webhook"
	// RunModeLongpoll pulls updates with getUpdates.
	RunModeLongpoll = "longpoll"
)

const (
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendBolt     = "bolt"
	BackendMemory   = "memory"

	LockNone   = "none"
	LockMemory = "memory"
	LockRedis  = "redis"
)

const (
	// UpdateCallback identifies callback updates for rate limit exclusions.
	UpdateCallback = "callback"
	// UpdateMessage identifies text messages for rate limit exclusions.
	UpdateMessage = "message"
	// UpdatePhoto identifies photo uploads for rate limit exclusions.
	UpdatePhoto = "photo"
)

// Load reads an optional .env, the YAML file at path and environment overrides.
// A missing YAML file is not an error: the bot can run from env alone.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("failed to parse YAML config: %w", err)
			}
		}
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}

	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates required fields and fills defaults.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}

	if strings.TrimSpace(cfg.Bot.Token) == "" {
		return fmt.Errorf("bot token is required (bot.token or TELEGRAM_KEY)")
	}

	rm := strings.ToLower(strings.TrimSpace(cfg.Bot.RunMode))
	if rm == "" {
		rm = RunModeWebhook
	}
	if rm == "polling" {
		rm = RunModeLongpoll
	}
	switch rm {
	case RunModeWebhook:
		if strings.TrimSpace(cfg.Bot.Webhook.PublicURL) == "" {
			return fmt.Errorf("bot.webhook.public_url is required when bot.run_mode is 'webhook'")
		}
	case RunModeLongpoll:
		if cfg.Bot.LongPoll.Timeout < 0 {
			return fmt.Errorf("bot.longpoll.timeout must be >= 0")
		}
		if cfg.Bot.LongPoll.Timeout == 0 {
			cfg.Bot.LongPoll.Timeout = 10 * time.Second
		}
	default:
		return fmt.Errorf("invalid bot.run_mode %q; allowed: webhook, longpoll", cfg.Bot.RunMode)
	}
	cfg.Bot.RunMode = rm

	if err := normalizeHTTP(&cfg.HTTP); err != nil {
		return err
	}
	if err := normalizeSession(&cfg.Session); err != nil {
		return err
	}
	if cfg.Session.Backend == BackendPostgres {
		normalizeDatabase(&cfg.Database)
	}
	normalizeProviders(&cfg.Providers)
	normalizeRender(&cfg.Render)
	if err := normalizeStaging(&cfg.Staging); err != nil {
		return err
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}

	allowed := map[string]struct{}{
		UpdateCallback: {},
		UpdateMessage:  {},
		UpdatePhoto:    {},
	}
	for i, v := range cfg.RateLimit.ExcludeUpdates {
		key := strings.ToLower(strings.TrimSpace(v))
		if key == "" {
			continue
		}
		if _, ok := allowed[key]; !ok {
			return fmt.Errorf("invalid rate_limit.exclude_updates value %q; allowed: callback, message, photo", v)
		}
		cfg.RateLimit.ExcludeUpdates[i] = key
	}
	return nil
}

func normalizeHTTP(h *HTTPConfig) error {
	if h.Port == 0 {
		h.Port = 3600
	}
	if h.Port < 0 || h.Port > 65535 {
		return fmt.Errorf("http.port %d is out of range", h.Port)
	}
	if h.ReadTimeout <= 0 {
		h.ReadTimeout = 10 * time.Second
	}
	if h.WriteTimeout <= 0 {
		h.WriteTimeout = 30 * time.Second
	}
	if h.IdleTimeout <= 0 {
		h.IdleTimeout = 60 * time.Second
	}
	if h.ShutdownTimeout <= 0 {
		h.ShutdownTimeout = 10 * time.Second
	}
	return nil
}

func normalizeSession(s *SessionConfig) error {
	s.Backend = strings.ToLower(strings.TrimSpace(s.Backend))
	if s.Backend == "" {
		s.Backend = BackendRedis
	}
	switch s.Backend {
	case BackendRedis:
		if strings.TrimSpace(s.Redis.URL) == "" {
			s.Redis.URL = "redis://localhost:6379/0"
		}
	case BackendBolt:
		if s.Bolt.Path == "" {
			s.Bolt.Path = "memebot.db"
		}
	case BackendPostgres, BackendMemory:
	default:
		return fmt.Errorf("invalid session.backend %q; allowed: redis, postgres, bolt, memory", s.Backend)
	}
	if s.Bolt.Bucket == "" {
		s.Bolt.Bucket = "sessions"
	}

	s.Lock = strings.ToLower(strings.TrimSpace(s.Lock))
	if s.Lock == "" {
		s.Lock = LockNone
	}
	switch s.Lock {
	case LockNone, LockMemory:
	case LockRedis:
		if s.Backend != BackendRedis {
			return fmt.Errorf("session.lock 'redis' requires session.backend 'redis'")
		}
	default:
		return fmt.Errorf("invalid session.lock %q; allowed: none, memory, redis", s.Lock)
	}
	return nil
}

func normalizeDatabase(d *DatabaseConfig) {
	if d.Host == "" {
		d.Host = "localhost"
	}
	if d.Port == "" {
		d.Port = "5432"
	}
	if d.SSLMode == "" {
		d.SSLMode = "disable"
	}
	if d.MaxConnections <= 0 {
		d.MaxConnections = 5
	}
	if d.MigrationsPath == "" {
		d.MigrationsPath = "migrations"
	}
}

func normalizeProviders(p *ProvidersConfig) {
	if p.Timeout <= 0 {
		p.Timeout = 60 * time.Second
	}
	if p.Imgflip.BaseURL == "" {
		p.Imgflip.BaseURL = "https://imgflip.com"
	}
	if p.Imgflip.APIURL == "" {
		p.Imgflip.APIURL = "https://api.imgflip.com"
	}
	p.Imgflip.BaseURL = strings.TrimRight(p.Imgflip.BaseURL, "/")
	p.Imgflip.APIURL = strings.TrimRight(p.Imgflip.APIURL, "/")
	if p.Imgflip.MaxResults <= 0 {
		p.Imgflip.MaxResults = 10
	}
	if p.OpenAI.BaseURL == "" {
		p.OpenAI.BaseURL = "https://api.openai.com/v1"
	}
	p.OpenAI.BaseURL = strings.TrimRight(p.OpenAI.BaseURL, "/")
	if p.OpenAI.Model == "" {
		p.OpenAI.Model = "dall-e-3"
	}
	if p.OpenAI.Size == "" {
		p.OpenAI.Size = "1024x1024"
	}
}

func normalizeRender(r *RenderConfig) {
	if r.StrokeWidth <= 0 {
		r.StrokeWidth = 5
	}
	if r.BottomMargin <= 0 {
		r.BottomMargin = 30
	}
	if r.JPEGQuality <= 0 || r.JPEGQuality > 100 {
		r.JPEGQuality = 90
	}
}

func normalizeStaging(s *StagingConfig) error {
	if s.Dir == "" {
		s.Dir = "./images"
	}
	if s.SweepInterval < 0 {
		return fmt.Errorf("staging.sweep_interval must be > 0")
	}
	if s.SweepInterval == 0 {
		s.SweepInterval = 5 * time.Minute
	}
	if s.MaxAge <= 0 {
		s.MaxAge = 5 * time.Minute
	}
	return nil
}
