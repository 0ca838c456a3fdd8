package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type HTTPConfig struct {
	Port         int           `yaml:"port"`
	AdminAPIKey  string        `yaml:"admin_api_key"`
	JWTSecret    string        `yaml:"jwt_secret"`
	SecureCookie bool          `yaml:"secure_cookie"`
	SessionTTL   time.Duration `yaml:"session_ttl"`
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type PaymentConfig struct {
	MercadoPago struct {
		BaseURL         string `yaml:"base_url"` // override for tests/sandbox proxies
		NotificationURL string `yaml:"notification_url"`
		BackURL         string `yaml:"back_url"`
	} `yaml:"mercadopago"`
	Timeout time.Duration `yaml:"timeout"` // bound on every gateway call
}

type SchedulerConfig struct {
	RetryInterval    time.Duration `yaml:"retry_interval"`
	RetryBatchSize   int           `yaml:"retry_batch_size"`
	ExpiryInterval   time.Duration `yaml:"expiry_interval"`
	ReminderInterval time.Duration `yaml:"reminder_interval"`
	ReminderHorizons []int         `yaml:"reminder_horizons"` // days before end date
}

type CollabConfig struct {
	NotifierURL   string `yaml:"notifier_url"`
	MembershipURL string `yaml:"membership_url"`
	APIKey        string `yaml:"api_key"`
}

type Config struct {
	Log       LogConfig       `yaml:"log"`
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Payment   PaymentConfig   `yaml:"payment"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Collab    CollabConfig    `yaml:"collab"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	// defaults
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 8080
	}
	if cfg.HTTP.SessionTTL <= 0 {
		cfg.HTTP.SessionTTL = 30 * time.Minute
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	cfg.Redis.TTL = normalizeTTL(cfg.Redis.TTL)
	if cfg.Payment.Timeout <= 0 {
		cfg.Payment.Timeout = 10 * time.Second
	}
	if cfg.Scheduler.RetryInterval <= 0 {
		cfg.Scheduler.RetryInterval = 5 * time.Minute
	}
	if cfg.Scheduler.RetryBatchSize <= 0 {
		cfg.Scheduler.RetryBatchSize = 10
	}
	if cfg.Scheduler.ExpiryInterval <= 0 {
		cfg.Scheduler.ExpiryInterval = 24 * time.Hour
	}
	if cfg.Scheduler.ReminderInterval <= 0 {
		cfg.Scheduler.ReminderInterval = 24 * time.Hour
	}
	if len(cfg.Scheduler.ReminderHorizons) == 0 {
		cfg.Scheduler.ReminderHorizons = []int{7, 3, 1}
	}

	// Minimal validation
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is required")
	}
	if cfg.Payment.MercadoPago.NotificationURL == "" {
		return nil, errors.New("payment.mercadopago.notification_url is required")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Hour
	}
	return d
}
