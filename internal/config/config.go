// File: internal/config/config.go
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
	Port      int    `yaml:"port"`
	JWTSecret string `yaml:"jwt_secret"`
}

type DatabaseConfig struct {
	URL           string `yaml:"url"`
	MigrationsDir string `yaml:"migrations_dir"`
}

type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type PaymentConfig struct {
	Paymob struct {
		SecretKey     string `yaml:"secret_key"`
		PublicKey     string `yaml:"public_key"`
		HMACSecret    string `yaml:"hmac_secret"`
		IntegrationID string `yaml:"integration_id"`
		IntentionURL  string `yaml:"intention_url"`
		CheckoutURL   string `yaml:"checkout_url"`
	} `yaml:"paymob"`
	Currency string `yaml:"currency"`
}

type MailConfig struct {
	APIURL   string `yaml:"api_url"`
	APIKey   string `yaml:"api_key"`
	From     string `yaml:"from"`
	FromName string `yaml:"from_name"`
	Disabled bool   `yaml:"disabled"` // noop sender for dev
}

type SweepConfig struct {
	ExpiryInterval     time.Duration `yaml:"expiry_interval"`
	JanitorInterval    time.Duration `yaml:"janitor_interval"`
	StandingInterval   time.Duration `yaml:"standing_interval"`
	AutoResumeInterval time.Duration `yaml:"auto_resume_interval"`
	BatchSize          int           `yaml:"batch_size"`
	BatchDelay         time.Duration `yaml:"batch_delay"`
	MailDelay          time.Duration `yaml:"mail_delay"`
}

type Config struct {
	Log      LogConfig      `yaml:"log"`
	HTTP     HTTPConfig     `yaml:"http"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Payment  PaymentConfig  `yaml:"payment"`
	Mail     MailConfig     `yaml:"mail"`
	Sweep    SweepConfig    `yaml:"sweep"`

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
	if cfg.Database.MigrationsDir == "" {
		cfg.Database.MigrationsDir = "migrations"
	}
	if cfg.Payment.Currency == "" {
		cfg.Payment.Currency = "SAR"
	}
	if cfg.Sweep.ExpiryInterval <= 0 {
		cfg.Sweep.ExpiryInterval = 24 * time.Hour
	}
	if cfg.Sweep.JanitorInterval <= 0 {
		cfg.Sweep.JanitorInterval = 7 * 24 * time.Hour
	}
	if cfg.Sweep.StandingInterval <= 0 {
		cfg.Sweep.StandingInterval = 24 * time.Hour
	}
	if cfg.Sweep.AutoResumeInterval <= 0 {
		cfg.Sweep.AutoResumeInterval = time.Hour
	}
	if cfg.Sweep.BatchSize <= 0 {
		cfg.Sweep.BatchSize = 100
	}
	if cfg.Sweep.BatchDelay <= 0 {
		cfg.Sweep.BatchDelay = 2 * time.Second
	}
	if cfg.Sweep.MailDelay <= 0 {
		cfg.Sweep.MailDelay = 100 * time.Millisecond
	}

	// Minimal validation
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is required")
	}
	if cfg.HTTP.JWTSecret == "" {
		return nil, errors.New("http.jwt_secret is required")
	}
	if !dev && cfg.Payment.Paymob.HMACSecret == "" {
		return nil, errors.New("payment.paymob.hmac_secret is required")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}
