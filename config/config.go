package config

import (
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Push       PushConfig       `yaml:"push"`
	Delivery   DeliveryConfig   `yaml:"delivery"`
	Reconciler ReconcilerConfig `yaml:"reconciler"`
	WorkerPool WorkerPoolConfig `yaml:"worker_pool"`
	GC         GCConfig         `yaml:"gc"`
}

// ServerConfig holds the HTTP server configuration.
type ServerConfig struct {
	Port            int     `yaml:"port"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int     `yaml:"rate_limit_burst"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
}

// DatabaseConfig holds the registry database connection configuration.
type DatabaseConfig struct {
	Driver                 string `yaml:"driver"` // "postgres" (default) or "sqlite"
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
}

// PushConfig holds the VAPID keys for web push notifications.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// DeliveryConfig points at the push-delivery backend that issues and
// revokes delivery tokens.
type DeliveryConfig struct {
	BaseURL        string            `yaml:"base_url"`
	Headers        map[string]string `yaml:"headers"`
	TimeoutSeconds int               `yaml:"timeout_seconds"`
}

// ReconcilerConfig tunes the registration reconciliation loop.
type ReconcilerConfig struct {
	RefreshThresholdHours int           `yaml:"refresh_threshold_hours"`
	RefreshThreshold      time.Duration `yaml:"-"` // Ignored by YAML parser
	ReadyTimeoutSeconds   int           `yaml:"ready_timeout_seconds"`
	ReadyTimeout          time.Duration `yaml:"-"`
}

// WorkerPoolConfig holds the configuration for the notification worker pool.
type WorkerPoolConfig struct {
	Size int `yaml:"size"`
}

// GCConfig controls server-side garbage collection of registrations whose
// owning device never came back to reap them.
type GCConfig struct {
	Enabled       bool          `yaml:"enabled"`
	GraceDays     int           `yaml:"grace_days"`
	Grace         time.Duration `yaml:"-"`
	IntervalHours int           `yaml:"interval_hours"`
	Interval      time.Duration `yaml:"-"`
}

// Load reads the configuration from the given path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}

	if cfg.Delivery.TimeoutSeconds <= 0 {
		cfg.Delivery.TimeoutSeconds = 30
	}

	if cfg.Reconciler.RefreshThresholdHours <= 0 {
		cfg.Reconciler.RefreshThresholdHours = 24
	}
	cfg.Reconciler.RefreshThreshold = time.Duration(cfg.Reconciler.RefreshThresholdHours) * time.Hour

	if cfg.Reconciler.ReadyTimeoutSeconds <= 0 {
		cfg.Reconciler.ReadyTimeoutSeconds = 15
	}
	cfg.Reconciler.ReadyTimeout = time.Duration(cfg.Reconciler.ReadyTimeoutSeconds) * time.Second

	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 5
	}

	if cfg.GC.GraceDays <= 0 {
		cfg.GC.GraceDays = 90
	}
	cfg.GC.Grace = time.Duration(cfg.GC.GraceDays) * 24 * time.Hour
	if cfg.GC.IntervalHours <= 0 {
		cfg.GC.IntervalHours = 24
	}
	cfg.GC.Interval = time.Duration(cfg.GC.IntervalHours) * time.Hour

	if cfg.WorkerPool.Size <= 0 {
		log.Printf("worker_pool.size is not set or invalid; defaulting to 1")
		cfg.WorkerPool.Size = 1
	}

	return &cfg, nil
}
