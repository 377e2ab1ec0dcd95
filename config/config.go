package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Log        LogConfig        `yaml:"log"`
	Codec      CodecConfig      `yaml:"codec"`
	CRM        CRMConfig        `yaml:"crm"`
	Queue      QueueConfig      `yaml:"queue"`
	Redis      RedisConfig      `yaml:"redis"`
	Lmstfy     LmstfyConfig     `yaml:"lmstfy"`
	Sync       SyncConfig       `yaml:"sync"`
	Reconcile  ReconcileConfig  `yaml:"reconcile"`
	Push       PushConfig       `yaml:"push"`
	WorkerPool WorkerPoolConfig `yaml:"worker_pool"`
}

// ServerConfig holds the HTTP server configuration.
type ServerConfig struct {
	Port            int     `yaml:"port"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int     `yaml:"rate_limit_burst"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
	AdminToken      string  `yaml:"admin_token"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	Driver                 string `yaml:"driver"` // postgres | mysql | sqlite
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
	LogLevel               string `yaml:"log_level"`
}

// LogConfig controls the application logger.
type LogConfig struct {
	Level string `yaml:"level"`
}

// CodecConfig holds the key material for the device channel.
// All keys are base64: an 8 byte DES secret, a PKCS8 DER private key and
// the partner's SPKI DER public key.
type CodecConfig struct {
	DeviceID      string `yaml:"device_id"`
	SecretKey     string `yaml:"secret_key"`
	PrivateKey    string `yaml:"private_key"`
	PublicKey     string `yaml:"public_key"`
	OrderNoPrefix string `yaml:"order_no_prefix"`
}

// CRMConfig describes the external CRM endpoint and its credentials.
type CRMConfig struct {
	BaseURL        string        `yaml:"base_url"`
	TokenURL       string        `yaml:"token_url"`
	Username       string        `yaml:"username"`
	Password       string        `yaml:"password"`
	ClientID       string        `yaml:"client_id"`
	Tenant         string        `yaml:"tenant"`
	TimeoutSeconds int           `yaml:"timeout_seconds"`
	Timeout        time.Duration `yaml:"-"`
	HTTPProxy      string        `yaml:"http_proxy"`
}

// QueueConfig selects the queue driver used by the sync pipeline.
type QueueConfig struct {
	Driver      string        `yaml:"driver"` // db | redis | lmstfy
	Prefix      string        `yaml:"prefix"`
	DelayMillis int           `yaml:"delay_millis"`
	Delay       time.Duration `yaml:"-"`
}

// RedisConfig holds the Redis connection used by the redis queue driver,
// lmstfy key collapsing and the station board publisher.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// LmstfyConfig holds the lmstfy broker connection.
type LmstfyConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	Namespace      string `yaml:"namespace"`
	Token          string `yaml:"token"`
	TTRSeconds     int    `yaml:"ttr_seconds"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// SyncConfig tunes the per-queue sync workers.
type SyncConfig struct {
	RatePerSec         float64       `yaml:"rate_per_sec"`
	PollIntervalMillis int           `yaml:"poll_interval_millis"`
	PollInterval       time.Duration `yaml:"-"`
	JobTimeoutSeconds  int           `yaml:"job_timeout_seconds"`
	JobTimeout         time.Duration `yaml:"-"`
}

// ReconcileConfig controls the periodic reconciliation sweep.
type ReconcileConfig struct {
	Enabled         bool          `yaml:"enabled"`
	IntervalMinutes int           `yaml:"interval_minutes"`
	Interval        time.Duration `yaml:"-"`
	BatchSize       int           `yaml:"batch_size"`
}

// PushConfig holds the VAPID keys for web push notifications.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// WorkerPoolConfig holds the configuration for the notification worker pool.
type WorkerPoolConfig struct {
	Size int `yaml:"size"`
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
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 5
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 5
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
	}
	if cfg.Database.LogLevel == "" {
		cfg.Database.LogLevel = "warn"
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}

	if cfg.Codec.OrderNoPrefix == "" {
		cfg.Codec.OrderNoPrefix = "WASH000002"
	}

	if cfg.CRM.TimeoutSeconds <= 0 {
		cfg.CRM.TimeoutSeconds = 10
	}
	cfg.CRM.Timeout = time.Duration(cfg.CRM.TimeoutSeconds) * time.Second

	if cfg.Queue.Driver == "" {
		cfg.Queue.Driver = "db"
	}
	if cfg.Queue.Prefix == "" {
		cfg.Queue.Prefix = "wash"
	}
	if cfg.Queue.DelayMillis < 0 {
		cfg.Queue.DelayMillis = 0
	} else if cfg.Queue.DelayMillis == 0 {
		cfg.Queue.DelayMillis = 1000
	}
	cfg.Queue.Delay = time.Duration(cfg.Queue.DelayMillis) * time.Millisecond

	if cfg.Lmstfy.TTRSeconds <= 0 {
		cfg.Lmstfy.TTRSeconds = 60
	}
	if cfg.Lmstfy.TimeoutSeconds <= 0 {
		cfg.Lmstfy.TimeoutSeconds = 3
	}

	if cfg.Sync.RatePerSec <= 0 {
		cfg.Sync.RatePerSec = 1
	}
	if cfg.Sync.PollIntervalMillis <= 0 {
		cfg.Sync.PollIntervalMillis = 500
	}
	cfg.Sync.PollInterval = time.Duration(cfg.Sync.PollIntervalMillis) * time.Millisecond
	if cfg.Sync.JobTimeoutSeconds <= 0 {
		cfg.Sync.JobTimeoutSeconds = 60
	}
	cfg.Sync.JobTimeout = time.Duration(cfg.Sync.JobTimeoutSeconds) * time.Second

	if cfg.Reconcile.IntervalMinutes <= 0 {
		cfg.Reconcile.IntervalMinutes = 10
	}
	cfg.Reconcile.Interval = time.Duration(cfg.Reconcile.IntervalMinutes) * time.Minute
	if cfg.Reconcile.BatchSize <= 0 {
		cfg.Reconcile.BatchSize = 100
	}

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}

	if cfg.WorkerPool.Size <= 0 {
		log.Printf("worker_pool.size is not set or invalid; defaulting to 1")
		cfg.WorkerPool.Size = 1
	}
}
