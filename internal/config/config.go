package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App     AppConfig     `yaml:"app"`
	Logging LoggingConfig `yaml:"logging"`
	Ingest  IngestConfig  `yaml:"ingest"`
	Store   StoreConfig   `yaml:"store"`
	Stores  StoresConfig  `yaml:"stores"`
	PubSub  PubSubConfig  `yaml:"pubsub"`
	API     APIConfig     `yaml:"api"`
	Mirror  MirrorConfig  `yaml:"mirror"`
	Notify  NotifyConfig  `yaml:"notify"`
}

type AppConfig struct {
	InstanceID      string        `yaml:"instance_id"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug|info|warn|error
	Format string `yaml:"format"` // json|console
}

// AuthConfig guards the webhook write endpoint. An empty token leaves
// the endpoint open; only do that for private deployments.
type AuthConfig struct {
	Mode     string `yaml:"mode"` // none|token|jwt
	Token    string `yaml:"token"`
	Issuer   string `yaml:"issuer"`   // jwt mode only
	Audience string `yaml:"audience"` // jwt mode only
}

type DedupeConfig struct {
	Mode         string        `yaml:"mode"` // none|memory|redis
	TTL          time.Duration `yaml:"ttl"`
	Prefix       string        `yaml:"prefix"`
	JanitorEvery time.Duration `yaml:"janitor_every"`
}

type IngestConfig struct {
	Auth   AuthConfig   `yaml:"auth"`
	Dedupe DedupeConfig `yaml:"dedupe"`
}

type StoreConfig struct {
	Path string `yaml:"path"` // JSONL event log
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type ClickHouseWriterConfig struct {
	BatchMaxRows     int           `yaml:"batch_max_rows"`
	BatchMaxInterval time.Duration `yaml:"batch_max_interval"`
	MaxRetries       int           `yaml:"max_retries"`
	RetryBackoff     time.Duration `yaml:"retry_backoff"`
}

// ClickHouseConfig enables the optional analytics archive when DSN is
// non-empty.
type ClickHouseConfig struct {
	DSN    string                 `yaml:"dsn"`
	Writer ClickHouseWriterConfig `yaml:"writer"`
}

type StoresConfig struct {
	Redis      RedisConfig      `yaml:"redis"`
	ClickHouse ClickHouseConfig `yaml:"clickhouse"`
}

// NATSConfig enables live fan-out when URL is non-empty.
type NATSConfig struct {
	URL             string `yaml:"url"`
	BroadcastPrefix string `yaml:"broadcast_prefix"`
}

type PubSubConfig struct {
	NATS NATSConfig `yaml:"nats"`
}

type HTTPConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
}

type CORSConfig struct {
	Origins []string `yaml:"origins"`
	Methods []string `yaml:"methods"`
	Headers []string `yaml:"headers"`
}

type RateLimitConfig struct {
	Enabled      bool          `yaml:"enabled"`
	RefillPerSec int           `yaml:"refill_per_sec"`
	Burst        int           `yaml:"burst"`
	TTL          time.Duration `yaml:"ttl"`
}

type APIConfig struct {
	HTTP      HTTPConfig      `yaml:"http"`
	CORS      CORSConfig      `yaml:"cors"`
	RateLimit RateLimitConfig `yaml:"ratelimit"`
}

// MirrorConfig points the client-side mirror at an explorer API.
type MirrorConfig struct {
	Enabled        bool          `yaml:"enabled"`
	APIBase        string        `yaml:"api_base"` // e.g. https://api.hiro.so
	Contract       string        `yaml:"contract"` // <address>.<name>
	Window         int           `yaml:"window"`   // most recent N events to pull
	PageLimit      int           `yaml:"page_limit"`
	Interval       time.Duration `yaml:"interval"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// NotifyConfig drives the notification poller for one viewer address.
type NotifyConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Viewer        string        `yaml:"viewer"`
	WatermarkPath string        `yaml:"watermark_path"`
	Interval      time.Duration `yaml:"interval"`
}

func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err = yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.App.ShutdownTimeout <= 0 {
		c.App.ShutdownTimeout = 10 * time.Second
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Store.Path == "" {
		c.Store.Path = "data/events.jsonl"
	}
	if c.API.HTTP.Addr == "" {
		c.API.HTTP.Addr = ":3100"
	}
	if c.API.HTTP.ReadTimeout <= 0 {
		c.API.HTTP.ReadTimeout = 15 * time.Second
	}
	if c.API.HTTP.WriteTimeout <= 0 {
		c.API.HTTP.WriteTimeout = 15 * time.Second
	}
	if c.API.HTTP.IdleTimeout <= 0 {
		c.API.HTTP.IdleTimeout = 60 * time.Second
	}
	if c.Ingest.Dedupe.Mode == "" {
		c.Ingest.Dedupe.Mode = "none"
	}
	if c.Ingest.Dedupe.TTL <= 0 {
		c.Ingest.Dedupe.TTL = 24 * time.Hour
	}
	if c.Mirror.Window <= 0 {
		c.Mirror.Window = 50
	}
	if c.Mirror.PageLimit <= 0 {
		c.Mirror.PageLimit = 50
	}
	if c.Mirror.Interval <= 0 {
		c.Mirror.Interval = 30 * time.Second
	}
	if c.Mirror.RequestTimeout <= 0 {
		c.Mirror.RequestTimeout = 10 * time.Second
	}
	if c.Notify.Interval <= 0 {
		c.Notify.Interval = 30 * time.Second
	}
	if c.Notify.WatermarkPath == "" {
		c.Notify.WatermarkPath = "data/last_seen.json"
	}
}
