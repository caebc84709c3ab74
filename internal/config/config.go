// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Workers   WorkersConfig   `mapstructure:"workers"`
	Search    SearchConfig    `mapstructure:"search"`
	Extractor ExtractorConfig `mapstructure:"extractor"`
	DB        DBConfig        `mapstructure:"db"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Archive   ArchiveConfig   `mapstructure:"archive"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// SchedulerConfig governs the schedule scanner cadence and job defaults.
type SchedulerConfig struct {
	ScanIntervalSeconds int `mapstructure:"scan_interval_seconds"`
	DefaultMaxRetries   int `mapstructure:"default_max_retries"`
}

// WorkersConfig sizes the executor pool.
type WorkersConfig struct {
	Count          int `mapstructure:"count"`
	IdlePollMs     int `mapstructure:"idle_poll_ms"`
	BreakerLimit   int `mapstructure:"breaker_limit"`
	ThrottleBaseMs int `mapstructure:"throttle_base_ms"`
}

// SearchConfig configures the search provider client.
type SearchConfig struct {
	UserAgent         string  `mapstructure:"user_agent"`
	Language          string  `mapstructure:"language"`
	Country           string  `mapstructure:"country"`
	TimeoutSeconds    int     `mapstructure:"timeout_seconds"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// ExtractorConfig configures the article extraction fetcher.
type ExtractorConfig struct {
	UserAgent      string `mapstructure:"user_agent"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// DBConfig controls access to the relational database.
type DBConfig struct {
	DSN          string `mapstructure:"dsn"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MinConns     int    `mapstructure:"min_conns"`
}

// RedisConfig configures the advisory dedup cache. Empty Addr disables it.
type RedisConfig struct {
	Addr       string `mapstructure:"addr"`
	Password   string `mapstructure:"password"`
	DB         int    `mapstructure:"db"`
	TTLMinutes int    `mapstructure:"ttl_minutes"`
}

// ArchiveConfig sets raw HTML archival destinations. All empty disables it.
type ArchiveConfig struct {
	GCSBucket   string `mapstructure:"gcs_bucket"`
	LocalDir    string `mapstructure:"local_dir"`
	Prefix      string `mapstructure:"prefix"`
	ContentType string `mapstructure:"content_type"`
}

// PubSubConfig holds metadata for crawl event notifications. Empty ProjectID
// disables publishing.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("NEWSWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("scheduler.scan_interval_seconds", 60)
	v.SetDefault("scheduler.default_max_retries", 3)
	v.SetDefault("workers.count", 4)
	v.SetDefault("workers.idle_poll_ms", 500)
	v.SetDefault("workers.breaker_limit", 3)
	v.SetDefault("workers.throttle_base_ms", 1000)
	v.SetDefault("search.user_agent", "newswatch-bot/0.1")
	v.SetDefault("search.language", "en")
	v.SetDefault("search.country", "US")
	v.SetDefault("search.timeout_seconds", 15)
	v.SetDefault("search.requests_per_second", 1)
	v.SetDefault("search.burst", 1)
	v.SetDefault("extractor.user_agent", "newswatch-bot/0.1")
	v.SetDefault("extractor.timeout_seconds", 30)
	v.SetDefault("db.max_open_conns", 10)
	v.SetDefault("db.min_conns", 2)
	v.SetDefault("redis.ttl_minutes", 1440)
	v.SetDefault("archive.prefix", "articles")
	v.SetDefault("archive.content_type", "text/html; charset=utf-8")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Scheduler.ScanIntervalSeconds <= 0 {
		return fmt.Errorf("scheduler.scan_interval_seconds must be > 0")
	}
	if c.Scheduler.DefaultMaxRetries < 0 {
		return fmt.Errorf("scheduler.default_max_retries must be >= 0")
	}
	if c.Workers.Count <= 0 {
		return fmt.Errorf("workers.count must be > 0")
	}
	if c.Search.TimeoutSeconds <= 0 {
		return fmt.Errorf("search.timeout_seconds must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	if c.Archive.GCSBucket != "" && c.Archive.LocalDir != "" {
		return fmt.Errorf("archive.gcs_bucket and archive.local_dir are mutually exclusive")
	}
	return nil
}

// ScanInterval returns the scanner cadence as a duration.
func (c Config) ScanInterval() time.Duration {
	return time.Duration(c.Scheduler.ScanIntervalSeconds) * time.Second
}

// IdlePoll returns how long a worker sleeps when the pending set is empty.
func (c Config) IdlePoll() time.Duration {
	return time.Duration(c.Workers.IdlePollMs) * time.Millisecond
}
