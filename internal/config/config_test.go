package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
server:
  port: 9090
auth:
  enabled: true
  api_key: secret
scheduler:
  scan_interval_seconds: 30
  default_max_retries: 5
workers:
  count: 8
  idle_poll_ms: 250
  breaker_limit: 4
search:
  user_agent: newswatch-test
  language: de
  country: DE
  timeout_seconds: 20
  requests_per_second: 2
redis:
  addr: localhost:6379
  ttl_minutes: 60
archive:
  local_dir: /tmp/archive
logging:
  development: false
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Fatalf("expected port 9090, got %d", cfg.Server.Port)
	}
	if !cfg.Auth.Enabled || cfg.Auth.APIKey != "secret" {
		t.Fatalf("expected auth enabled with secret key")
	}
	if cfg.Scheduler.DefaultMaxRetries != 5 {
		t.Fatalf("expected scheduler overrides to apply, got %+v", cfg.Scheduler)
	}
	if cfg.Workers.Count != 8 || cfg.Workers.BreakerLimit != 4 {
		t.Fatalf("expected worker overrides to apply, got %+v", cfg.Workers)
	}
	if cfg.Search.Language != "de" || cfg.Search.Country != "DE" {
		t.Fatalf("expected search overrides to apply, got %+v", cfg.Search)
	}
	if cfg.Redis.Addr != "localhost:6379" || cfg.Redis.TTLMinutes != 60 {
		t.Fatalf("expected redis overrides to apply, got %+v", cfg.Redis)
	}
	if got := cfg.ScanInterval(); got != 30*time.Second {
		t.Fatalf("expected scan interval 30s, got %v", got)
	}
	if got := cfg.IdlePoll(); got != 250*time.Millisecond {
		t.Fatalf("expected idle poll 250ms, got %v", got)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Scheduler.ScanIntervalSeconds != 60 {
		t.Fatalf("expected default scan interval 60, got %d", cfg.Scheduler.ScanIntervalSeconds)
	}
	if cfg.Workers.Count != 4 {
		t.Fatalf("expected default worker count 4, got %d", cfg.Workers.Count)
	}
	if cfg.Archive.ContentType != "text/html; charset=utf-8" {
		t.Fatalf("expected default content type, got %q", cfg.Archive.ContentType)
	}
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base := Config{
		Server:    ServerConfig{Port: 8080},
		Scheduler: SchedulerConfig{ScanIntervalSeconds: 60, DefaultMaxRetries: 3},
		Workers:   WorkersConfig{Count: 4},
		Search:    SearchConfig{TimeoutSeconds: 15},
	}

	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{
			name: "invalid port",
			cfg: func() Config {
				c := base
				c.Server.Port = 0
				return c
			}(),
			want: "server.port",
		},
		{
			name: "invalid scan interval",
			cfg: func() Config {
				c := base
				c.Scheduler.ScanIntervalSeconds = 0
				return c
			}(),
			want: "scheduler.scan_interval_seconds",
		},
		{
			name: "invalid worker count",
			cfg: func() Config {
				c := base
				c.Workers.Count = 0
				return c
			}(),
			want: "workers.count",
		},
		{
			name: "invalid search timeout",
			cfg: func() Config {
				c := base
				c.Search.TimeoutSeconds = 0
				return c
			}(),
			want: "search.timeout_seconds",
		},
		{
			name: "auth missing api key",
			cfg: func() Config {
				c := base
				c.Auth.Enabled = true
				return c
			}(),
			want: "auth.api_key",
		},
		{
			name: "conflicting archive destinations",
			cfg: func() Config {
				c := base
				c.Archive.GCSBucket = "bucket"
				c.Archive.LocalDir = "/tmp"
				return c
			}(),
			want: "archive",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}
