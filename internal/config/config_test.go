package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadWithEnvAppliesOverridesAndDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
env: staging
server:
  port: "9090"
redis:
  addr: localhost:6379
quiz:
  ttl: 5m
submission:
  guard_ttl: 10s
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("APP_ENV", "")
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("DATABASE_URL", "postgres://academy@localhost/academy")
	t.Setenv("REDIS_DB", "3")

	cfg, err := LoadWithEnv(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Env != "staging" || cfg.Server.Port != "9090" || cfg.Redis.Addr != "localhost:6379" {
		t.Fatalf("unexpected file values %+v", cfg)
	}
	if cfg.Postgres.URL != "postgres://academy@localhost/academy" || cfg.Redis.DB != 3 {
		t.Fatalf("env overrides not applied %+v", cfg)
	}
	if cfg.Leaderboard.Size != 10 || cfg.RabbitMQ.Exchange != "academy-events" {
		t.Fatalf("defaults not applied %+v", cfg)
	}
	if got := TTLDuration(cfg.Submission.GuardTTL, time.Minute); got != 10*time.Second {
		t.Fatalf("expected 10s guard ttl, got %s", got)
	}
}

func TestLoadWithEnvMissingFile(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	cfg, err := LoadWithEnv(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("missing file should fall back to defaults: %v", err)
	}
	if cfg.Env != "dev" || cfg.Leaderboard.Size != 10 {
		t.Fatalf("unexpected config %+v", cfg)
	}
}

func TestLoadRejectsInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("server: [unclosed"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadWithEnv(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestTTLDuration(t *testing.T) {
	if got := TTLDuration("", time.Minute); got != time.Minute {
		t.Fatalf("expected fallback, got %s", got)
	}
	if got := TTLDuration("garbage", time.Minute); got != time.Minute {
		t.Fatalf("expected fallback for invalid value, got %s", got)
	}
	if got := TTLDuration("90s", time.Minute); got != 90*time.Second {
		t.Fatalf("expected 90s, got %s", got)
	}
}
