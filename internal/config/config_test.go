package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadReadsAllSections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `server:
  port: "9090"
redis:
  addr: localhost:6379
  ttl: 30m
postgres:
  url: postgres://quiz@localhost/quizdb
quiz:
  ttl: 5m
  file: quizzes.yaml
game:
  defaultTimerSeconds: 20
  codeAttempts: 3
auth:
  jwtSecret: from-file
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("JWT_SECRET", "")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "9090" || cfg.Redis.Addr != "localhost:6379" || cfg.Quiz.File != "quizzes.yaml" {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.Game.DefaultTimerSeconds != 20 || cfg.Game.CodeAttempts != 3 {
		t.Fatalf("unexpected game section %+v", cfg.Game)
	}
	if cfg.Auth.JWTSecret != "from-file" {
		t.Fatalf("expected jwt secret from file, got %q", cfg.Auth.JWTSecret)
	}
}

func TestLoadEnvOverridesSecret(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("auth:\n  jwtSecret: from-file\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("JWT_SECRET", "from-env")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Auth.JWTSecret != "from-env" {
		t.Fatalf("expected env override, got %q", cfg.Auth.JWTSecret)
	}
}

func TestTTLDuration(t *testing.T) {
	if got := TTLDuration("", time.Minute); got != time.Minute {
		t.Fatalf("expected fallback, got %v", got)
	}
	if got := TTLDuration("nonsense", time.Minute); got != time.Minute {
		t.Fatalf("expected fallback on parse error, got %v", got)
	}
	if got := TTLDuration("90s", time.Minute); got != 90*time.Second {
		t.Fatalf("expected 90s, got %v", got)
	}
}
