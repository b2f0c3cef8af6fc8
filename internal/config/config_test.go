package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadRequiresToken(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("DISCORD_TOKEN", "")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error without token")
	}
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte("log_level: debug\ndatabase:\n  driver: pgx\n  dsn: postgres://localhost/warden\ngiveaway:\n  max_winners: 5\n")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CONFIG_PATH", path)
	t.Setenv("DISCORD_TOKEN", "token")
	t.Setenv("GIVEAWAY_MAX_WINNERS", "7")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("expected debug level, got %q", cfg.LogLevel)
	}
	if cfg.Database.Driver != "postgres" {
		t.Fatalf("expected postgres driver, got %q", cfg.Database.Driver)
	}
	if cfg.Giveaway.MaxWinners != 7 {
		t.Fatalf("expected env override 7, got %d", cfg.Giveaway.MaxWinners)
	}
	if cfg.Giveaway.RefreshSeconds != 10 {
		t.Fatalf("expected default refresh 10, got %d", cfg.Giveaway.RefreshSeconds)
	}
}

func TestLoadRejectsBadHierarchy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte("staff:\n  hierarchy: [Trainee, Owner]\n  baseline_role: Member\n")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CONFIG_PATH", path)
	t.Setenv("DISCORD_TOKEN", "token")

	if _, err := Load(); err == nil {
		t.Fatalf("expected hierarchy validation error")
	}
}

func TestBuildLogger(t *testing.T) {
	logger, err := BuildLogger("WARN")
	if err != nil {
		t.Fatalf("build logger: %v", err)
	}
	if logger.Core().Enabled(parseLevel("info")) {
		t.Fatalf("info should be disabled at warn level")
	}
}
