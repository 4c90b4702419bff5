package config

import (
	"testing"
	"time"
)

func TestLoadBotFromEnv(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "token-123")
	t.Setenv("STOCKPIT_ADMIN_ROLES", "Market Admin, Quartermaster ,")
	t.Setenv("STOCKPIT_TICK_EVERY", "30s")
	t.Setenv("STOCKPIT_MAX_JITTER", "0.10")

	cfg, err := LoadBotFromEnv()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.AdminRoles) != 2 || cfg.AdminRoles[1] != "Quartermaster" {
		t.Fatalf("admin roles: %v", cfg.AdminRoles)
	}
	if cfg.TickEvery != 30*time.Second {
		t.Fatalf("tick every: %v", cfg.TickEvery)
	}
	if cfg.MaxJitter != 0.10 {
		t.Fatalf("max jitter: %v", cfg.MaxJitter)
	}
	if cfg.Drift != DefaultDrift {
		t.Fatalf("drift default: %v", cfg.Drift)
	}
}

func TestLoadBotFromEnvRequiresToken(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "")
	if _, err := LoadBotFromEnv(); err == nil {
		t.Fatal("expected error without DISCORD_TOKEN")
	}
}

func TestBadDurationFallsBack(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "token-123")
	t.Setenv("STOCKPIT_TICK_EVERY", "not-a-duration")
	cfg, err := LoadBotFromEnv()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.TickEvery != DefaultTickEvery {
		t.Fatalf("tick every: %v", cfg.TickEvery)
	}
}
