package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Market defaults match the original simulation parameters: a tick every
// 10 minutes, at most +/-5% jitter and +/-0.5% drift per tick.
const (
	DefaultTickEvery = 600 * time.Second
	DefaultMaxJitter = 0.05
	DefaultDrift     = 0.01
)

type BotConfig struct {
	DBPath       string
	DiscordToken string
	GuildID      string
	AdminRoles   []string
	APIAddr      string
	TickEvery    time.Duration
	MaxJitter    float64
	Drift        float64
}

type CtlConfig struct {
	DBPath    string
	MaxJitter float64
	Drift     float64
}

func LoadBotFromEnv() (BotConfig, error) {
	cfg := BotConfig{
		DBPath:       envDefault("STOCKPIT_DB_PATH", "data/stocks.db"),
		DiscordToken: strings.TrimSpace(os.Getenv("DISCORD_TOKEN")),
		GuildID:      strings.TrimSpace(os.Getenv("STOCKPIT_GUILD_ID")),
		AdminRoles:   envListDefault("STOCKPIT_ADMIN_ROLES", []string{"Market Admin"}),
		APIAddr:      envDefault("STOCKPIT_API_ADDR", ":8080"),
		TickEvery:    envDurationDefault("STOCKPIT_TICK_EVERY", DefaultTickEvery),
		MaxJitter:    envFloatDefault("STOCKPIT_MAX_JITTER", DefaultMaxJitter),
		Drift:        envFloatDefault("STOCKPIT_DRIFT", DefaultDrift),
	}
	if cfg.DiscordToken == "" {
		return cfg, fmt.Errorf("DISCORD_TOKEN is required")
	}
	return cfg, nil
}

func LoadCtlFromEnv() CtlConfig {
	return CtlConfig{
		DBPath:    envDefault("STOCKPIT_DB_PATH", "data/stocks.db"),
		MaxJitter: envFloatDefault("STOCKPIT_MAX_JITTER", DefaultMaxJitter),
		Drift:     envFloatDefault("STOCKPIT_DRIFT", DefaultDrift),
	}
}

func envDefault(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envListDefault(key string, fallback []string) []string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

func envDurationDefault(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func envFloatDefault(key string, fallback float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}
