package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"stockpit/internal/api"
	"stockpit/internal/bot"
	"stockpit/internal/config"
	"stockpit/internal/ledger"
	"stockpit/internal/market"
	"stockpit/internal/trading"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if strings.EqualFold(strings.TrimSpace(os.Getenv("STOCKPIT_RUN_ONCE")), "true") {
		runOnce(ctx, logger)
		return
	}

	cfg, err := config.LoadBotFromEnv()
	if err != nil {
		logger.Error("load config", "err", err)
		os.Exit(1)
	}

	store, err := ledger.Open(cfg.DBPath, logger)
	if err != nil {
		logger.Error("open ledger failed", "err", err)
		os.Exit(1)
	}
	defer store.Close()

	engine := trading.NewEngine(store, logger)
	sim := market.New(store, logger, cfg.TickEvery, cfg.MaxJitter, cfg.Drift)

	b, err := bot.New(cfg.DiscordToken, engine, logger, cfg.GuildID, cfg.AdminRoles)
	if err != nil {
		logger.Error("create bot failed", "err", err)
		os.Exit(1)
	}
	if err := b.Start(); err != nil {
		logger.Error("start bot failed", "err", err)
		os.Exit(1)
	}
	defer b.Stop()

	// The simulation only starts ticking once the gateway is serving.
	go sim.Run(ctx, b.Ready())

	server := api.New(logger, engine)
	httpServer := &http.Server{
		Addr:              cfg.APIAddr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	logger.Info("stockpit listening", "addr", cfg.APIAddr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server failed", "err", err)
		os.Exit(1)
	}
}

// runOnce performs a single market tick against the configured store and
// exits. Useful for cron-style deployments and manual nudges.
func runOnce(ctx context.Context, logger *slog.Logger) {
	cfg := config.LoadCtlFromEnv()
	store, err := ledger.Open(cfg.DBPath, logger)
	if err != nil {
		logger.Error("open ledger failed", "err", err)
		os.Exit(1)
	}
	defer store.Close()

	sim := market.New(store, logger, time.Minute, cfg.MaxJitter, cfg.Drift)
	if err := sim.Tick(ctx); err != nil {
		logger.Error("tick failed", "err", err)
		os.Exit(1)
	}
	logger.Info("run-once tick completed")
}
