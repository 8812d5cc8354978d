// Command spreadwatch runs one cycle of the cross-exchange arbitrage
// pipeline: poll exchange prices, detect fee-adjusted opportunities, persist
// them and alert on the profitable subset.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"

	"spreadwatch/internal/app"
	"spreadwatch/internal/arbitrage"
	"spreadwatch/internal/config"
	"spreadwatch/internal/database"
	"spreadwatch/internal/exchange"
	"spreadwatch/internal/notify"
	"spreadwatch/internal/poller"
	"spreadwatch/internal/settings"
)

func main() {
	configPath := flag.String("config", ".", "directory containing config.yaml")
	skipPolling := flag.Bool("skip-polling", false, "skip the polling stage and analyze the existing price snapshot")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logger.Error("cannot load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx := context.Background()

	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		logger.Error("cannot connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	repo := database.NewPostgresRepository(pool)
	if err := repo.Migrate(ctx); err != nil {
		logger.Error("cannot migrate database", slog.String("error", err.Error()))
		os.Exit(1)
	}

	httpClient := exchange.NewHTTPClient(cfg.Fetch.Timeout(), cfg.Fetch.ConnectTimeout())
	registry := exchange.NewRegistry(httpClient, exchange.RetryPolicy{
		MaxAttempts: cfg.Fetch.RetryAttempts,
		BaseDelay:   cfg.Fetch.RetryBaseDelay(),
		Multiplier:  2,
	}, logger)

	store := settings.NewStore(repo)

	var sender notify.Sender
	if telegram := notify.NewTelegramSender(cfg.Telegram.BotToken, cfg.Telegram.ChatID); telegram.Configured() {
		sender = telegram
	} else {
		logger.Warn("telegram not configured, alerts disabled")
	}

	coordinator := app.NewCoordinator(
		logger,
		poller.New(logger, repo, registry),
		arbitrage.NewEngine(logger, repo, store),
		notify.NewService(logger, repo, sender),
		*skipPolling,
	)

	if err := coordinator.Run(ctx); err != nil {
		os.Exit(1)
	}
}
