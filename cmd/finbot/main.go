package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"finbot/internal/amqp"
	"finbot/internal/cache"
	"finbot/internal/chart"
	"finbot/internal/cli"
	"finbot/internal/config"
	"finbot/internal/conversation"
	"finbot/internal/core"
	apphttp "finbot/internal/http"
	"finbot/internal/log"
	"finbot/internal/ratelimit"
	"finbot/internal/services"
	"finbot/internal/telegram"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	statsCacheSize       = 1024
	cacheCleanupInterval = 10 * time.Minute
	shutdownTimeout      = 30 * time.Second
	pollTimeoutSeconds   = 60
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger("info")
	cfg := cli.LoadAndValidateConfig(logger, (*config.Config).ValidateBot)
	logger = cli.SetupLogger(cfg.LogLevel)

	logger.Info("Starting finbot", "backend", cfg.DataBackend, "workers", cfg.BotWorkers)

	ledgerResult := cli.OpenLedger(logger, cfg)

	// Events are optional: without a broker the worker's sweep still
	// mirrors every row.
	var publisher services.Publisher
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, transaction events disabled", "error", err)
		} else {
			publisher = client
			logger.Info("AMQP publisher connected", "exchange", cfg.AMQPExchange)
		}
	}

	cacheManager := cache.NewManager()
	var reportOpts []services.ReportOption
	var statsCache *cache.LRUCache[core.Stats]
	if cfg.StatsCacheTTL > 0 {
		statsCache = cache.NewLRUCache[core.Stats](statsCacheSize, cfg.StatsCacheTTL)
		cacheManager.Register(statsCache)
		reportOpts = append(reportOpts, services.WithStatsCache(statsCache))
	}
	cacheManager.StartCleanup(cacheCleanupInterval)

	reports := services.NewReportService(ledgerResult.Ledger, reportOpts...)
	ledger := services.NewLedgerService(ledgerResult.Ledger, publisher, reports)
	conv := conversation.NewManager(ledger,
		conversation.WithCurrency(cfg.DefaultCurrency),
		conversation.WithLogger(log.ForComponent(logger, log.ComponentConversation)))
	limiter := ratelimit.NewLimiter(ratelimit.Config{MessagesPerMinute: cfg.MessagesPerMinute})

	api, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		logger.Error("Failed to connect to Telegram", "error", err)
		os.Exit(1)
	}
	logger.Info("Authorized on Telegram", "username", api.Self.UserName)

	bot := telegram.New(telegram.Deps{
		Sender:       api,
		Users:        ledger,
		Reports:      reports,
		Conversation: conv,
		Chart:        chart.NewRenderer(),
		Limiter:      limiter,
		Currency:     cfg.DefaultCurrency,
	}, cfg.BotWorkers)

	health := apphttp.NewServer(":" + cfg.HealthPort)
	health.AddCheck("ledger", ledger)
	health.AddGauge("active_sessions", func() int64 { return int64(conv.Active()) })
	health.AddGauge("rate_limited_users", func() int64 { return int64(limiter.ActiveUsers()) })
	health.AddGauge("rate_limited_dropped", limiter.Dropped)
	if statsCache != nil {
		health.AddGauge("stats_cache_entries", func() int64 { return int64(statsCache.Size()) })
		health.AddGauge("stats_cache_hits", func() int64 { return statsCache.Stats().Hits })
	}

	ctx, shutdown, done := cli.GracefulShutdown(logger, shutdownTimeout, func(ctx context.Context) {
		api.StopReceivingUpdates()
		if err := health.Shutdown(ctx); err != nil {
			logger.Error("Health server shutdown error", "error", err)
		}
		limiter.Stop()
		cacheManager.Stop()
	})

	go func() {
		logger.Info("Health server listening", "port", cfg.HealthPort)
		if err := health.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Health server error", "error", err, "port", cfg.HealthPort)
		}
	}()

	u := tgbotapi.NewUpdate(0)
	u.Timeout = pollTimeoutSeconds
	if err := bot.Run(ctx, api.GetUpdatesChan(u)); err != nil {
		logger.Error("Bot stopped with error", "error", err)
	}

	shutdown()
	<-done
	if err := ledger.Close(); err != nil {
		logger.Error("Failed to close ledger", "error", err)
	}
	logger.Info("finbot stopped")
}
