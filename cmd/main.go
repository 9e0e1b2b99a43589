package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"
	"github.com/nthewara88agent/stock-tracker/config"
	"github.com/nthewara88agent/stock-tracker/data"
	"github.com/nthewara88agent/stock-tracker/data/cache"
	"github.com/nthewara88agent/stock-tracker/data/repository/postgres"
	"github.com/nthewara88agent/stock-tracker/internal/externalApi/cloudStorageApi/googleDriveApi"
	"github.com/nthewara88agent/stock-tracker/internal/externalApi/quoteApi"
	"github.com/nthewara88agent/stock-tracker/internal/metrics"
	"github.com/nthewara88agent/stock-tracker/internal/priceCache"
	"github.com/nthewara88agent/stock-tracker/internal/reportGenerator/xslsxGenerator"
	"github.com/nthewara88agent/stock-tracker/internal/scheduler"
	"github.com/nthewara88agent/stock-tracker/internal/service/portfolioService"
	"github.com/nthewara88agent/stock-tracker/internal/tgbot"
	"github.com/nthewara88agent/stock-tracker/internal/transport/telegram"
	"github.com/nthewara88agent/stock-tracker/utils"
)

func main() {
	cfg := config.MustLoad()

	setupLogger(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clock := clockwork.NewRealClock()

	pgClient := data.NewPostgresClient(cfg)
	defer pgClient.Close()

	pgRepo := postgres.NewPostgres(pgClient)

	redisClient := data.NewRedisClient(cfg)
	defer redisClient.Close()

	redisCache := cache.NewRedisCache(redisClient, cfg)

	quoteApiClient := quoteApi.New(cfg)

	prices := priceCache.New(
		quoteApiClient,
		priceCache.WithClock(clock),
		priceCache.WithTTL(cfg.Cache.PriceTTL),
		priceCache.WithMaxParallelFetches(cfg.Cache.MaxParallelFetches),
	)

	reportGenerator := xslsxGenerator.New()

	googleCloudStorage := googleDriveApi.New(ctx, cfg)

	portfolioSrv := portfolioService.New(pgRepo, prices, redisCache, reportGenerator, googleCloudStorage, clock)

	if err := portfolioSrv.WarmPriceCache(utils.WithRqID(ctx)); err != nil {
		slog.Warn("can't warm price cache", slog.String("err", err.Error()))
	}

	metricsSrv := metrics.NewServer(cfg.Metrics.Addr)
	metricsSrv.Start()
	defer metricsSrv.Stop()

	sched := scheduler.New(clock)
	sched.NewDelayedIntervalJob("refresh prices", portfolioSrv.RefreshPrices, cfg.Jobs.RefreshPricesInterval, cfg.Jobs.RefreshPricesDelay)
	sched.NewCrontabJob("delete old reports", portfolioSrv.DeleteOldReports, cfg.Jobs.DeleteOldReportsCrontab, false)
	sched.Start()
	defer sched.Stop()

	tgController := telegram.NewController(portfolioSrv, clock)

	tgBot := tgbot.New(cfg, tgController)
	tgBot.Start()
	defer tgBot.Stop()

	// Waiting interruption signal
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	<-interrupt
}

func setupLogger(cfg *config.Config) {
	var logLevel slog.Level

	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warning":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(log)
}
