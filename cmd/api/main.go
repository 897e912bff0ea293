// cmd/api/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"stockwatch/internal/api"
	"stockwatch/internal/common/aws"
	"stockwatch/internal/common/config"
	"stockwatch/internal/common/database"
	"stockwatch/internal/common/logger"
	"stockwatch/internal/notify"
	"stockwatch/internal/pricing"
	"stockwatch/internal/search"
	"stockwatch/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()

	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting API server...")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pg, err := database.NewPostgres(cfg.Database.Postgres)
	if err != nil {
		zapLog.Fatal("postgres init failed", zap.Error(err))
	}
	defer pg.Close()
	if err := pg.Ping(ctx); err != nil {
		zapLog.Fatal("postgres unreachable", zap.Error(err))
	}

	rdb, err := database.NewRedis(cfg.Database.Redis)
	if err != nil {
		zapLog.Fatal("redis init failed", zap.Error(err))
	}
	defer rdb.Close()

	var indexer *search.NotificationIndexer
	if cfg.Database.Elasticsearch.Enabled {
		esClient, err := database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			zapLog.Fatal("elasticsearch init failed", zap.Error(err))
		}
		indexer = search.NewNotificationIndexer(esClient.Client, cfg.Search.NotificationIndex, log)
	}

	alertStore := store.NewAlertStore(pg.DB)
	stockStore := store.NewStockStore(pg.DB)
	userStore := store.NewUserStore(pg.DB)
	priceStore := store.NewPriceStore(pg.DB)
	notificationStore := store.NewNotificationStore(pg.DB)
	watchlistStore := store.NewWatchlistStore(pg.DB)

	pricingSvc := pricing.NewService(
		rdb.Client, priceStore,
		cfg.Pricing.CacheTTL, cfg.Evaluation.PriceTimeout,
		log,
	)

	var broadcaster *notify.Broadcaster
	if cfg.Notifications.BroadcastTopic != "" {
		snsClient, err := aws.NewSNSClient(ctx, cfg.Notifications.AWSRegion)
		if err != nil {
			zapLog.Fatal("sns client init failed", zap.Error(err))
		}
		var audit notify.AuditIndexer
		if indexer != nil {
			audit = indexer
		}
		broadcaster = notify.NewBroadcaster(
			userStore, notificationStore, snsClient,
			cfg.Notifications.BroadcastTopic, audit, log,
		)
	}

	server := api.NewServer(
		api.ServerConfig{
			ListenAddress:   cfg.API.ListenAddress,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		log,
		api.NewAlertHandler(alertStore, stockStore, log),
		api.NewNotificationHandler(notificationStore, indexer, broadcaster, log),
		api.NewStockHandler(stockStore, priceStore, pricingSvc, log),
		api.NewWatchlistHandler(watchlistStore, stockStore, log),
	)
	if err := server.Start(); err != nil {
		zapLog.Fatal("http server start failed", zap.Error(err))
	}

	<-ctx.Done()
	zapLog.Info("Shutdown signal received, stopping API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Stop(shutdownCtx); err != nil {
		zapLog.Error("http server shutdown failed", zap.Error(err))
	}

	zapLog.Info("API server stopped gracefully")
}
