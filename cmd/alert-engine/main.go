// cmd/alert-engine/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"stockwatch/internal/alerts"
	"stockwatch/internal/common/aws"
	"stockwatch/internal/common/config"
	"stockwatch/internal/common/database"
	"stockwatch/internal/common/logger"
	"stockwatch/internal/common/observability"
	"stockwatch/internal/notify"
	"stockwatch/internal/pricing"
	"stockwatch/internal/queue"
	"stockwatch/internal/search"
	"stockwatch/internal/store"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()

	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting alert engine...")

	obs := observability.New("alert-engine")
	defer obs.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Redis with retry ---
	var rdb *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		rdb, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return rdb.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer rdb.Close()
	zapLog.Info("Redis connected successfully")

	// --- Init Elasticsearch with retry (optional) ---
	var indexer *search.NotificationIndexer
	if cfg.Database.Elasticsearch.Enabled {
		var esClient *database.ElasticsearchClient
		err = retryWithBackoff(func() error {
			var err error
			esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return esClient.Ping()
		}, 15, 2*time.Second, zapLog, "Elasticsearch connection")
		if err != nil {
			zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
		}
		indexer = search.NewNotificationIndexer(esClient.Client, cfg.Search.NotificationIndex, log)
		zapLog.Info("Elasticsearch connected successfully")
	}

	// --- Stores ---
	alertStore := store.NewAlertStore(pg.DB)
	stockStore := store.NewStockStore(pg.DB)
	userStore := store.NewUserStore(pg.DB)
	priceStore := store.NewPriceStore(pg.DB)
	notificationStore := store.NewNotificationStore(pg.DB)

	// --- Delivery channels ---
	var channels []notify.Channel
	if cfg.Notifications.EmailEnabled {
		sesClient, err := aws.NewSESClient(ctx, cfg.Notifications.AWSRegion)
		if err != nil {
			zapLog.Fatal("ses client init failed", zap.Error(err))
		}
		channels = append(channels, notify.NewEmailChannel(sesClient, cfg.Notifications.FromEmail))
	}
	if cfg.Notifications.WebhookEnabled {
		snsClient, err := aws.NewSNSClient(ctx, cfg.Notifications.AWSRegion)
		if err != nil {
			zapLog.Fatal("sns client init failed", zap.Error(err))
		}
		channels = append(channels, notify.NewWebhookChannel(snsClient))
	}
	channels = append(channels, notify.NewInAppChannel())

	// --- Pricing service ---
	pricingSvc := pricing.NewService(
		rdb.Client, priceStore,
		cfg.Pricing.CacheTTL, cfg.Evaluation.PriceTimeout,
		log,
	)

	// --- Dispatch queue ---
	producer := queue.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.DispatchTopic)
	defer producer.Close()

	dispatcher := notify.NewDispatcher(
		alertStore, stockStore, userStore, notificationStore,
		channels, auditIndexer(indexer),
		notify.DispatcherConfig{
			MaxAttempts:     cfg.Dispatch.MaxAttempts,
			BackoffBase:     cfg.Dispatch.BackoffBase,
			DeliveryTimeout: cfg.Dispatch.DeliveryTimeout,
		},
		log,
	).WithObservability(obs)

	consumer, err := queue.NewConsumer(
		cfg.Kafka.Brokers, cfg.Kafka.DispatchTopic, cfg.Kafka.ConsumerGroup,
		cfg.Dispatch.WorkerCount, dispatcher, log,
	)
	if err != nil {
		zapLog.Fatal("dispatch consumer init failed", zap.Error(err))
	}

	consumerDone := make(chan struct{})
	go func() {
		defer close(consumerDone)
		if err := consumer.Run(ctx); err != nil && ctx.Err() == nil {
			zapLog.Error("dispatch consumer stopped", zap.Error(err))
		}
	}()

	// --- Evaluation cycle ---
	cycle := alerts.NewCycle(alertStore, pricingSvc, producer, cfg.Evaluation.WorkerCount, log)

	cycleDone := make(chan struct{})
	go func() {
		defer close(cycleDone)
		ticker := time.NewTicker(cfg.Evaluation.Interval)
		defer ticker.Stop()

		// First cycle runs immediately so a restart does not stall
		// evaluation by a full interval.
		if err := cycle.Run(ctx); err != nil {
			zapLog.Error("evaluation cycle failed", zap.Error(err))
		}
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := cycle.Run(ctx); err != nil {
					zapLog.Error("evaluation cycle failed", zap.Error(err))
				}
			}
		}
	}()

	// --- Notification retention cleanup ---
	cleanupDone := make(chan struct{})
	go func() {
		defer close(cleanupDone)
		ticker := time.NewTicker(cfg.Notifications.CleanupEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				cutoff := time.Now().UTC().AddDate(0, 0, -cfg.Notifications.RetentionDays)
				deleted, err := notificationStore.DeleteReadBefore(ctx, cutoff)
				if err != nil {
					zapLog.Error("notification cleanup failed", zap.Error(err))
					continue
				}
				zapLog.Info("notification cleanup completed",
					zap.Int64("deleted", deleted),
					zap.Time("cutoff", cutoff),
				)
			}
		}
	}()

	// --- Health/Metrics HTTP Server ---
	go func() {
		http.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			fmt.Fprintf(w, `{"status":"ready","time":%q}`, time.Now().Format(time.RFC3339))
		})
		http.Handle("/metrics", promhttp.Handler())
		addr := fmt.Sprintf(":%d", cfg.API.MetricsPort)
		zapLog.Info("Health/Metrics server listening", zap.String("addr", addr))
		if err := http.ListenAndServe(addr, nil); err != nil {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	<-ctx.Done()
	zapLog.Info("Shutdown signal received, stopping alert engine...")

	// One shared deadline for all workers. Done() is closed, not drained, so
	// every wait can observe it.
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()
	for _, done := range []<-chan struct{}{cycleDone, consumerDone, cleanupDone} {
		select {
		case <-done:
		case <-shutdownCtx.Done():
			zapLog.Warn("shutdown timed out waiting for workers")
		}
	}

	zapLog.Info("Alert engine stopped gracefully")
}

// auditIndexer keeps the nil-indexer case a true nil interface so the
// dispatcher's nil checks work when Elasticsearch is disabled.
func auditIndexer(indexer *search.NotificationIndexer) notify.AuditIndexer {
	if indexer == nil {
		return nil
	}
	return indexer
}
