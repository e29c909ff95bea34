package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"marketscout/internal/alerting"
	"marketscout/internal/cache"
	"marketscout/internal/config"
	"marketscout/internal/database"
	"marketscout/internal/engine"
	"marketscout/internal/events"
	"marketscout/internal/logger"
	"marketscout/internal/notifications"
	"marketscout/internal/tracing"
	"marketscout/internal/worker"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := logger.InitLogger(cfg.LogLevel, cfg.Debug); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg); err != nil {
		logger.Log.Error("Alert worker stopped with error", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	if !cfg.KafkaEnabled() {
		return errors.New("KAFKA_BROKERS must be set for the alert worker")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := tracing.InitTracer(ctx, "marketscout-alertworker", cfg.OTLPEndpoint)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Log.Error("Failed to shutdown tracer", zap.Error(err))
		}
	}()

	store, err := database.Open(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer store.Close()

	// Alerts are published to Redis so API instances can push them to live connections.
	rdb, err := cache.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return err
	}
	defer rdb.Close()

	consumer, err := events.NewConsumer(cfg.Brokers, cfg.GroupID, cfg.Topic)
	if err != nil {
		return err
	}
	defer consumer.Close()

	dispatcher := alerting.NewDispatcher(store, cache.NewPublisher(rdb), notifications.FromConfig(cfg.Notifications), "worker")
	processor := worker.NewProcessor(store, engine.New(store), dispatcher, cfg.Cooldown)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Log.Info("Alert worker started",
			zap.String("topic", cfg.Topic),
			zap.Duration("cooldown", cfg.Cooldown),
		)
		return consumer.Run(ctx, processor.Handle)
	})


	metrics := &http.Server{
		Addr:              ":" + cfg.MetricsPort,
		Handler:           promhttp.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	g.Go(func() error {
		if err := metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return metrics.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
